package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// webhookRateLimit rejects callbacks from an address that exceeds the
// webhook limiter with a 429 envelope.
func (s *Server) webhookRateLimit(ctx huma.Context, next func(huma.Context)) {
	ip := clientIP(ctx.Context())
	if !s.webhookLimiter.Allow(ip) {
		s.logger.Warn("rate limit exceeded",
			"ip", ip,
			"path", ctx.URL().Path,
		)
		//nolint:errcheck // nothing useful to do if the write fails
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many requests, please try again later")
		return
	}
	next(ctx)
}
