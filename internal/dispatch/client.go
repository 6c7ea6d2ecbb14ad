// Package dispatch delivers enrichment requests from the outbox to the
// external processor.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	domainerrors "github.com/listenupapp/notes-server/internal/errors"
	"github.com/listenupapp/notes-server/internal/ratelimit"
)

const (
	userAgent = "notes-server/1.0"
	// maxErrorBody bounds how much of a failed response is kept for last_error.
	maxErrorBody = 512
)

// StatusError reports a non-2xx response from the processor.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("processor responded %d", e.StatusCode)
	}
	return fmt.Sprintf("processor responded %d: %s", e.StatusCode, e.Body)
}

// Client POSTs JSON payloads to webhook targets.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
}

// NewClient creates a client with a per-request timeout. When limiter is
// non-nil, deliveries wait on it keyed by target host.
func NewClient(timeout time.Duration, limiter *ratelimit.KeyedRateLimiter) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Deliver POSTs payload to target. Transport errors and non-2xx responses
// are returned as DISPATCH_FAILED errors.
func (c *Client) Deliver(ctx context.Context, target string, payload []byte) error {
	u, err := url.Parse(target)
	if err != nil {
		return domainerrors.DispatchFailed("invalid webhook url", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, u.Host); err != nil {
			return domainerrors.DispatchFailed("rate limit wait", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return domainerrors.DispatchFailed("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return domainerrors.DispatchFailed("deliver to processor", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domainerrors.DispatchFailed("deliver to processor",
			&StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))})
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
