package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/config"
	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/http/response"
	"github.com/listenupapp/notes-server/internal/service"
	"github.com/listenupapp/notes-server/internal/sse"
	"github.com/listenupapp/notes-server/internal/store/sqlite"
	"github.com/listenupapp/notes-server/internal/validation"
)

// testEnvelope decodes the response envelope with typed data.
type testEnvelope[T any] struct {
	Version int                 `json:"v"`
	Success bool                `json:"success"`
	Data    T                   `json:"data"`
	Error   *response.ErrorBody `json:"error"`
}

type noopNudger struct{}

func (noopNudger) Nudge() {}

// apiTestServer wraps the API server for handler tests.
type apiTestServer struct {
	*Server
	api    humatest.TestAPI
	store  *sqlite.Store
	tokens *auth.TokenService
}

type serverOptions struct {
	secret          string
	submitPerMinute int
	submitBurst     int
	webhookRPS      int
	webhookBurst    int
}

func setupTestServer(t *testing.T, opts serverOptions) *apiTestServer {
	t.Helper()

	if opts.submitPerMinute == 0 {
		opts.submitPerMinute, opts.submitBurst = 600, 100
	}
	if opts.webhookRPS == 0 {
		opts.webhookRPS, opts.webhookBurst = 100, 100
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{7}, 32), 15*time.Minute)
	require.NoError(t, err)

	sseManager := sse.NewManager(logger)

	searchService := service.NewSearchService(nil, st, logger)
	activity := service.NewActivityService(st, logger)
	services := &Services{
		Notes:      service.NewNoteService(st, searchService, activity, sseManager, noopNudger{}, validation.New(), logger),
		Enrichment: service.NewEnrichmentService(st, searchService, activity, sseManager, opts.secret, logger),
		Settings:   service.NewSettingsService(st, activity, sseManager, "https://default.example.com/hook", time.Minute, logger),
		Tags:       service.NewTagService(st),
		Activity:   activity,
		Search:     searchService,
	}

	cfg := &config.Config{
		RateLimit: config.RateLimitConfig{
			WebhookRPS:      opts.webhookRPS,
			WebhookBurst:    opts.webhookBurst,
			SubmitPerMinute: opts.submitPerMinute,
			SubmitBurst:     opts.submitBurst,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}

	s := NewServer(st, services, tokens, sseManager, cfg, logger)
	t.Cleanup(s.Close)

	return &apiTestServer{
		Server: s,
		api:    humatest.Wrap(t, s.api),
		store:  st,
		tokens: tokens,
	}
}

// createUser stores a user and returns its bearer header.
func (ts *apiTestServer) createUser(t *testing.T, id, email string, role domain.Role) string {
	t.Helper()

	now := time.Now()
	u := &domain.User{ID: id, Name: id, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, ts.store.CreateUser(context.Background(), u))

	token, err := ts.tokens.GenerateAccessToken(u)
	require.NoError(t, err)
	return "Authorization: Bearer " + token
}

// createNote captures a text note through the API and returns it.
func (ts *apiTestServer) createNote(t *testing.T, authHeader, content string) map[string]any {
	t.Helper()

	resp := ts.api.Post("/notes", authHeader, map[string]any{
		"type":    "text",
		"content": content,
	})
	require.Equal(t, 201, resp.Code, resp.Body.String())
	return decode[map[string]any](t, resp).Data
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()

	var envelope testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	require.Equal(t, response.EnvelopeVersion, envelope.Version)
	return envelope
}
