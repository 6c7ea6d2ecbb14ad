package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/notes-server/internal/api/dto"
	"github.com/listenupapp/notes-server/internal/domain"
)

func TestWorkflowCallback_ReplacesTagsAndTitle(t *testing.T) {
	ts := setupTestServer(t, serverOptions{})
	alice := ts.createUser(t, "usr-alice", "alice@example.com", domain.RoleMember)
	note := ts.createNote(t, alice, "an essay")
	noteID := note["id"].(string)

	resp := ts.api.Post("/webhook/n8n", map[string]any{
		"noteId":           noteID,
		"summary":          "A summary",
		"extractedTitle":   "First",
		"tagsArray":        []any{"a", "b"},
		"processingStatus": "completed",
		"workflowRunId":    "run-42",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	ack := decode[dto.Ack](t, resp)
	assert.True(t, ack.Success)
	assert.True(t, ack.Data.Success)
	assert.Equal(t, "Note updated successfully", ack.Data.Message)
	assert.Equal(t, noteID, ack.Data.NoteID)

	resp = ts.api.Post("/webhook/n8n", map[string]any{
		"noteId":         noteID,
		"extractedTitle": "Second",
		"tagsArray":      []any{"c"},
		"summary":        nil,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	got, err := ts.store.GetNote(context.Background(), noteID)
	require.NoError(t, err)
	assert.Equal(t, "Second", *got.Title)
	assert.Equal(t, "A summary", *got.Summary)
	assert.Equal(t, []string{"c"}, got.TagNames())
	assert.Equal(t, domain.StatusCompleted, got.ProcessingStatus)
}

func TestWorkflowCallback_Errors(t *testing.T) {
	ts := setupTestServer(t, serverOptions{})

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"missing note id", map[string]any{"summary": "x"}, http.StatusBadRequest, "VALIDATION"},
		{"unknown note", map[string]any{"noteId": "note-missing"}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/webhook/n8n", tt.body)
			require.Equal(t, tt.status, resp.Code, resp.Body.String())
			envelope := decode[any](t, resp)
			assert.False(t, envelope.Success)
			assert.Equal(t, tt.code, envelope.Error.Code)
		})
	}
}

func TestProcessorCallback_MergesTags(t *testing.T) {
	ts := setupTestServer(t, serverOptions{})
	alice := ts.createUser(t, "usr-alice", "alice@example.com", domain.RoleMember)
	note := ts.createNote(t, alice, "an essay")
	noteID := note["id"].(string)

	for _, tags := range [][]any{{"x"}, {"y", "x"}} {
		resp := ts.api.Post("/webhook/ai-complete", map[string]any{
			"noteId":        noteID,
			"userEmail":     "Alice@Example.com",
			"title":         "Extracted",
			"extractedTags": tags,
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.True(t, decode[dto.Ack](t, resp).Data.Success)
	}

	got, err := ts.store.GetNote(context.Background(), noteID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, got.TagNames())
	assert.Equal(t, "Extracted", *got.Title)
}

func TestProcessorCallback_Errors(t *testing.T) {
	ts := setupTestServer(t, serverOptions{})
	alice := ts.createUser(t, "usr-alice", "alice@example.com", domain.RoleMember)
	noteID := ts.createNote(t, alice, "an essay")["id"].(string)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"missing email", map[string]any{"noteId": noteID}, http.StatusBadRequest},
		{"missing note id", map[string]any{"userEmail": "alice@example.com"}, http.StatusBadRequest},
		{"someone else's note", map[string]any{"noteId": noteID, "userEmail": "mallory@example.com"}, http.StatusNotFound},
		{"unknown note", map[string]any{"noteId": "note-missing", "userEmail": "alice@example.com"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/webhook/ai-complete", tt.body)
			assert.Equal(t, tt.status, resp.Code, resp.Body.String())
		})
	}

	got, err := ts.store.GetNote(context.Background(), noteID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.ProcessingStatus, "rejected callbacks change nothing")
}

func TestWebhooks_RequireSecretWhenConfigured(t *testing.T) {
	ts := setupTestServer(t, serverOptions{secret: "s3cret"})
	alice := ts.createUser(t, "usr-alice", "alice@example.com", domain.RoleMember)
	noteID := ts.createNote(t, alice, "an essay")["id"].(string)
	body := map[string]any{"noteId": noteID, "userEmail": "alice@example.com"}

	for _, path := range []string{"/webhook/n8n", "/webhook/ai-complete"} {
		t.Run(path, func(t *testing.T) {
			resp := ts.api.Post(path, body)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)

			resp = ts.api.Post(path, "Authorization: Bearer wrong", body)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)

			resp = ts.api.Post(path, "Authorization: Bearer s3cret", body)
			assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		})
	}
}

func TestWebhooks_RateLimitedPerIP(t *testing.T) {
	ts := setupTestServer(t, serverOptions{webhookRPS: 1, webhookBurst: 1})

	resp := ts.api.Post("/webhook/n8n", map[string]any{"noteId": "note-missing"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Post("/webhook/n8n", map[string]any{"noteId": "note-missing"})
	require.Equal(t, http.StatusTooManyRequests, resp.Code, resp.Body.String())
	envelope := decode[any](t, resp)
	assert.False(t, envelope.Success)
	assert.Equal(t, "RATE_LIMITED", envelope.Error.Code)

	// Other addresses have their own bucket.
	resp = ts.api.Post("/webhook/n8n", "X-Real-IP: 203.0.113.9", map[string]any{"noteId": "note-missing"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStringTags(t *testing.T) {
	assert.Nil(t, stringTags(nil))
	assert.Equal(t, []string{}, stringTags([]any{}))
	assert.Equal(t, []string{"a", "b"}, stringTags([]any{"a", 1, nil, "b", map[string]any{}}))
}

func TestCallbacks_StorePlainTextVerbatim(t *testing.T) {
	ts := setupTestServer(t, serverOptions{})
	alice := ts.createUser(t, "usr-alice", "alice@example.com", domain.RoleMember)
	replaced := ts.createNote(t, alice, "inequalities")["id"].(string)
	merged := ts.createNote(t, alice, "more inequalities")["id"].(string)

	resp := ts.api.Post("/webhook/n8n", map[string]any{
		"noteId":         replaced,
		"summary":        "Compare a<b and b>c for all inputs.",
		"extractedTitle": "a<b",
		"tagsArray":      []any{"x<y"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Post("/webhook/ai-complete", map[string]any{
		"noteId":        merged,
		"userEmail":     "alice@example.com",
		"summary":       "a<b",
		"title":         "Use <div> wrappers",
		"extractedTags": []any{"a<b"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	got, err := ts.store.GetNote(context.Background(), replaced)
	require.NoError(t, err)
	assert.Equal(t, "Compare a<b and b>c for all inputs.", *got.Summary)
	assert.Equal(t, "a<b", *got.Title)
	assert.Equal(t, []string{"x<y"}, got.TagNames())

	got, err = ts.store.GetNote(context.Background(), merged)
	require.NoError(t, err)
	assert.Equal(t, "a<b", *got.Summary)
	assert.Equal(t, "Use <div> wrappers", *got.Title)
	assert.Equal(t, []string{"a<b"}, got.TagNames())
}

func TestCallbacks_DeclaredHTMLIsStripped(t *testing.T) {
	ts := setupTestServer(t, serverOptions{})
	alice := ts.createUser(t, "usr-alice", "alice@example.com", domain.RoleMember)
	noteID := ts.createNote(t, alice, "an essay")["id"].(string)

	resp := ts.api.Post("/webhook/n8n", map[string]any{
		"noteId":         noteID,
		"summary":        "<p>A <b>short</b> summary &amp; more</p>",
		"extractedTitle": "<h1>Title</h1>",
		"format":         "html",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	got, err := ts.store.GetNote(context.Background(), noteID)
	require.NoError(t, err)
	assert.Equal(t, "A short summary & more", *got.Summary)
	assert.Equal(t, "Title", *got.Title)
}
