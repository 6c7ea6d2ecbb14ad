package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/search"
	"github.com/listenupapp/notes-server/internal/sse"
	"github.com/listenupapp/notes-server/internal/store/sqlite"
	"github.com/listenupapp/notes-server/internal/validation"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordingPublisher) Emit(e sse.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []sse.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]sse.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type countingNudger struct {
	mu sync.Mutex
	n  int
}

func (c *countingNudger) Nudge() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingNudger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type testEnv struct {
	store      *sqlite.Store
	search     *SearchService
	activity   *ActivityService
	notes      *NoteService
	enrichment *EnrichmentService
	settings   *SettingsService
	tags       *TagService
	events     *recordingPublisher
	nudger     *countingNudger
}

type envOptions struct {
	secret     string
	defaultURL string
	withIndex  bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var index *search.NoteIndex
	if opts.withIndex {
		index, _, err = search.NewNoteIndex(search.Options{Path: t.TempDir(), Logger: logger})
		require.NoError(t, err)
		t.Cleanup(func() { _ = index.Close() })
	}

	env := &testEnv{
		store:  s,
		events: &recordingPublisher{},
		nudger: &countingNudger{},
	}
	env.search = NewSearchService(index, s, logger)
	env.activity = NewActivityService(s, logger)
	env.notes = NewNoteService(s, env.search, env.activity, env.events, env.nudger, validation.New(), logger)
	env.enrichment = NewEnrichmentService(s, env.search, env.activity, env.events, opts.secret, logger)
	env.settings = NewSettingsService(s, env.activity, env.events, opts.defaultURL, time.Minute, logger)
	env.tags = NewTagService(s)
	return env
}

func (e *testEnv) createUser(t *testing.T, id, email string, role domain.Role) *auth.Principal {
	t.Helper()
	now := time.Now()
	u := &domain.User{ID: id, Name: id, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return auth.NewPrincipal(u)
}

func (e *testEnv) createTextNote(t *testing.T, p *auth.Principal, content string) *domain.Note {
	t.Helper()
	note, err := e.notes.CreateNote(context.Background(), p, CreateNoteRequest{Type: "text", Content: content}, "127.0.0.1")
	require.NoError(t, err)
	return note
}

func strPtr(s string) *string { return &s }
