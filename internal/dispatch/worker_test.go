package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/notes-server/internal/domain"
	domainerrors "github.com/listenupapp/notes-server/internal/errors"
)

// memOutbox is an in-memory Outbox with the same claim semantics as the sqlite store.
type memOutbox struct {
	mu      sync.Mutex
	entries map[string]*domain.OutboxEntry
}

func newMemOutbox(entries ...*domain.OutboxEntry) *memOutbox {
	m := &memOutbox{entries: make(map[string]*domain.OutboxEntry)}
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return m
}

func (m *memOutbox) get(id string) domain.OutboxEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.entries[id]
}

func (m *memOutbox) ClaimOutbox(_ context.Context, now time.Time, limit int, lease time.Duration) ([]*domain.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*domain.OutboxEntry
	for _, e := range m.entries {
		if (e.Status == domain.OutboxPending || e.Status == domain.OutboxProcessing) && !e.NextAttemptAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.OutboxEntry, 0, len(due))
	for _, e := range due {
		e.Status = domain.OutboxProcessing
		e.Attempts++
		e.NextAttemptAt = now.Add(lease)
		c := *e
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

func (m *memOutbox) set(id string, status domain.OutboxStatus, lastErr string, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return errors.New("not found")
	}
	e.Status = status
	e.LastError = lastErr
	e.NextAttemptAt = next
	e.UpdatedAt = next
	return nil
}

func (m *memOutbox) MarkOutboxDelivered(_ context.Context, id string, at time.Time) error {
	return m.set(id, domain.OutboxDelivered, "", at)
}

func (m *memOutbox) MarkOutboxSkipped(_ context.Context, id, reason string, at time.Time) error {
	return m.set(id, domain.OutboxSkipped, reason, at)
}

func (m *memOutbox) RescheduleOutbox(_ context.Context, id string, next time.Time, lastErr string) error {
	return m.set(id, domain.OutboxPending, lastErr, next)
}

func (m *memOutbox) MarkOutboxFailed(_ context.Context, id, lastErr string, at time.Time) error {
	return m.set(id, domain.OutboxFailed, lastErr, at)
}

func (m *memOutbox) PruneOutbox(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.entries {
		if (e.Status == domain.OutboxDelivered || e.Status == domain.OutboxSkipped) && e.UpdatedAt.Before(before) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *memOutbox) CountOutboxByStatus(context.Context) (map[domain.OutboxStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[domain.OutboxStatus]int{}
	for _, e := range m.entries {
		counts[e.Status]++
	}
	return counts, nil
}

type staticSettings struct {
	settings *domain.AISettings
	err      error
}

func (s staticSettings) Effective(context.Context) (*domain.AISettings, error) {
	return s.settings, s.err
}

func testEntry(t *testing.T, id string, at time.Time) *domain.OutboxEntry {
	t.Helper()
	note := &domain.Note{ID: "note-" + id, UserID: "usr-1", Content: domain.StringPtr("hello")}
	owner := &domain.User{ID: "usr-1", Email: "a@example.com"}
	payload, err := json.Marshal(domain.NewEnrichmentRequest(note, owner, at))
	require.NoError(t, err)
	return &domain.OutboxEntry{
		ID:            id,
		NoteID:        note.ID,
		Payload:       payload,
		Status:        domain.OutboxPending,
		NextAttemptAt: at,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func testConfig(url string) WorkerConfig {
	return WorkerConfig{
		DefaultWebhookURL: url,
		BatchSize:         10,
		MaxAttempts:       3,
		BackoffBase:       time.Second,
		BackoffMax:        time.Minute,
		Lease:             time.Minute,
		Retention:         24 * time.Hour,
	}
}

func newTestWorker(outbox Outbox, settings SettingsSource, cfg WorkerConfig, clock *time.Time) *Worker {
	w := NewWorker(outbox, settings, NewClient(time.Second, nil), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.now = func() time.Time { return *clock }
	w.jitter = func(time.Duration) time.Duration { return 0 }
	return w
}

func TestWorker_DeliversWithCustomPrompt(t *testing.T) {
	var got domain.EnrichmentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clock := time.Now()
	outbox := newMemOutbox(testEntry(t, "obx-1", clock))
	settings := staticSettings{settings: &domain.AISettings{WebhookURL: srv.URL, Enabled: true, CustomPrompt: "Be brief."}}
	w := newTestWorker(outbox, settings, testConfig(""), &clock)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, domain.OutboxDelivered, outbox.get("obx-1").Status)
	assert.Equal(t, "note-obx-1", got.NoteID)
	assert.Equal(t, "a@example.com", got.UserEmail)
	assert.Equal(t, domain.NoteTypeText, got.Type)
	assert.Equal(t, "Be brief.", got.CustomPrompt)
}

func TestWorker_FallsBackToDefaultURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	clock := time.Now()
	outbox := newMemOutbox(testEntry(t, "obx-1", clock))
	w := newTestWorker(outbox, staticSettings{settings: domain.DefaultAISettings("")}, testConfig(srv.URL), &clock)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, domain.OutboxDelivered, outbox.get("obx-1").Status)
}

func TestWorker_SkipsWhenDisabledOrUnconfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		settings *domain.AISettings
		fallback string
		reason   string
	}{
		{"disabled", &domain.AISettings{WebhookURL: srv.URL, Enabled: false}, srv.URL, ReasonDisabled},
		{"no url", &domain.AISettings{Enabled: true}, "", ReasonNoTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := time.Now()
			outbox := newMemOutbox(testEntry(t, "obx-1", clock))
			w := newTestWorker(outbox, staticSettings{settings: tt.settings}, testConfig(tt.fallback), &clock)

			require.NoError(t, w.Run(context.Background()))

			e := outbox.get("obx-1")
			assert.Equal(t, domain.OutboxSkipped, e.Status)
			assert.Equal(t, tt.reason, e.LastError)
		})
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestWorker_RetriesWithBackoffThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "workflow offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	clock := time.Now()
	outbox := newMemOutbox(testEntry(t, "obx-1", clock))
	settings := staticSettings{settings: &domain.AISettings{WebhookURL: srv.URL, Enabled: true}}
	w := newTestWorker(outbox, settings, testConfig(""), &clock)
	ctx := context.Background()

	require.NoError(t, w.Run(ctx))
	e := outbox.get("obx-1")
	assert.Equal(t, domain.OutboxPending, e.Status)
	assert.Equal(t, 1, e.Attempts)
	assert.Equal(t, clock.Add(time.Second), e.NextAttemptAt)
	assert.Contains(t, e.LastError, "503")

	// Not yet due.
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, int32(1), hits.Load())

	clock = clock.Add(time.Second)
	require.NoError(t, w.Run(ctx))
	e = outbox.get("obx-1")
	assert.Equal(t, 2, e.Attempts)
	assert.Equal(t, clock.Add(2*time.Second), e.NextAttemptAt)

	clock = clock.Add(2 * time.Second)
	require.NoError(t, w.Run(ctx))
	e = outbox.get("obx-1")
	assert.Equal(t, domain.OutboxFailed, e.Status)
	assert.Equal(t, 3, e.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestWorker_SettingsErrorReschedules(t *testing.T) {
	clock := time.Now()
	outbox := newMemOutbox(testEntry(t, "obx-1", clock))
	w := newTestWorker(outbox, staticSettings{err: errors.New("database is locked")}, testConfig(""), &clock)

	require.NoError(t, w.Run(context.Background()))

	e := outbox.get("obx-1")
	assert.Equal(t, domain.OutboxPending, e.Status)
	assert.Contains(t, e.LastError, "database is locked")
}

func TestWorker_UndecodablePayloadFails(t *testing.T) {
	clock := time.Now()
	entry := testEntry(t, "obx-1", clock)
	entry.Payload = []byte(`not json`)
	outbox := newMemOutbox(entry)
	settings := staticSettings{settings: &domain.AISettings{WebhookURL: "http://127.0.0.1:1", Enabled: true}}
	w := newTestWorker(outbox, settings, testConfig(""), &clock)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, domain.OutboxFailed, outbox.get("obx-1").Status)
}

func TestWorker_Prune(t *testing.T) {
	clock := time.Now()
	old := testEntry(t, "obx-old", clock.Add(-48*time.Hour))
	old.Status = domain.OutboxDelivered
	failed := testEntry(t, "obx-failed", clock.Add(-48*time.Hour))
	failed.Status = domain.OutboxFailed
	outbox := newMemOutbox(old, failed)

	w := newTestWorker(outbox, staticSettings{}, testConfig(""), &clock)
	require.NoError(t, w.Prune(context.Background()))

	counts, _ := outbox.CountOutboxByStatus(context.Background())
	assert.Equal(t, map[domain.OutboxStatus]int{domain.OutboxFailed: 1}, counts)
}

func TestBackoff(t *testing.T) {
	clock := time.Now()
	cfg := testConfig("")
	cfg.BackoffBase = 10 * time.Second
	cfg.BackoffMax = 30 * time.Minute
	w := newTestWorker(newMemOutbox(), staticSettings{}, cfg, &clock)

	assert.Equal(t, 10*time.Second, w.Backoff(1))
	assert.Equal(t, 20*time.Second, w.Backoff(2))
	assert.Equal(t, 80*time.Second, w.Backoff(4))
	assert.Equal(t, 30*time.Minute, w.Backoff(50), "capped at max")

	w.jitter = defaultJitter
	for range 20 {
		d := w.Backoff(2)
		assert.GreaterOrEqual(t, d, 20*time.Second)
		assert.LessOrEqual(t, d, 24*time.Second)
	}
}

func TestNudge_NeverBlocks(t *testing.T) {
	clock := time.Now()
	w := newTestWorker(newMemOutbox(), staticSettings{}, testConfig(""), &clock)

	w.Nudge()
	w.Nudge()
	assert.Len(t, w.Nudges(), 1)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewClient(time.Second, nil).Deliver(context.Background(), srv.URL, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrDispatchFailed))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "bad payload", statusErr.Body)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	err := NewClient(time.Second, nil).Deliver(context.Background(), target, []byte(`{}`))
	assert.True(t, domainerrors.Is(err, domainerrors.ErrDispatchFailed))
}
