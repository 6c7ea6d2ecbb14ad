package sse

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func receive(t *testing.T, c *Client) (Event, bool) {
	t.Helper()
	select {
	case e := <-c.EventChan:
		return e, true
	case <-time.After(200 * time.Millisecond):
		return Event{}, false
	}
}

func TestManager_DeliversOnlyToOwnerOfNote(t *testing.T) {
	m := newTestManager(t)

	alice, err := m.Connect("usr-alice", false)
	require.NoError(t, err)
	bob, err := m.Connect("usr-bob", false)
	require.NoError(t, err)

	m.Emit(NewNoteCreatedEvent(&domain.Note{ID: "note-1", UserID: "usr-alice"}))

	e, ok := receive(t, alice)
	require.True(t, ok, "alice should receive her note event")
	assert.Equal(t, EventNoteCreated, e.Type)
	assert.Equal(t, "note-1", e.Data.(NoteEventData).Note.ID)

	_, ok = receive(t, bob)
	assert.False(t, ok, "bob must not receive alice's note")
}

func TestManager_OwnerOnlyEvents(t *testing.T) {
	m := newTestManager(t)

	owner, err := m.Connect("usr-owner", true)
	require.NoError(t, err)
	member, err := m.Connect("usr-member", false)
	require.NoError(t, err)

	m.Emit(NewSettingsUpdatedEvent(&domain.AISettings{OpenAIKey: "sk-1234567890abcdef", Enabled: true}))

	e, ok := receive(t, owner)
	require.True(t, ok)
	data := e.Data.(SettingsEventData)
	assert.Equal(t, "sk-12345...cdef", data.Settings.OpenAIKey, "keys are masked in events")

	_, ok = receive(t, member)
	assert.False(t, ok)
}

func TestManager_DisconnectAndCount(t *testing.T) {
	m := newTestManager(t)

	c, err := m.Connect("usr-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(c.ID)
	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())

	_, open := <-c.Done
	assert.False(t, open)
}

func TestManager_EmitAfterShutdownIsDropped(t *testing.T) {
	m := newTestManager(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	require.NoError(t, m.Shutdown(ctx), "second shutdown is a no-op")

	assert.NotPanics(t, func() {
		m.Emit(NewNoteCreatedEvent(&domain.Note{ID: "note-1", UserID: "usr-1"}))
	})
}

func TestHandler_StreamsCallerEvents(t *testing.T) {
	m := newTestManager(t)
	h := NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithPrincipal(r.Context(), &auth.Principal{UserID: "usr-1", Role: domain.RoleMember})
		h.ServeHTTP(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		t.Helper()
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return name, data
			}
		}
	}

	name, _ := readEvent()
	assert.Equal(t, "connected", name)

	m.Emit(NewNoteEnrichedEvent(&domain.Note{ID: "note-7", UserID: "usr-1"}))
	name, data := readEvent()
	assert.Equal(t, string(EventNoteEnriched), name)
	assert.Contains(t, data, `"note-7"`)
}

func TestHandler_RequiresPrincipal(t *testing.T) {
	m := newTestManager(t)
	h := NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, m.ClientCount())
}
