package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/listenupapp/notes-server/internal/store"
)

func TestUpsertTag_NormalizesToSameRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertTag(ctx, "AI")
	if err != nil {
		t.Fatalf("UpsertTag(AI): %v", err)
	}
	second, err := s.UpsertTag(ctx, " ai ")
	if err != nil {
		t.Fatalf("UpsertTag( ai ): %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same tag, got %s and %s", first.ID, second.ID)
	}
	if first.Name != "ai" {
		t.Errorf("Name: got %q, want ai", first.Name)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tags`).Scan(&count); err != nil {
		t.Fatalf("count tags: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 tag row, got %d", count)
	}
}

func TestUpsertTag_EmptyName(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpsertTag(context.Background(), "   ")
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpsertTag_ConcurrentCreatorsShareOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tag, err := s.UpsertTag(ctx, "Research")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = tag.ID
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Errorf("worker %d got tag %s, worker 0 got %s", i, ids[i], ids[0])
		}
	}
}

func TestAttachTag_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "usr-1", "a@example.com")
	note := createTestNote(t, s, makeTestNote("usr-1", "hello"))

	tag, err := s.UpsertTag(ctx, "go")
	if err != nil {
		t.Fatalf("UpsertTag: %v", err)
	}

	for range 3 {
		if err := s.AttachTag(ctx, note.ID, tag.ID); err != nil {
			t.Fatalf("AttachTag: %v", err)
		}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM note_tags WHERE note_id = ?`, note.ID).Scan(&count); err != nil {
		t.Fatalf("count note_tags: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 association, got %d", count)
	}
}

func TestAttachTag_UnknownNote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag, err := s.UpsertTag(ctx, "go")
	if err != nil {
		t.Fatalf("UpsertTag: %v", err)
	}
	if err := s.AttachTag(ctx, "note-missing", tag.ID); err == nil {
		t.Fatal("expected foreign key failure")
	}
}

func TestGetTagByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetTagByName(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := s.UpsertTag(ctx, "Go")
	if err != nil {
		t.Fatalf("UpsertTag: %v", err)
	}
	got, err := s.GetTagByName(ctx, " GO")
	if err != nil {
		t.Fatalf("GetTagByName: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID: got %s, want %s", got.ID, created.ID)
	}
}

func TestListUserTags_DistinctScopedAndOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "usr-1", "a@example.com")
	createTestUser(t, s, "usr-2", "b@example.com")

	n1 := createTestNote(t, s, makeTestNote("usr-1", "one"))
	n2 := createTestNote(t, s, makeTestNote("usr-1", "two"))
	other := createTestNote(t, s, makeTestNote("usr-2", "three"))

	attach := func(noteID, name string) {
		t.Helper()
		tag, err := s.UpsertTag(ctx, name)
		if err != nil {
			t.Fatalf("UpsertTag: %v", err)
		}
		if err := s.AttachTag(ctx, noteID, tag.ID); err != nil {
			t.Fatalf("AttachTag: %v", err)
		}
	}
	attach(n1.ID, "zebra")
	attach(n1.ID, "apple")
	attach(n2.ID, "apple")
	attach(other.ID, "private")

	tags, err := s.ListUserTags(ctx, "usr-1")
	if err != nil {
		t.Fatalf("ListUserTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	if tags[0].Name != "apple" || tags[1].Name != "zebra" {
		t.Errorf("order: got %s, %s", tags[0].Name, tags[1].Name)
	}

	empty, err := s.ListUserTags(ctx, "usr-none")
	if err != nil {
		t.Fatalf("ListUserTags: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}
}
