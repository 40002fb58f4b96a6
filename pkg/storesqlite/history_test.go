package storesqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "rook.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("warning: failed to close store: %v", err)
		}
	})
	return s
}

func newTestMemory(id string, scope rmodel.Scope) *rmodel.Memory {
	now := time.Now()
	return &rmodel.Memory{
		ID:             id,
		Content:        "the sky is blue",
		Scope:          scope,
		Embedding:      []float32{1, 0, 0},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		Strength:       rmodel.Strength{Stability: 0.1, Difficulty: 5.0},
		State:          rmodel.Active,
	}
}

func TestPutAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope := rmodel.Scope{UserID: "u1"}
	m := newTestMemory("m1", scope)

	if err := s.Put(ctx, m); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != m.Content || got.Scope.Key() != scope.Key() {
		t.Fatalf("round-tripped memory mismatch: %+v", got)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 1 {
		t.Fatalf("embedding not round-tripped: %v", got.Embedding)
	}

	versions, err := s.Versions(ctx, "m1")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 1 || versions[0].Event != rmodel.EventAdd {
		t.Fatalf("expected a single ADD version, got %+v", versions)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing memory")
	}
	if rerr.KindOf(err) != rerr.NotFound {
		t.Fatalf("expected NotFound kind, got %v", rerr.KindOf(err))
	}
}

func TestUpdateAppliesPatchAndVersions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope := rmodel.Scope{UserID: "u1"}
	m := newTestMemory("m1", scope)
	if err := s.Put(ctx, m); err != nil {
		t.Fatalf("Put: %v", err)
	}

	newContent := "the sky is actually green"
	newStrength := rmodel.Strength{Stability: 2.5, Difficulty: 4.0}
	updated, err := s.Update(ctx, "m1", rmodel.Patch{Content: &newContent, Strength: &newStrength})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Content != newContent {
		t.Fatalf("expected content updated, got %q", updated.Content)
	}
	if updated.Strength != newStrength {
		t.Fatalf("expected strength updated, got %+v", updated.Strength)
	}

	versions, err := s.Versions(ctx, "m1")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 2 || versions[1].Event != rmodel.EventUpdate || versions[1].VersionNumber != 2 {
		t.Fatalf("expected a second UPDATE version, got %+v", versions)
	}
}

func TestArchiveExcludesFromGetAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope := rmodel.Scope{UserID: "u1"}
	m := newTestMemory("m1", scope)
	if err := s.Put(ctx, m); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Archive(ctx, "m1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	all, err := s.GetAll(ctx, scope, 0)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	for _, got := range all {
		if got.ID == "m1" {
			t.Fatal("archived memory should not appear in GetAll")
		}
	}

	got, err := s.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get after archive: %v", err)
	}
	if got.State != rmodel.Archived {
		t.Fatalf("expected archived state, got %v", got.State)
	}
}

func TestSupersedeCreatesNewLiveRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope := rmodel.Scope{UserID: "u1"}
	old := newTestMemory("old", scope)
	if err := s.Put(ctx, old); err != nil {
		t.Fatalf("Put: %v", err)
	}

	replacement := newTestMemory("new", scope)
	replacement.Content = "the sky is actually green"
	if err := s.Supersede(ctx, "old", replacement); err != nil {
		t.Fatalf("Supersede: %v", err)
	}

	gotOld, err := s.Get(ctx, "old")
	if err != nil {
		t.Fatalf("Get old: %v", err)
	}
	if gotOld.State != rmodel.Superseded || gotOld.SupersededBy != "new" {
		t.Fatalf("expected old to be superseded by new, got %+v", gotOld)
	}

	gotNew, err := s.Get(ctx, "new")
	if err != nil {
		t.Fatalf("Get new: %v", err)
	}
	if gotNew.State != rmodel.Active || gotNew.Content != replacement.Content {
		t.Fatalf("expected new live row, got %+v", gotNew)
	}

	all, err := s.GetAll(ctx, scope, 0)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 || all[0].ID != "new" {
		t.Fatalf("expected only the new memory active in scope, got %+v", all)
	}
}

func TestRecordAccessAndDeleteAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scope := rmodel.Scope{UserID: "u1"}
	m1 := newTestMemory("m1", scope)
	m2 := newTestMemory("m2", scope)
	if err := s.Put(ctx, m1); err != nil {
		t.Fatalf("Put m1: %v", err)
	}
	if err := s.Put(ctx, m2); err != nil {
		t.Fatalf("Put m2: %v", err)
	}
	if err := s.RecordAccess(ctx, "m1", rmodel.Retrieval); err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}

	n, err := s.DeleteAll(ctx, scope)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 memories archived, got %d", n)
	}

	all, err := s.GetAll(ctx, scope, 0)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no active memories left, got %d", len(all))
	}
}

func TestGetAllScopesAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scopeA := rmodel.Scope{UserID: "u1"}
	scopeB := rmodel.Scope{UserID: "u2"}
	if err := s.Put(ctx, newTestMemory("a", scopeA)); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	if err := s.Put(ctx, newTestMemory("b", scopeB)); err != nil {
		t.Fatalf("Put b: %v", err)
	}

	all, err := s.GetAll(ctx, scopeA, 0)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 || all[0].ID != "a" {
		t.Fatalf("expected only scope A's memory, got %+v", all)
	}
}
