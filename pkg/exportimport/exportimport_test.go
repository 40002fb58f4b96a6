package exportimport

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
)

// memHistory is a minimal in-memory rmodel.History fake, scoped to this
// package's tests -- export/import only exercises Put/Get/GetAll.
type memHistory struct {
	mu   sync.Mutex
	byID map[string]*rmodel.Memory
}

func newMemHistory() *memHistory { return &memHistory{byID: map[string]*rmodel.Memory{}} }

func (h *memHistory) Put(ctx context.Context, m *rmodel.Memory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *m
	h.byID[m.ID] = &cp
	return nil
}
func (h *memHistory) Update(ctx context.Context, id string, patch rmodel.Patch) (*rmodel.Memory, error) {
	return nil, nil
}
func (h *memHistory) Archive(ctx context.Context, id string) error { return nil }
func (h *memHistory) Supersede(ctx context.Context, oldID string, newMemory *rmodel.Memory) error {
	return nil
}
func (h *memHistory) Get(ctx context.Context, id string) (*rmodel.Memory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.byID[id]
	if !ok {
		return nil, rerr.ErrNotFound
	}
	cp := *m
	return &cp, nil
}
func (h *memHistory) GetAll(ctx context.Context, scope rmodel.Scope, limit int) ([]*rmodel.Memory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*rmodel.Memory
	for _, m := range h.byID {
		if m.Scope.Key() == scope.Key() && m.State == rmodel.Active {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}
func (h *memHistory) Versions(ctx context.Context, id string) ([]rmodel.MemoryVersion, error) {
	return nil, nil
}
func (h *memHistory) RecordAccess(ctx context.Context, id string, kind rmodel.AccessKind) error {
	return nil
}
func (h *memHistory) DeleteAll(ctx context.Context, scope rmodel.Scope) (int, error) { return 0, nil }

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newMemHistory()
	scope := rmodel.Scope{UserID: "u1"}
	now := time.Now()
	for _, id := range []string{"m1", "m2"} {
		if err := src.Put(ctx, &rmodel.Memory{
			ID: id, Content: "fact " + id, Scope: scope,
			CreatedAt: now, UpdatedAt: now, LastAccessedAt: now,
			Strength: rmodel.Strength{Stability: 1.5, Difficulty: 4.0},
			Counters: rmodel.Counters{ReviewCount: 2, UsedCount: 1},
			State:    rmodel.Active,
		}); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	var buf bytes.Buffer
	stats, err := ExportJSONL(ctx, src, scope, &buf)
	if err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}
	if stats.Exported != 2 {
		t.Fatalf("expected 2 exported, got %d", stats.Exported)
	}

	dst := newMemHistory()
	report, err := ImportJSONL(ctx, dst, &buf)
	if err != nil {
		t.Fatalf("ImportJSONL: %v", err)
	}
	if report.Imported != 2 || report.Skipped != 0 || report.Conflicted != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	got, err := dst.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get m1: %v", err)
	}
	if got.Content != "fact m1" || got.Strength.Stability != 1.5 || got.Counters.ReviewCount != 2 {
		t.Fatalf("round-tripped memory mismatch: %+v", got)
	}
}

func TestImportJSONLSkipsExistingIDs(t *testing.T) {
	ctx := context.Background()
	dst := newMemHistory()
	now := time.Now()
	if err := dst.Put(ctx, &rmodel.Memory{ID: "m1", Content: "already here", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("seed Put: %v", err)
	}

	line := `{"id":"m1","content":"incoming duplicate","scope":{"user_id":"u1"},"created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z","strength":{"stability":0.1,"difficulty":5},"counters":{}}`
	report, err := ImportJSONL(ctx, dst, strings.NewReader(line))
	if err != nil {
		t.Fatalf("ImportJSONL: %v", err)
	}
	if report.Skipped != 1 || report.Imported != 0 {
		t.Fatalf("expected existing id to be skipped, got %+v", report)
	}

	got, err := dst.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "already here" {
		t.Fatalf("expected existing memory untouched, got %q", got.Content)
	}
}

func TestImportMem0JSONLMapsFields(t *testing.T) {
	ctx := context.Background()
	dst := newMemHistory()

	line := `{"memory_id":"mem0-1","data":"I like tea","metadata":{"user_id":"u42"},"created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-02T00:00:00Z"}`
	report, err := ImportMem0JSONL(ctx, dst, strings.NewReader(line))
	if err != nil {
		t.Fatalf("ImportMem0JSONL: %v", err)
	}
	if report.Imported != 1 {
		t.Fatalf("expected 1 imported, got %+v", report)
	}

	got, err := dst.Get(ctx, "mem0-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "I like tea" || got.Scope.UserID != "u42" {
		t.Fatalf("expected mem0 fields mapped, got %+v", got)
	}
}

func TestImportJSONLRecordsParseErrors(t *testing.T) {
	ctx := context.Background()
	dst := newMemHistory()
	report, err := ImportJSONL(ctx, dst, strings.NewReader("not json\n"))
	if err != nil {
		t.Fatalf("ImportJSONL: %v", err)
	}
	if report.Conflicted != 1 || len(report.Errors) != 1 {
		t.Fatalf("expected 1 conflicted parse error, got %+v", report)
	}
}
