package facade

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rookmem/rook/pkg/capability"
	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
	"github.com/rookmem/rook/pkg/signals"
)

// memHistory is an in-memory rmodel.History used to exercise the facade
// without a storage backend.
type memHistory struct {
	mu       sync.Mutex
	byID     map[string]*rmodel.Memory
	versions map[string][]rmodel.MemoryVersion
	accesses []rmodel.AccessRecord
}

func newMemHistory() *memHistory {
	return &memHistory{byID: map[string]*rmodel.Memory{}, versions: map[string][]rmodel.MemoryVersion{}}
}

func (h *memHistory) Put(ctx context.Context, m *rmodel.Memory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *m
	h.byID[m.ID] = &cp
	h.versions[m.ID] = append(h.versions[m.ID], rmodel.MemoryVersion{MemoryID: m.ID, VersionNumber: 1, Event: rmodel.EventAdd, Snapshot: cp})
	return nil
}

func (h *memHistory) Update(ctx context.Context, id string, patch rmodel.Patch) (*rmodel.Memory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.byID[id]
	if !ok {
		return nil, rerr.ErrNotFound
	}
	if patch.Content != nil {
		m.Content = *patch.Content
	}
	if patch.Metadata != nil {
		m.Metadata = patch.Metadata
	}
	if patch.Strength != nil {
		m.Strength = *patch.Strength
	}
	if patch.Counters != nil {
		m.Counters = *patch.Counters
	}
	if patch.SynapticTagStrength != nil {
		m.SynapticTagStrength = *patch.SynapticTagStrength
	}
	if patch.TagCreatedAt != nil {
		m.TagCreatedAt = *patch.TagCreatedAt
	}
	if patch.LastAccessedAt != nil {
		m.LastAccessedAt = *patch.LastAccessedAt
	}
	if patch.IndexStale != nil {
		m.IndexStale = *patch.IndexStale
	}
	if patch.ArchivalCandidate != nil {
		m.ArchivalCandidate = *patch.ArchivalCandidate
	}
	cp := *m
	h.versions[id] = append(h.versions[id], rmodel.MemoryVersion{MemoryID: id, VersionNumber: len(h.versions[id]) + 1, Event: rmodel.EventUpdate, Snapshot: cp})
	return &cp, nil
}

func (h *memHistory) Archive(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.byID[id]
	if !ok {
		return rerr.ErrNotFound
	}
	m.State = rmodel.Archived
	return nil
}

func (h *memHistory) Supersede(ctx context.Context, oldID string, newMemory *rmodel.Memory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	old, ok := h.byID[oldID]
	if !ok {
		return rerr.ErrNotFound
	}
	old.State = rmodel.Superseded
	old.SupersededBy = newMemory.ID
	cp := *newMemory
	h.byID[newMemory.ID] = &cp
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
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.versions[id], nil
}

func (h *memHistory) RecordAccess(ctx context.Context, id string, kind rmodel.AccessKind) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.accesses = append(h.accesses, rmodel.AccessRecord{MemoryID: id, Kind: kind, Timestamp: time.Now()})
	return nil
}

func (h *memHistory) DeleteAll(ctx context.Context, scope rmodel.Scope) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.byID {
		if m.Scope.Key() == scope.Key() && m.State == rmodel.Active {
			m.State = rmodel.Archived
			n++
		}
	}
	return n, nil
}

type fakeEmbed struct{}

func (fakeEmbed) EmbedText(ctx context.Context, text string, action capability.EmbedAction) ([]float32, error) {
	if text == "The sky is blue" || text == "The sky is actually green" {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 1, 0}, nil
}
func (fakeEmbed) EmbedBatch(ctx context.Context, texts []string, action capability.EmbedAction) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := fakeEmbed{}.EmbedText(ctx, t, action)
		out[i] = v
	}
	return out, nil
}
func (fakeEmbed) Dimension() int { return 3 }

type fakeVectorStore struct {
	mu   sync.Mutex
	docs map[string][]float32
}

func newFakeVectorStore() *fakeVectorStore { return &fakeVectorStore{docs: map[string][]float32{}} }

func (v *fakeVectorStore) CreateCollection(ctx context.Context, name string, dim int) error { return nil }
func (v *fakeVectorStore) Upsert(ctx context.Context, id string, vec []float32, md map[string]any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.docs[id] = vec
	return nil
}
func (v *fakeVectorStore) Search(ctx context.Context, vec []float32, k int, filter map[string]any) ([]capability.VectorMatch, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []capability.VectorMatch
	for id, d := range v.docs {
		out = append(out, capability.VectorMatch{ID: id, Score: cosine(vec, d), Embedding: d})
	}
	return out, nil
}
func (v *fakeVectorStore) Get(ctx context.Context, id string) (*capability.VectorMatch, error) {
	return nil, nil
}
func (v *fakeVectorStore) Delete(ctx context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.docs, id)
	return nil
}
func (v *fakeVectorStore) List(ctx context.Context, filter map[string]any, limit int) ([]string, error) {
	return nil, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type nopLexical struct{}

func (nopLexical) Index(ctx context.Context, id, text string, fields map[string]string) error { return nil }
func (nopLexical) Search(ctx context.Context, query string, k int, filter map[string]any) ([]capability.LexicalMatch, error) {
	return nil, nil
}
func (nopLexical) Delete(ctx context.Context, id string) error { return nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestFacade() (*Facade, *memHistory, *fakeVectorStore) {
	hist := newMemHistory()
	vs := newFakeVectorStore()
	f := New(hist, nil, fakeEmbed{}, vs, nopLexical{}, nil, nil, fixedClock{t: time.Now()}, nil)
	return f, hist, vs
}

func TestAddCreatesNewMemoryWhenNoNeighbour(t *testing.T) {
	f, _, _ := newTestFacade()
	scope := rmodel.Scope{UserID: "u1"}
	res, err := f.Add(context.Background(), "The sky is blue", scope, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Events) != 1 || res.Events[0].Event != "ADD" {
		t.Fatalf("expected single ADD event, got %+v", res.Events)
	}
}

func TestAddSkipsNearDuplicate(t *testing.T) {
	f, _, _ := newTestFacade()
	scope := rmodel.Scope{UserID: "u1"}
	ctx := context.Background()
	if _, err := f.Add(ctx, "The sky is blue", scope, false); err != nil {
		t.Fatal(err)
	}
	res, err := f.Add(ctx, "The sky is blue", scope, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Events) != 1 || res.Events[0].Event != "NONE" {
		t.Fatalf("expected NONE (skip) for exact repeat, got %+v", res.Events)
	}
}

func TestAddRejectsEmptyScope(t *testing.T) {
	f, _, _ := newTestFacade()
	_, err := f.Add(context.Background(), "fact", rmodel.Scope{}, false)
	if err == nil {
		t.Fatal("expected error for empty scope")
	}
}

func TestSearchFiltersArchivedMemories(t *testing.T) {
	f, hist, _ := newTestFacade()
	scope := rmodel.Scope{UserID: "u1"}
	ctx := context.Background()
	res, err := f.Add(ctx, "The sky is blue", scope, false)
	if err != nil {
		t.Fatal(err)
	}
	id := res.Events[0].ID
	if err := hist.Archive(ctx, id); err != nil {
		t.Fatal(err)
	}
	sres, err := f.Search(ctx, "sky", scope, 10, nil, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range sres.Hits {
		if h.ID == id {
			t.Fatalf("archived memory %s should not appear in search results", id)
		}
	}
}

func TestApplySignalIdempotentThroughFacade(t *testing.T) {
	f, _, _ := newTestFacade()
	scope := rmodel.Scope{UserID: "u1"}
	ctx := context.Background()
	res, err := f.Add(ctx, "The sky is blue", scope, false)
	if err != nil {
		t.Fatal(err)
	}
	id := res.Events[0].ID

	sig := signals.Signal{MemoryID: id, SignalID: "s1", Kind: signals.UsedInResponse}
	applied1, err := f.ApplySignal(ctx, sig)
	if err != nil || !applied1 {
		t.Fatalf("first apply should succeed: applied=%v err=%v", applied1, err)
	}
	applied2, err := f.ApplySignal(ctx, sig)
	if err != nil {
		t.Fatal(err)
	}
	if applied2 {
		t.Fatal("replaying the same signal_id must be a no-op")
	}

	m, err := f.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if m.Counters.UsedCount != 1 {
		t.Fatalf("expected used_count=1 after a single effective apply, got %d", m.Counters.UsedCount)
	}
}

func TestApplySignalUnknownMemoryErrors(t *testing.T) {
	f, _, _ := newTestFacade()
	_, err := f.ApplySignal(context.Background(), signals.Signal{MemoryID: "missing", SignalID: "s1", Kind: signals.UsedInResponse})
	if err == nil {
		t.Fatal("expected error for unknown memory id")
	}
	if !errors.Is(err, rerr.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestApplySignalMarksArchivalCandidateAfterThreeCorrections(t *testing.T) {
	f, _, _ := newTestFacade()
	scope := rmodel.Scope{UserID: "u1"}
	ctx := context.Background()
	res, err := f.Add(ctx, "The sky is blue", scope, false)
	if err != nil {
		t.Fatal(err)
	}
	id := res.Events[0].ID

	for i := 0; i < 3; i++ {
		sig := signals.Signal{MemoryID: id, SignalID: fmt.Sprintf("correction-%d", i), Kind: signals.ExplicitCorrection}
		if _, err := f.ApplySignal(ctx, sig); err != nil {
			t.Fatal(err)
		}
	}

	m, err := f.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if m.Counters.LapseCount < 3 {
		t.Fatalf("expected lapse_count>=3 after 3 corrections, got %d", m.Counters.LapseCount)
	}
	if !m.ArchivalCandidate {
		t.Fatal("expected memory to be persisted as an archival candidate after repeated corrections")
	}
}
