package retrieval

import (
	"context"
	"testing"

	"github.com/rookmem/rook/pkg/capability"
)

type fakeEmbed struct{ dim int }

func (f fakeEmbed) EmbedText(ctx context.Context, text string, action capability.EmbedAction) ([]float32, error) {
	return make([]float32, f.dim), nil
}
func (f fakeEmbed) EmbedBatch(ctx context.Context, texts []string, action capability.EmbedAction) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
func (f fakeEmbed) Dimension() int { return f.dim }

type fakeVectorStore struct{ matches []capability.VectorMatch }

func (f fakeVectorStore) CreateCollection(ctx context.Context, name string, dim int) error { return nil }
func (f fakeVectorStore) Upsert(ctx context.Context, id string, v []float32, md map[string]any) error {
	return nil
}
func (f fakeVectorStore) Search(ctx context.Context, v []float32, k int, filter map[string]any) ([]capability.VectorMatch, error) {
	return f.matches, nil
}
func (f fakeVectorStore) Get(ctx context.Context, id string) (*capability.VectorMatch, error) {
	return nil, nil
}
func (f fakeVectorStore) Delete(ctx context.Context, id string) error { return nil }
func (f fakeVectorStore) List(ctx context.Context, filter map[string]any, limit int) ([]string, error) {
	return nil, nil
}

type fakeLexical struct{ matches []capability.LexicalMatch }

func (f fakeLexical) Index(ctx context.Context, id, text string, fields map[string]string) error {
	return nil
}
func (f fakeLexical) Search(ctx context.Context, query string, k int, filter map[string]any) ([]capability.LexicalMatch, error) {
	return f.matches, nil
}
func (f fakeLexical) Delete(ctx context.Context, id string) error { return nil }

// TestRRFFusionOrdering is the literal scenario from the testable
// properties: dense ranks {a:1,b:2,c:3}, lexical ranks {b:1,c:2,d:3} fuse
// under RRF60 to b, c, a, d.
func TestRRFFusionOrdering(t *testing.T) {
	e := &Engine{
		Embed: fakeEmbed{dim: 3},
		VectorStore: fakeVectorStore{matches: []capability.VectorMatch{
			{ID: "a", Score: 0.9},
			{ID: "b", Score: 0.8},
			{ID: "c", Score: 0.7},
		}},
		Lexical: fakeLexical{matches: []capability.LexicalMatch{
			{ID: "b", Score: 0.9},
			{ID: "c", Score: 0.8},
			{ID: "d", Score: 0.7},
		}},
	}
	opts := DefaultOptions()
	opts.K = 4
	opts.Threshold = 0
	result, err := e.Search(context.Background(), "query", opts)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b", "c", "a", "d"}
	if len(result.Hits) != len(want) {
		t.Fatalf("got %d hits, want %d: %+v", len(result.Hits), len(want), result.Hits)
	}
	for i, id := range want {
		if result.Hits[i].ID != id {
			t.Fatalf("position %d: got %s, want %s (full: %+v)", i, result.Hits[i].ID, id, result.Hits)
		}
	}
}

func TestRRFInvariantUnderExtraEmptySource(t *testing.T) {
	e := &Engine{
		Embed: fakeEmbed{dim: 3},
		VectorStore: fakeVectorStore{matches: []capability.VectorMatch{
			{ID: "a", Score: 0.9},
		}},
		Lexical: fakeLexical{matches: nil},
	}
	opts := DefaultOptions()
	opts.Threshold = 0
	result, err := e.Search(context.Background(), "q", opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 1 || result.Hits[0].ID != "a" {
		t.Fatalf("got %+v", result.Hits)
	}
}

func TestDedupKeepsHighestScored(t *testing.T) {
	embByID := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0.999, 0.001, 0},
		"c": {0, 1, 0},
	}
	hits := []Hit{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.95},
		{ID: "c", Score: 0.5},
	}
	deduped := dedup(hits, embByID, 0.93)
	if len(deduped) != 2 {
		t.Fatalf("expected a+b merged into one group, got %+v", deduped)
	}
}

func TestDedupIdempotent(t *testing.T) {
	embByID := map[string][]float32{"a": {1, 0}, "b": {0.999, 0.001}}
	hits := []Hit{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.5}}
	first := dedup(hits, embByID, 0.93)
	second := dedup(first, embByID, 0.93)
	if len(first) != len(second) || first[0].ID != second[0].ID {
		t.Fatalf("dedup not idempotent: %+v vs %+v", first, second)
	}
}

type fakeGraph struct {
	edges map[string][]capability.GraphNeighbour
}

func (g fakeGraph) UpsertEdge(ctx context.Context, src, dst, kind string, w float64) error { return nil }
func (g fakeGraph) Neighbours(ctx context.Context, id string, maxDegree int) ([]capability.GraphNeighbour, error) {
	return g.edges[id], nil
}
func (g fakeGraph) DeleteSubtreeForScope(ctx context.Context, scopeKey string) error { return nil }

func TestSpreadingActivationRespectsFiringThreshold(t *testing.T) {
	e := &Engine{Graph: fakeGraph{edges: map[string][]capability.GraphNeighbour{
		"seed": {{ID: "near", Weight: 1.0}},
		"near": {{ID: "far", Weight: 0.01}},
	}}}
	cfg := DefaultSpreadingConfig()
	activation, err := e.spreadingActivation(context.Background(), []string{"seed"}, map[string]float64{"seed": 1.0}, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := activation["far"]; ok {
		t.Fatalf("node below firing threshold must not be activated: %+v", activation)
	}
	if _, ok := activation["near"]; !ok {
		t.Fatalf("expected near to be activated: %+v", activation)
	}
}
