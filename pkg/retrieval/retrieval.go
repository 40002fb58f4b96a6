// Package retrieval implements the Hybrid Retrieval Engine (spec §4.G):
// dense vector search, lexical search, bounded spreading activation over a
// memory graph, RRF/linear fusion, thresholding, deduplication, and an
// optional rerank pass. The fan-out/fan-in shape follows the teacher
// corpus's channel-based concurrent recall pipeline.
package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/rookmem/rook/pkg/capability"
	"github.com/rookmem/rook/pkg/ingestion"
	"github.com/rookmem/rook/pkg/rmodel"
)

// FusionStrategy selects how per-source scores combine into one ranking.
type FusionStrategy int

const (
	FusionRRF FusionStrategy = iota
	FusionLinear
)

// LinearWeights are the per-source weights for FusionLinear.
type LinearWeights struct {
	Dense float64
	Lex   float64
	Graph float64
}

// DefaultLinearWeights matches spec §4.G's defaults.
func DefaultLinearWeights() LinearWeights {
	return LinearWeights{Dense: 0.5, Lex: 0.3, Graph: 0.2}
}

// SpreadingConfig controls the bounded BFS spreading-activation pass.
type SpreadingConfig struct {
	DecayFactor    float64
	FiringThreshold float64
	MaxDepth       int
	FanOutPenalty  float64
}

// DefaultSpreadingConfig matches spec §4.G's defaults.
func DefaultSpreadingConfig() SpreadingConfig {
	return SpreadingConfig{
		DecayFactor:     0.7,
		FiringThreshold: 0.1,
		MaxDepth:        3,
		FanOutPenalty:   0.1,
	}
}

// Options configures one Search call.
type Options struct {
	K                int
	Filter           map[string]any
	Threshold        float64
	Rerank           bool
	Fusion           FusionStrategy
	LinearWeights    LinearWeights
	Spreading        SpreadingConfig
	DedupThreshold   float64
	RRFK             int
	BoostByRetrievability bool
}

// DefaultOptions returns spec-pinned defaults for everything Options leaves
// unset when the caller only specifies K, Filter, Threshold, Rerank.
func DefaultOptions() Options {
	return Options{
		K:              10,
		Fusion:         FusionRRF,
		LinearWeights:  DefaultLinearWeights(),
		Spreading:      DefaultSpreadingConfig(),
		DedupThreshold: 0.93,
		RRFK:           60,
	}
}

// Hit is one fused, deduplicated search result.
type Hit struct {
	ID          string
	Score       float64
	Metadata    map[string]any
	GroupSize   int
	DenseRank   int
	LexicalRank int
}

// Warning records a non-fatal degradation during Search (§4.H failure
// semantics): VectorStore/GraphStore read failures narrow the pipeline
// instead of aborting it.
type Warning string

// Result is the engine's output.
type Result struct {
	Hits     []Hit
	Warnings []Warning
}

// Engine wires the three search sources and an optional reranker together.
type Engine struct {
	Embed       capability.Embed
	VectorStore capability.VectorStore
	Lexical     capability.LexicalIndex
	Graph       capability.GraphStore
	Reranker    capability.Reranker
}

// Search runs the full §4.G pipeline.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (Result, error) {
	if opts.K <= 0 {
		opts.K = DefaultOptions().K
	}
	if opts.RRFK == 0 {
		opts.RRFK = 60
	}
	if opts.DedupThreshold == 0 {
		opts.DedupThreshold = 0.93
	}
	if opts.Spreading == (SpreadingConfig{}) {
		opts.Spreading = DefaultSpreadingConfig()
	}
	if opts.LinearWeights == (LinearWeights{}) {
		opts.LinearWeights = DefaultLinearWeights()
	}

	var warnings []Warning
	var wg sync.WaitGroup
	var denseMatches []capability.VectorMatch
	var lexMatches []capability.LexicalMatch
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		if e.VectorStore == nil || e.Embed == nil {
			return
		}
		qv, err := e.Embed.EmbedText(ctx, query, capability.EmbedSearch)
		if err != nil {
			mu.Lock()
			warnings = append(warnings, Warning("dense: embed failed: "+err.Error()))
			mu.Unlock()
			return
		}
		matches, err := e.VectorStore.Search(ctx, qv, opts.K*3, opts.Filter)
		if err != nil {
			mu.Lock()
			warnings = append(warnings, Warning("dense: vector store read failed, falling back to lexical-only"))
			mu.Unlock()
			return
		}
		mu.Lock()
		denseMatches = matches
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if e.Lexical == nil {
			return
		}
		matches, err := e.Lexical.Search(ctx, query, opts.K*3, opts.Filter)
		if err != nil {
			mu.Lock()
			warnings = append(warnings, Warning("lexical: search failed"))
			mu.Unlock()
			return
		}
		mu.Lock()
		lexMatches = matches
		mu.Unlock()
	}()

	wg.Wait()

	denseRank, denseScore := rankAndScore(denseMatches)
	lexRank, lexScore := rankLex(lexMatches)

	seeds := seedSet(denseRank, lexRank, opts.K*2)

	graphScore := map[string]float64{}
	if e.Graph != nil && len(seeds) > 0 {
		var err error
		graphScore, err = e.spreadingActivation(ctx, seeds, denseScore, lexScore, opts.Spreading)
		if err != nil {
			warnings = append(warnings, Warning("graph: spreading activation skipped"))
			graphScore = map[string]float64{}
		}
	}

	fused := e.fuse(opts, denseRank, lexRank, denseScore, lexScore, graphScore)

	filtered := make([]Hit, 0, len(fused))
	for _, h := range fused {
		if h.Score >= opts.Threshold {
			filtered = append(filtered, h)
		}
	}

	metaByID := map[string]map[string]any{}
	embByID := map[string][]float32{}
	for _, m := range denseMatches {
		metaByID[m.ID] = m.Metadata
		embByID[m.ID] = m.Embedding
	}

	deduped := dedup(filtered, embByID, opts.DedupThreshold)
	if len(deduped) > opts.K {
		deduped = deduped[:opts.K]
	}
	for i := range deduped {
		deduped[i].Metadata = metaByID[deduped[i].ID]
		deduped[i].DenseRank = denseRank[deduped[i].ID]
		deduped[i].LexicalRank = lexRank[deduped[i].ID]
	}

	if opts.Rerank && e.Reranker != nil && len(deduped) > 0 {
		reranked, err := e.rerank(ctx, query, deduped)
		if err == nil {
			deduped = reranked
		} else {
			warnings = append(warnings, Warning("rerank failed, returning fused order"))
		}
	}

	return Result{Hits: deduped, Warnings: warnings}, nil
}

func rankAndScore(matches []capability.VectorMatch) (map[string]int, map[string]float64) {
	rank := map[string]int{}
	score := map[string]float64{}
	for i, m := range matches {
		rank[m.ID] = i + 1
		score[m.ID] = m.Score
	}
	return rank, score
}

func rankLex(matches []capability.LexicalMatch) (map[string]int, map[string]float64) {
	rank := map[string]int{}
	score := map[string]float64{}
	for i, m := range matches {
		rank[m.ID] = i + 1
		score[m.ID] = m.Score
	}
	return rank, score
}

// seedSet unions the top-N ids from the dense and lexical rankings,
// preserving per-source scores (the scores themselves live in the rank/score
// maps already built by the caller).
func seedSet(denseRank, lexRank map[string]int, n int) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(rank map[string]int) {
		ordered := make([]string, 0, len(rank))
		for id := range rank {
			ordered = append(ordered, id)
		}
		sort.Slice(ordered, func(i, j int) bool { return rank[ordered[i]] < rank[ordered[j]] })
		for _, id := range ordered {
			if rank[id] > n {
				continue
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	add(denseRank)
	add(lexRank)
	return out
}

// spreadingActivation runs a bounded BFS from seeds over GraphStore, with
// activation combined at each node by max and halted once a node's
// activation drops below the firing threshold. Total work is bounded by
// |seeds| * max_fanout^max_depth since each hop only explores a node's
// direct neighbours and a node is only re-expanded if a higher activation
// reaches it.
func (e *Engine) spreadingActivation(ctx context.Context, seeds []string, denseScore, lexScore map[string]float64, cfg SpreadingConfig) (map[string]float64, error) {
	activation := map[string]float64{}
	for _, id := range seeds {
		seedScore := math.Max(denseScore[id], lexScore[id])
		if seedScore == 0 {
			seedScore = 1.0
		}
		if existing, ok := activation[id]; !ok || seedScore > existing {
			activation[id] = seedScore
		}
	}

	type frontierEntry struct {
		id    string
		score float64
		depth int
	}
	frontier := make([]frontierEntry, 0, len(seeds))
	for id, score := range activation {
		frontier = append(frontier, frontierEntry{id: id, score: score, depth: 0})
	}

	for len(frontier) > 0 {
		next := make([]frontierEntry, 0)
		for _, f := range frontier {
			if f.depth >= cfg.MaxDepth {
				continue
			}
			neighbours, err := e.Graph.Neighbours(ctx, f.id, 0)
			if err != nil {
				return activation, err
			}
			deg := float64(len(neighbours))
			if deg == 0 {
				continue
			}
			for _, nb := range neighbours {
				propagated := f.score * cfg.DecayFactor / (1 + cfg.FanOutPenalty*deg) * nb.Weight
				if propagated < cfg.FiringThreshold {
					continue
				}
				if existing, ok := activation[nb.ID]; !ok || propagated > existing {
					activation[nb.ID] = propagated
					next = append(next, frontierEntry{id: nb.ID, score: propagated, depth: f.depth + 1})
				}
			}
		}
		frontier = next
	}

	return activation, nil
}

func (e *Engine) fuse(opts Options, denseRank, lexRank map[string]int, denseScore, lexScore, graphScore map[string]float64) []Hit {
	ids := map[string]struct{}{}
	for id := range denseRank {
		ids[id] = struct{}{}
	}
	for id := range lexRank {
		ids[id] = struct{}{}
	}
	for id := range graphScore {
		ids[id] = struct{}{}
	}

	hits := make([]Hit, 0, len(ids))
	switch opts.Fusion {
	case FusionLinear:
		maxDense, maxLex, maxGraph := maxOf(denseScore), maxOf(lexScore), maxOf(graphScore)
		for id := range ids {
			score := 0.0
			if maxDense > 0 {
				score += opts.LinearWeights.Dense * (denseScore[id] / maxDense)
			}
			if maxLex > 0 {
				score += opts.LinearWeights.Lex * (lexScore[id] / maxLex)
			}
			if maxGraph > 0 {
				score += opts.LinearWeights.Graph * (graphScore[id] / maxGraph)
			}
			hits = append(hits, Hit{ID: id, Score: score})
		}
	default: // FusionRRF
		k := float64(opts.RRFK)
		for id := range ids {
			score := 0.0
			if r, ok := denseRank[id]; ok {
				score += 1.0 / (float64(r) + k)
			}
			if r, ok := lexRank[id]; ok {
				score += 1.0 / (float64(r) + k)
			}
			if _, ok := graphScore[id]; ok {
				score += graphScore[id] / (1 + k)
			}
			hits = append(hits, Hit{ID: id, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	return hits
}

func maxOf(m map[string]float64) float64 {
	max := 0.0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

// dedup groups hits by near-duplicate cosine similarity (>= threshold),
// keeping the highest-scored member of each group and recording the group
// size in its GroupSize field. Hits with no available embedding are never
// merged into another group (they can only seed their own).
func dedup(hits []Hit, embByID map[string][]float32, threshold float64) []Hit {
	ordered := make([]Hit, len(hits))
	copy(ordered, hits)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })

	kept := make([]Hit, 0, len(ordered))
	groupSize := make([]int, 0, len(ordered))

	for _, h := range ordered {
		merged := false
		emb := embByID[h.ID]
		if len(emb) > 0 {
			for i, k := range kept {
				kEmb := embByID[k.ID]
				if len(kEmb) == 0 {
					continue
				}
				if ingestion.CosineSimilarity(emb, kEmb) >= threshold {
					groupSize[i]++
					merged = true
					break
				}
			}
		}
		if !merged {
			kept = append(kept, h)
			groupSize = append(groupSize, 1)
		}
	}

	for i := range kept {
		if kept[i].Metadata == nil {
			kept[i].Metadata = map[string]any{}
		}
		kept[i].GroupSize = groupSize[i]
	}
	return kept
}

func (e *Engine) rerank(ctx context.Context, query string, hits []Hit) ([]Hit, error) {
	items := make([]capability.RerankItem, len(hits))
	for i, h := range hits {
		text, _ := h.Metadata["content"].(string)
		items[i] = capability.RerankItem{ID: h.ID, Text: text, Score: h.Score}
	}
	reranked, err := e.Reranker.Rerank(ctx, query, items, len(items))
	if err != nil {
		return nil, err
	}
	byID := map[string]Hit{}
	for _, h := range hits {
		byID[h.ID] = h
	}
	out := make([]Hit, 0, len(reranked))
	for _, r := range reranked {
		if h, ok := byID[r.ID]; ok {
			h.Score = r.Score
			out = append(out, h)
		}
	}
	return out, nil
}

// BoostByRetrievability optionally multiplies fused scores by R(age, S) to
// bias toward well-stabilized memories. Off by default per §4.G.
func BoostByRetrievability(hits []Hit, retrievability map[string]float64) []Hit {
	out := make([]Hit, len(hits))
	copy(out, hits)
	for i, h := range out {
		if r, ok := retrievability[h.ID]; ok {
			out[i].Score *= r
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// RecordRetrievalAccess appends an AccessRecord(kind=Retrieval) for every
// returned id, best-effort, per §4.G step 9.
func RecordRetrievalAccess(ctx context.Context, hist rmodel.History, hits []Hit) {
	for _, h := range hits {
		_ = hist.RecordAccess(ctx, h.ID, rmodel.Retrieval)
	}
}
