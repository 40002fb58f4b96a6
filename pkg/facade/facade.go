// Package facade implements the Memory Facade (spec §4.H): the public
// operations that orchestrate ingestion, storage, and retrieval, and emit
// lifecycle events. It is the single entry point every external interface
// (REST, MCP, CLI) is built on.
package facade

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rookmem/rook/pkg/capability"
	"github.com/rookmem/rook/pkg/events"
	"github.com/rookmem/rook/pkg/gate"
	"github.com/rookmem/rook/pkg/ingestion"
	"github.com/rookmem/rook/pkg/logging"
	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/retrieval"
	"github.com/rookmem/rook/pkg/rmodel"
	"github.com/rookmem/rook/pkg/scheduler"
	"github.com/rookmem/rook/pkg/signals"
)

// Config bundles the facade's tunables that aren't plugged capabilities.
type Config struct {
	NeighbourCandidates int // top-k neighbours fetched before gating, default 5
	MaxIndexRetries     int // default 3, per §4.H eventual-consistency retry
}

func DefaultConfig() Config {
	return Config{NeighbourCandidates: 5, MaxIndexRetries: 3}
}

// Facade wires every capability and core subsystem together.
type Facade struct {
	Llm         capability.Llm
	Embed       capability.Embed
	VectorStore capability.VectorStore
	Lexical     capability.LexicalIndex
	Graph       capability.GraphStore
	Reranker    capability.Reranker
	Clock       capability.Clock

	History   rmodel.History
	Scheduler *scheduler.Scheduler
	Gate      *gate.Gate
	Signals   *signals.Processor
	Retrieval *retrieval.Engine
	Events    *events.Bus
	Logger    logging.Logger

	Config Config

	locks sync.Map // memory id -> *sync.Mutex
}

// New builds a Facade from its collaborators, wiring the Gate, Retrieval
// engine, and Signal processor from the capabilities given.
func New(hist rmodel.History, llm capability.Llm, embed capability.Embed, vs capability.VectorStore,
	lex capability.LexicalIndex, graph capability.GraphStore, rerank capability.Reranker, clock capability.Clock, logger logging.Logger) *Facade {

	if clock == nil {
		clock = capability.SystemClock{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	sched := scheduler.New()
	return &Facade{
		Llm: llm, Embed: embed, VectorStore: vs, Lexical: lex, Graph: graph, Reranker: rerank, Clock: clock,
		History:   hist,
		Scheduler: sched,
		Gate:      gate.New(llm),
		Signals:   signals.New(sched, clock.Now),
		Retrieval: &retrieval.Engine{Embed: embed, VectorStore: vs, Lexical: lex, Graph: graph, Reranker: rerank},
		Events:    events.New(),
		Logger:    logger,
		Config:    DefaultConfig(),
	}
}

func (f *Facade) lockFor(id string) *sync.Mutex {
	v, _ := f.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// AddEvent is one per-fact outcome of Add.
type AddEvent struct {
	ID      string
	Content string
	Event   string // "ADD", "UPDATE", "SUPERSEDE", "NONE"
}

// AddResult is the response of Add.
type AddResult struct {
	Events   []AddEvent
	Warnings []string
}

// Add extracts facts from text (or uses it verbatim if infer=false), and
// gates each one through the ingestion pipeline (§4.D->E), applying the
// resulting decision.
func (f *Facade) Add(ctx context.Context, text string, scope rmodel.Scope, infer bool) (AddResult, error) {
	if scope.Empty() {
		return AddResult{}, rerr.Wrap("add", rerr.Parse, rerr.ErrInvalidScope)
	}

	facts := []string{text}
	if infer && f.Llm != nil {
		extracted, err := f.extractFacts(ctx, text)
		if err != nil {
			return AddResult{}, rerr.Wrap("add", rerr.ProviderUnavailable, err)
		}
		if len(extracted) > 0 {
			facts = extracted
		}
	}

	result := AddResult{}
	for _, fact := range facts {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		ev, err := f.ingestOne(ctx, fact, scope)
		if err != nil {
			if rerr.KindOf(err) == rerr.ProviderUnavailable {
				result.Warnings = append(result.Warnings, "skipped fact after provider failure: "+err.Error())
				continue
			}
			return result, err
		}
		result.Events = append(result.Events, ev)
	}
	return result, nil
}

func (f *Facade) extractFacts(ctx context.Context, text string) ([]string, error) {
	var out string
	err := withRetry(ctx, defaultRetry(), func() error {
		reply, err := f.Llm.Generate(ctx, []capability.LlmMessage{
			{Role: "user", Content: "Extract a list of distinct factual statements from the following, one per line:\n" + text},
		}, capability.LlmOptions{ResponseFormat: capability.ResponseFree})
		if err != nil {
			return err
		}
		out = reply
		return nil
	})
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if line := trimAndSkipEmpty(s[start:i]); line != "" {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	if line := trimAndSkipEmpty(s[start:]); line != "" {
		lines = append(lines, line)
	}
	return lines
}

func trimAndSkipEmpty(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\r' || s[start] == '-' || s[start] == '*') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

func (f *Facade) ingestOne(ctx context.Context, fact string, scope rmodel.Scope) (AddEvent, error) {
	var qv []float32
	if f.Embed != nil {
		var err error
		qv, err = f.Embed.EmbedText(ctx, fact, capability.EmbedAdd)
		if err != nil {
			return AddEvent{}, rerr.Wrap("add", rerr.ProviderUnavailable, err)
		}
	}

	candidates, err := f.neighbourCandidates(ctx, qv, scope)
	if err != nil {
		f.Logger.Warn("neighbour lookup failed, proceeding as Create", "error", err)
		candidates = nil
	}

	sims := ingestion.EmbeddingSimilarity(qv, candidates)
	negs := ingestion.KeywordNegation(fact, candidates)
	temporals := ingestion.TemporalConflict(fact, candidates)

	decision, err := f.Gate.Decide(ctx, fact, candidates, sims, negs, temporals)
	if err != nil {
		return AddEvent{}, err
	}

	now := f.Clock.Now()
	switch decision.Action {
	case gate.Skip:
		return AddEvent{ID: decision.TargetID, Content: fact, Event: "NONE"}, nil

	case gate.Create:
		m := &rmodel.Memory{
			ID: uuid.NewString(), Content: fact, Scope: scope, Embedding: qv,
			CreatedAt: now, UpdatedAt: now, LastAccessedAt: now,
			Strength: rmodel.Strength{Stability: 0.1, Difficulty: 5.0},
			ConsolidationPhase: rmodel.Immediate, State: rmodel.Active,
		}
		if err := f.History.Put(ctx, m); err != nil {
			return AddEvent{}, err
		}
		f.indexMemory(ctx, m)
		f.Events.Publish(events.Event{MemoryID: m.ID, VersionNumber: 1, Kind: rmodel.EventAdd, Memory: *m})
		return AddEvent{ID: m.ID, Content: fact, Event: "ADD"}, nil

	case gate.Update:
		content := fact
		updated, err := f.History.Update(ctx, decision.TargetID, rmodel.Patch{Content: &content})
		if err != nil {
			return AddEvent{}, err
		}
		updated.Embedding = qv
		f.indexMemory(ctx, updated)
		f.Events.Publish(events.Event{MemoryID: updated.ID, Kind: rmodel.EventUpdate, Memory: *updated})
		return AddEvent{ID: updated.ID, Content: fact, Event: "UPDATE"}, nil

	case gate.Supersede:
		newMem := &rmodel.Memory{
			ID: uuid.NewString(), Content: fact, Scope: scope, Embedding: qv,
			CreatedAt: now, UpdatedAt: now, LastAccessedAt: now,
			Strength: rmodel.Strength{Stability: 0.1, Difficulty: 5.0},
			ConsolidationPhase: rmodel.Immediate, State: rmodel.Active,
		}
		lock := f.lockFor(decision.TargetID)
		lock.Lock()
		err := f.History.Supersede(ctx, decision.TargetID, newMem)
		lock.Unlock()
		if err != nil {
			return AddEvent{}, err
		}
		f.indexMemory(ctx, newMem)
		f.Events.Publish(events.Event{MemoryID: newMem.ID, Kind: rmodel.EventSupersede, Memory: *newMem})
		return AddEvent{ID: newMem.ID, Content: fact, Event: "SUPERSEDE"}, nil
	}

	return AddEvent{}, rerr.New("add", rerr.Internal, "unreachable decision")
}

// neighbourCandidates fetches the top-k neighbours (with embeddings) the
// ingestion layers compare the new fact against.
func (f *Facade) neighbourCandidates(ctx context.Context, qv []float32, scope rmodel.Scope) ([]ingestion.Candidate, error) {
	if f.VectorStore == nil || len(qv) == 0 {
		return nil, nil
	}
	filter := map[string]any{"scope": scope.Key()}
	k := f.Config.NeighbourCandidates
	if k == 0 {
		k = DefaultConfig().NeighbourCandidates
	}
	matches, err := f.VectorStore.Search(ctx, qv, k, filter)
	if err != nil {
		return nil, err
	}
	out := make([]ingestion.Candidate, 0, len(matches))
	for _, m := range matches {
		mem, err := f.History.Get(ctx, m.ID)
		if err != nil {
			continue
		}
		out = append(out, ingestion.Candidate{ID: mem.ID, Content: mem.Content, Embedding: mem.Embedding, UpdatedAt: mem.UpdatedAt})
	}
	return out, nil
}

// indexMemory upserts the memory into the vector store and lexical index,
// retrying with backoff; on exhaustion it marks the record index_stale and
// logs a non-fatal warning, per §4.H.
func (f *Facade) indexMemory(ctx context.Context, m *rmodel.Memory) {
	cfg := defaultRetry()
	cfg.maxAttempts = f.Config.MaxIndexRetries
	if cfg.maxAttempts == 0 {
		cfg.maxAttempts = 3
	}

	if f.VectorStore != nil {
		err := withRetry(ctx, cfg, func() error {
			return f.VectorStore.Upsert(ctx, m.ID, m.Embedding, map[string]any{"content": m.Content, "scope": m.Scope.Key()})
		})
		if err != nil {
			f.Logger.Warn("vector index upsert failed after retries", "memory_id", m.ID, "error", err)
			f.markStale(ctx, m.ID)
		}
	}
	if f.Lexical != nil {
		err := withRetry(ctx, cfg, func() error {
			return f.Lexical.Index(ctx, m.ID, m.Content, map[string]string{"scope": m.Scope.Key()})
		})
		if err != nil {
			f.Logger.Warn("lexical index upsert failed after retries", "memory_id", m.ID, "error", err)
			f.markStale(ctx, m.ID)
		}
	}
}

func (f *Facade) markStale(ctx context.Context, id string) {
	stale := true
	_, _ = f.History.Update(ctx, id, rmodel.Patch{IndexStale: &stale})
}

// SearchResult is the response of Search.
type SearchResult struct {
	Hits     []retrieval.Hit
	Warnings []string
}

// Search runs the hybrid retrieval pipeline (§4.G) scoped to scope, then
// filters out any memory that has since been archived or superseded
// (concurrent archival can leave a stale row in the vector store, §5).
func (f *Facade) Search(ctx context.Context, query string, scope rmodel.Scope, k int, filters map[string]any, threshold float64, rerank bool) (SearchResult, error) {
	opts := retrieval.DefaultOptions()
	opts.K = k
	opts.Threshold = threshold
	opts.Rerank = rerank
	opts.Filter = mergeFilter(filters, scope)

	res, err := f.Retrieval.Search(ctx, query, opts)
	if err != nil {
		return SearchResult{}, err
	}

	visible := make([]retrieval.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		m, err := f.History.Get(ctx, h.ID)
		if err != nil || m.State != rmodel.Active {
			continue
		}
		visible = append(visible, h)
	}

	go retrieval.RecordRetrievalAccess(context.Background(), f.History, visible)

	warnings := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		warnings = append(warnings, string(w))
	}
	return SearchResult{Hits: visible, Warnings: warnings}, nil
}

func mergeFilter(filters map[string]any, scope rmodel.Scope) map[string]any {
	out := map[string]any{"scope": scope.Key()}
	for k, v := range filters {
		out[k] = v
	}
	return out
}

// Get returns a memory by id regardless of state (superseded memories stay
// queryable by id for audit, per §3).
func (f *Facade) Get(ctx context.Context, id string) (*rmodel.Memory, error) {
	return f.History.Get(ctx, id)
}

// GetAll lists active memories in scope.
func (f *Facade) GetAll(ctx context.Context, scope rmodel.Scope, limit int) ([]*rmodel.Memory, error) {
	return f.History.GetAll(ctx, scope, limit)
}

// Update rewrites a memory's content through the normal Version+live-row
// path, re-embeds it, and re-indexes.
func (f *Facade) Update(ctx context.Context, id string, text string) (*rmodel.Memory, error) {
	lock := f.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	updated, err := f.History.Update(ctx, id, rmodel.Patch{Content: &text})
	if err != nil {
		return nil, err
	}
	if f.Embed != nil {
		qv, err := f.Embed.EmbedText(ctx, text, capability.EmbedUpdate)
		if err == nil {
			updated.Embedding = qv
		}
	}
	f.indexMemory(ctx, updated)
	f.Events.Publish(events.Event{MemoryID: id, Kind: rmodel.EventUpdate, Memory: *updated})
	return updated, nil
}

// Delete logically deletes (archives) a memory.
func (f *Facade) Delete(ctx context.Context, id string) error {
	lock := f.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if err := f.History.Archive(ctx, id); err != nil {
		return err
	}
	if f.VectorStore != nil {
		_ = f.VectorStore.Delete(ctx, id)
	}
	if f.Lexical != nil {
		_ = f.Lexical.Delete(ctx, id)
	}
	f.Events.Publish(events.Event{MemoryID: id, Kind: rmodel.EventDelete})
	return nil
}

// DeleteAll archives every memory in scope.
func (f *Facade) DeleteAll(ctx context.Context, scope rmodel.Scope) (int, error) {
	return f.History.DeleteAll(ctx, scope)
}

// Versions returns the version log for a memory.
func (f *Facade) Versions(ctx context.Context, id string) ([]rmodel.MemoryVersion, error) {
	return f.History.Versions(ctx, id)
}

// ApplySignal applies an exogenous strength signal (§4.F), serialized by the
// target memory's per-id lock, and records the resulting AccessRecord.
func (f *Facade) ApplySignal(ctx context.Context, sig signals.Signal) (bool, error) {
	lock := f.lockFor(sig.MemoryID)
	lock.Lock()
	defer lock.Unlock()

	m, err := f.History.Get(ctx, sig.MemoryID)
	if err != nil {
		return false, err
	}

	applied, kind, err := f.Signals.Apply(ctx, m, sig)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	patch := rmodel.Patch{
		Strength:            &m.Strength,
		Counters:            &m.Counters,
		SynapticTagStrength: &m.SynapticTagStrength,
		TagCreatedAt:        &m.TagCreatedAt,
		LastAccessedAt:      &m.LastAccessedAt,
	}
	if sig.Kind == signals.ExplicitCorrection && m.Counters.LapseCount >= 3 && !m.ArchivalCandidate {
		candidate := true
		patch.ArchivalCandidate = &candidate
		m.ArchivalCandidate = true
		f.Logger.Info("memory flagged as archival candidate after repeated corrections", "memory_id", m.ID)
	}
	if _, err := f.History.Update(ctx, m.ID, patch); err != nil {
		return false, err
	}
	_ = f.History.RecordAccess(ctx, m.ID, kind)

	f.Events.Publish(events.Event{MemoryID: m.ID, Kind: rmodel.EventStrengthChange, Memory: *m})
	return true, nil
}
