package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rookmem/rook/pkg/facade"
	"github.com/rookmem/rook/pkg/logging"
	"github.com/rookmem/rook/pkg/metrics"
	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
	"github.com/rookmem/rook/pkg/signals"
)

// Server holds the facade and collaborators every handler needs, following
// 2lar-b2's NodeHandler shape (one struct per dependency set, methods are
// the http.HandlerFuncs chi routes to).
type Server struct {
	Facade  *facade.Facade
	Logger  logging.Logger
	Metrics *metrics.Collector
	Version string
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, s.Logger, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// handleAdd handles POST /memories.
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.Facade.Add(r.Context(), req.text(), req.scope(), req.infer())
	if err != nil {
		respondForErr(w, s.Logger, err)
		return
	}
	respondJSON(w, s.Logger, http.StatusOK, toAddResponse(result))
}

// handleGetAll handles GET /memories.
func (s *Server) handleGetAll(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromQuery(r)
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	memories, err := s.Facade.GetAll(r.Context(), scope, limit)
	if err != nil {
		respondForErr(w, s.Logger, err)
		return
	}
	items := make([]memoryItem, len(memories))
	for i, m := range memories {
		items[i] = toMemoryItem(m)
	}
	respondJSON(w, s.Logger, http.StatusOK, items)
}

// handleGet handles GET /memories/:id.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := s.Facade.Get(r.Context(), id)
	if err != nil {
		respondForErr(w, s.Logger, err)
		return
	}
	respondJSON(w, s.Logger, http.StatusOK, toMemoryItem(m))
}

// handleUpdate handles PUT /memories/:id.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.Facade.Update(r.Context(), id, req.Text)
	if err != nil {
		respondForErr(w, s.Logger, err)
		return
	}
	respondJSON(w, s.Logger, http.StatusOK, toMemoryItem(m))
}

// handleDelete handles DELETE /memories/:id.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Facade.Delete(r.Context(), id); err != nil {
		respondForErr(w, s.Logger, err)
		return
	}
	respondJSON(w, s.Logger, http.StatusOK, deleteResponse{Status: "ok", Deleted: id})
}

// handleDeleteAll handles DELETE /memories.
func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromQuery(r)
	if scope.Empty() {
		respondError(w, s.Logger, http.StatusUnprocessableEntity, rerr.ErrInvalidScope.Error())
		return
	}
	n, err := s.Facade.DeleteAll(r.Context(), scope)
	if err != nil {
		respondForErr(w, s.Logger, err)
		return
	}
	respondJSON(w, s.Logger, http.StatusOK, deleteAllResponse{Status: "ok", DeletedCount: n})
}

// handleHistory handles GET /memories/:id/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	versions, err := s.Facade.Versions(r.Context(), id)
	if err != nil {
		respondForErr(w, s.Logger, err)
		return
	}
	out := make([]versionSummary, len(versions))
	for i, v := range versions {
		out[i] = toVersionSummary(v)
	}
	respondJSON(w, s.Logger, http.StatusOK, out)
}

// handleSearch handles POST /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	result, err := s.Facade.Search(r.Context(), req.Query, req.scope(), req.Limit, req.Filters, req.Threshold, req.Rerank)
	if err != nil {
		respondForErr(w, s.Logger, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.SearchRequests.Inc()
		s.Metrics.SearchHits.Observe(float64(len(result.Hits)))
	}
	respondJSON(w, s.Logger, http.StatusOK, toSearchResponse(result))
}

// handleSignal handles POST /signals: applies one strength signal inline.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind, ok := signalKinds[req.Kind]
	if !ok {
		respondError(w, s.Logger, http.StatusBadRequest, "unknown signal kind: "+req.Kind)
		return
	}
	applied, err := s.Facade.ApplySignal(r.Context(), signals.Signal{MemoryID: req.MemoryID, SignalID: req.SignalID, Kind: kind})
	if err != nil {
		respondForErr(w, s.Logger, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.SignalsApplied.WithLabelValues(req.Kind).Inc()
	}
	respondJSON(w, s.Logger, http.StatusOK, signalsResponse{Status: "ok", Applied: applied})
}

// handleSignalsApply handles POST /signals/apply: a batch of pending signals
// applied in order, tolerating individual failures (§4.F is idempotent per
// signal, so a partial batch failure never corrupts earlier applications).
func (s *Server) handleSignalsApply(w http.ResponseWriter, r *http.Request) {
	var reqs []signalRequest
	if !s.decode(w, r, &reqs) {
		return
	}
	applied := 0
	for _, req := range reqs {
		kind, ok := signalKinds[req.Kind]
		if !ok {
			continue
		}
		ok2, err := s.Facade.ApplySignal(r.Context(), signals.Signal{MemoryID: req.MemoryID, SignalID: req.SignalID, Kind: kind})
		if err != nil {
			s.Logger.Warn("signals/apply: one signal failed", "memory_id", req.MemoryID, "error", err)
			continue
		}
		if ok2 {
			applied++
			if s.Metrics != nil {
				s.Metrics.SignalsApplied.WithLabelValues(req.Kind).Inc()
			}
		}
	}
	respondJSON(w, s.Logger, http.StatusOK, signalsApplyResponse{Status: "ok", Applied: applied})
}

// handleConfigure handles POST /configure. The memory core's tunables
// (§4.H's Config) are process-wide and cheap to swap at runtime since every
// request re-reads them from the Facade rather than capturing a copy.
func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var cfg facade.Config
	if !s.decode(w, r, &cfg) {
		return
	}
	if cfg.NeighbourCandidates <= 0 {
		cfg.NeighbourCandidates = facade.DefaultConfig().NeighbourCandidates
	}
	if cfg.MaxIndexRetries <= 0 {
		cfg.MaxIndexRetries = facade.DefaultConfig().MaxIndexRetries
	}
	s.Facade.Config = cfg
	respondJSON(w, s.Logger, http.StatusOK, okResponse{OK: true})
}

// handleReset handles POST /reset: archives every memory in the scope given
// in the request body. History has no all-scope wipe, so reset never clears
// other scopes; a missing or empty scope archives nothing and still answers
// {"ok": true}.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var scope rmodel.Scope
	_ = json.NewDecoder(r.Body).Decode(&scope)
	if !scope.Empty() {
		if _, err := s.Facade.DeleteAll(r.Context(), scope); err != nil {
			respondForErr(w, s.Logger, err)
			return
		}
	}
	respondJSON(w, s.Logger, http.StatusOK, okResponse{OK: true})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.Logger, http.StatusOK, healthResponse{
		Status:     "ok",
		Configured: s.Facade.Embed != nil,
		Version:    s.Version,
	})
}

func scopeFromQuery(r *http.Request) rmodel.Scope {
	q := r.URL.Query()
	return rmodel.Scope{UserID: q.Get("user_id"), AgentID: q.Get("agent_id"), RunID: q.Get("run_id")}
}
