package httpapi

import (
	"time"

	"github.com/rookmem/rook/pkg/facade"
	"github.com/rookmem/rook/pkg/rmodel"
	"github.com/rookmem/rook/pkg/signals"
)

// addRequest is the body of POST /memories.
type addRequest struct {
	Text     string         `json:"text"`
	Messages []string       `json:"messages,omitempty"`
	UserID   string         `json:"user_id,omitempty"`
	AgentID  string         `json:"agent_id,omitempty"`
	RunID    string         `json:"run_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Infer    *bool          `json:"infer,omitempty"`
}

func (r addRequest) scope() rmodel.Scope {
	return rmodel.Scope{UserID: r.UserID, AgentID: r.AgentID, RunID: r.RunID}
}

func (r addRequest) text() string {
	if r.Text != "" {
		return r.Text
	}
	joined := ""
	for i, m := range r.Messages {
		if i > 0 {
			joined += "\n"
		}
		joined += m
	}
	return joined
}

func (r addRequest) infer() bool {
	if r.Infer == nil {
		return true
	}
	return *r.Infer
}

type addEventDTO struct {
	ID     string `json:"id"`
	Memory string `json:"memory"`
	Event  string `json:"event"`
}

type addResponse struct {
	Status   string        `json:"status"`
	Events   []addEventDTO `json:"events"`
	Warnings []string      `json:"warnings,omitempty"`
}

func toAddResponse(r facade.AddResult) addResponse {
	events := make([]addEventDTO, len(r.Events))
	for i, e := range r.Events {
		events[i] = addEventDTO{ID: e.ID, Memory: e.Content, Event: e.Event}
	}
	return addResponse{Status: "ok", Events: events, Warnings: r.Warnings}
}

// memoryItem is the wire shape of a stored memory (§6's MemoryItem), a
// stable subset/reshaping of rmodel.Memory.
type memoryItem struct {
	ID                 string          `json:"id"`
	Content            string          `json:"content"`
	Metadata           map[string]any  `json:"metadata,omitempty"`
	Scope              rmodel.Scope    `json:"scope"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	LastAccessedAt     time.Time       `json:"last_accessed_at"`
	Strength           rmodel.Strength `json:"strength"`
	Counters           rmodel.Counters `json:"counters"`
	ConsolidationPhase string          `json:"consolidation_phase"`
	State              string          `json:"state"`
	SupersededBy       string          `json:"superseded_by,omitempty"`
	IndexStale         bool            `json:"index_stale,omitempty"`
	ArchivalCandidate  bool            `json:"archival_candidate,omitempty"`
}

func toMemoryItem(m *rmodel.Memory) memoryItem {
	return memoryItem{
		ID:                 m.ID,
		Content:            m.Content,
		Metadata:           m.Metadata,
		Scope:              m.Scope,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		LastAccessedAt:     m.LastAccessedAt,
		Strength:           m.Strength,
		Counters:           m.Counters,
		ConsolidationPhase: m.ConsolidationPhase.String(),
		State:              m.State.String(),
		SupersededBy:       m.SupersededBy,
		IndexStale:         m.IndexStale,
		ArchivalCandidate:  m.ArchivalCandidate,
	}
}

type updateRequest struct {
	Text string `json:"text"`
}

type deleteResponse struct {
	Status  string `json:"status"`
	Deleted string `json:"deleted"`
}

type deleteAllResponse struct {
	Status       string `json:"status"`
	DeletedCount int    `json:"deleted_count"`
}

// versionSummary is §6's VersionSummary.
type versionSummary struct {
	VersionNumber int       `json:"version_number"`
	Event         string    `json:"event"`
	Author        string    `json:"author"`
	Timestamp     time.Time `json:"ts"`
}

func toVersionSummary(v rmodel.MemoryVersion) versionSummary {
	return versionSummary{
		VersionNumber: v.VersionNumber,
		Event:         v.Event.String(),
		Author:        v.Author,
		Timestamp:     v.Timestamp,
	}
}

// searchRequest is the body of POST /search.
type searchRequest struct {
	Query     string         `json:"query"`
	UserID    string         `json:"user_id,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
	Threshold float64        `json:"threshold,omitempty"`
	Rerank    bool           `json:"rerank,omitempty"`
}

func (r searchRequest) scope() rmodel.Scope {
	return rmodel.Scope{UserID: r.UserID, AgentID: r.AgentID, RunID: r.RunID}
}

type searchHitDTO struct {
	ID        string         `json:"id"`
	Score     float64        `json:"score"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	GroupSize int            `json:"group_size,omitempty"`
}

type searchResponse struct {
	Status   string         `json:"status"`
	Results  []searchHitDTO `json:"results"`
	Warnings []string       `json:"warnings,omitempty"`
}

func toSearchResponse(r facade.SearchResult) searchResponse {
	hits := make([]searchHitDTO, len(r.Hits))
	for i, h := range r.Hits {
		hits[i] = searchHitDTO{ID: h.ID, Score: h.Score, Metadata: h.Metadata, GroupSize: h.GroupSize}
	}
	return searchResponse{Status: "ok", Results: hits, Warnings: r.Warnings}
}

// signalRequest is the body of POST /signals.
type signalRequest struct {
	MemoryID string `json:"memory_id"`
	SignalID string `json:"signal_id"`
	Kind     string `json:"kind"`
}

var signalKinds = map[string]signals.Kind{
	"used_in_response":       signals.UsedInResponse,
	"ignored_in_response":    signals.IgnoredInResponse,
	"explicit_correction":    signals.ExplicitCorrection,
	"explicit_reinforcement": signals.ExplicitReinforcement,
	"user_feedback_positive": signals.UserFeedbackPositive,
	"user_feedback_negative": signals.UserFeedbackNegative,
}

type signalsResponse struct {
	Status  string `json:"status"`
	Applied bool   `json:"applied"`
}

type signalsApplyResponse struct {
	Status  string `json:"status"`
	Applied int    `json:"applied"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Configured bool   `json:"configured"`
	Version    string `json:"version"`
}
