// Package rmodel defines the durable data model (§3 of the design): Memory,
// its immutable version log, access records, and graph edges, plus the
// History store contract (§4.B) every mutating facade operation goes
// through.
package rmodel

import (
	"context"
	"time"
)

// ConsolidationPhase is the STC age bucket (§4.C) governing plasticity.
type ConsolidationPhase int

const (
	Immediate ConsolidationPhase = iota
	Early
	Late
	Consolidated
)

func (p ConsolidationPhase) String() string {
	switch p {
	case Immediate:
		return "immediate"
	case Early:
		return "early"
	case Late:
		return "late"
	default:
		return "consolidated"
	}
}

// PhaseForAge buckets an age duration into a ConsolidationPhase per §4.C.
func PhaseForAge(age time.Duration) ConsolidationPhase {
	switch {
	case age < 6*time.Hour:
		return Immediate
	case age < 24*time.Hour:
		return Early
	case age < 72*time.Hour:
		return Late
	default:
		return Consolidated
	}
}

// State is the lifecycle state of a Memory.
type State int

const (
	Active State = iota
	Archived
	Superseded
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Archived:
		return "archived"
	default:
		return "superseded"
	}
}

// Scope is the (user, agent, run) partition key every memory and query
// filters by. At least one field MUST be non-empty.
type Scope struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// Empty reports whether no scope component is set, which is invalid per §3.
func (s Scope) Empty() bool {
	return s.UserID == "" && s.AgentID == "" && s.RunID == ""
}

// Key renders a stable string suitable for filter maps and graph-subtree
// deletes.
func (s Scope) Key() string {
	return s.UserID + "\x1f" + s.AgentID + "\x1f" + s.RunID
}

// Strength is the FSRS-6 dual-strength state (§4.C).
type Strength struct {
	Stability  float64 `json:"stability"`
	Difficulty float64 `json:"difficulty"`
}

// Counters are the reinforcement counters tracked alongside Strength.
type Counters struct {
	ReviewCount int `json:"review_count"`
	LapseCount  int `json:"lapse_count"`
	UsedCount   int `json:"used_count"`
}

// Memory is the live record for one stored fact.
type Memory struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Scope    Scope          `json:"scope"`
	Embedding []float32     `json:"-"`

	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`

	Strength Strength `json:"strength"`
	Counters Counters `json:"counters"`

	ConsolidationPhase   ConsolidationPhase `json:"consolidation_phase"`
	SynapticTagStrength  float64            `json:"synaptic_tag_strength"`
	TagCreatedAt         time.Time          `json:"tag_created_at"`

	State         State  `json:"state"`
	SupersededBy  string `json:"superseded_by,omitempty"`
	IndexStale    bool   `json:"index_stale,omitempty"`

	// ArchivalCandidate is set once a memory has accrued enough
	// ExplicitCorrection signals (§4.F) to be worth an archival sweep's
	// attention; it does not archive the memory by itself.
	ArchivalCandidate bool `json:"archival_candidate,omitempty"`
}

// VersionEvent tags why a MemoryVersion row was written.
type VersionEvent int

const (
	EventAdd VersionEvent = iota
	EventUpdate
	EventDelete
	EventSupersede
	EventStrengthChange
)

func (e VersionEvent) String() string {
	switch e {
	case EventAdd:
		return "Add"
	case EventUpdate:
		return "Update"
	case EventDelete:
		return "Delete"
	case EventSupersede:
		return "Supersede"
	default:
		return "StrengthChange"
	}
}

// MemoryVersion is one immutable, append-only row of a memory's history.
type MemoryVersion struct {
	MemoryID      string       `json:"memory_id"`
	VersionNumber int          `json:"version_number"`
	Event         VersionEvent `json:"event"`
	Snapshot      Memory       `json:"snapshot"`
	Author        string       `json:"author"`
	Timestamp     time.Time    `json:"ts"`
}

// AccessKind classifies an AccessRecord.
type AccessKind int

const (
	Creation AccessKind = iota
	Retrieval
	Reinforcement
	Correction
)

func (k AccessKind) String() string {
	switch k {
	case Creation:
		return "Creation"
	case Retrieval:
		return "Retrieval"
	case Reinforcement:
		return "Reinforcement"
	default:
		return "Correction"
	}
}

// AccessRecord logs one touch of a memory, consumed by the cognitive
// scheduler and ACT-R style activation accounting.
type AccessRecord struct {
	MemoryID  string     `json:"memory_id"`
	Timestamp time.Time  `json:"ts"`
	Kind      AccessKind `json:"kind"`
}

// GraphEdge is one directed, weighted relation between two memories.
type GraphEdge struct {
	SourceMemoryID string  `json:"source_memory_id"`
	TargetMemoryID string  `json:"target_memory_id"`
	RelationKind   string  `json:"relation_kind"`
	Weight         float64 `json:"weight"`
}

// Patch carries a partial update to a Memory; nil fields are no-ops. Strength
// and Counters are applied wholesale when non-nil, since the scheduler and
// signal processor always recompute every sub-field together.
type Patch struct {
	Content             *string
	Metadata            map[string]any
	Strength            *Strength
	Counters            *Counters
	SynapticTagStrength *float64
	TagCreatedAt        *time.Time
	LastAccessedAt      *time.Time
	IndexStale          *bool
	ArchivalCandidate   *bool
}

// History is the data-model & history store contract (§4.B). Every mutating
// method writes a MemoryVersion row in the same transaction as the live row.
type History interface {
	Put(ctx context.Context, m *Memory) error
	Update(ctx context.Context, id string, patch Patch) (*Memory, error)
	Archive(ctx context.Context, id string) error
	Supersede(ctx context.Context, oldID string, newMemory *Memory) error
	Get(ctx context.Context, id string) (*Memory, error)
	GetAll(ctx context.Context, scope Scope, limit int) ([]*Memory, error)
	Versions(ctx context.Context, id string) ([]MemoryVersion, error)
	RecordAccess(ctx context.Context, id string, kind AccessKind) error
	DeleteAll(ctx context.Context, scope Scope) (int, error)
}
