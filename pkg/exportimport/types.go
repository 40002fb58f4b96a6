// Package exportimport implements the JSONL export/import and mem0 import
// mapping specified verbatim in spec.md §6, plus a migration report
// (supplemented from the original Rust export/import/migration modules,
// which the distillation kept the module names for but dropped the concrete
// mapping code of) summarizing how many rows were mapped, skipped, or
// conflicted during an import.
package exportimport

import (
	"time"

	"github.com/rookmem/rook/pkg/rmodel"
)

// Record is one line of a JSONL export, field order stable per §6:
// {id, content, scope, metadata, created_at, updated_at, strength, counters}.
type Record struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Scope     ScopeRecord    `json:"scope"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Strength  StrengthRecord `json:"strength"`
	Counters  CountersRecord `json:"counters"`
}

// ScopeRecord mirrors rmodel.Scope with JSON tags fixed independently of the
// live type, so the on-disk format doesn't shift if rmodel.Scope ever grows
// an unrelated field.
type ScopeRecord struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

type StrengthRecord struct {
	Stability  float64 `json:"stability"`
	Difficulty float64 `json:"difficulty"`
}

type CountersRecord struct {
	ReviewCount int `json:"review_count"`
	LapseCount  int `json:"lapse_count"`
	UsedCount   int `json:"used_count"`
}

func toRecord(m *rmodel.Memory) Record {
	return Record{
		ID:      m.ID,
		Content: m.Content,
		Scope: ScopeRecord{
			UserID:  m.Scope.UserID,
			AgentID: m.Scope.AgentID,
			RunID:   m.Scope.RunID,
		},
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Strength:  StrengthRecord{Stability: m.Strength.Stability, Difficulty: m.Strength.Difficulty},
		Counters: CountersRecord{
			ReviewCount: m.Counters.ReviewCount,
			LapseCount:  m.Counters.LapseCount,
			UsedCount:   m.Counters.UsedCount,
		},
	}
}

func (r Record) toMemory() *rmodel.Memory {
	now := r.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	return &rmodel.Memory{
		ID:      r.ID,
		Content: r.Content,
		Scope: rmodel.Scope{
			UserID:  r.Scope.UserID,
			AgentID: r.Scope.AgentID,
			RunID:   r.Scope.RunID,
		},
		Metadata:       r.Metadata,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		LastAccessedAt: now,
		Strength:       rmodel.Strength{Stability: r.Strength.Stability, Difficulty: r.Strength.Difficulty},
		Counters:       rmodel.Counters{ReviewCount: r.Counters.ReviewCount, LapseCount: r.Counters.LapseCount, UsedCount: r.Counters.UsedCount},
		State:          rmodel.Active,
	}
}

// Mem0Record is one line of a mem0 export, mapped per §6:
// memory_id→id, data→content, metadata.user_id→scope.user_id.
type Mem0Record struct {
	MemoryID  string         `json:"memory_id"`
	Data      string         `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (r Mem0Record) toMemory() *rmodel.Memory {
	userID, _ := r.Metadata["user_id"].(string)
	now := r.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	return &rmodel.Memory{
		ID:             r.MemoryID,
		Content:        r.Data,
		Scope:          rmodel.Scope{UserID: userID},
		Metadata:       r.Metadata,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		LastAccessedAt: now,
		Strength:       rmodel.Strength{Stability: 0.1, Difficulty: 5.0},
		State:          rmodel.Active,
	}
}

// ExportStats summarizes a completed export.
type ExportStats struct {
	Exported int
}

// MigrationReport summarizes a completed import or migration so operators
// can audit a bulk load instead of learning about data loss only from
// missing rows later.
type MigrationReport struct {
	Total      int
	Imported   int
	Skipped    int
	Conflicted int
	Errors     []string
}

func (r *MigrationReport) recordError(id string, err error) {
	r.Conflicted++
	r.Errors = append(r.Errors, id+": "+err.Error())
}
