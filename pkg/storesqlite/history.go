package storesqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
)

// Put inserts a brand-new memory and its first version row in one
// transaction, per §4.B's "every mutating method writes a MemoryVersion row
// in the same transaction as the live row."
func (s *Store) Put(ctx context.Context, m *rmodel.Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rerr.Wrap("put", rerr.Internal, err)
	}
	defer tx.Rollback()

	md, _ := json.Marshal(m.Metadata)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, content, metadata, scope_key, embedding, created_at, updated_at,
			last_accessed_at, stability, difficulty, review_count, lapse_count, used_count,
			consolidation_phase, synaptic_tag_strength, tag_created_at, state, superseded_by, index_stale,
				archival_candidate)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Content, string(md), m.Scope.Key(), encodeVector(m.Embedding),
		m.CreatedAt, m.UpdatedAt, m.LastAccessedAt,
		m.Strength.Stability, m.Strength.Difficulty,
		m.Counters.ReviewCount, m.Counters.LapseCount, m.Counters.UsedCount,
		int(m.ConsolidationPhase), m.SynapticTagStrength, nullTime(m.TagCreatedAt),
		int(m.State), nullString(m.SupersededBy), boolToInt(m.IndexStale), boolToInt(m.ArchivalCandidate))
	if err != nil {
		return rerr.Wrap("put", rerr.Internal, err)
	}

	if err := writeVersion(ctx, tx, *m, rmodel.EventAdd, 1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return rerr.Wrap("put", rerr.Internal, err)
	}
	return nil
}

// Update applies patch to the live row, bumps version, and returns the
// resulting Memory.
func (s *Store) Update(ctx context.Context, id string, patch rmodel.Patch) (*rmodel.Memory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, rerr.Wrap("update", rerr.Internal, err)
	}
	defer tx.Rollback()

	m, err := getTx(ctx, tx, id)
	if err != nil {
		return nil, err
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
	m.UpdatedAt = time.Now()

	md, _ := json.Marshal(m.Metadata)
	_, err = tx.ExecContext(ctx, `
		UPDATE memories SET content=?, metadata=?, updated_at=?, last_accessed_at=?,
			stability=?, difficulty=?, review_count=?, lapse_count=?, used_count=?,
			synaptic_tag_strength=?, tag_created_at=?, index_stale=?, archival_candidate=?
		WHERE id=?`,
		m.Content, string(md), m.UpdatedAt, m.LastAccessedAt,
		m.Strength.Stability, m.Strength.Difficulty,
		m.Counters.ReviewCount, m.Counters.LapseCount, m.Counters.UsedCount,
		m.SynapticTagStrength, nullTime(m.TagCreatedAt), boolToInt(m.IndexStale), boolToInt(m.ArchivalCandidate), id)
	if err != nil {
		return nil, rerr.Wrap("update", rerr.Internal, err)
	}

	nextVersion, err := nextVersionNumber(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := writeVersion(ctx, tx, *m, rmodel.EventUpdate, nextVersion); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, rerr.Wrap("update", rerr.Internal, err)
	}
	return m, nil
}

// Archive marks id's live row Archived and appends a version row.
func (s *Store) Archive(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rerr.Wrap("archive", rerr.Internal, err)
	}
	defer tx.Rollback()

	m, err := getTx(ctx, tx, id)
	if err != nil {
		return err
	}
	m.State = rmodel.Archived
	m.UpdatedAt = time.Now()

	if _, err := tx.ExecContext(ctx, `UPDATE memories SET state=?, updated_at=? WHERE id=?`, int(m.State), m.UpdatedAt, id); err != nil {
		return rerr.Wrap("archive", rerr.Internal, err)
	}
	nextVersion, err := nextVersionNumber(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := writeVersion(ctx, tx, *m, rmodel.EventDelete, nextVersion); err != nil {
		return err
	}
	return rerr.Wrap("archive", rerr.Internal, tx.Commit())
}

// Supersede marks oldID Superseded (pointing at newMemory.ID) and inserts
// newMemory as a fresh live row, both within one transaction.
func (s *Store) Supersede(ctx context.Context, oldID string, newMemory *rmodel.Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rerr.Wrap("supersede", rerr.Internal, err)
	}
	defer tx.Rollback()

	old, err := getTx(ctx, tx, oldID)
	if err != nil {
		return err
	}
	old.State = rmodel.Superseded
	old.SupersededBy = newMemory.ID
	old.UpdatedAt = time.Now()
	if _, err := tx.ExecContext(ctx, `UPDATE memories SET state=?, superseded_by=?, updated_at=? WHERE id=?`,
		int(old.State), old.SupersededBy, old.UpdatedAt, oldID); err != nil {
		return rerr.Wrap("supersede", rerr.Internal, err)
	}
	nextVersion, err := nextVersionNumber(ctx, tx, oldID)
	if err != nil {
		return err
	}
	if err := writeVersion(ctx, tx, *old, rmodel.EventSupersede, nextVersion); err != nil {
		return err
	}

	md, _ := json.Marshal(newMemory.Metadata)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, content, metadata, scope_key, embedding, created_at, updated_at,
			last_accessed_at, stability, difficulty, review_count, lapse_count, used_count,
			consolidation_phase, synaptic_tag_strength, tag_created_at, state, superseded_by, index_stale,
				archival_candidate)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		newMemory.ID, newMemory.Content, string(md), newMemory.Scope.Key(), encodeVector(newMemory.Embedding),
		newMemory.CreatedAt, newMemory.UpdatedAt, newMemory.LastAccessedAt,
		newMemory.Strength.Stability, newMemory.Strength.Difficulty,
		newMemory.Counters.ReviewCount, newMemory.Counters.LapseCount, newMemory.Counters.UsedCount,
		int(newMemory.ConsolidationPhase), newMemory.SynapticTagStrength, nullTime(newMemory.TagCreatedAt),
		int(newMemory.State), nullString(newMemory.SupersededBy), boolToInt(newMemory.IndexStale), boolToInt(newMemory.ArchivalCandidate))
	if err != nil {
		return rerr.Wrap("supersede", rerr.Internal, err)
	}
	if err := writeVersion(ctx, tx, *newMemory, rmodel.EventAdd, 1); err != nil {
		return err
	}
	return rerr.Wrap("supersede", rerr.Internal, tx.Commit())
}

// Get fetches a memory by id regardless of state.
func (s *Store) Get(ctx context.Context, id string) (*rmodel.Memory, error) {
	return getTx(ctx, s.db, id)
}

// GetAll lists active memories in scope, most recently updated first.
func (s *Store) GetAll(ctx context.Context, scope rmodel.Scope, limit int) ([]*rmodel.Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memoryColumns+` FROM memories WHERE scope_key=? AND state=? ORDER BY updated_at DESC LIMIT ?`,
		scope.Key(), int(rmodel.Active), limit)
	if err != nil {
		return nil, rerr.Wrap("get_all", rerr.Internal, err)
	}
	defer rows.Close()

	var out []*rmodel.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, rerr.Wrap("get_all", rerr.Internal, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Versions returns the append-only version log for id, oldest first.
func (s *Store) Versions(ctx context.Context, id string) ([]rmodel.MemoryVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_id, version_number, event, snapshot, author, ts
		FROM memory_versions WHERE memory_id=? ORDER BY version_number ASC`, id)
	if err != nil {
		return nil, rerr.Wrap("versions", rerr.Internal, err)
	}
	defer rows.Close()

	var out []rmodel.MemoryVersion
	for rows.Next() {
		var v rmodel.MemoryVersion
		var snapshotJSON string
		var event int
		var author sql.NullString
		if err := rows.Scan(&v.MemoryID, &v.VersionNumber, &event, &snapshotJSON, &author, &v.Timestamp); err != nil {
			return nil, rerr.Wrap("versions", rerr.Internal, err)
		}
		v.Event = rmodel.VersionEvent(event)
		v.Author = author.String
		_ = json.Unmarshal([]byte(snapshotJSON), &v.Snapshot)
		out = append(out, v)
	}
	return out, nil
}

// RecordAccess appends an AccessRecord; best-effort, never blocks a write.
func (s *Store) RecordAccess(ctx context.Context, id string, kind rmodel.AccessKind) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO access_records (memory_id, ts, kind) VALUES (?,?,?)`,
		id, time.Now(), int(kind))
	return rerr.Wrap("record_access", rerr.Internal, err)
}

// DeleteAll archives every active memory in scope through Archive, so each
// one gets its own version row, and returns the count.
func (s *Store) DeleteAll(ctx context.Context, scope rmodel.Scope) (int, error) {
	ids, err := s.List(ctx, map[string]any{"scope": scope.Key()}, math.MaxInt32)
	if err != nil {
		return 0, rerr.Wrap("delete_all", rerr.Internal, err)
	}
	n := 0
	for _, id := range ids {
		if err := s.Archive(ctx, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// --- shared helpers ---

const memoryColumns = `id, content, metadata, scope_key, embedding, created_at, updated_at,
	last_accessed_at, stability, difficulty, review_count, lapse_count, used_count,
	consolidation_phase, synaptic_tag_strength, tag_created_at, state, superseded_by, index_stale,
	archival_candidate`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTx(ctx context.Context, q queryer, id string) (*rmodel.Memory, error) {
	row := q.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id=?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rerr.Wrap("get", rerr.NotFound, fmt.Errorf("memory %s not found", id))
	}
	if err != nil {
		return nil, rerr.Wrap("get", rerr.Internal, err)
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*rmodel.Memory, error) {
	var m rmodel.Memory
	var metadataJSON string
	var scopeKey string
	var embBytes []byte
	var tagCreatedAt sql.NullTime
	var supersededBy sql.NullString
	var consolidationPhase, state, indexStale, archivalCandidate int

	err := row.Scan(&m.ID, &m.Content, &metadataJSON, &scopeKey, &embBytes,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessedAt,
		&m.Strength.Stability, &m.Strength.Difficulty,
		&m.Counters.ReviewCount, &m.Counters.LapseCount, &m.Counters.UsedCount,
		&consolidationPhase, &m.SynapticTagStrength, &tagCreatedAt,
		&state, &supersededBy, &indexStale, &archivalCandidate)
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(metadataJSON), &m.Metadata)
	m.Embedding = decodeVector(embBytes)
	m.ConsolidationPhase = rmodel.ConsolidationPhase(consolidationPhase)
	m.State = rmodel.State(state)
	m.SupersededBy = supersededBy.String
	m.IndexStale = indexStale != 0
	m.ArchivalCandidate = archivalCandidate != 0
	if tagCreatedAt.Valid {
		m.TagCreatedAt = tagCreatedAt.Time
	}
	m.Scope = scopeFromKey(scopeKey)
	return &m, nil
}

func scopeFromKey(key string) rmodel.Scope {
	parts := splitScopeKey(key)
	return rmodel.Scope{UserID: parts[0], AgentID: parts[1], RunID: parts[2]}
}

func splitScopeKey(key string) [3]string {
	var out [3]string
	idx := 0
	start := 0
	for i := 0; i < len(key) && idx < 2; i++ {
		if key[i] == '\x1f' {
			out[idx] = key[start:i]
			idx++
			start = i + 1
		}
	}
	out[idx] = key[start:]
	return out
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeVersion(ctx context.Context, tx execer, m rmodel.Memory, event rmodel.VersionEvent, versionNumber int) error {
	snapshot, _ := json.Marshal(m)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO memory_versions (memory_id, version_number, event, snapshot, author, ts)
		VALUES (?,?,?,?,?,?)`, m.ID, versionNumber, int(event), string(snapshot), "", time.Now())
	return rerr.Wrap("write_version", rerr.Internal, err)
}

func nextVersionNumber(ctx context.Context, tx *sql.Tx, id string) (int, error) {
	var highest sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(version_number) FROM memory_versions WHERE memory_id=?`, id).Scan(&highest); err != nil {
		return 0, rerr.Wrap("next_version", rerr.Internal, err)
	}
	return int(highest.Int64) + 1, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
