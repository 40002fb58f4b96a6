// Package storesqlite is the default SQLite-backed implementation of
// rmodel.History, capability.VectorStore, capability.LexicalIndex, and
// capability.GraphStore. The schema, WAL pragmas, and FTS5 trigger pattern
// are adapted from the teacher's pkg/core/store_init.go; the brute-force
// candidate scan used when no ANN index is configured mirrors its own
// store_search.go fallback path; edge storage follows pkg/graph/graph.go.
package storesqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rookmem/rook/pkg/capability"
	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
)

// Store is a single SQLite-backed handle satisfying every storage capability
// the memory core needs. One Store is meant to be shared by a Facade.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a WAL-mode SQLite database at path and
// runs the schema migration. Mirrors the teacher's connection-pool defaults.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, rerr.Wrap("storesqlite.Open", rerr.Configuration, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return nil, rerr.Wrap("storesqlite.Open", rerr.Internal, err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata TEXT,
		scope_key TEXT NOT NULL DEFAULT '',
		embedding BLOB,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_accessed_at DATETIME NOT NULL,
		stability REAL NOT NULL DEFAULT 0.1,
		difficulty REAL NOT NULL DEFAULT 5.0,
		review_count INTEGER NOT NULL DEFAULT 0,
		lapse_count INTEGER NOT NULL DEFAULT 0,
		used_count INTEGER NOT NULL DEFAULT 0,
		consolidation_phase INTEGER NOT NULL DEFAULT 0,
		synaptic_tag_strength REAL NOT NULL DEFAULT 0,
		tag_created_at DATETIME,
		state INTEGER NOT NULL DEFAULT 0,
		superseded_by TEXT,
		index_stale INTEGER NOT NULL DEFAULT 0,
		archival_candidate INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_memories_scope ON memories(scope_key);
	CREATE INDEX IF NOT EXISTS idx_memories_state ON memories(state);

	CREATE TABLE IF NOT EXISTS memory_versions (
		memory_id TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		event INTEGER NOT NULL,
		snapshot TEXT NOT NULL,
		author TEXT,
		ts DATETIME NOT NULL,
		PRIMARY KEY (memory_id, version_number)
	);

	CREATE TABLE IF NOT EXISTS access_records (
		memory_id TEXT NOT NULL,
		ts DATETIME NOT NULL,
		kind INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_access_memory_id ON access_records(memory_id);

	CREATE TABLE IF NOT EXISTS graph_edges (
		source_memory_id TEXT NOT NULL,
		target_memory_id TEXT NOT NULL,
		relation_kind TEXT NOT NULL DEFAULT '',
		weight REAL NOT NULL DEFAULT 1.0,
		PRIMARY KEY (source_memory_id, target_memory_id, relation_kind)
	);
	CREATE INDEX IF NOT EXISTS idx_graph_source ON graph_edges(source_memory_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(content, content='memories', content_rowid='rowid');

	CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
	  INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
	  INSERT INTO memories_fts(memories_fts, rowid, content) VALUES('delete', old.rowid, old.content);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
	  INSERT INTO memories_fts(memories_fts, rowid, content) VALUES('delete', old.rowid, old.content);
	  INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return rerr.Wrap("storesqlite.migrate", rerr.Internal, err)
	}
	return nil
}

// --- vector codec, adapted from the teacher's internal/encoding vector BLOB format ---

func encodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, int32(len(v)))
	for _, f := range v {
		binary.Write(buf, binary.LittleEndian, f)
	}
	return buf.Bytes()
}

func decodeVector(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	buf := bytes.NewReader(data)
	var n int32
	binary.Read(buf, binary.LittleEndian, &n)
	if n <= 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		binary.Read(buf, binary.LittleEndian, &out[i])
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
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

func scopeFilter(filter map[string]any) string {
	key, _ := filter["scope"].(string)
	return key
}
