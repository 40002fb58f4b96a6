package storesqlite

import (
	"context"

	"github.com/rookmem/rook/pkg/capability"
	"github.com/rookmem/rook/pkg/rerr"
)

// UpsertEdge writes a directed, weighted edge; self-loops are rejected per
// the graph edge invariant. Grounded on pkg/graph/graph.go's GraphEdge shape.
func (s *Store) UpsertEdge(ctx context.Context, sourceID, targetID, relationKind string, weight float64) error {
	if sourceID == targetID {
		return rerr.New("upsert_edge", rerr.Parse, "graph edges cannot be self-loops")
	}
	if weight <= 0 || weight > 1 {
		return rerr.New("upsert_edge", rerr.Parse, "edge weight must be in (0, 1]")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_edges (source_memory_id, target_memory_id, relation_kind, weight) VALUES (?,?,?,?)
		ON CONFLICT(source_memory_id, target_memory_id, relation_kind) DO UPDATE SET weight=excluded.weight`,
		sourceID, targetID, relationKind, weight)
	return rerr.Wrap("upsert_edge", rerr.Internal, err)
}

// Neighbours returns sourceID's outgoing edges, optionally capped at
// maxDegree (0 means unbounded), highest weight first.
func (s *Store) Neighbours(ctx context.Context, id string, maxDegree int) ([]capability.GraphNeighbour, error) {
	query := `SELECT target_memory_id, weight FROM graph_edges WHERE source_memory_id=? ORDER BY weight DESC`
	args := []any{id}
	if maxDegree > 0 {
		query += ` LIMIT ?`
		args = append(args, maxDegree)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rerr.Wrap("neighbours", rerr.Internal, err)
	}
	defer rows.Close()

	var out []capability.GraphNeighbour
	for rows.Next() {
		var n capability.GraphNeighbour
		if err := rows.Scan(&n.ID, &n.Weight); err != nil {
			return nil, rerr.Wrap("neighbours", rerr.Internal, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// DeleteSubtreeForScope removes every edge with at least one endpoint in
// scopeKey. DeleteAll does not call it; edges are left in place there.
func (s *Store) DeleteSubtreeForScope(ctx context.Context, scopeKey string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM graph_edges WHERE source_memory_id IN (SELECT id FROM memories WHERE scope_key=?)
		   OR target_memory_id IN (SELECT id FROM memories WHERE scope_key=?)`, scopeKey, scopeKey)
	return rerr.Wrap("delete_subtree_for_scope", rerr.Internal, err)
}
