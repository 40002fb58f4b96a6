package storesqlite

import (
	"context"
	"sort"

	"github.com/rookmem/rook/pkg/capability"
	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
)

// CreateCollection is a no-op: this Store keeps a single flat memories table
// rather than the teacher's named-collection scheme, since every memory
// already partitions by scope. It exists to satisfy capability.VectorStore
// for callers that provision a named collection up front.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension int) error {
	return nil
}

// Upsert stores (or replaces) a memory's embedding. The live row itself is
// already the source of truth (written by Put/Update); this just keeps the
// embedding column current when a caller indexes out of band.
func (s *Store) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding=? WHERE id=?`, encodeVector(vector), id)
	if err != nil {
		return rerr.Wrap("vector_upsert", rerr.Internal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rerr.Wrap("vector_upsert", rerr.NotFound, errNotFoundVector(id))
	}
	return nil
}

type vecNotFoundErr string

func (e vecNotFoundErr) Error() string { return "memory " + string(e) + " has no row to upsert an embedding onto" }

func errNotFoundVector(id string) error { return vecNotFoundErr(id) }

// Search scores every active memory in the scope named by filter["scope"]
// against vector using cosine similarity and returns the top k. SQLite has
// no native vector index, so the row scan is unavoidable regardless of scan
// size; an ephemeral in-memory ANN index was tried over the scanned
// candidate set and dropped (see DESIGN.md) since it only sped up the
// in-memory sort after the scan, not the scan itself, which is where the
// cost actually lives.
func (s *Store) Search(ctx context.Context, vector []float32, k int, filter map[string]any) ([]capability.VectorMatch, error) {
	scopeKey := scopeFilter(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM memories WHERE state=? AND (?='' OR scope_key=?)`, int(rmodel.Active), scopeKey, scopeKey)
	if err != nil {
		return nil, rerr.Wrap("vector_search", rerr.Internal, err)
	}
	defer rows.Close()

	byID := map[string]capability.VectorMatch{}
	for rows.Next() {
		var id string
		var embBytes []byte
		if err := rows.Scan(&id, &embBytes); err != nil {
			return nil, rerr.Wrap("vector_search", rerr.Internal, err)
		}
		emb := decodeVector(embBytes)
		if len(emb) == 0 {
			continue
		}
		byID[id] = capability.VectorMatch{ID: id, Embedding: emb}
	}

	if k <= 0 {
		k = len(byID)
	}

	matches := make([]capability.VectorMatch, 0, len(byID))
	for _, m := range byID {
		m.Score = cosine(vector, m.Embedding)
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Get returns the stored embedding for id, if any.
func (s *Store) Get(ctx context.Context, id string) (*capability.VectorMatch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT embedding FROM memories WHERE id=?`, id)
	var embBytes []byte
	if err := row.Scan(&embBytes); err != nil {
		return nil, rerr.Wrap("vector_get", rerr.NotFound, err)
	}
	return &capability.VectorMatch{ID: id, Embedding: decodeVector(embBytes)}, nil
}

// Delete clears id's stored embedding; the live row is removed by History,
// not this method, so a memory can outlive its vector index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding=NULL WHERE id=?`, id)
	return rerr.Wrap("vector_delete", rerr.Internal, err)
}

// List returns up to limit ids matching filter, newest first.
func (s *Store) List(ctx context.Context, filter map[string]any, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	scopeKey := scopeFilter(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM memories WHERE state=? AND (?='' OR scope_key=?) ORDER BY updated_at DESC LIMIT ?`,
		int(rmodel.Active), scopeKey, scopeKey, limit)
	if err != nil {
		return nil, rerr.Wrap("vector_list", rerr.Internal, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, rerr.Wrap("vector_list", rerr.Internal, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
