package storesqlite

import (
	"context"

	"github.com/rookmem/rook/pkg/capability"
	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
)

// Index is a no-op: memories_fts is kept in sync by the INSERT/UPDATE/DELETE
// triggers installed in migrate(), mirroring the teacher's chunks_fts
// pattern in store_init.go. A caller only needs this method to satisfy
// capability.LexicalIndex when the row wasn't written through History.
func (s *Store) Index(ctx context.Context, id string, text string, fields map[string]string) error {
	return nil
}

// Search runs an FTS5 BM25 query scoped by filter["scope"].
func (s *Store) Search(ctx context.Context, query string, k int, filter map[string]any) ([]capability.LexicalMatch, error) {
	if query == "" {
		return nil, nil
	}
	scopeKey := scopeFilter(filter)
	if k <= 0 {
		k = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, bm25(memories_fts) FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ? AND m.state=? AND (?='' OR m.scope_key=?)
		ORDER BY bm25(memories_fts) LIMIT ?`,
		query, int(rmodel.Active), scopeKey, scopeKey, k)
	if err != nil {
		return nil, rerr.Wrap("lexical_search", rerr.Internal, err)
	}
	defer rows.Close()

	var out []capability.LexicalMatch
	for rows.Next() {
		var id string
		var bm25 float64
		if err := rows.Scan(&id, &bm25); err != nil {
			return nil, rerr.Wrap("lexical_search", rerr.Internal, err)
		}
		// FTS5's bm25() is a cost (more negative = better match); negate so
		// higher is better, consistent with every other ranked source the
		// fusion step combines it with.
		out = append(out, capability.LexicalMatch{ID: id, Score: -bm25})
	}
	return out, nil
}

// Delete is a no-op: the FTS row follows the live row through the
// memories_au/memories_ad triggers. It does not de-index a memory whose
// live row stays in place.
func (s *Store) Delete(ctx context.Context, id string) error {
	return nil
}
