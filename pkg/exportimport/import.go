package exportimport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
)

// ImportJSONL reads one Record per line from r and Puts each as a new
// memory. A line whose id already exists in hist is counted Skipped rather
// than overwritten, since import must never clobber a live memory silently.
// A line that fails to parse or write is counted Conflicted with its error
// recorded, and the import continues rather than aborting the batch.
func ImportJSONL(ctx context.Context, hist rmodel.History, r io.Reader) (MigrationReport, error) {
	return importLines(ctx, hist, r, func(line []byte) (*rmodel.Memory, error) {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, err
		}
		return rec.toMemory(), nil
	})
}

// ImportMem0JSONL reads one mem0 export line per line from r and maps it
// into this system's memory shape per §6 (memory_id→id, data→content,
// metadata.user_id→scope.user_id), preserving created_at/updated_at.
func ImportMem0JSONL(ctx context.Context, hist rmodel.History, r io.Reader) (MigrationReport, error) {
	return importLines(ctx, hist, r, func(line []byte) (*rmodel.Memory, error) {
		var rec Mem0Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, err
		}
		return rec.toMemory(), nil
	})
}

func importLines(ctx context.Context, hist rmodel.History, r io.Reader, decode func([]byte) (*rmodel.Memory, error)) (MigrationReport, error) {
	report := MigrationReport{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		report.Total++

		m, err := decode(append([]byte(nil), line...))
		if err != nil {
			report.recordError("<unparseable>", err)
			continue
		}

		if _, err := hist.Get(ctx, m.ID); err == nil {
			report.Skipped++
			continue
		} else if rerr.KindOf(err) != rerr.NotFound && !errors.Is(err, rerr.ErrNotFound) {
			report.recordError(m.ID, err)
			continue
		}

		if err := hist.Put(ctx, m); err != nil {
			report.recordError(m.ID, err)
			continue
		}
		report.Imported++
	}
	if err := scanner.Err(); err != nil {
		return report, rerr.Wrap("import_jsonl", rerr.Internal, err)
	}
	return report, nil
}
