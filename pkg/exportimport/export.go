package exportimport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/rookmem/rook/pkg/rerr"
	"github.com/rookmem/rook/pkg/rmodel"
)

// maxExportRows bounds a single GetAll call. The History interface has no
// cursor/offset parameter, only a limit, so a full-scope export asks for
// everything up front rather than paging; this is large enough that no
// realistic single-scope memory set exceeds it.
const maxExportRows = 1_000_000

// ExportJSONL writes every active memory in scope to w, one JSON object per
// line, in the stable field order spec'd in §6.
func ExportJSONL(ctx context.Context, hist rmodel.History, scope rmodel.Scope, w io.Writer) (ExportStats, error) {
	memories, err := hist.GetAll(ctx, scope, maxExportRows)
	if err != nil {
		return ExportStats{}, rerr.Wrap("export_jsonl", rerr.Internal, err)
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	stats := ExportStats{}
	for _, m := range memories {
		if err := enc.Encode(toRecord(m)); err != nil {
			return stats, rerr.Wrap("export_jsonl", rerr.Internal, err)
		}
		stats.Exported++
	}
	if err := bw.Flush(); err != nil {
		return stats, rerr.Wrap("export_jsonl", rerr.Internal, err)
	}
	return stats, nil
}
