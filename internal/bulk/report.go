package bulk

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
)

type reportRow struct {
	Path   string `csv:"path"`
	Size   int64  `csv:"size"`
	State  string `csv:"state"`
	Detail string `csv:"detail,omitempty"`
}

// WriteReport writes every file record of the run as CSV, one row per file,
// in manifest order.
func (e *Encryptor) WriteReport(ctx context.Context, runID string, w io.Writer) error {
	records, err := e.repo.ListByRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("listing run files: %w", err)
	}

	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	for _, rec := range records {
		row := reportRow{
			Path:   rec.Path,
			Size:   rec.Size,
			State:  string(rec.State),
			Detail: rec.Detail,
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encoding report row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
