package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"brandreport-service/internal/scope"
	"brandreport-service/internal/store"
)

// csvHeader is the fixed export header. Column order is part of the export
// contract and must not depend on the caller or the result set.
var csvHeader = []string{
	"Brand Name",
	"Master Outlet ID",
	"Store ID",
	"Client Store ID",
	"Store Manager Name",
	"Store Manager Number",
	"Login Type",
	"Login Date",
}

// EventSource is the slice of the store the exporter needs.
type EventSource interface {
	StreamEvents(ctx context.Context, sc scope.Scope, batchSize int, fn func([]store.EventRow) error) error
}

// CSVExporter serializes a scoped event set as CSV, generated incrementally:
// memory use is bounded by the batch size, not the result-set size. There is
// no intermediate file to clean up on any exit path.
type CSVExporter struct {
	src       EventSource
	batchSize int
}

// NewCSVExporter creates an exporter reading from src in batches of batchSize.
func NewCSVExporter(src EventSource, batchSize int) *CSVExporter {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &CSVExporter{src: src, batchSize: batchSize}
}

// Write streams the scoped rows to w and returns the number of data rows
// written. An empty result set still produces a header-only document:
// whether "no rows" is an error is the caller's decision, not the
// exporter's. Cancellation of ctx stops row production between batches.
func (x *CSVExporter) Write(ctx context.Context, w io.Writer, sc scope.Scope) (int64, error) {
	bw := bufio.NewWriter(w)
	if err := writeRecord(bw, csvHeader); err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}

	var written int64
	err := x.src.StreamEvents(ctx, sc, x.batchSize, func(rows []store.EventRow) error {
		for i := range rows {
			record := []string{
				rows[i].BrandName,
				rows[i].MasterOutletID,
				rows[i].StoreID,
				rows[i].ClientStoreID,
				rows[i].ManagerName,
				rows[i].ManagerNumber,
				string(rows[i].LoginType),
				rows[i].Date,
			}
			if err := writeRecord(bw, record); err != nil {
				return err
			}
			written++
		}
		// Flush per batch so a slow consumer applies backpressure instead of
		// the whole result set accumulating in the buffer.
		return bw.Flush()
	})
	if err != nil {
		return written, err
	}
	return written, bw.Flush()
}

// writeRecord writes one CSV line with every field quoted.
func writeRecord(bw *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := bw.WriteByte(','); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('"'); err != nil {
			return err
		}
		if _, err := bw.WriteString(strings.ReplaceAll(field, `"`, `""`)); err != nil {
			return err
		}
		if err := bw.WriteByte('"'); err != nil {
			return err
		}
	}
	return bw.WriteByte('\n')
}

// Filename builds the attachment name for a download: prefix, optional date
// range, and the generation date.
func Filename(prefix string, sc scope.Scope) string {
	dateRange := "all_time"
	if sc.StartDate != nil && sc.EndDate != nil {
		dateRange = fmt.Sprintf("%s_to_%s",
			sc.StartDate.Format("2006-01-02"), sc.EndDate.Format("2006-01-02"))
	} else if sc.StartDate != nil {
		dateRange = "from_" + sc.StartDate.Format("2006-01-02")
	} else if sc.EndDate != nil {
		dateRange = "until_" + sc.EndDate.Format("2006-01-02")
	}
	return fmt.Sprintf("%s_%s_%s.csv", prefix, dateRange, time.Now().Format("2006-01-02"))
}
