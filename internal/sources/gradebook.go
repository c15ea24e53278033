package sources

import (
	"log/slog"
	"strings"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/table"
)

// LoadGradebook reads a Brightspace gradebook export (CSV or XLSX).
//
// Brightspace prepends '#' to the first cell of every row and appends an
// "End-of-Line Indicator" column holding '#'. Both decorations are
// stripped on load; the exporter restores them on write.
func LoadGradebook(path string) (*Source, error) {
	header, records, err := readRecords(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	header, records = stripLineIndicators(header, records)

	data, err := table.FromRecords(header, records)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	slog.Info("Loaded gradebook",
		slog.String("path", path),
		slog.Int("students", data.NumRows()),
		slog.Int("columns", len(data.Columns())))

	return &Source{
		Data: data,
		Metadata: map[string]any{
			"source":           path,
			"type":             "brightspace_gradebook",
			"original_columns": data.Columns(),
		},
	}, nil
}

// stripLineIndicators removes the leading '#' from the first cell of each
// record and drops the end-of-line indicator column if present.
func stripLineIndicators(header []string, records [][]string) ([]string, [][]string) {
	eolIdx := -1
	for i, name := range header {
		if strings.TrimSpace(name) == EOLColumn {
			eolIdx = i
			break
		}
	}
	if eolIdx >= 0 {
		header = append(append([]string(nil), header[:eolIdx]...), header[eolIdx+1:]...)
	}
	out := make([][]string, len(records))
	for r, rec := range records {
		rec = append([]string(nil), rec...)
		if eolIdx >= 0 && eolIdx < len(rec) {
			rec = append(rec[:eolIdx], rec[eolIdx+1:]...)
		}
		if len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], LineDelimiter)
		}
		out[r] = rec
	}
	return header, out
}
