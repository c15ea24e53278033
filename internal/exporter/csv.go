// Package exporter writes aggregated tables back out as gradebook-import
// CSV files.
package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/sources"
	"gradecli/internal/table"
)

// CSVWriter writes tables to CSV files.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures CSV writing behavior.
type WriteOptions struct {
	// BOMPrefix writes a UTF-8 BOM so Excel recognizes the encoding.
	BOMPrefix bool
	// BrightspaceFormat restores the platform's line decoration: a '#'
	// prepended to the first cell of every data row and a trailing
	// "End-of-Line Indicator" column holding '#'.
	BrightspaceFormat bool
}

// WriteTable writes a table to filePath, creating parent directories as
// needed.
func (w *CSVWriter) WriteTable(filePath string, t *table.Table, options WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return apperrors.Wrap(apperrors.ErrExportFailed, fmt.Errorf("failed to create directory: %w", err))
	}

	file, err := os.Create(filePath)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrExportFailed, fmt.Errorf("failed to create file: %w", err))
	}
	defer file.Close()

	if options.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return apperrors.Wrap(apperrors.ErrExportFailed, fmt.Errorf("failed to write BOM: %w", err))
		}
	}

	writer := csv.NewWriter(file)

	header := t.Columns()
	if options.BrightspaceFormat {
		header = append(header, sources.EOLColumn)
	}
	if err := writer.Write(header); err != nil {
		return apperrors.Wrap(apperrors.ErrExportFailed, fmt.Errorf("failed to write header: %w", err))
	}

	cols := t.Columns()
	for row := 0; row < t.NumRows(); row++ {
		record := make([]string, 0, len(header))
		for i, name := range cols {
			cell := t.CellString(name, row)
			if options.BrightspaceFormat && i == 0 {
				cell = sources.LineDelimiter + cell
			}
			record = append(record, cell)
		}
		if options.BrightspaceFormat {
			record = append(record, sources.LineDelimiter)
		}
		if err := writer.Write(record); err != nil {
			return apperrors.Wrap(apperrors.ErrExportFailed, fmt.Errorf("failed to write row %d: %w", row, err))
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.Wrap(apperrors.ErrExportFailed, err)
	}

	w.logger.Info("Wrote CSV export",
		slog.String("path", filePath),
		slog.Int("rows", t.NumRows()),
		slog.Int("columns", len(cols)))
	return nil
}

// WriteGradebook writes a table as a Brightspace gradebook import file.
func (w *CSVWriter) WriteGradebook(filePath string, t *table.Table) error {
	return w.WriteTable(filePath, t, WriteOptions{BrightspaceFormat: true})
}
