// Package sources loads heterogeneous academic data exports into a common
// tabular shape and resolves a canonical student identity across them.
//
// Each loader is a free function producing a Source value; there is no
// loader type hierarchy. Identity resolution is a separate pure step so
// every variant shares the same derivation rule.
package sources

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/table"
)

const (
	// UsernameColumn is the canonical student key column.
	UsernameColumn = "Username"
	// EmailColumn is the fallback identity column; the key is derived
	// from the address's local part.
	EmailColumn = "Email"
	// EOLColumn is Brightspace's trailing end-of-line marker column.
	EOLColumn = "End-of-Line Indicator"
	// LineDelimiter is the character Brightspace prepends to the first
	// cell of each row and writes into the end-of-line column.
	LineDelimiter = "#"
)

// Source is one named provider of tabular engagement data.
type Source struct {
	Data     *table.Table
	Metadata map[string]any
}

// Load reads a source file and dispatches on the declared type.
func Load(sourceType, path string) (*Source, error) {
	switch sourceType {
	case "gradebook":
		return LoadGradebook(path)
	case "attendance":
		return LoadAttendance(path)
	case "edstem":
		return LoadEdstemAnalytics(path)
	case "officehours":
		return LoadOfficeHours(path)
	case "roster":
		return LoadRoster(path)
	case "scoresheet":
		return LoadScoresheet(path)
	default:
		return nil, apperrors.Wrapf(apperrors.ErrUnknownSourceType, "unknown source type %q", sourceType)
	}
}

// Resolve normalizes the source's student key to targetCol, mutating the
// source in place. If the column already exists this is a no-op apart
// from recording the resolved column name, so repeated calls are safe.
// Otherwise the key is derived from the Email column's local part.
func Resolve(s *Source, targetCol string) error {
	if targetCol == "" {
		targetCol = UsernameColumn
	}
	if !s.Data.HasColumn(targetCol) {
		email := s.Data.Column(EmailColumn)
		if email == nil || email.Kind != table.String {
			return apperrors.Wrapf(apperrors.ErrIdentityResolution,
				"source has neither %q nor %q column", targetCol, EmailColumn)
		}
		usernames := make([]string, len(email.Strings))
		for i, addr := range email.Strings {
			usernames[i] = localPart(addr)
		}
		if err := s.Data.AddStringColumn(targetCol, usernames); err != nil {
			return apperrors.Wrap(apperrors.ErrIdentityResolution, err)
		}
	}
	s.Metadata["username_col"] = targetCol
	return nil
}

// localPart returns the part of an email address before the first '@',
// or the whole string when no '@' is present.
func localPart(addr string) string {
	if i := strings.Index(addr, "@"); i >= 0 {
		return addr[:i]
	}
	return addr
}

// Students returns the set of unique non-empty usernames in the source.
// Resolve must have been called first.
func (s *Source) Students() map[string]struct{} {
	col := UsernameColumn
	if v, ok := s.Metadata["username_col"].(string); ok {
		col = v
	}
	users := make(map[string]struct{})
	c := s.Data.Column(col)
	if c == nil || c.Kind != table.String {
		return users
	}
	for _, u := range c.Strings {
		if u != "" {
			users[u] = struct{}{}
		}
	}
	return users
}

// LoadDir loads every CSV file in a directory with the given loader and
// stacks the results by column union. Files that fail to load are skipped
// with a warning; at least one file must succeed.
func LoadDir(dir string, load func(string) (*Source, error)) (*Source, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, apperrors.Wrapf(apperrors.ErrSourceLoad, "directory not found: %s", dir)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrSourceLoad, "no CSV files found in %s", dir)
	}

	var frames []*table.Table
	for _, path := range paths {
		src, err := load(path)
		if err != nil {
			slog.Warn("Failed to load source file, skipping",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		frames = append(frames, src.Data)
	}
	if len(frames) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrSourceLoad, "no valid data loaded from %s", dir)
	}

	combined := table.Concat(frames...)
	slog.Info("Loaded directory source",
		slog.String("dir", dir),
		slog.Int("files_loaded", len(frames)),
		slog.Int("rows", combined.NumRows()))
	return &Source{
		Data: combined,
		Metadata: map[string]any{
			"source":       dir,
			"files_loaded": len(frames),
		},
	}, nil
}

// readRecords reads a CSV or XLSX file into a header row plus records.
func readRecords(path string) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVRecords(path)
	case ".xlsx", ".xls":
		return readXLSXRecords(path)
	default:
		return nil, nil, apperrors.Wrapf(apperrors.ErrUnsupportedFileType,
			"unsupported file type %q", filepath.Ext(path))
	}
}

func readCSVRecords(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("empty file: %s", path)
	}
	header := rows[0]
	// Strip a UTF-8 BOM written by Excel-compatible exporters.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, rows[1:], nil
}

func readXLSXRecords(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("no sheets in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("empty sheet in %s", path)
	}
	return rows[0], rows[1:], nil
}
