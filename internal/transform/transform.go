// Package transform applies intermediate per-source calculations before
// aggregation: per-category gradebook metrics and column ratios.
package transform

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gradecli/internal/sources"
	"gradecli/internal/table"
)

// categoryRe extracts the category name from a Brightspace grade item
// header such as "Quiz 1 <Numeric MaxPoints:5 Category:Quizzes ...>".
var categoryRe = regexp.MustCompile(`Category:(\w[\w\s-]*?)\s+(?:CategoryWeight|>)`)

// identityColumns are gradebook columns that never hold grade items.
var identityColumns = map[string]bool{
	sources.UsernameColumn: true,
	"First Name":           true,
	"Last Name":            true,
	sources.EmailColumn:    true,
	"Sections":             true,
}

// CategoryMetadata records what a category's metric columns were
// computed from.
type CategoryMetadata struct {
	TotalItems int
	Columns    []string
}

// GradebookTransformer derives per-category engagement metrics from a
// loaded gradebook's item columns.
type GradebookTransformer struct {
	source     *sources.Source
	categories []string
	columns    map[string][]string
	metadata   map[string]CategoryMetadata
	logger     *slog.Logger
}

// NewGradebookTransformer parses category information out of the
// gradebook's column headers.
func NewGradebookTransformer(src *sources.Source, logger *slog.Logger) *GradebookTransformer {
	if logger == nil {
		logger = slog.Default()
	}
	tr := &GradebookTransformer{
		source:   src,
		columns:  make(map[string][]string),
		metadata: make(map[string]CategoryMetadata),
		logger:   logger,
	}
	for _, col := range src.Data.Columns() {
		if identityColumns[col] {
			continue
		}
		m := categoryRe.FindStringSubmatch(col)
		if m == nil {
			continue
		}
		category := strings.TrimSpace(m[1])
		if _, seen := tr.columns[category]; !seen {
			tr.categories = append(tr.categories, category)
		}
		tr.columns[category] = append(tr.columns[category], col)
	}
	logger.Info("Parsed gradebook categories", slog.Int("categories", len(tr.categories)))
	return tr
}

// Categories returns the parsed category names in column order.
func (tr *GradebookTransformer) Categories() []string {
	return append([]string(nil), tr.categories...)
}

// AddCategoryMetrics adds, for each named category (all when nil):
//
//   - "{category}_positive":   count of scores that are numeric and > 0
//   - "{category}_exemptions": count of "Exempt" cells
//
// and records the category's total item count in the metadata. Returns
// the transformer for chaining.
func (tr *GradebookTransformer) AddCategoryMetrics(categories []string) *GradebookTransformer {
	if categories == nil {
		categories = tr.categories
	}
	for _, category := range categories {
		cols, ok := tr.columns[category]
		if !ok {
			tr.logger.Warn("Category not found in gradebook", slog.String("category", category))
			continue
		}

		rows := tr.source.Data.NumRows()
		positive := make([]float64, rows)
		exemptions := make([]float64, rows)
		for _, name := range cols {
			col := tr.source.Data.Column(name)
			for r := 0; r < rows; r++ {
				if col.Kind == table.Float {
					if !col.Nulls[r] && col.Floats[r] > 0 {
						positive[r]++
					}
					continue
				}
				cell := strings.TrimSpace(col.Strings[r])
				if strings.EqualFold(cell, "Exempt") {
					exemptions[r]++
					continue
				}
				if v, err := strconv.ParseFloat(cell, 64); err == nil && v > 0 {
					positive[r]++
				}
			}
		}

		_ = tr.source.Data.SetFloatColumn(category+"_positive", positive, nil)
		_ = tr.source.Data.SetFloatColumn(category+"_exemptions", exemptions, nil)
		tr.metadata[category] = CategoryMetadata{TotalItems: len(cols), Columns: cols}

		tr.logger.Info("Added category metrics",
			slog.String("category", category),
			slog.Int("total_items", len(cols)))
	}
	return tr
}

// Metadata returns the per-category metadata recorded by
// AddCategoryMetrics.
func (tr *GradebookTransformer) Metadata() map[string]CategoryMetadata {
	return tr.metadata
}

// CountPositive stores, for each row, the count of values above
// threshold across the named numeric columns of a source's table.
func CountPositive(src *sources.Source, columns []string, targetCol string, threshold float64) error {
	rows := src.Data.NumRows()
	counts := make([]float64, rows)
	for _, name := range columns {
		col := src.Data.Column(name)
		if col == nil {
			return errNotNumeric(name)
		}
		for r := 0; r < rows; r++ {
			switch col.Kind {
			case table.Float:
				if !col.Nulls[r] && col.Floats[r] > threshold {
					counts[r]++
				}
			case table.String:
				if v, err := strconv.ParseFloat(strings.TrimSpace(col.Strings[r]), 64); err == nil && v > threshold {
					counts[r]++
				}
			}
		}
	}
	return src.Data.SetFloatColumn(targetCol, counts, nil)
}

// ComputeRatio stores numerator/denominator under targetCol on a
// source's table. Zero denominators and any non-finite result become
// fillValue.
func ComputeRatio(src *sources.Source, numeratorCol, denominatorCol, targetCol string, fillValue float64) error {
	num := src.Data.Column(numeratorCol)
	den := src.Data.Column(denominatorCol)
	if num == nil || num.Kind != table.Float {
		return errNotNumeric(numeratorCol)
	}
	if den == nil || den.Kind != table.Float {
		return errNotNumeric(denominatorCol)
	}

	values := make([]float64, src.Data.NumRows())
	for i := range values {
		if num.Nulls[i] || den.Nulls[i] {
			values[i] = fillValue
			continue
		}
		v := num.Floats[i] / den.Floats[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = fillValue
		}
		values[i] = v
	}
	return src.Data.SetFloatColumn(targetCol, values, nil)
}

type ratioError struct{ column string }

func (e ratioError) Error() string {
	return "column " + strconv.Quote(e.column) + " is missing or not numeric"
}

func errNotNumeric(column string) error { return ratioError{column: column} }
