// Package aggregator combines resolved engagement sources into a single
// wide table keyed on Username, evaluates configured output columns over
// it, and validates the result.
package aggregator

import (
	"fmt"
	"log/slog"
	"strings"

	"gradecli/internal/config"
	apperrors "gradecli/internal/errors"
	"gradecli/internal/sources"
	"gradecli/internal/table"
)

// Aggregator holds one run's sources, column configuration and optional
// base gradebook. It owns its merged table exclusively and mutates it in
// place across pipeline stages; it is not safe for concurrent use.
type Aggregator struct {
	names       []string
	sources     map[string]*sources.Source
	columns     []config.ColumnConfig
	base        *table.Table
	baseColumns []string
	merged      *table.Table
	report      *Report
	zeroWarnPct float64
	logger      *slog.Logger
}

// New creates an aggregator for the given output column configuration.
func New(columns []config.ColumnConfig, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		sources:     make(map[string]*sources.Source),
		columns:     columns,
		zeroWarnPct: 50.0,
		logger:      logger,
	}
}

// SetZeroWarnPercent overrides the zero-rate warning threshold.
func (a *Aggregator) SetZeroWarnPercent(pct float64) {
	if pct > 0 {
		a.zeroWarnPct = pct
	}
}

// SetBase registers the base gradebook table. Merged rows are filtered
// down to its student population and its column order seeds the output.
func (a *Aggregator) SetBase(base *table.Table) {
	a.base = base
	a.baseColumns = base.Columns()
}

// AddSource registers a resolved source under a name. The name prefixes
// the source's columns after merging and is how column configurations
// refer to it. Registration order is the join order.
func (a *Aggregator) AddSource(name string, src *sources.Source) error {
	if !src.Data.HasColumn(sources.UsernameColumn) {
		return apperrors.Wrapf(apperrors.ErrIdentityResolution,
			"source %q has no %q column; resolve identity first", name, sources.UsernameColumn)
	}
	if _, exists := a.sources[name]; !exists {
		a.names = append(a.names, name)
	}
	a.sources[name] = src
	a.logger.Info("Added source",
		slog.String("source", name),
		slog.Int("students", src.Data.NumRows()))
	return nil
}

// Merge outer-joins every registered source on Username, prefixing each
// source's columns with its name. With a base gradebook set, the result
// is filtered back down to the base population (usernames compared with
// any leading '#' stripped) and base columns come first. All numeric
// columns have nulls filled with 0 so formula arithmetic never
// propagates missing values.
func (a *Aggregator) Merge() (*table.Table, error) {
	if len(a.names) == 0 {
		return nil, apperrors.ErrNoSources
	}

	var merged *table.Table
	if a.base != nil {
		merged = a.base.Clone()
		a.logger.Info("Starting with base gradebook", slog.Int("students", merged.NumRows()))
	} else {
		first := a.sources[a.names[0]]
		merged = first.Data.Select([]string{sources.UsernameColumn})
		a.logger.Info("Starting with first source",
			slog.String("source", a.names[0]),
			slog.Int("students", merged.NumRows()))
	}

	for _, name := range a.names {
		src := a.sources[name]
		prefixed := src.Data.Clone()
		for _, col := range prefixed.Columns() {
			if col == sources.UsernameColumn {
				continue
			}
			if err := prefixed.RenameColumn(col, name+"_"+col); err != nil {
				return nil, fmt.Errorf("failed to prefix column %q from source %q: %w", col, name, err)
			}
		}

		before := merged.NumRows()
		var err error
		merged, err = outerJoin(merged, prefixed, sources.UsernameColumn)
		if err != nil {
			return nil, fmt.Errorf("failed to merge source %q: %w", name, err)
		}
		a.logger.Info("Merged source",
			slog.String("source", name),
			slog.Int("students_before", before),
			slog.Int("students_after", merged.NumRows()))
	}

	if a.base != nil {
		baseUsers := make(map[string]struct{})
		baseCol := a.base.Column(sources.UsernameColumn)
		if baseCol == nil || baseCol.Kind != table.String {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig,
				"base gradebook has no %q column", sources.UsernameColumn)
		}
		for _, u := range baseCol.Strings {
			baseUsers[strings.TrimLeft(u, sources.LineDelimiter)] = struct{}{}
		}

		userCol := merged.Column(sources.UsernameColumn)
		keep := make([]bool, merged.NumRows())
		dropped := 0
		for i, u := range userCol.Strings {
			_, ok := baseUsers[strings.TrimLeft(u, sources.LineDelimiter)]
			keep[i] = ok
			if !ok {
				dropped++
			}
		}
		if dropped > 0 {
			before := merged.NumRows()
			merged = filterRows(merged, keep)
			a.logger.Info("Filtered to base gradebook students",
				slog.Int("students_before", before),
				slog.Int("students_after", merged.NumRows()),
				slog.Int("removed", dropped))
		}
	}

	merged.FillNulls(0.0)
	a.merged = merged
	return merged, nil
}

// outerJoin performs a full outer join of left and right on the key
// column: every key present in either side appears exactly once, left
// keys first in their order, then unmatched right keys in their order.
func outerJoin(left, right *table.Table, key string) (*table.Table, error) {
	leftKey := left.Column(key)
	rightKey := right.Column(key)
	if leftKey == nil || leftKey.Kind != table.String {
		return nil, fmt.Errorf("left table has no string column %q", key)
	}
	if rightKey == nil || rightKey.Kind != table.String {
		return nil, fmt.Errorf("right table has no string column %q", key)
	}

	leftIndex := indexByKey(leftKey.Strings)
	rightIndex := indexByKey(rightKey.Strings)

	keys := append([]string(nil), dedupe(leftKey.Strings)...)
	for _, k := range dedupe(rightKey.Strings) {
		if _, ok := leftIndex[k]; !ok {
			keys = append(keys, k)
		}
	}

	out := table.New()
	if err := out.AddStringColumn(key, keys); err != nil {
		return nil, err
	}

	copySide := func(src *table.Table, index map[string]int) error {
		for _, name := range src.Columns() {
			if name == key {
				continue
			}
			col := src.Column(name)
			if col.Kind == table.Float {
				values := make([]float64, len(keys))
				nulls := make([]bool, len(keys))
				for i, k := range keys {
					if row, ok := index[k]; ok {
						values[i] = col.Floats[row]
						nulls[i] = col.Nulls[row]
					} else {
						nulls[i] = true
					}
				}
				if err := out.AddFloatColumn(name, values, nulls); err != nil {
					return err
				}
				continue
			}
			values := make([]string, len(keys))
			for i, k := range keys {
				if row, ok := index[k]; ok {
					values[i] = col.Strings[row]
				}
			}
			if err := out.AddStringColumn(name, values); err != nil {
				return err
			}
		}
		return nil
	}

	if err := copySide(left, leftIndex); err != nil {
		return nil, err
	}
	if err := copySide(right, rightIndex); err != nil {
		return nil, err
	}
	return out, nil
}

// indexByKey maps each key to its first row index.
func indexByKey(keys []string) map[string]int {
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		if _, seen := index[k]; !seen {
			index[k] = i
		}
	}
	return index
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	var out []string
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// filterRows returns a copy of t holding only rows where keep is true.
func filterRows(t *table.Table, keep []bool) *table.Table {
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	out := table.New()
	for _, name := range t.Columns() {
		col := t.Column(name)
		if col.Kind == table.Float {
			values := make([]float64, 0, kept)
			nulls := make([]bool, 0, kept)
			for i, k := range keep {
				if k {
					values = append(values, col.Floats[i])
					nulls = append(nulls, col.Nulls[i])
				}
			}
			_ = out.AddFloatColumn(name, values, nulls)
			continue
		}
		values := make([]string, 0, kept)
		for i, k := range keep {
			if k {
				values = append(values, col.Strings[i])
			}
		}
		_ = out.AddStringColumn(name, values)
	}
	return out
}

// MergedTable returns the current merged table, or nil before Merge.
func (a *Aggregator) MergedTable() *table.Table { return a.merged }
