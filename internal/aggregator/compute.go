package aggregator

import (
	"log/slog"
	"math"

	"gradecli/internal/config"
	"gradecli/internal/table"
)

// ComputeColumns evaluates every configured output column over the
// merged table, in configuration order so later formulas may reference
// earlier outputs. A failed entry never aborts the run: the offending
// column is filled with zeros and the failure is logged; the validator's
// zero-rate warning makes such columns visible downstream.
func (a *Aggregator) ComputeColumns() (*table.Table, error) {
	if a.merged == nil {
		if _, err := a.Merge(); err != nil {
			return nil, err
		}
	}

	for _, cfg := range a.columns {
		a.logger.Info("Computing column", slog.String("column", cfg.Name))
		values := a.resolveColumn(cfg)

		if cfg.Scale != nil {
			for i := range values {
				values[i] *= *cfg.Scale
			}
		}
		if cfg.ClipUpper != nil {
			for i := range values {
				if values[i] > *cfg.ClipUpper {
					values[i] = *cfg.ClipUpper
				}
			}
		}
		if cfg.ClipLower != nil {
			for i := range values {
				if values[i] < *cfg.ClipLower {
					values[i] = *cfg.ClipLower
				}
			}
		}
		// NaN and infinities (zero denominators) are neutralized here
		// along with nulls, so a division mishap in one formula cannot
		// poison the export.
		for i := range values {
			if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
				values[i] = 0.0
			}
		}

		if err := a.merged.SetFloatColumn(cfg.Name, values, nil); err != nil {
			return nil, err
		}
		a.logger.Info("Computed column",
			slog.String("column", cfg.Name),
			slog.Float64("mean", mean(values)),
			slog.Float64("min", minOf(values)),
			slog.Float64("max", maxOf(values)))
	}
	return a.merged, nil
}

// resolveColumn produces the raw (pre-scale) values for one entry.
func (a *Aggregator) resolveColumn(cfg config.ColumnConfig) []float64 {
	rows := a.merged.NumRows()

	if cfg.Formula != "" {
		values, err := evalFormula(cfg.Formula, rows, a.resolveReference)
		if err != nil {
			a.logger.Error("Failed to evaluate formula, filling with zeros",
				slog.String("column", cfg.Name),
				slog.String("formula", cfg.Formula),
				slog.String("error", err.Error()))
			return make([]float64, rows)
		}
		return values
	}

	mergedName := cfg.Source + "_" + cfg.Column
	col := a.merged.Column(mergedName)
	if col == nil || col.Kind != table.Float {
		a.logger.Warn("Column not found, filling with zeros",
			slog.String("column", cfg.Name),
			slog.String("wanted", mergedName))
		return make([]float64, rows)
	}
	values := make([]float64, rows)
	copy(values, col.Floats)
	return values
}

// resolveReference maps a formula identifier to a merged-table column.
// Resolution order: an exact merged column name (covers already-prefixed
// names and previously computed outputs), then the name prefixed with
// each registered source in registration order.
func (a *Aggregator) resolveReference(name string) ([]float64, bool) {
	if col := a.merged.Column(name); col != nil && col.Kind == table.Float {
		return col.Floats, true
	}
	for _, src := range a.names {
		if col := a.merged.Column(src + "_" + name); col != nil && col.Kind == table.Float {
			return col.Floats, true
		}
	}
	return nil, false
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
