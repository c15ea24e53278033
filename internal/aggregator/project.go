package aggregator

import (
	"log/slog"
	"strings"

	"gradecli/internal/sources"
	"gradecli/internal/table"
)

// ToGradebook projects the merged table down to its export shape: the
// base gradebook's columns (when a base was set) followed by configured
// output columns, or Username plus configured columns otherwise. With
// keepSourceColumns, every source-prefixed column is appended for
// auditing. All other intermediate columns are dropped.
func (a *Aggregator) ToGradebook(keepSourceColumns bool) (*table.Table, error) {
	if a.merged == nil {
		if _, err := a.ComputeColumns(); err != nil {
			return nil, err
		}
	}

	var keep []string
	if a.base != nil {
		keep = append(keep, a.baseColumns...)
		present := make(map[string]bool, len(keep))
		for _, c := range keep {
			present[c] = true
		}
		for _, cfg := range a.columns {
			if !present[cfg.Name] && a.merged.HasColumn(cfg.Name) {
				keep = append(keep, cfg.Name)
				present[cfg.Name] = true
			}
		}
	} else {
		keep = append(keep, sources.UsernameColumn)
		for _, cfg := range a.columns {
			if a.merged.HasColumn(cfg.Name) {
				keep = append(keep, cfg.Name)
			}
		}
	}

	if keepSourceColumns {
		present := make(map[string]bool, len(keep))
		for _, c := range keep {
			present[c] = true
		}
		for _, col := range a.merged.Columns() {
			if present[col] {
				continue
			}
			for _, src := range a.names {
				if strings.HasPrefix(col, src+"_") {
					keep = append(keep, col)
					break
				}
			}
		}
	}

	out := a.merged.Select(keep)
	a.logger.Info("Projected gradebook",
		slog.Int("students", out.NumRows()),
		slog.Int("columns", len(out.Columns())))
	return out, nil
}
