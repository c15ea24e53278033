package aggregator

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"gradecli/internal/sources"
	"gradecli/internal/table"
)

// ColumnStats are descriptive statistics for one computed column.
// Std is the sample standard deviation (n-1 denominator).
type ColumnStats struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
	Zeros int
}

// ColumnReport pairs a configured column name with its statistics,
// preserving configuration order.
type ColumnReport struct {
	Name  string
	Stats ColumnStats
}

// Report is a read-only validation snapshot of one aggregation run.
type Report struct {
	RunID           string
	MissingStudents []string
	NewStudents     []string
	Columns         []ColumnReport
	Warnings        []string
}

// Validate inspects the merged table and produces a population and
// per-column statistics report. Population mismatches are diagnostics,
// never errors.
func (a *Aggregator) Validate() *Report {
	report := &Report{RunID: uuid.NewString()}

	if a.merged == nil {
		report.Warnings = append(report.Warnings, "no merged data available; run ComputeColumns first")
		a.report = report
		return report
	}

	if a.base != nil {
		baseUsers := keySet(a.base)
		mergedUsers := keySet(a.merged)

		report.MissingStudents = sortedDifference(baseUsers, mergedUsers)
		report.NewStudents = sortedDifference(mergedUsers, baseUsers)

		if len(report.MissingStudents) > 0 {
			a.logger.Warn("Students in base gradebook but not in sources",
				slog.Int("count", len(report.MissingStudents)))
		}
		// NewStudents is expected to be empty after the base filter; a
		// non-empty result points at a key normalization bug.
		if len(report.NewStudents) > 0 {
			a.logger.Warn("Students in merge but not in base gradebook",
				slog.Int("count", len(report.NewStudents)))
		}
	}

	for _, cfg := range a.columns {
		col := a.merged.Column(cfg.Name)
		if col == nil || col.Kind != table.Float {
			continue
		}
		stats := computeStats(col.Floats, col.Nulls)
		report.Columns = append(report.Columns, ColumnReport{Name: cfg.Name, Stats: stats})

		if stats.Count > 0 {
			zeroPct := float64(stats.Zeros) / float64(stats.Count) * 100
			if zeroPct > a.zeroWarnPct {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("%s: %.1f%% of students have zero points", cfg.Name, zeroPct))
			}
		}
	}

	a.report = report
	return report
}

func keySet(t *table.Table) map[string]struct{} {
	set := make(map[string]struct{})
	col := t.Column(sources.UsernameColumn)
	if col == nil || col.Kind != table.String {
		return set
	}
	for _, u := range col.Strings {
		if u != "" {
			set[u] = struct{}{}
		}
	}
	return set
}

func sortedDifference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func computeStats(values []float64, nulls []bool) ColumnStats {
	var stats ColumnStats
	var sum float64
	first := true
	for i, v := range values {
		if nulls != nil && nulls[i] {
			continue
		}
		stats.Count++
		sum += v
		if v == 0 {
			stats.Zeros++
		}
		if first {
			stats.Min, stats.Max = v, v
			first = false
			continue
		}
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	if stats.Count == 0 {
		return stats
	}
	stats.Mean = sum / float64(stats.Count)
	if stats.Count > 1 {
		var ss float64
		for i, v := range values {
			if nulls != nil && nulls[i] {
				continue
			}
			d := v - stats.Mean
			ss += d * d
		}
		stats.Std = math.Sqrt(ss / float64(stats.Count-1))
	}
	return stats
}

// PrintReport writes a human-readable validation summary. It runs
// Validate first if no report exists yet.
func (a *Aggregator) PrintReport(w io.Writer) {
	if a.report == nil {
		a.Validate()
	}
	report := a.report

	line := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nENGAGEMENT AGGREGATION REPORT\n%s\n", line, line)

	if len(report.MissingStudents) > 0 {
		fmt.Fprintf(w, "\nMissing students (%d):\n", len(report.MissingStudents))
		shown := report.MissingStudents
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, u := range shown {
			fmt.Fprintf(w, "  - %s\n", u)
		}
		if extra := len(report.MissingStudents) - len(shown); extra > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", extra)
		}
	}

	if len(report.Columns) > 0 {
		fmt.Fprintf(w, "\nColumn statistics:\n")
		for _, cr := range report.Columns {
			s := cr.Stats
			fmt.Fprintf(w, "\n  %s:\n", cr.Name)
			fmt.Fprintf(w, "    Count:  %d\n", s.Count)
			fmt.Fprintf(w, "    Mean:   %.2f\n", s.Mean)
			fmt.Fprintf(w, "    Std:    %.2f\n", s.Std)
			fmt.Fprintf(w, "    Range:  [%.2f, %.2f]\n", s.Min, s.Max)
			if s.Count > 0 {
				fmt.Fprintf(w, "    Zeros:  %d (%.1f%%)\n", s.Zeros, float64(s.Zeros)/float64(s.Count)*100)
			}
		}
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, warning := range report.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
	fmt.Fprintf(w, "\n%s\n", line)
}
