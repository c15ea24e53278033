package aggregator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradecli/internal/config"
)

func TestValidatePopulationDeltas(t *testing.T) {
	agg := New(nil, nil)
	agg.SetBase(newBase(t, []string{"alice", "bob", "dave"}))
	require.NoError(t, agg.AddSource("source", newSource(t,
		[]string{"alice", "carol"}, map[string][]float64{"X": {1, 2}})))

	_, err := agg.Merge()
	require.NoError(t, err)
	report := agg.Validate()

	assert.NotEmpty(t, report.RunID)
	// Everyone in base is in the merge because the base seeds the join,
	// so nobody is missing; carol was filtered out so nobody is new.
	assert.Empty(t, report.MissingStudents)
	assert.Empty(t, report.NewStudents)
}

func TestValidateMissingStudents(t *testing.T) {
	// Merge without a base, then validate against one: students present
	// only in the base show up as missing.
	agg := New(nil, nil)
	require.NoError(t, agg.AddSource("source", newSource(t,
		[]string{"alice"}, map[string][]float64{"X": {1}})))
	_, err := agg.Merge()
	require.NoError(t, err)

	agg.SetBase(newBase(t, []string{"alice", "bob", "carol"}))
	report := agg.Validate()

	assert.Equal(t, []string{"bob", "carol"}, report.MissingStudents)
	assert.Empty(t, report.NewStudents)
}

func TestValidateColumnStats(t *testing.T) {
	cols := []config.ColumnConfig{{Name: "Score", Source: "s", Column: "X"}}
	agg := New(cols, nil)
	require.NoError(t, agg.AddSource("s", newSource(t,
		[]string{"alice", "bob", "carol", "dave"},
		map[string][]float64{"X": {2, 4, 6, 0}})))

	_, err := agg.ComputeColumns()
	require.NoError(t, err)
	report := agg.Validate()

	require.Len(t, report.Columns, 1)
	stats := report.Columns[0].Stats
	assert.Equal(t, "Score", report.Columns[0].Name)
	assert.Equal(t, 4, stats.Count)
	assert.InDelta(t, 3.0, stats.Mean, 1e-9)
	// Sample standard deviation of {2, 4, 6, 0}.
	assert.InDelta(t, 2.581988897, stats.Std, 1e-6)
	assert.Equal(t, 0.0, stats.Min)
	assert.Equal(t, 6.0, stats.Max)
	assert.Equal(t, 1, stats.Zeros)
}

func TestValidateZeroRateWarning(t *testing.T) {
	users := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10"}

	tests := []struct {
		name     string
		values   []float64
		wantFlag bool
	}{
		{
			name:     "60 percent zeros is flagged",
			values:   []float64{0, 0, 0, 0, 0, 0, 1, 2, 3, 4},
			wantFlag: true,
		},
		{
			name:     "40 percent zeros is not flagged",
			values:   []float64{0, 0, 0, 0, 1, 2, 3, 4, 5, 6},
			wantFlag: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := []config.ColumnConfig{{Name: "Points", Source: "s", Column: "X"}}
			agg := New(cols, nil)
			require.NoError(t, agg.AddSource("s", newSource(t, users,
				map[string][]float64{"X": tt.values})))

			_, err := agg.ComputeColumns()
			require.NoError(t, err)
			report := agg.Validate()

			flagged := false
			for _, w := range report.Warnings {
				if strings.Contains(w, "Points") {
					flagged = true
				}
			}
			assert.Equal(t, tt.wantFlag, flagged)
		})
	}
}

func TestValidateCustomThreshold(t *testing.T) {
	cols := []config.ColumnConfig{{Name: "Points", Source: "s", Column: "X"}}
	agg := New(cols, nil)
	agg.SetZeroWarnPercent(30.0)
	require.NoError(t, agg.AddSource("s", newSource(t,
		[]string{"a", "b", "c", "d", "e"},
		map[string][]float64{"X": {0, 0, 1, 2, 3}})))

	_, err := agg.ComputeColumns()
	require.NoError(t, err)
	report := agg.Validate()
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "Points")
}

func TestValidateBeforeMerge(t *testing.T) {
	agg := New(nil, nil)
	report := agg.Validate()
	require.Len(t, report.Warnings, 1)
}

func TestPrintReport(t *testing.T) {
	cols := []config.ColumnConfig{{Name: "Points", Source: "s", Column: "X"}}
	agg := New(cols, nil)
	require.NoError(t, agg.AddSource("s", newSource(t,
		[]string{"a", "b"}, map[string][]float64{"X": {0, 0}})))
	_, err := agg.ComputeColumns()
	require.NoError(t, err)

	var buf bytes.Buffer
	agg.PrintReport(&buf)
	out := buf.String()

	assert.Contains(t, out, "ENGAGEMENT AGGREGATION REPORT")
	assert.Contains(t, out, "Points")
	assert.Contains(t, out, "Warnings:")
}
