package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradecli/internal/config"
	"gradecli/internal/sources"
	"gradecli/internal/table"
)

func TestToGradebookWithBase(t *testing.T) {
	base := table.New()
	require.NoError(t, base.AddStringColumn(sources.UsernameColumn, []string{"alice", "bob"}))
	require.NoError(t, base.AddStringColumn("Last Name", []string{"A", "B"}))
	require.NoError(t, base.AddFloatColumn("Existing Grade", []float64{90, 80}, nil))

	cols := []config.ColumnConfig{{Name: "Engagement", Source: "ed", Column: "Posts"}}
	agg := New(cols, nil)
	agg.SetBase(base)
	require.NoError(t, agg.AddSource("ed", newSource(t,
		[]string{"alice", "bob"}, map[string][]float64{"Posts": {4, 7}})))

	out, err := agg.ToGradebook(false)
	require.NoError(t, err)

	// Base columns first, in base order, then the configured column.
	assert.Equal(t, []string{sources.UsernameColumn, "Last Name", "Existing Grade", "Engagement"}, out.Columns())
	assert.Equal(t, 4.0, rowValue(t, out, "alice", "Engagement"))
	assert.Equal(t, 7.0, rowValue(t, out, "bob", "Engagement"))
}

func TestToGradebookWithoutBase(t *testing.T) {
	cols := []config.ColumnConfig{{Name: "Engagement", Source: "ed", Column: "Posts"}}
	agg := New(cols, nil)
	require.NoError(t, agg.AddSource("ed", newSource(t,
		[]string{"alice"}, map[string][]float64{"Posts": {4}})))

	out, err := agg.ToGradebook(false)
	require.NoError(t, err)
	assert.Equal(t, []string{sources.UsernameColumn, "Engagement"}, out.Columns())
}

func TestToGradebookKeepSourceColumns(t *testing.T) {
	cols := []config.ColumnConfig{{Name: "Engagement", Source: "ed", Column: "Posts"}}
	agg := New(cols, nil)
	agg.SetBase(newBase(t, []string{"alice"}))
	require.NoError(t, agg.AddSource("ed", newSource(t,
		[]string{"alice"}, map[string][]float64{"Posts": {4}, "Views": {12}})))

	out, err := agg.ToGradebook(true)
	require.NoError(t, err)

	assert.True(t, out.HasColumn("ed_Posts"))
	assert.True(t, out.HasColumn("ed_Views"))
	// Audit columns come after the export shape.
	assert.Equal(t, sources.UsernameColumn, out.Columns()[0])
	assert.Equal(t, "Engagement", out.Columns()[1])
}

func TestToGradebookConfiguredColumnOverwritesBase(t *testing.T) {
	// A configured column that shares a name with a base column must not
	// be duplicated in the projection.
	base := table.New()
	require.NoError(t, base.AddStringColumn(sources.UsernameColumn, []string{"alice"}))
	require.NoError(t, base.AddFloatColumn("Engagement", []float64{1}, nil))

	cols := []config.ColumnConfig{{Name: "Engagement", Source: "ed", Column: "Posts"}}
	agg := New(cols, nil)
	agg.SetBase(base)
	require.NoError(t, agg.AddSource("ed", newSource(t,
		[]string{"alice"}, map[string][]float64{"Posts": {4}})))

	out, err := agg.ToGradebook(false)
	require.NoError(t, err)
	assert.Equal(t, []string{sources.UsernameColumn, "Engagement"}, out.Columns())
	assert.Equal(t, 4.0, rowValue(t, out, "alice", "Engagement"))
}
