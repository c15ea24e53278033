package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/table"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveDerivesFromEmail(t *testing.T) {
	data := table.New()
	require.NoError(t, data.AddStringColumn("Email", []string{"alice@example.edu", "bob@example.edu", "plainname"}))
	src := &Source{Data: data, Metadata: map[string]any{}}

	require.NoError(t, Resolve(src, UsernameColumn))

	col := src.Data.Column(UsernameColumn)
	require.NotNil(t, col)
	assert.Equal(t, []string{"alice", "bob", "plainname"}, col.Strings)
	assert.Equal(t, UsernameColumn, src.Metadata["username_col"])
}

func TestResolveIdempotent(t *testing.T) {
	data := table.New()
	require.NoError(t, data.AddStringColumn(UsernameColumn, []string{"alice"}))
	require.NoError(t, data.AddStringColumn("Email", []string{"other@example.edu"}))
	src := &Source{Data: data, Metadata: map[string]any{}}

	require.NoError(t, Resolve(src, UsernameColumn))
	first := append([]string(nil), src.Data.Column(UsernameColumn).Strings...)

	// Second call is a no-op: the existing key column wins over Email.
	require.NoError(t, Resolve(src, UsernameColumn))
	assert.Equal(t, first, src.Data.Column(UsernameColumn).Strings)
}

func TestResolveFailsWithoutIdentity(t *testing.T) {
	data := table.New()
	require.NoError(t, data.AddFloatColumn("Score", []float64{1}, nil))
	src := &Source{Data: data, Metadata: map[string]any{}}

	err := Resolve(src, UsernameColumn)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrIdentityResolution)
}

func TestStudents(t *testing.T) {
	data := table.New()
	require.NoError(t, data.AddStringColumn(UsernameColumn, []string{"alice", "bob", "alice", ""}))
	src := &Source{Data: data, Metadata: map[string]any{"username_col": UsernameColumn}}

	students := src.Students()
	assert.Len(t, students, 2)
	assert.Contains(t, students, "alice")
	assert.Contains(t, students, "bob")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "week1.csv", "Email,Duration\nalice@x.edu,30\n")
	writeFile(t, dir, "week2.csv", "Email,Duration\nbob@x.edu,15\nalice@x.edu,20\n")
	writeFile(t, dir, "notes.txt", "ignored")

	src, err := LoadDir(dir, LoadOfficeHours)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Data.NumRows())
	assert.Equal(t, 2, src.Metadata["files_loaded"])
}

func TestLoadDirEmpty(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadDir(dir, LoadOfficeHours)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSourceLoad)
}

func TestLoadUnknownType(t *testing.T) {
	_, err := Load("mystery", "whatever.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSourceType)
}
