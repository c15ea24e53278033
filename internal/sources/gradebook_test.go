package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradecli/internal/table"
)

const gradebookCSV = "Username,First Name,Last Name,Email,Quiz 1,End-of-Line Indicator\n" +
	"#alice,Alice,Adams,alice@example.edu,8,#\n" +
	"#bob,Bob,Brown,bob@example.edu,,#\n"

func TestLoadGradebook(t *testing.T) {
	path := writeFile(t, t.TempDir(), "grades.csv", gradebookCSV)

	src, err := LoadGradebook(path)
	require.NoError(t, err)

	// Line indicators are stripped on load.
	users := src.Data.Column(UsernameColumn)
	require.NotNil(t, users)
	assert.Equal(t, []string{"alice", "bob"}, users.Strings)
	assert.False(t, src.Data.HasColumn(EOLColumn))

	quiz := src.Data.Column("Quiz 1")
	require.Equal(t, table.Float, quiz.Kind)
	assert.Equal(t, 8.0, quiz.Floats[0])
	assert.True(t, quiz.Nulls[1])

	assert.Equal(t, "brightspace_gradebook", src.Metadata["type"])
}

func TestLoadGradebookMissingFile(t *testing.T) {
	_, err := LoadGradebook("/nonexistent/grades.csv")
	require.Error(t, err)
}

func TestLoadAttendance(t *testing.T) {
	csv := "Username,First Name,Last Name,Sep 1,Sep 3,Sep 5,P,R,A,X,% Attendance,End-of-Line Indicator\n" +
		"#alice,Alice,Adams,P,R,-,0,0,0,0,0,#\n" +
		"#bob,Bob,Brown,A,P,-,0,0,0,0,0,#\n"
	path := writeFile(t, t.TempDir(), "attendance.csv", csv)

	src, err := LoadAttendance(path)
	require.NoError(t, err)

	// "Sep 5" is all '-' so it is dropped as unrecorded.
	assert.False(t, src.Data.HasColumn("Sep 5"))
	assert.Equal(t, []string{"Sep 1", "Sep 3"}, src.Metadata["sessions"])

	// Counts are recomputed from session markers, not trusted.
	assert.Equal(t, 1.0, src.Data.Column("P").Floats[0])
	assert.Equal(t, 1.0, src.Data.Column("R").Floats[0])
	assert.Equal(t, 0.0, src.Data.Column("A").Floats[0])

	// alice: (1 + 0.5*1) / 2 ; bob: (1 + 0) / 2
	score := src.Data.Column("% Attendance")
	assert.InDelta(t, 0.75, score.Floats[0], 1e-9)
	assert.InDelta(t, 0.5, score.Floats[1], 1e-9)
}

func TestLoadAttendanceDashCountsAsAbsent(t *testing.T) {
	csv := "Username,Sep 1,Sep 3,End-of-Line Indicator\n" +
		"#alice,P,-,#\n" +
		"#bob,P,P,#\n"
	path := writeFile(t, t.TempDir(), "attendance.csv", csv)

	src, err := LoadAttendance(path)
	require.NoError(t, err)

	// Sep 3 is recorded for bob, so alice's '-' becomes an absence.
	assert.Equal(t, 1.0, src.Data.Column("A").Floats[0])
	score := src.Data.Column("% Attendance")
	assert.InDelta(t, 0.5, score.Floats[0], 1e-9)
	assert.InDelta(t, 1.0, score.Floats[1], 1e-9)
}

func TestLoadEdstemAnalytics(t *testing.T) {
	csv := "Name,Email,Role,Posts,Answers,Reactions\n" +
		"Alice,alice@x.edu,Student,4,2,10\n" +
		"Tim,tim@x.edu,Admin,99,99,99\n" +
		"Bob,bob@x.edu,student,,n/a,3\n"
	path := writeFile(t, t.TempDir(), "edstem.csv", csv)

	src, err := LoadEdstemAnalytics(path)
	require.NoError(t, err)

	// Staff rows are dropped.
	require.Equal(t, 2, src.Data.NumRows())

	posts := src.Data.Column("Posts")
	require.Equal(t, table.Float, posts.Kind)
	assert.Equal(t, 4.0, posts.Floats[0])
	assert.Equal(t, 0.0, posts.Floats[1]) // empty coerces to zero

	answers := src.Data.Column("Answers")
	require.Equal(t, table.Float, answers.Kind)
	assert.Equal(t, 0.0, answers.Floats[1]) // non-numeric coerces to zero

	require.NoError(t, Resolve(src, UsernameColumn))
	assert.Equal(t, []string{"alice", "bob"}, src.Data.Column(UsernameColumn).Strings)
}
