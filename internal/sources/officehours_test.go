package sources

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const visitLogHTML = `<html><body>
<ul>
<li><a href="mailto:alice@example.edu?subject=visit">Alice</a></li>
<li><a href="mailto:bob@example.edu">Bob</a></li>
<li><a href="mailto:alice@example.edu">Alice</a></li>
<li><a href="https://example.edu/other">not a visit</a></li>
</ul>
</body></html>`

func TestLoadOfficeHoursHTML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "visits.html", visitLogHTML)

	src, err := LoadOfficeHours(path)
	require.NoError(t, err)

	users := src.Data.Column(UsernameColumn)
	require.NotNil(t, users)
	// Highest visit count first.
	assert.Equal(t, []string{"alice", "bob"}, users.Strings)

	visits := src.Data.Column(VisitCountColumn)
	assert.Equal(t, []float64{2, 1}, visits.Floats)
	assert.Equal(t, 3, src.Metadata["total_anchors"])
}

func TestLoadOfficeHoursZip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "visits.zip")

	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("logs/visits.html")
	require.NoError(t, err)
	_, err = w.Write([]byte(visitLogHTML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	src, err := LoadOfficeHours(zipPath)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Data.NumRows())
	assert.Equal(t, "office_hours_html_zip", src.Metadata["type"])
	assert.Equal(t, "logs/visits.html", src.Metadata["inner_file"])
}

func TestLoadOfficeHoursZipWithoutHTML(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "empty.zip")

	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("nothing here"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = LoadOfficeHours(zipPath)
	require.Error(t, err)
}

func TestLoadOfficeHoursCSV(t *testing.T) {
	csv := "Email,Date,Duration\nalice@x.edu,2026-02-03,30\nbob@x.edu,2026-02-04,15\n"
	path := writeFile(t, t.TempDir(), "visits.csv", csv)

	src, err := LoadOfficeHours(path)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Data.NumRows())

	require.NoError(t, Resolve(src, UsernameColumn))
	assert.Equal(t, []string{"alice", "bob"}, src.Data.Column(UsernameColumn).Strings)
}

const rosterHTML = `<html><body>
<div><b>Class Detail:</b> MATH-UA 122 (0)-001</div>
<div><b>Instructor:</b> Prof. Example</div>
<table>
<tr><th>ID</th><th>Name</th><th>Email</th></tr>
<tr><td>1</td><td>Alice Adams</td><td>alice@example.edu</td></tr>
<tr><td>2</td><td>Bob Brown</td><td>bob@example.edu</td></tr>
</table>
</body></html>`

func TestLoadRoster(t *testing.T) {
	path := writeFile(t, t.TempDir(), "roster.xls", rosterHTML)

	src, err := LoadRoster(path)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Data.NumRows())

	course, ok := src.Metadata["course"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "MATH-UA 122 (0)-001", course["Class Detail"])
	assert.Equal(t, "MATH-UA", course["Subject Code"])
	assert.Equal(t, "122", course["Catalog Number"])
	assert.Equal(t, "001", course["Section"])

	require.NoError(t, Resolve(src, UsernameColumn))
	assert.Equal(t, []string{"alice", "bob"}, src.Data.Column(UsernameColumn).Strings)
}

func TestLoadRosterWithoutTable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "roster.xls", "<html><body><p>no table</p></body></html>")
	_, err := LoadRoster(path)
	require.Error(t, err)
}

const scoresheetCSV = "First Name,Last Name,Email,Status,Total Score,Max Points\n" +
	"Alice,Adams,alice@example.edu,Graded,92.5,100\n" +
	"Bob,Brown,bob@example.edu,Missing,,100\n" +
	"Carol,Clark,carol@example.edu,Graded,78,100\n"

func TestLoadScoresheet(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Problem_Set_1_scores.csv", scoresheetCSV)

	src, err := LoadScoresheet(path)
	require.NoError(t, err)

	// Missing submissions are dropped.
	assert.Equal(t, 2, src.Data.NumRows())
	assert.Equal(t, "Problem Set 1", src.Metadata["assignment"])

	total := src.Data.Column("Total Score")
	require.NotNil(t, total)
	assert.Equal(t, 92.5, total.Floats[0])
}

func TestLoadScoresheetZipPicksLatestVersion(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "Problem_Set_1.zip")

	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"v1/Problem_Set_1_scores.csv", "v2/Problem_Set_1_scores.csv"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(scoresheetCSV))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	src, err := LoadScoresheet(zipPath)
	require.NoError(t, err)
	assert.Equal(t, "v2/Problem_Set_1_scores.csv", src.Metadata["inner_file"])
	assert.Equal(t, 2, src.Metadata["versions"])
	assert.Equal(t, 2, src.Data.NumRows())
}
