package sources

import (
	"log/slog"
	"strings"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/table"
)

// attendanceStatuses are the Brightspace session markers:
// Present, Remote, Absent, Excused.
var attendanceStatuses = []string{"P", "R", "A", "X"}

const attendanceScoreColumn = "% Attendance"

var attendanceIdentifiers = []string{"First Name", "Last Name", UsernameColumn}

// LoadAttendance reads a Brightspace attendance export (CSV or XLSX).
//
// The export has one column per recorded session holding a status marker
// ("P", "R", "A", "X", or "-" when not recorded), plus per-status summary
// columns and a "% Attendance" score. Columns where every cell is "-"
// are dropped as unrecorded sessions; remaining "-" cells count as
// absences. The summary counts and the score are recomputed from the
// session columns rather than trusted from the export:
// score = (P + 0.5*R) / (P + R + A), with excused sessions ignored.
func LoadAttendance(path string) (*Source, error) {
	header, records, err := readRecords(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	header, records = stripLineIndicators(header, records)

	skip := make(map[string]bool)
	for _, name := range attendanceIdentifiers {
		skip[name] = true
	}
	for _, status := range attendanceStatuses {
		skip[status] = true
	}
	skip[attendanceScoreColumn] = true

	cells := func(col int) []string {
		out := make([]string, len(records))
		for r, rec := range records {
			if col < len(rec) {
				out[r] = strings.TrimSpace(rec[col])
			}
		}
		return out
	}

	data := table.New()
	var sessions []string
	sessionValues := make(map[string][]string)
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if skip[name] {
			// Summary columns are recomputed below; identifiers pass
			// through unchanged.
			if name == attendanceScoreColumn {
				continue
			}
			isStatus := false
			for _, status := range attendanceStatuses {
				if name == status {
					isStatus = true
					break
				}
			}
			if isStatus {
				continue
			}
			if err := data.AddStringColumn(name, cells(i)); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
			}
			continue
		}

		values := cells(i)
		recorded := false
		for _, v := range values {
			if v != "-" && v != "" {
				recorded = true
				break
			}
		}
		if !recorded {
			slog.Info("Dropping unrecorded session column", slog.String("session", name))
			continue
		}
		for j, v := range values {
			if v == "-" {
				values[j] = "A"
			}
		}
		if err := data.AddStringColumn(name, values); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
		}
		sessions = append(sessions, name)
		sessionValues[name] = values
	}

	rows := data.NumRows()
	counts := make(map[string][]float64)
	for _, status := range attendanceStatuses {
		counts[status] = make([]float64, rows)
	}
	for _, session := range sessions {
		for r, v := range sessionValues[session] {
			if c, ok := counts[v]; ok {
				c[r]++
			}
		}
	}
	for _, status := range attendanceStatuses {
		if err := data.AddFloatColumn(status, counts[status], nil); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
		}
	}

	scores := make([]float64, rows)
	for r := 0; r < rows; r++ {
		present := counts["P"][r]
		remote := counts["R"][r]
		absent := counts["A"][r]
		if total := present + remote + absent; total > 0 {
			scores[r] = (present + 0.5*remote) / total
		}
	}
	if err := data.AddFloatColumn(attendanceScoreColumn, scores, nil); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	slog.Info("Loaded attendance data",
		slog.String("path", path),
		slog.Int("students", rows),
		slog.Int("sessions", len(sessions)))

	return &Source{
		Data: data,
		Metadata: map[string]any{
			"source":           path,
			"type":             "attendance",
			"original_columns": data.Columns(),
			"sessions":         sessions,
		},
	}, nil
}
