package sources

import (
	"log/slog"
	"strconv"
	"strings"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/table"
)

// edstemMetricColumns are the engagement counters an Edstem analytics
// export may contain. They are coerced to numeric with unparsable or
// missing values treated as zero.
var edstemMetricColumns = []string{
	"Posts", "Answers", "Reactions", "Questions", "Announcements",
	"Comments", "Accepted Answers", "Hearts", "Endorsements",
}

// LoadEdstemAnalytics reads an Edstem discussion-forum analytics CSV.
// Rows whose Role is not "student" (staff, admins) are dropped.
func LoadEdstemAnalytics(path string) (*Source, error) {
	header, records, err := readRecords(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	roleIdx := -1
	for i, name := range header {
		if strings.TrimSpace(name) == "Role" {
			roleIdx = i
			break
		}
	}
	if roleIdx >= 0 {
		var students [][]string
		for _, rec := range records {
			if roleIdx < len(rec) && strings.EqualFold(strings.TrimSpace(rec[roleIdx]), "student") {
				students = append(students, rec)
			}
		}
		records = students
	}

	data, err := table.FromRecords(header, records)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	for _, name := range edstemMetricColumns {
		col := data.Column(name)
		if col == nil {
			continue
		}
		values := make([]float64, data.NumRows())
		if col.Kind == table.Float {
			for i := range col.Floats {
				if !col.Nulls[i] {
					values[i] = col.Floats[i]
				}
			}
		} else {
			for i, cell := range col.Strings {
				if v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
					values[i] = v
				}
			}
		}
		if err := data.SetFloatColumn(name, values, nil); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
		}
	}

	slog.Info("Loaded Edstem analytics",
		slog.String("path", path),
		slog.Int("students", data.NumRows()))

	return &Source{
		Data: data,
		Metadata: map[string]any{
			"source":           path,
			"type":             "edstem",
			"original_columns": data.Columns(),
		},
	}, nil
}
