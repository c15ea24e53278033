package sources

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/table"
)

// LoadScoresheet reads a Gradescope assignment scoresheet: either a raw
// CSV export or a ZIP of versioned exports, in which case the latest
// version (last CSV entry by name) is used. Rows with Status "Missing"
// are dropped; the assignment name is derived from the file name.
func LoadScoresheet(path string) (*Source, error) {
	if strings.ToLower(filepath.Ext(path)) == ".zip" {
		return loadScoresheetZip(path)
	}

	header, records, err := readRecords(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	return scoresheetFromRecords(header, records, path, filepath.Base(path))
}

func loadScoresheetZip(path string) (*Source, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	defer zr.Close()

	var names []string
	byName := make(map[string]*zip.File)
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			names = append(names, f.Name)
			byName[f.Name] = f
		}
	}
	if len(names) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrSourceLoad, "no CSV file found in zip: %s", path)
	}
	// Versioned exports sort by name; the last one is the newest.
	sort.Strings(names)
	latest := byName[names[len(names)-1]]

	rc, err := latest.Open()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil || len(rows) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrSourceLoad, "invalid CSV in zip entry %s", latest.Name)
	}

	src, err := scoresheetFromRecords(rows[0], rows[1:], path, filepath.Base(latest.Name))
	if err != nil {
		return nil, err
	}
	src.Metadata["inner_file"] = latest.Name
	src.Metadata["versions"] = len(names)
	return src, nil
}

func scoresheetFromRecords(header []string, records [][]string, origin, fileName string) (*Source, error) {
	statusIdx := -1
	for i, name := range header {
		if strings.TrimSpace(name) == "Status" {
			statusIdx = i
			break
		}
	}
	if statusIdx >= 0 {
		var kept [][]string
		for _, rec := range records {
			if statusIdx < len(rec) && strings.EqualFold(strings.TrimSpace(rec[statusIdx]), "missing") {
				continue
			}
			kept = append(kept, rec)
		}
		records = kept
	}

	data, err := table.FromRecords(header, records)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	name := scoresheetName(fileName)
	slog.Info("Loaded scoresheet",
		slog.String("path", origin),
		slog.String("assignment", name),
		slog.Int("submissions", data.NumRows()))

	return &Source{
		Data: data,
		Metadata: map[string]any{
			"source":           origin,
			"type":             "gradescope_scoresheet",
			"assignment":       name,
			"original_columns": data.Columns(),
		},
	}, nil
}

// scoresheetName derives a friendly assignment name from an export file
// name such as "Problem_Set_1_scores.csv".
func scoresheetName(fileName string) string {
	name := fileName
	if strings.HasSuffix(name, "_scores.csv") {
		name = strings.TrimSuffix(name, "_scores.csv")
	} else {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return strings.ReplaceAll(name, "_", " ")
}
