package sources

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/table"
)

// VisitCountColumn holds the per-student office-hours visit count.
const VisitCountColumn = "visit_count"

// LoadOfficeHours reads an office-hours visit log, dispatching on the
// file extension: ZIP archives containing an HTML page, raw HTML pages,
// or a plain CSV.
func LoadOfficeHours(path string) (*Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return loadOfficeHoursZip(path)
	case ".html", ".htm":
		return loadOfficeHoursHTML(path)
	default:
		return loadOfficeHoursCSV(path)
	}
}

// loadOfficeHoursHTML parses an HTML visit log. Each visit appears as a
// mailto: anchor; visits are counted per username derived from the
// address's local part.
func loadOfficeHoursHTML(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	defer f.Close()
	return officeHoursFromHTML(f, path)
}

func officeHoursFromHTML(r io.Reader, origin string) (*Source, error) {
	emails, err := mailtoAddresses(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	counts := make(map[string]int)
	for _, addr := range emails {
		if !strings.Contains(addr, "@") {
			continue
		}
		counts[localPart(addr)]++
	}

	usernames := make([]string, 0, len(counts))
	for u := range counts {
		usernames = append(usernames, u)
	}
	// Highest visit count first, name as tie-break, matching the
	// frequency ordering of the upstream log viewer.
	sort.Slice(usernames, func(i, j int) bool {
		if counts[usernames[i]] != counts[usernames[j]] {
			return counts[usernames[i]] > counts[usernames[j]]
		}
		return usernames[i] < usernames[j]
	})
	visits := make([]float64, len(usernames))
	for i, u := range usernames {
		visits[i] = float64(counts[u])
	}

	data := table.New()
	if err := data.AddStringColumn(UsernameColumn, usernames); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	if err := data.AddFloatColumn(VisitCountColumn, visits, nil); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	slog.Info("Loaded office hours log",
		slog.String("path", origin),
		slog.Int("students", len(usernames)),
		slog.Int("total_visits", len(emails)))

	return &Source{
		Data: data,
		Metadata: map[string]any{
			"source":        origin,
			"type":          "office_hours_html",
			"format":        "html",
			"total_anchors": len(emails),
		},
	}, nil
}

// mailtoAddresses extracts the address of every mailto: anchor in an
// HTML document, with any ?subject=... query stripped.
func mailtoAddresses(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var emails []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" || !strings.HasPrefix(attr.Val, "mailto:") {
					continue
				}
				addr := strings.TrimSpace(strings.SplitN(attr.Val[len("mailto:"):], "?", 2)[0])
				if addr != "" {
					emails = append(emails, addr)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return emails, nil
}

// loadOfficeHoursZip extracts the first HTML file from a ZIP archive and
// parses it as a visit log.
func loadOfficeHoursZip(path string) (*Source, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	defer zr.Close()

	var inner *zip.File
	for _, f := range zr.File {
		lower := strings.ToLower(f.Name)
		if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
			inner = f
			break
		}
	}
	if inner == nil {
		return nil, apperrors.Wrapf(apperrors.ErrSourceLoad, "no HTML file found in zip: %s", path)
	}

	rc, err := inner.Open()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	src, err := officeHoursFromHTML(bytes.NewReader(content), path)
	if err != nil {
		return nil, err
	}
	src.Metadata["type"] = "office_hours_html_zip"
	src.Metadata["format"] = "zip(html)"
	src.Metadata["inner_file"] = inner.Name
	return src, nil
}

// loadOfficeHoursCSV reads a generic visit-log CSV (Username or Email
// plus arbitrary columns).
func loadOfficeHoursCSV(path string) (*Source, error) {
	header, records, err := readRecords(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	data, err := table.FromRecords(header, records)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	slog.Info("Loaded office hours CSV",
		slog.String("path", path),
		slog.Int("rows", data.NumRows()))

	return &Source{
		Data: data,
		Metadata: map[string]any{
			"source":           path,
			"type":             "office_hours",
			"format":           "csv",
			"original_columns": data.Columns(),
		},
	}, nil
}
