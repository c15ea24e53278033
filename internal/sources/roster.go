package sources

import (
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	apperrors "gradecli/internal/errors"
	"gradecli/internal/table"
)

// classDetailRe parses registrar class-detail strings such as
// "MATH-UA 122 (0)-001" into subject code, catalog number and section.
var classDetailRe = regexp.MustCompile(`(.+?)\s+(\d+)\s*\(.*?\)-(.+)`)

// LoadRoster reads a registrar class roster saved as an HTML page
// (Albert exports these with an .xls extension but the payload is HTML).
// Course metadata comes from the bolded key/value pairs above the table;
// the student list is the first HTML table on the page.
func LoadRoster(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	course := extractCourseMetadata(doc)
	if detail, ok := course["Class Detail"]; ok {
		if m := classDetailRe.FindStringSubmatch(detail); m != nil {
			course["Subject Code"] = m[1]
			course["Catalog Number"] = m[2]
			course["Section"] = m[3]
		}
	}

	header, records := extractFirstTable(doc)
	if header == nil {
		return nil, apperrors.Wrapf(apperrors.ErrSourceLoad, "no roster table found in %s", path)
	}
	data, err := table.FromRecords(header, records)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceLoad, err)
	}

	slog.Info("Loaded roster",
		slog.String("path", path),
		slog.Int("students", data.NumRows()),
		slog.String("class_detail", course["Class Detail"]))

	return &Source{
		Data: data,
		Metadata: map[string]any{
			"source": path,
			"type":   "roster",
			"course": course,
		},
	}, nil
}

// extractCourseMetadata collects key/value pairs rendered as
// "<x><b>Key:</b> Value</x>" blocks above the roster table.
func extractCourseMetadata(doc *html.Node) map[string]string {
	meta := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "b" && n.Parent != nil {
			bold := nodeText(n)
			key := strings.Trim(bold, ": \n\t")
			value := strings.TrimSpace(strings.Replace(nodeText(n.Parent), bold, "", 1))
			if key != "" && value != "" {
				meta[key] = value
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta
}

// extractFirstTable returns the header and data rows of the first
// <table> element in the document.
func extractFirstTable(doc *html.Node) ([]string, [][]string) {
	var tableNode *html.Node
	var findTable func(*html.Node)
	findTable = func(n *html.Node) {
		if tableNode != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "table" {
			tableNode = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTable(c)
		}
	}
	findTable(doc)
	if tableNode == nil {
		return nil, nil
	}

	var rows [][]string
	var collectRows func(*html.Node)
	collectRows = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, strings.TrimSpace(nodeText(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectRows(c)
		}
	}
	collectRows(tableNode)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], rows[1:]
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
