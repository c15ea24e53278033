// Package gmailfilter generates Gmail filter XML feeds that label mail
// from an entire class roster.
package gmailfilter

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

const appsNamespace = "http://schemas.google.com/apps/2006"

// Roster is the minimal roster view needed to build filters: the course
// label pieces and the student email addresses.
type Roster struct {
	SubjectCode   string
	CatalogNumber string
	Section       string
	Emails        []string
}

// CourseLabel derives a Gmail label from the roster's course metadata,
// e.g. "MATH-UA 122-001".
func (r Roster) CourseLabel() string {
	if r.SubjectCode == "" {
		return ""
	}
	label := r.SubjectCode
	if r.CatalogNumber != "" {
		label += " " + r.CatalogNumber
	}
	if r.Section != "" {
		label += "-" + r.Section
	}
	return label
}

// feed is the Atom document Gmail's filter import expects.
type feed struct {
	XMLName xml.Name `xml:"feed"`
	Xmlns   string   `xml:"xmlns,attr"`
	Apps    string   `xml:"xmlns:apps,attr"`
	Title   string   `xml:"title"`
	ID      string   `xml:"id"`
	Updated string   `xml:"updated"`
	Entries []entry  `xml:"entry"`
}

type entry struct {
	Category category   `xml:"category"`
	Title    string     `xml:"title"`
	ID       string     `xml:"id"`
	Updated  string     `xml:"updated"`
	Content  string     `xml:"content"`
	Props    []property `xml:"apps:property"`
}

type category struct {
	Term string `xml:"term,attr"`
}

type property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// EmailQueryStrings chunks a list of addresses into " OR "-joined query
// strings, none exceeding maxLength. Gmail rejects overlong filter
// criteria, so large rosters span several filter entries.
func EmailQueryStrings(emails []string, maxLength int) []string {
	var out []string
	current := ""
	const joiner = " OR "
	for _, email := range emails {
		if current == "" {
			current = email
			continue
		}
		if len(current)+len(joiner)+len(email) > maxLength {
			out = append(out, current)
			current = email
			continue
		}
		current += joiner + email
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// Write emits a Gmail filter XML feed for the rosters. Each roster gets
// one filter entry per query chunk applying the given label; an empty
// label uses each roster's own course label.
func Write(w io.Writer, rosters []Roster, label string, maxQueryLength int) error {
	if len(rosters) == 0 {
		return fmt.Errorf("at least one roster must be provided")
	}
	if maxQueryLength <= 0 {
		maxQueryLength = 1500
	}

	now := time.Now().UTC().Format(time.RFC3339)
	doc := feed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Apps:    appsNamespace,
		Title:   "Mail Filters",
		ID:      "tag:mail.google.com,2008:filters:" + uuid.NewString(),
		Updated: now,
	}

	for _, roster := range rosters {
		entryLabel := label
		if entryLabel == "" {
			entryLabel = roster.CourseLabel()
		}
		if entryLabel == "" {
			return fmt.Errorf("no label given and roster has no course metadata")
		}
		for _, query := range EmailQueryStrings(roster.Emails, maxQueryLength) {
			doc.Entries = append(doc.Entries, entry{
				Category: category{Term: "filter"},
				Title:    "Mail Filter",
				ID:       "tag:mail.google.com,2008:filter:" + uuid.NewString(),
				Updated:  now,
				Props: []property{
					{Name: "from", Value: query},
					{Name: "label", Value: entryLabel},
					{Name: "shouldArchive", Value: "false"},
				},
			})
		}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode filter feed: %w", err)
	}
	return nil
}
