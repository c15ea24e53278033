// Command gmailfilter generates a Gmail filter XML feed that labels
// mail from every student on a class roster.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gradecli/internal/config"
	"gradecli/internal/gmailfilter"
	"gradecli/internal/infrastructure"
	"gradecli/internal/sources"
	"gradecli/internal/table"
)

func main() {
	configFile := flag.String("config", "gradecli.yaml", "path to the YAML configuration file")
	rosterPath := flag.String("roster", "", "path to a roster HTML export")
	label := flag.String("label", "", "Gmail label to apply (defaults to the roster's course label)")
	outPath := flag.String("out", "", "output XML path (defaults to stdout)")
	maxQuery := flag.Int("max-query-length", 1500, "maximum length of one filter query string")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if *rosterPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -roster is required")
		flag.Usage()
		os.Exit(1)
	}

	src, err := sources.LoadRoster(*rosterPath)
	if err != nil {
		logger.Error("Failed to load roster",
			slog.String("path", *rosterPath),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	roster := gmailfilter.Roster{Emails: emailsFrom(src)}
	if course, ok := src.Metadata["course"].(map[string]string); ok {
		roster.SubjectCode = course["Subject Code"]
		roster.CatalogNumber = course["Catalog Number"]
		roster.Section = course["Section"]
	}
	if len(roster.Emails) == 0 {
		logger.Error("Roster has no email addresses")
		os.Exit(1)
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Error("Failed to create output file", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := gmailfilter.Write(out, []gmailfilter.Roster{roster}, *label, *maxQuery); err != nil {
		logger.Error("Failed to write filter feed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Generated Gmail filter feed", slog.Int("students", len(roster.Emails)))
}

func emailsFrom(src *sources.Source) []string {
	col := src.Data.Column(sources.EmailColumn)
	if col == nil || col.Kind != table.String {
		return nil
	}
	var out []string
	for _, addr := range col.Strings {
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
