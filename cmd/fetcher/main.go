// Command fetcher downloads gradebook and attendance exports from the
// learning platform's web UI into the raw data directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gradecli/internal/config"
	"gradecli/internal/fetch"
	"gradecli/internal/infrastructure"
)

func main() {
	configFile := flag.String("config", "gradecli.yaml", "path to the YAML configuration file")
	courses := flag.String("courses", "", "comma-separated course IDs to fetch")
	kinds := flag.String("kinds", "gradebook,attendance", "comma-separated export kinds: gradebook, attendance")
	outDir := flag.String("out", "", "download directory (defaults to the configured raw data dir)")
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

	if *courses == "" {
		fmt.Fprintln(os.Stderr, "Error: -courses is required")
		flag.Usage()
		os.Exit(1)
	}
	if cfg.Fetch.BaseURL == "" {
		logger.Error("fetch.base_url is not configured")
		os.Exit(1)
	}

	paths, err := config.NewPaths("", cfg.Paths)
	if err != nil {
		logger.Error("Failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}
	dir := *outDir
	if dir == "" {
		dir = paths.RawDir
	}

	var requests []fetch.Request
	for _, course := range strings.Split(*courses, ",") {
		course = strings.TrimSpace(course)
		if course == "" {
			continue
		}
		for _, kind := range strings.Split(*kinds, ",") {
			kind = strings.TrimSpace(kind)
			switch fetch.ExportKind(kind) {
			case fetch.ExportGradebook, fetch.ExportAttendance:
				requests = append(requests, fetch.Request{CourseID: course, Kind: fetch.ExportKind(kind)})
			default:
				logger.Error("Unknown export kind", slog.String("kind", kind))
				os.Exit(1)
			}
		}
	}

	client := fetch.NewClient(cfg.Fetch, dir, logger)
	if err := client.FetchAll(context.Background(), requests); err != nil {
		logger.Error("Fetch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Fetch complete",
		slog.Int("requests", len(requests)),
		slog.String("dir", dir))
}
