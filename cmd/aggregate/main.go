// Command aggregate runs the engagement aggregation pipeline: it loads
// the base gradebook and every configured source, merges them on
// Username, computes the configured output columns, validates the
// result and writes a gradebook-import CSV.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gradecli/internal/aggregator"
	"gradecli/internal/config"
	"gradecli/internal/exporter"
	"gradecli/internal/infrastructure"
	"gradecli/internal/sources"
)

func main() {
	configFile := flag.String("config", "gradecli.yaml", "path to the YAML configuration file")
	outPath := flag.String("out", "", "output CSV path (defaults to <exports_dir>/<base name>_aggregated.csv)")
	showReport := flag.Bool("show-report", false, "print the validation report to stdout")
	keepSourceColumns := flag.Bool("keep-source-columns", false, "keep intermediate source columns in the output for auditing")
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

	paths, err := config.NewPaths("", cfg.Paths)
	if err != nil {
		logger.Error("Failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("Failed to create directories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	agg := aggregator.New(cfg.Aggregation.Columns, logger)
	agg.SetZeroWarnPercent(cfg.Aggregation.ZeroWarnPercent)

	if cfg.Aggregation.BaseGradebook != "" {
		base, err := sources.LoadGradebook(cfg.Aggregation.BaseGradebook)
		if err != nil {
			logger.Error("Failed to load base gradebook",
				slog.String("path", cfg.Aggregation.BaseGradebook),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := sources.Resolve(base, sources.UsernameColumn); err != nil {
			logger.Error("Failed to resolve base gradebook identity", slog.String("error", err.Error()))
			os.Exit(1)
		}
		agg.SetBase(base.Data)
	}

	// A failed source load aborts the run: a missing source changes the
	// join topology and cannot be papered over.
	for _, sc := range cfg.Aggregation.Sources {
		src, err := sources.Load(sc.Type, sc.Path)
		if err != nil {
			logger.Error("Failed to load source",
				slog.String("source", sc.Name),
				slog.String("path", sc.Path),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := sources.Resolve(src, sources.UsernameColumn); err != nil {
			logger.Error("Failed to resolve source identity",
				slog.String("source", sc.Name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := agg.AddSource(sc.Name, src); err != nil {
			logger.Error("Failed to register source",
				slog.String("source", sc.Name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if _, err := agg.Merge(); err != nil {
		logger.Error("Merge failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if _, err := agg.ComputeColumns(); err != nil {
		logger.Error("Column computation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	agg.Validate()
	if *showReport {
		agg.PrintReport(os.Stdout)
	}

	out, err := agg.ToGradebook(*keepSourceColumns || cfg.Aggregation.KeepSourceColumns)
	if err != nil {
		logger.Error("Projection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	target := *outPath
	if target == "" {
		target = paths.ExportPath(defaultOutputName(cfg.Aggregation.BaseGradebook))
	}
	writer := exporter.NewCSVWriter(logger)
	if err := writer.WriteGradebook(target, out); err != nil {
		logger.Error("Export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Aggregation complete",
		slog.String("output", target),
		slog.Int("students", out.NumRows()))
}

func defaultOutputName(basePath string) string {
	if basePath == "" {
		return "aggregated.csv"
	}
	base := filepath.Base(basePath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_aggregated.csv"
}
