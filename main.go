// Package main
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"erddap-mirror/packages/config"
	"erddap-mirror/packages/fetch"
	"erddap-mirror/packages/metrics"
	"erddap-mirror/packages/mirror"

	"gopkg.in/natefinch/lumberjack.v2"
)

func setupLogger(cfg config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		logDir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(logDir, 0750); err != nil {
			slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error(
				"Failed to create log directory", "path", logDir, "error", err,
			)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}).WithAttrs([]slog.Attr{slog.String("service", "erddap-mirror")})

	slog.SetDefault(slog.New(handler))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Run-scoped knobs; flags override the environment.
	urls := flag.String("erddap-urls", strings.Join(cfg.ErddapURLs, ","), "Comma-separated list of ERDDAP URLs.")
	formats := flag.String("formats", strings.Join(cfg.Formats, ","), "Download these formats for every dataset.")
	datasetIDs := flag.String("dataset-ids", strings.Join(cfg.DatasetIDs, ","), "Comma-separated dataset IDs; requires a single ERDDAP URL.")
	downloads := flag.String("downloads-folder", cfg.DownloadsFolder, "Folder to save the downloaded files.")
	skipExisting := flag.Bool("skip-existing", cfg.SkipExisting, "Skip downloading files that already exist.")
	tableDatasets := flag.Bool("table-datasets", cfg.TableDatasets, "Include table datasets.")
	gridWithFiles := flag.Bool("grid-datasets-files", cfg.GridWithFiles, "Include grid datasets with a file listing (downloads source files).")
	gridByFormats := flag.Bool("grid-datasets-formats", cfg.GridByFormats, "Include grid datasets without files (downloads by formats).")
	flag.Parse()

	cfg.ErddapURLs = config.SplitList(*urls)
	cfg.Formats = config.SplitList(*formats)
	cfg.DatasetIDs = config.SplitList(*datasetIDs)
	cfg.DownloadsFolder = *downloads
	cfg.SkipExisting = *skipExisting
	cfg.TableDatasets = *tableDatasets
	cfg.GridWithFiles = *gridWithFiles
	cfg.GridByFormats = *gridByFormats

	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting ERDDAP Mirror ---")

	if cfg.MetricsAddr != "" {
		go metrics.ExposeMetrics(cfg.MetricsAddr)
	}

	client := fetch.New(cfg.FetchTimeout, slog.Default())
	m := mirror.New(cfg, client, slog.Default())

	summary, err := m.Run(ctx)
	if err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
	if summary.Failed > 0 {
		slog.Warn("Run completed with missed downloads", "failed", summary.Failed, "report", summary.ReportPath)
	}
}
