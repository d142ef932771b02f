// Command seispick is the headless front of the picking toolchain: it
// fetches waveforms from local files and the configured data servers, runs
// the cleanup passes, stages the external location programs and writes the
// surviving streams to stdout as a tracejson payload. Warnings meant for the
// operator go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quakelab/seispick/internal/acquire"
	"github.com/quakelab/seispick/internal/adapter/archive"
	"github.com/quakelab/seispick/internal/adapter/fdsn"
	"github.com/quakelab/seispick/internal/codec/tracejson"
	"github.com/quakelab/seispick/internal/config"
	"github.com/quakelab/seispick/internal/domain"
	"github.com/quakelab/seispick/internal/keymap"
	"github.com/quakelab/seispick/internal/observability"
	"github.com/quakelab/seispick/internal/pipeline"
	"github.com/quakelab/seispick/internal/staging"
)

func main() {
	// Credentials may live in a .env file next to the binary.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.ShowKeys {
		bindings := keymap.Default()
		if err := bindings.CheckConflicts(); err != nil {
			slog.Error("keybinding check failed", "error", err)
			os.Exit(1)
		}
		fmt.Print(bindings)
		return
	}

	logger := observability.NewLogger(cfg.Verbosity, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, promhttp.Handler()); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics exposed", "addr", cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Options, logger *slog.Logger, metrics *observability.Metrics) error {
	programs, err := staging.LoadPrograms(cfg.ProgramsFile)
	if err != nil {
		return err
	}
	workspace, err := staging.Setup(cfg.PluginPath, programs, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := workspace.Remove(); err != nil {
			logger.Warn("failed to remove scratch directory", "dir", workspace.Dir, "error", err)
		}
	}()

	if len(cfg.Files) == 0 && len(cfg.FDSNIDs) == 0 && len(cfg.ArchiveIDs) == 0 {
		logger.Warn("no waveform sources configured, nothing to fetch")
		return nil
	}

	start, end, err := cfg.Window()
	if err != nil {
		return err
	}

	fetcher := &acquire.Fetcher{
		Files:          cfg.Files,
		FDSNIDs:        cfg.FDSNIDs,
		ArchiveIDs:     cfg.ArchiveIDs,
		NoMetadata:     cfg.NoMetadata,
		IgnoreChecksum: cfg.IgnoreChecksum,
		Start:          start,
		End:            end,
		Logger:         logger,
		Metrics:        metrics,
	}
	if len(cfg.MetadataFiles) > 0 {
		fetcher.Metadata, err = acquire.LoadMetadata(cfg.MetadataFiles)
		if err != nil {
			return err
		}
	}
	if len(cfg.FDSNIDs) > 0 {
		client := fdsn.NewClient(cfg.FDSNServer, cfg.FDSNPort, cfg.FDSNUser, cfg.FDSNPassword,
			cfg.FDSNTimeout, !cfg.NoMetadata, logger)
		fetcher.FDSN = client
		fetcher.FDSNLister = client
	}
	if len(cfg.ArchiveIDs) > 0 {
		fetcher.Archive = archive.NewClient(cfg.ArchiveServer, cfg.ArchivePort,
			cfg.ArchiveUser, cfg.ArchiveInstitution, cfg.ArchiveTimeout, logger)
	}

	groups, err := fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	logger.Info("acquisition finished", "groups", len(groups))

	cleaner := pipeline.NewCleaner(logger, metrics)
	warnings, mergeHint, accepted, err := cleaner.Cleanup(groups, pipeline.Options{
		Merge:          cfg.Merge,
		SuppressDemean: cfg.NoZeroMean,
		NoMetadata:     cfg.NoMetadata,
	})
	if err != nil {
		return err
	}
	accepted = cleaner.CleanupMetadata(accepted, cfg.NoMetadata)

	if warnings != "" {
		fmt.Fprint(os.Stderr, warnings)
	}
	if mergeHint != "" {
		fmt.Fprintln(os.Stderr, mergeHint)
	}

	var traces []*domain.Trace
	for _, g := range accepted {
		traces = append(traces, g.Traces...)
	}
	payload, err := tracejson.Encode(traces)
	if err != nil {
		return err
	}
	if _, err := os.Stdout.Write(append(payload, '\n')); err != nil {
		return err
	}

	logger.Info("cleanup finished", "accepted", len(accepted), "discarded", len(groups)-len(accepted))
	return nil
}
