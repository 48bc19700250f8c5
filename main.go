package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/vmg-to-imap/cmd"
	"github.com/dhcgn/vmg-to-imap/config"
	"github.com/dhcgn/vmg-to-imap/filter"
	"github.com/dhcgn/vmg-to-imap/imap"
	"github.com/dhcgn/vmg-to-imap/progress"
	"github.com/dhcgn/vmg-to-imap/runner"
	"github.com/dhcgn/vmg-to-imap/vmsg"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vmg-to-imap",
		Short: "Import SMS messages from vMessage (.vmg) files into an IMAP mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting vmg-to-imap", "source", cfg.SourceDir, "target", cfg.TargetFolder, "dryRun", cfg.DryRun, "stateBackend", cfg.StateBackend)

			return run(cmd.Context(), cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
	cmd.Register(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	paths, err := vmsg.Discover(cfg.SourceDir, cfg.Parse.Extension)
	if err != nil {
		return fmt.Errorf("vmsg.Discover: %w", err)
	}
	logger.Info("vmg files discovered", "count", len(paths))

	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}

	bar := progress.New(len(paths), r.Tracker().Snapshot().Processed, cfg.LogLevel)
	progress.NewProgressReporter(r, bar, logger)

	stopSignals := stopOnSignal(ctx, r, logger)
	defer stopSignals()

	readerOpts := vmsg.Options{
		Root:          cfg.SourceDir,
		Paths:         paths,
		Extension:     cfg.Parse.Extension,
		Workers:       cfg.Parse.Workers,
		Location:      cfg.Parse.Location,
		BodySeparator: cfg.Parse.BodySeparator,
		Filter: filter.Options{
			IncludeNumber: cfg.Parse.IncludeNumber,
			IncludeBody:   cfg.Parse.IncludeBody,
			ExcludeNumber: cfg.Parse.ExcludeNumber,
			ExcludeBody:   cfg.Parse.ExcludeBody,
		},
	}

	if _, err := vmsg.NewProducer(readerOpts, r, logger); err != nil {
		r.Stop()
		_ = r.Start()
		return fmt.Errorf("vmsg.NewProducer: %w", err)
	}

	uploaderOpts := imap.Options{
		Host:               cfg.IMAPHost,
		Port:               cfg.IMAPPort,
		Username:           cfg.IMAPUser,
		Password:           cfg.IMAPPass,
		UseTLS:             cfg.UseTLS,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		TargetFolder:       cfg.TargetFolder,
		SelfAddress:        cfg.SelfAddress,
		DryRun:             cfg.DryRun,
	}

	if _, err := imap.NewUploader(uploaderOpts, r, logger); err != nil {
		r.Stop()
		_ = r.Start()
		return fmt.Errorf("imap.NewUploader: %w", err)
	}

	return r.Start()
}

// stopOnSignal cancels the pipeline on SIGINT/SIGTERM so the state file is
// still flushed and closed.
func stopOnSignal(ctx context.Context, r *runner.Runner, logger *slog.Logger) func() {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if ctx.Err() != nil && r.Context().Err() == nil {
			logger.Warn("interrupted, stopping pipeline")
			r.Stop()
		}
	}()
	return stop
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("vmg-to-imap-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
