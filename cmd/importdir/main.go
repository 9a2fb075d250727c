// Command importdir imports every CSV and XLSX file in a directory into a
// template's collection. Without --apply it only previews each file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/importcheck/internal/config"
	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/logging"
	"github.com/JonMunkholm/importcheck/internal/storage"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("importdir failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts dirOptions

	cmd := &cobra.Command{
		Use:           "importdir",
		Short:         "Import a directory of CSV/XLSX files into a template",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logFile := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
			defer logFile.Close()

			return runDir(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory containing upload files (required)")
	cmd.Flags().StringVar(&opts.templateID, "template", "", "Template ID to import into (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Store rows (default is a dry-run preview)")
	cmd.Flags().StringVar(&opts.doneDir, "done-dir", "imported", "Subdirectory that imported files are moved to")
	cmd.Flags().StringVar(&opts.reportPath, "error-report", "", "Write invalid records of the template to this XLSX file after importing")
	cmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "Continue with the next file when one fails")

	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func runDir(ctx context.Context, cfg *config.Config, opts dirOptions) error {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	service := core.NewService(store, nil, core.Options{
		DefaultDateFormat:    cfg.Validation.DefaultDateFormat,
		AggregateWorkers:     cfg.Aggregate.Workers,
		AggregateChunkSize:   cfg.Aggregate.ChunkSize,
		StatusConcurrency:    cfg.Aggregate.StatusConcurrency,
		MaxConcurrentImports: 1,
		ImportWait:           cfg.Import.MaxWaitTime,
		ImportBatchSize:      cfg.Import.BatchSize,
		MaxFileSize:          cfg.Import.MaxFileSize,
		RevalidateWorkers:    cfg.Aggregate.RevalidateWorkers,
	})

	if _, err := service.GetTemplate(ctx, opts.templateID); err != nil {
		return fmt.Errorf("template %s: %w", opts.templateID, err)
	}

	sum, err := processDir(ctx, service, opts)
	slog.Info("directory processed",
		"dir", opts.dir,
		"files", sum.Files,
		"failed", sum.Failed,
		"rows", sum.TotalRows,
		"valid", sum.ValidRows,
		"invalid", sum.InvalidRows,
		"apply", opts.apply,
	)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return errors.New("one or more files failed")
	}

	if opts.apply && opts.reportPath != "" && sum.InvalidRows > 0 {
		if err := writeReport(ctx, service, opts.templateID, opts.reportPath); err != nil {
			return err
		}
		slog.Info("error report written", "path", opts.reportPath)
	}
	return nil
}
