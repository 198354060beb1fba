package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
	"github.com/vibast-solutions/ms-go-billing-bff/config"
)

var (
	workerMode bool
)

var mismatchesCmd = &cobra.Command{
	Use:   "mismatches",
	Short: "Inspect charges the billing backend failed to record",
}

var mismatchesReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Log every unresolved payment mismatch",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"mismatches_report",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.MismatchReportInterval },
			func(s *service.MismatchService, ctx context.Context) error {
				count, err := s.RunReportBatch(ctx)
				if err != nil {
					return err
				}
				logrus.WithField("job", "mismatches_report").WithField("unresolved", count).Info("Mismatch report finished")
				return nil
			},
		)
	},
}

var mismatchesResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark a payment mismatch as handled by support",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		if cfg.MySQL.DSN == "" {
			return errors.New("MYSQL_DSN is required for mismatch jobs")
		}

		ledger, cleanup := mustOpenLedger(cmd.Context(), cfg)
		defer cleanup()

		return resolveMismatch(cmd.Context(), service.NewMismatchService(ledger, cfg.Jobs.BatchSize), args[0])
	},
}

func resolveMismatch(ctx context.Context, mismatchService *service.MismatchService, rawID string) error {
	id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid mismatch id %q", rawID)
	}
	if err := mismatchService.Resolve(ctx, id); err != nil {
		return fmt.Errorf("resolve mismatch %d: %w", id, err)
	}
	logrus.WithField("job", "mismatches_resolve").WithField("mismatch_id", id).Info("Mismatch resolved")
	return nil
}

func init() {
	rootCmd.AddCommand(mismatchesCmd)
	mismatchesCmd.AddCommand(mismatchesReportCmd)
	mismatchesCmd.AddCommand(mismatchesResolveCmd)

	mismatchesReportCmd.Flags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.MismatchService, ctx context.Context) error,
) {
	cfg := mustLoadConfig()
	if cfg.MySQL.DSN == "" {
		logrus.WithField("job", name).Fatal("MYSQL_DSN is required for mismatch jobs")
	}

	ledger, cleanup := mustOpenLedger(context.Background(), cfg)
	defer cleanup()

	mismatchService := service.NewMismatchService(ledger, cfg.Jobs.BatchSize)

	if workerMode {
		runWorker(name, intervalResolver(cfg), mismatchService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(mismatchService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	mismatchService *service.MismatchService,
	fn func(s *service.MismatchService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(mismatchService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(mismatchService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
