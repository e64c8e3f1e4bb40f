package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vanshika/ledgerwatch/internal/app"
	"github.com/vanshika/ledgerwatch/internal/config"
	"github.com/vanshika/ledgerwatch/internal/generator"
	"github.com/vanshika/ledgerwatch/internal/logging"
	"github.com/vanshika/ledgerwatch/internal/service"
)

var errMissingWorkload = errors.New("workload not found")

func main() {
	var (
		dataDir      = flag.String("data-dir", "./data", "Directory containing workload.json")
		workloadPath = flag.String("workload", "", "Path to a workload file (overrides data-dir)")
		workers      = flag.Int("workers", 4, "Number of concurrent workers for seeding customers and accounts")
		verbose      = flag.Bool("v", false, "Log every rejected operation")
	)
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "replay")

	path, err := resolveWorkloadPath(*dataDir, *workloadPath)
	if err != nil {
		logger.Error("workload resolution failed", "error", err)
		os.Exit(1)
	}
	workload, err := generator.ReadWorkload(path)
	if err != nil {
		logger.Error("failed to load workload", "error", err, "path", path)
		os.Exit(1)
	}
	if len(workload.Accounts) == 0 {
		logger.Error("workload has no accounts", "path", path)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := service.NewReplayClock(replayStart(workload))
	a, err := app.Build(ctx, cfg, logger, app.WithClock(clock.Now))
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	loader := service.NewBulkLoader(a.Service, *workers, clock)

	start := time.Now()
	logger.Info("replaying workload",
		"customers", len(workload.Customers),
		"accounts", len(workload.Accounts),
		"operations", len(workload.Operations),
		"workers", *workers,
	)
	summary, err := loader.Replay(ctx, workload)
	if err != nil {
		logger.Error("replay failed", "error", err, "applied", summary.Applied)
		os.Exit(1)
	}
	if *verbose {
		for _, msg := range summary.Errors {
			logger.Info("operation rejected", "detail", msg)
		}
	}

	logger.Info("replay complete",
		"duration", time.Since(start).String(),
		"applied", summary.Applied,
		"rejected", summary.Rejected,
		"flags", len(summary.Flags),
		"transactions", a.Ledger.TransactionCount(),
	)
}

// replayStart stamps seeding just before the first operation.
func replayStart(w service.Workload) time.Time {
	if len(w.Operations) == 0 || w.Operations[0].At.IsZero() {
		return time.Now().UTC()
	}
	return w.Operations[0].At.Add(-time.Minute)
}

func resolveWorkloadPath(baseDir, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("stat %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}
	path := filepath.Join(baseDir, generator.WorkloadFile)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", errMissingWorkload, path)
	}
	return path, nil
}
