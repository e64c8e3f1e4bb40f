package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vanshika/ledgerwatch/internal/config"
	"github.com/vanshika/ledgerwatch/internal/fraud"
	"github.com/vanshika/ledgerwatch/internal/graph"
	"github.com/vanshika/ledgerwatch/internal/ledger"
	"github.com/vanshika/ledgerwatch/internal/repository"
	"github.com/vanshika/ledgerwatch/internal/service"
)

// App holds the wired components shared by every binary.
type App struct {
	Ledger   *ledger.Ledger
	Detector *fraud.Detector
	Service  *service.BankingService
	// Graph is nil when journaling is disabled.
	Graph graph.Client

	logger *slog.Logger
}

// Option customises Build.
type Option func(*buildOptions)

type buildOptions struct {
	clock       func() time.Time
	graphClient graph.Client
}

// WithClock installs a time source on the ledger, detector and service.
func WithClock(nowFn func() time.Time) Option {
	return func(o *buildOptions) { o.clock = nowFn }
}

// WithGraphClient skips dialing and journals through client instead.
func WithGraphClient(client graph.Client) Option {
	return func(o *buildOptions) { o.graphClient = client }
}

// Build assembles the ledger, the fraud detector and the banking service from
// cfg. The graph journal is only dialed when a URI is configured.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	mode, err := fraud.ParseScanMode(cfg.Fraud.ScanMode)
	if err != nil {
		return nil, fmt.Errorf("fraud scan mode: %w", err)
	}

	l := ledger.New(ledger.Options{
		SavingsRate:       cfg.Ledger.SavingsRate,
		CheckingOverdraft: cfg.Ledger.CheckingOverdraft,
	})
	d := fraud.NewDetector(fraud.Options{
		Rules: fraud.Rules{
			LargeAmount:    cfg.Fraud.LargeAmount,
			VelocityWindow: cfg.Fraud.VelocityWindow,
			MaxBurst:       cfg.Fraud.VelocityMaxBurst,
		},
		Mode:    mode,
		Workers: cfg.Fraud.ScanWorkers,
		Logger:  logger,
		Now:     o.clock,
	})
	if o.clock != nil {
		l.WithClock(o.clock)
	}
	if cfg.Fraud.EnforceBlacklist {
		l.WithAccountGuard(d.CheckAllowed)
	}

	client := o.graphClient
	if client == nil && cfg.Graph.Enabled() {
		client, err = buildGraphClient(ctx, cfg.Graph)
		if err != nil {
			return nil, fmt.Errorf("create graph client: %w", err)
		}
	}

	deps := service.Dependencies{Ledger: l, Detector: d}
	if client != nil {
		deps.Journal = repository.New(client)
	}
	svc := service.NewBankingService(deps, logger)
	if cfg.Graph.WriteTimeout > 0 {
		svc.WithJournalTimeout(cfg.Graph.WriteTimeout)
	}
	if o.clock != nil {
		svc.WithClock(o.clock)
	}

	rules := d.Rules()
	logger.Info("application wired",
		"scan_mode", string(d.Mode()),
		"large_amount", rules.LargeAmount.String(),
		"velocity_window", rules.VelocityWindow.String(),
		"velocity_max_burst", rules.MaxBurst,
		"enforce_blacklist", cfg.Fraud.EnforceBlacklist,
		"journal", client != nil,
	)

	return &App{
		Ledger:   l,
		Detector: d,
		Service:  svc,
		Graph:    client,
		logger:   logger,
	}, nil
}

func buildGraphClient(ctx context.Context, cfg config.GraphConfig) (graph.Client, error) {
	if cfg.URI == "" {
		return nil, graph.ErrMissingURI
	}
	return graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.URI,
		Database:       cfg.Database,
		Username:       cfg.Username,
		Password:       cfg.Password,
		MaxConnections: cfg.MaxConnections,
	})
}

// Close releases the graph connection, if any.
func (a *App) Close(ctx context.Context) {
	if a.Graph == nil {
		return
	}
	if err := a.Graph.Close(ctx); err != nil {
		a.logger.Warn("closing graph client failed", "error", err)
	}
}

// ParseAllowedOrigins splits a comma separated origin list.
func ParseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	var origins []string
	for _, part := range strings.Split(csv, ",") {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
