package server

import (
	"context"
	"fmt"

	"github.com/vanshika/ledgerwatch/internal/graph"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a plain function to HealthService.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

// GraphHealthService checks the journal connection. A nil client means
// journaling is disabled, which is healthy.
type GraphHealthService struct {
	Client graph.Client
}

func (s GraphHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	if err := s.Client.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("graph journal: %w", err)
	}
	return nil
}

// CompositeHealth probes each service in order and fails on the first error.
type CompositeHealth []HealthService

func (c CompositeHealth) Probe(ctx context.Context) error {
	for _, svc := range c {
		if svc == nil {
			continue
		}
		if err := svc.Probe(ctx); err != nil {
			return err
		}
	}
	return nil
}
