package app

import (
	"context"
	"fmt"
	"time"

	"github.com/antoniostano/parley/internal/artifact"
	"github.com/antoniostano/parley/internal/config"
	"github.com/antoniostano/parley/internal/httpapi"
	"github.com/antoniostano/parley/internal/memory"
	"github.com/antoniostano/parley/internal/observability"
	"github.com/antoniostano/parley/internal/voice"
)

// BuildResult bundles everything main needs to run the relay.
type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Orchestrator *voice.Orchestrator
	Artifacts    artifact.Store
	History      *memory.Log
	Metrics      *observability.Metrics
	Provider     string

	// Cleanup releases external resources (artifact backend connections).
	Cleanup func() error
}

// Build wires the relay from configuration: artifact store, session
// memory, stage adapters, orchestrator and the HTTP surface.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	artifacts, err := artifact.NewStore(ctx, artifact.Options{
		Backend:  cfg.ArtifactBackend,
		Dir:      cfg.ArtifactDir,
		RedisURL: cfg.RedisURL,
		TTL:      cfg.ArtifactTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact store init failed: %w", err)
	}

	setup, err := resolveVoiceProviders(cfg)
	if err != nil {
		_ = artifacts.Close()
		return nil, err
	}

	history := memory.NewLog(cfg.MemoryMaxTurns)
	orchestrator := voice.NewOrchestrator(
		setup.transcriber,
		setup.responder,
		setup.synthesizer,
		artifacts,
		history,
		metrics,
		cfg.StageTimeout,
	)

	api := httpapi.New(cfg, orchestrator, setup.transcriber, setup.responder, setup.synthesizer, artifacts, metrics)

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Orchestrator: orchestrator,
		Artifacts:    artifacts,
		History:      history,
		Metrics:      metrics,
		Provider:     setup.resolvedProvider,
		Cleanup:      artifacts.Close,
	}, nil
}

// StartJanitors launches background retention sweeps for backends that
// need them; redis enforces TTLs natively.
func (b *BuildResult) StartJanitors(ctx context.Context, interval time.Duration) {
	if j, ok := b.Artifacts.(interface {
		StartJanitor(ctx context.Context, interval time.Duration)
	}); ok {
		j.StartJanitor(ctx, interval)
	}
}
