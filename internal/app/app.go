// Package app wires configuration into a runnable pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/covid-data-etl/internal/adapter/s3publisher"
	"github.com/couchcryptid/covid-data-etl/internal/adapter/source"
	"github.com/couchcryptid/covid-data-etl/internal/adapter/staging"
	"github.com/couchcryptid/covid-data-etl/internal/config"
	"github.com/couchcryptid/covid-data-etl/internal/observability"
	"github.com/couchcryptid/covid-data-etl/internal/pipeline"
	"github.com/couchcryptid/covid-data-etl/internal/reference"
)

// Mode selects how far a run goes.
type Mode int

const (
	// ModeBuild fetches, transforms and stages the dataset.
	ModeBuild Mode = iota
	// ModePublish additionally uploads the changed files to S3.
	ModePublish
)

// NewPipeline builds a Pipeline from cfg.
func NewPipeline(ctx context.Context, cfg *config.Config, mode Mode, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, error) {
	refs, err := reference.Load(cfg.ReferenceDir)
	if err != nil {
		return nil, fmt.Errorf("load reference tables: %w", err)
	}

	loader := source.NewLoader(cfg.Sources, cfg.FetchTimeout, cfg.FetchMaxRetries, logger, metrics,
		source.WithConcurrency(cfg.FetchConcurrency),
	)
	transformer := pipeline.NewTransformer(refs, logger)
	stager := staging.NewWriter(cfg.DataDir, logger)

	if mode != ModePublish {
		return pipeline.New(loader, transformer, stager, nil, logger, metrics), nil
	}

	if err := cfg.ValidatePublish(); err != nil {
		return nil, err
	}
	publisher, err := s3publisher.New(ctx, cfg.S3, cfg.DataSetName, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	return pipeline.New(loader, transformer, stager, publisher, logger, metrics), nil
}

// PushMetrics sends the run's metrics to the configured Pushgateway. It is a
// no-op when no gateway is configured.
func PushMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := metrics.Push(ctx, cfg.PushgatewayURL, "covid_etl"); err != nil {
		logger.Warn("metrics push failed", "error", err)
	}
}
