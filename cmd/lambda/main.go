// lambda runs one publish cycle per invocation and returns the objects whose
// content changed, so a downstream step can decide whether to republish.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/couchcryptid/covid-data-etl/internal/app"
	"github.com/couchcryptid/covid-data-etl/internal/config"
	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/observability"
	"github.com/couchcryptid/covid-data-etl/internal/pipeline"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (pipeline.Result, error)
}

// Response is the invocation result.
type Response struct {
	RunID   string         `json:"RunId"`
	Version string         `json:"Version"`
	Assets  []domain.Asset `json:"Assets"`
}

// Metrics and the pipeline survive between invocations of a warm container.
var (
	initOnce sync.Once
	initErr  error
	cfg      *config.Config
	metrics  *observability.Metrics
	runner   Runner
)

func setup(ctx context.Context) error {
	initOnce.Do(func() {
		cfg, initErr = config.Load()
		if initErr != nil {
			initErr = fmt.Errorf("load config: %w", initErr)
			return
		}
		logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
		metrics = observability.NewMetrics()
		runner, initErr = app.NewPipeline(ctx, cfg, app.ModePublish, logger, metrics)
	})
	return initErr
}

func handle(ctx context.Context, r Runner) (Response, error) {
	res, err := r.Run(ctx)
	if err != nil {
		return Response{}, err
	}
	assets := res.Assets
	if assets == nil {
		assets = []domain.Asset{}
	}
	return Response{RunID: res.RunID, Version: res.Version, Assets: assets}, nil
}

func handler(ctx context.Context) (Response, error) {
	if err := setup(ctx); err != nil {
		return Response{}, err
	}
	resp, err := handle(ctx, runner)
	app.PushMetrics(context.WithoutCancel(ctx), cfg, slog.Default(), metrics)
	return resp, err
}

func main() {
	awslambda.Start(handler)
}
