package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/observability"
	"github.com/oklog/ulid/v2"
)

// Extractor loads every raw source.
type Extractor interface {
	LoadAll(ctx context.Context) (domain.Sources, error)
}

// Transformer builds the output dataset from the raw sources.
type Transformer interface {
	Transform(ctx context.Context, src domain.Sources, version string) (domain.Dataset, error)
}

// Stager writes the dataset tables to local files.
type Stager interface {
	Stage(ctx context.Context, ds domain.Dataset) ([]domain.Artifact, error)
}

// Publisher uploads staged files and reports which ones changed.
type Publisher interface {
	Publish(ctx context.Context, artifacts []domain.Artifact) ([]domain.Upload, error)
}

// Stage names a pipeline step.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageStage     Stage = "stage"
	StagePublish   Stage = "publish"
)

// StageError reports the step a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result describes a completed run.
type Result struct {
	RunID     string
	Version   string
	Artifacts []domain.Artifact
	// Assets lists the published objects whose content changed. It is empty
	// when nothing changed or when the run did not publish.
	Assets    []domain.Asset
	Published bool
}

// Pipeline runs extract, transform, stage and publish once per call to Run.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	stager      Stager
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Pipeline. A nil publisher builds and stages the dataset
// without publishing it.
func New(e Extractor, t Transformer, s Stager, p Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		stager:      s,
		publisher:   p,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run executes one full run. Nothing is published unless every table was
// built and staged.
func (p *Pipeline) Run(ctx context.Context) (res Result, err error) {
	res = Result{
		RunID:   ulid.Make().String(),
		Version: domain.NewVersion(),
	}
	logger := p.logger.With("run_id", res.RunID, "version", res.Version)
	logger.Info("run started")
	start := time.Now()

	defer func() {
		if err != nil {
			p.metrics.RunsTotal.WithLabelValues("failure").Inc()
			logger.Error("run failed", "error", err, "duration", time.Since(start))
			return
		}
		p.metrics.RunsTotal.WithLabelValues("success").Inc()
		p.metrics.LastSuccess.SetToCurrentTime()
		logger.Info("run finished",
			"duration", time.Since(start),
			"published", res.Published,
			"changed", len(res.Assets),
		)
	}()

	var src domain.Sources
	err = p.timed(logger, StageExtract, func() error {
		src, err = p.extractor.LoadAll(ctx)
		return err
	})
	if err != nil {
		return res, err
	}

	var ds domain.Dataset
	err = p.timed(logger, StageTransform, func() error {
		ds, err = p.transformer.Transform(ctx, src, res.Version)
		if err != nil {
			return err
		}
		for _, t := range ds.Tables() {
			p.metrics.TableRows.WithLabelValues(t.Frame.Name()).Set(float64(t.Frame.Len()))
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	err = p.timed(logger, StageStage, func() error {
		res.Artifacts, err = p.stager.Stage(ctx, ds)
		return err
	})
	if err != nil {
		return res, err
	}

	if p.publisher == nil {
		logger.Info("publish skipped", "artifacts", len(res.Artifacts))
		return res, nil
	}

	err = p.timed(logger, StagePublish, func() error {
		uploads, err := p.publisher.Publish(ctx, res.Artifacts)
		if err != nil {
			return err
		}
		res.Assets, err = domain.ChangedAssets(uploads)
		return err
	})
	if err != nil {
		return res, err
	}
	res.Published = true
	return res, nil
}

// timed runs fn as the named stage, recording its duration and tagging any
// error with the stage.
func (p *Pipeline) timed(logger *slog.Logger, stage Stage, fn func() error) error {
	start := time.Now()
	logger.Info("stage started", "stage", stage)

	err := fn()
	elapsed := time.Since(start)
	p.metrics.StageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		return &StageError{Stage: stage, Err: err}
	}

	logger.Info("stage finished", "stage", stage, "duration", elapsed)
	return nil
}
