package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/covid-data-etl/internal/app"
	"github.com/couchcryptid/covid-data-etl/internal/config"
	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/observability"
	"github.com/couchcryptid/covid-data-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the dataset and publish the changed files to S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), cmd.OutOrStdout(), app.ModePublish, output, observability.NewMetrics())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "result format: json or text")
	return cmd
}

func newBuildCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and stage the dataset locally without publishing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), cmd.OutOrStdout(), app.ModeBuild, output, observability.NewMetrics())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "result format: json or text")
	return cmd
}

func execute(ctx context.Context, out io.Writer, mode app.Mode, format string, metrics *observability.Metrics) error {
	if format != "json" && format != "text" {
		return fmt.Errorf("unknown output format %q", format)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.NewPipeline(ctx, cfg, mode, logger, metrics)
	if err != nil {
		return err
	}

	res, runErr := p.Run(ctx)
	app.PushMetrics(context.WithoutCancel(ctx), cfg, logger, metrics)
	if runErr != nil {
		if stage := failedStage(runErr); stage != "" {
			logger.Debug("pipeline stage failed", "stage", stage)
		}
		return runErr
	}
	return writeResult(out, res, format)
}

type resultJSON struct {
	RunID     string            `json:"run_id"`
	Version   string            `json:"version"`
	Published bool              `json:"published"`
	Assets    []domain.Asset    `json:"assets"`
	Artifacts []artifactSummary `json:"artifacts"`
}

type artifactSummary struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

func writeResult(w io.Writer, res pipeline.Result, format string) error {
	if format == "text" {
		fmt.Fprintf(w, "run %s version %s\n", res.RunID, res.Version)
		for _, a := range res.Artifacts {
			fmt.Fprintf(w, "  staged   %-32s %8d rows  %s\n", a.Name, a.Rows, a.Path)
		}
		if !res.Published {
			fmt.Fprintln(w, "  not published")
			return nil
		}
		if len(res.Assets) == 0 {
			fmt.Fprintln(w, "  no changes")
		}
		for _, a := range res.Assets {
			fmt.Fprintf(w, "  uploaded s3://%s/%s\n", a.Bucket, a.Key)
		}
		return nil
	}

	out := resultJSON{
		RunID:     res.RunID,
		Version:   res.Version,
		Published: res.Published,
		Assets:    res.Assets,
		Artifacts: make([]artifactSummary, 0, len(res.Artifacts)),
	}
	if out.Assets == nil {
		out.Assets = []domain.Asset{}
	}
	for _, a := range res.Artifacts {
		out.Artifacts = append(out.Artifacts, artifactSummary{Name: a.Name, Path: a.Path, Rows: a.Rows})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
