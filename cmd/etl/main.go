package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "covid-etl",
		Short: "Build and publish the unified COVID-19 dataset",
		Long: `covid-etl downloads the NYT, OWID and COVID Tracking Project sources,
normalizes them into state, county and country tables, unifies them into one
long-form global table and publishes the files whose content changed to S3.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newBuildCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// Exit codes distinguish the failure classes for schedulers.
const (
	exitFailure      = 1
	exitSourceFetch  = 2
	exitSchema       = 3
	exitInconsistent = 4
)

func exitCode(err error) int {
	var (
		fetchErr     *domain.SourceFetchError
		mismatch     *domain.SchemaMismatchError
		collision    *domain.ColumnCollisionError
		inconsistent *domain.PublishInconsistencyError
	)
	switch {
	case errors.As(err, &fetchErr):
		return exitSourceFetch
	case errors.As(err, &mismatch), errors.As(err, &collision):
		return exitSchema
	case errors.As(err, &inconsistent):
		return exitInconsistent
	default:
		return exitFailure
	}
}

// failedStage returns the pipeline stage err came from, if any.
func failedStage(err error) string {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return string(stageErr.Stage)
	}
	return ""
}
