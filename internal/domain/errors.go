package domain

import (
	"fmt"

	"github.com/couchcryptid/covid-data-etl/internal/frame"
)

// SourceFetchError reports a source that could not be retrieved or parsed.
type SourceFetchError struct {
	Source SourceID
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch source %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a column referenced by a rename, select or join
// that its input lacks.
type SchemaMismatchError = frame.SchemaMismatchError

// ColumnCollisionError reports a rename or join that would duplicate a column.
type ColumnCollisionError = frame.ColumnCollisionError

// PublishInconsistencyError reports a publish that flagged changed files while
// no changed asset could be collected from its results.
type PublishInconsistencyError struct {
	Reported int
}

func (e *PublishInconsistencyError) Error() string {
	return fmt.Sprintf("publish reported %d changed file(s) but no changed asset was recorded", e.Reported)
}
