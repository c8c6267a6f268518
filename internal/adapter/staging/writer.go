// Package staging writes dataset tables to a local run directory.
package staging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/covid-data-etl/internal/domain"
)

// Writer stages tables under dir/<version>.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// RunDir returns the directory a dataset with the given version is staged in.
func (w *Writer) RunDir(version string) string {
	return filepath.Join(w.dir, version)
}

// Stage writes every table of ds and returns the staged artifacts in
// publication order. Each file is written under a temporary name and renamed
// into place.
func (w *Writer) Stage(ctx context.Context, ds domain.Dataset) ([]domain.Artifact, error) {
	if ds.Version == "" {
		return nil, errors.New("dataset version is required")
	}
	runDir := w.RunDir(ds.Version)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	tables := ds.Tables()
	artifacts := make([]domain.Artifact, 0, len(tables))
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.Frame == nil {
			return nil, fmt.Errorf("table %s is missing", t.File)
		}

		path := filepath.Join(runDir, t.File)
		size, err := writeTable(path, t)
		if err != nil {
			return nil, err
		}

		artifacts = append(artifacts, domain.Artifact{Path: path, Name: t.File, Rows: t.Frame.Len()})
		w.logger.Info("table staged", "file", t.File, "rows", t.Frame.Len(), "bytes", size)
	}
	return artifacts, nil
}

func writeTable(path string, t domain.Table) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+t.File+".*")
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", t.File, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	bw := bufio.NewWriterSize(tmp, 1<<20)
	if err := t.Frame.WriteCSV(bw); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write %s: %w", t.File, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("flush %s: %w", t.File, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("stat %s: %w", t.File, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", t.File, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename %s: %w", t.File, err)
	}
	return info.Size(), nil
}
