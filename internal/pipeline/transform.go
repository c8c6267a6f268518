package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/reference"
)

// DatasetTransformer implements Transformer using the domain normalizers and
// the grain unifier.
type DatasetTransformer struct {
	refs   reference.Tables
	logger *slog.Logger
}

// NewTransformer creates a DatasetTransformer joining against refs.
func NewTransformer(refs reference.Tables, logger *slog.Logger) *DatasetTransformer {
	return &DatasetTransformer{
		refs:   refs,
		logger: logger,
	}
}

func (t *DatasetTransformer) Transform(ctx context.Context, src domain.Sources, version string) (domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return domain.Dataset{}, err
	}

	ds, err := domain.Build(src, t.refs, version)
	if err != nil {
		return domain.Dataset{}, err
	}

	for _, table := range ds.Tables() {
		t.logger.Debug("table built", "table", table.Frame.Name(), "rows", table.Frame.Len())
	}
	return ds, nil
}
