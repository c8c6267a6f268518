package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	res pipeline.Result
	err error
}

func (f *fakeRunner) Run(context.Context) (pipeline.Result, error) { return f.res, f.err }

func TestHandle_ReturnsChangedAssets(t *testing.T) {
	r := &fakeRunner{res: pipeline.Result{
		RunID:     "01HZY5K3W5J8Q9X7V6T4R2P0MN",
		Version:   "202101021530",
		Published: true,
		Assets:    []domain.Asset{{Bucket: "covid-data", Key: "covid-19/dataset/covid_19_global.csv"}},
	}}

	resp, err := handle(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "202101021530", resp.Version)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"RunId": "01HZY5K3W5J8Q9X7V6T4R2P0MN",
		"Version": "202101021530",
		"Assets": [{"Bucket": "covid-data", "Key": "covid-19/dataset/covid_19_global.csv"}]
	}`, string(data))
}

func TestHandle_NoChanges(t *testing.T) {
	resp, err := handle(context.Background(), &fakeRunner{res: pipeline.Result{Published: true}})
	require.NoError(t, err)
	assert.NotNil(t, resp.Assets)
	assert.Empty(t, resp.Assets)
}

func TestHandle_Error(t *testing.T) {
	boom := &pipeline.StageError{Stage: pipeline.StagePublish, Err: &domain.PublishInconsistencyError{Reported: 1}}
	_, err := handle(context.Background(), &fakeRunner{err: boom})

	var inconsistent *domain.PublishInconsistencyError
	assert.True(t, errors.As(err, &inconsistent))
}
