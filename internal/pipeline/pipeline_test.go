package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/frame"
	"github.com/couchcryptid/covid-data-etl/internal/observability"
	"github.com/couchcryptid/covid-data-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- mocks ---

type mockExtractor struct {
	src domain.Sources
	err error
}

func (m *mockExtractor) LoadAll(_ context.Context) (domain.Sources, error) {
	return m.src, m.err
}

type mockTransformer struct {
	err      error
	versions []string
}

func (m *mockTransformer) Transform(_ context.Context, _ domain.Sources, version string) (domain.Dataset, error) {
	m.versions = append(m.versions, version)
	if m.err != nil {
		return domain.Dataset{}, m.err
	}
	table := func(name string) *frame.Frame {
		f := frame.MustNew(name, domain.ColDate)
		_ = f.AppendStrings("2021-01-01")
		return f
	}
	return domain.Dataset{
		Version:   version,
		States:    table(domain.StatesTable),
		Counties:  table(domain.CountiesTable),
		Countries: table(domain.CountriesTable),
		Global:    table(domain.GlobalTable),
	}, nil
}

type mockStager struct {
	err    error
	staged []domain.Dataset
}

func (m *mockStager) Stage(_ context.Context, ds domain.Dataset) ([]domain.Artifact, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.staged = append(m.staged, ds)
	var out []domain.Artifact
	for _, t := range ds.Tables() {
		out = append(out, domain.Artifact{Path: "/tmp/" + t.File, Name: t.File, Rows: t.Frame.Len()})
	}
	return out, nil
}

type mockPublisher struct {
	uploads   []domain.Upload
	err       error
	published [][]domain.Artifact
}

func (m *mockPublisher) Publish(_ context.Context, artifacts []domain.Artifact) ([]domain.Upload, error) {
	m.published = append(m.published, artifacts)
	return m.uploads, m.err
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2021, time.January, 2, 15, 30, 45, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func asset(key string) domain.Asset {
	return domain.Asset{Bucket: "covid-data", Key: "covid-19/dataset/" + key}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	freezeClock(t)
	tfm := &mockTransformer{}
	stg := &mockStager{}
	pub := &mockPublisher{uploads: []domain.Upload{
		{Asset: asset("covid_19_us_states.csv"), Changed: false},
		{Asset: asset("covid_19_global.csv"), Changed: true},
	}}
	metrics := newTestMetrics()

	p := pipeline.New(&mockExtractor{}, tfm, stg, pub, testLogger(), metrics)
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "202101021530", res.Version)
	_, err = ulid.Parse(res.RunID)
	require.NoError(t, err)

	assert.True(t, res.Published)
	assert.Equal(t, []domain.Asset{asset("covid_19_global.csv")}, res.Assets)
	require.Len(t, pub.published, 1)
	if diff := cmp.Diff(res.Artifacts, pub.published[0]); diff != "" {
		t.Fatalf("published artifacts differ from staged (-staged +published):\n%s", diff)
	}

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TableRows.WithLabelValues(domain.GlobalTable)), 0)
	assert.Greater(t, testutil.ToFloat64(metrics.LastSuccess), 0.0)
}

func TestPipeline_Run_SingleVersionPerRun(t *testing.T) {
	freezeClock(t)
	tfm := &mockTransformer{}
	stg := &mockStager{}

	p := pipeline.New(&mockExtractor{}, tfm, stg, nil, testLogger(), newTestMetrics())
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{res.Version}, tfm.versions)
	require.Len(t, stg.staged, 1)
	assert.Equal(t, res.Version, stg.staged[0].Version)
}

func TestPipeline_Run_DistinctRunIDs(t *testing.T) {
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, &mockStager{}, nil, testLogger(), newTestMetrics())

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestPipeline_Run_BuildOnly(t *testing.T) {
	stg := &mockStager{}
	metrics := newTestMetrics()

	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, stg, nil, testLogger(), metrics)
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Published)
	assert.Empty(t, res.Assets)
	assert.Len(t, res.Artifacts, 4)
	assert.Equal(t, 3, testutil.CollectAndCount(metrics.StageDuration), "publish stage is never timed")
}

func TestPipeline_Run_NothingChanged(t *testing.T) {
	pub := &mockPublisher{uploads: []domain.Upload{
		{Asset: asset("covid_19_us_states.csv")},
		{Asset: asset("covid_19_global.csv")},
	}}

	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, &mockStager{}, pub, testLogger(), newTestMetrics())
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Published)
	assert.Empty(t, res.Assets)
}

func TestPipeline_Run_StageErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name          string
		ext           *mockExtractor
		tfm           *mockTransformer
		stg           *mockStager
		pub           *mockPublisher
		wantStage     pipeline.Stage
		wantPublished bool
	}{
		{
			name:      "extract",
			ext:       &mockExtractor{err: &domain.SourceFetchError{Source: domain.SourceOWID, Err: boom}},
			tfm:       &mockTransformer{},
			stg:       &mockStager{},
			pub:       &mockPublisher{},
			wantStage: pipeline.StageExtract,
		},
		{
			name:      "transform",
			ext:       &mockExtractor{},
			tfm:       &mockTransformer{err: &domain.SchemaMismatchError{Table: "owid", Op: "select", Columns: []string{"population"}}},
			stg:       &mockStager{},
			pub:       &mockPublisher{},
			wantStage: pipeline.StageTransform,
		},
		{
			name:      "stage",
			ext:       &mockExtractor{},
			tfm:       &mockTransformer{},
			stg:       &mockStager{err: boom},
			pub:       &mockPublisher{},
			wantStage: pipeline.StageStage,
		},
		{
			name:          "publish",
			ext:           &mockExtractor{},
			tfm:           &mockTransformer{},
			stg:           &mockStager{},
			pub:           &mockPublisher{err: boom},
			wantStage:     pipeline.StagePublish,
			wantPublished: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newTestMetrics()
			p := pipeline.New(tt.ext, tt.tfm, tt.stg, tt.pub, testLogger(), metrics)

			_, err := p.Run(context.Background())
			var stageErr *pipeline.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			assert.Equal(t, tt.wantPublished, len(tt.pub.published) > 0, "publish only runs after staging succeeds")
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("failure")), 0)
			assert.InDelta(t, 0, testutil.ToFloat64(metrics.LastSuccess), 0)
		})
	}
}

func TestPipeline_Run_ErrorsKeepTheirType(t *testing.T) {
	ext := &mockExtractor{err: &domain.SourceFetchError{Source: domain.SourceNYTCounties, Err: errors.New("status 503")}}
	p := pipeline.New(ext, &mockTransformer{}, &mockStager{}, &mockPublisher{}, testLogger(), newTestMetrics())

	_, err := p.Run(context.Background())
	var fetchErr *domain.SourceFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.SourceNYTCounties, fetchErr.Source)
	assert.Equal(t, "extract: fetch source nyt_counties: status 503", err.Error())
}

func TestPipeline_Run_PublishInconsistency(t *testing.T) {
	pub := &mockPublisher{uploads: []domain.Upload{{Changed: true}}}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, &mockStager{}, pub, testLogger(), newTestMetrics())

	res, err := p.Run(context.Background())
	var inconsistent *domain.PublishInconsistencyError
	require.ErrorAs(t, err, &inconsistent)
	assert.Equal(t, 1, inconsistent.Reported)

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, pipeline.StagePublish, stageErr.Stage)
	assert.False(t, res.Published)
}

func TestPipeline_Run_RecordsStageDurations(t *testing.T) {
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, &mockStager{}, &mockPublisher{}, testLogger(), metrics)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, testutil.CollectAndCount(metrics.StageDuration))
}
