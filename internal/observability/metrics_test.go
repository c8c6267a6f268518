package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetricsForTesting()

	m.RunsTotal.WithLabelValues("success").Inc()
	m.Artifacts.WithLabelValues("uploaded").Add(2)
	m.Artifacts.WithLabelValues("unchanged").Inc()
	m.TableRows.WithLabelValues("covid_19_global").Set(10)

	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Artifacts.WithLabelValues("uploaded")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(m.TableRows.WithLabelValues("covid_19_global")), 0)
}

func TestMetrics_Push(t *testing.T) {
	var (
		method, path string
		body         []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetricsForTesting()
	m.RunsTotal.WithLabelValues("success").Inc()
	m.LastSuccess.Set(1609459200)

	require.NoError(t, m.Push(context.Background(), srv.URL, "covid_etl"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/covid_etl", path)
	assert.NotEmpty(t, body)
}

func TestMetrics_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewMetricsForTesting().Push(context.Background(), srv.URL, "covid_etl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("WARNING").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
	assert.Equal(t, "INFO", parseLevel("").String())
}
