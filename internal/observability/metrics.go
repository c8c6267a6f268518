package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "covid_etl"

// Metrics holds the Prometheus collectors for one ETL process.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec   // labels: outcome={success,failure}
	StageDuration *prometheus.HistogramVec // labels: stage={extract,transform,stage,publish}
	SourceRows    *prometheus.GaugeVec     // labels: source
	TableRows     *prometheus.GaugeVec     // labels: table
	Artifacts     *prometheus.CounterVec   // labels: result={uploaded,unchanged}
	FetchRetries  *prometheus.CounterVec   // labels: source
	LastSuccess   prometheus.Gauge

	collectors []prometheus.Collector
}

func newMetrics() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		SourceRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_rows",
			Help:      "Rows read from each source in the last run.",
		}, []string{"source"}),
		TableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows written to each output table in the last run.",
		}, []string{"table"}),
		Artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Published files by result.",
		}, []string{"result"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Retried source fetch attempts.",
		}, []string{"source"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
	m.collectors = []prometheus.Collector{
		m.RunsTotal,
		m.StageDuration,
		m.SourceRows,
		m.TableRows,
		m.Artifacts,
		m.FetchRetries,
		m.LastSuccess,
	}
	return m
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// Push sends the current values to a Prometheus Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	p := push.New(url, job)
	for _, c := range m.collectors {
		p = p.Collector(c)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
