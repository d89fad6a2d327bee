package apicore

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metadataStartTime = "metrics_start_time"

// MetricsCollector provides Prometheus metrics for the request lifecycle.
// It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	loading         prometheus.Gauge
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)

	return &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicore_requests_total",
				Help: "Total number of settled API requests",
			},
			[]string{"method", "status_code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apicore_request_duration_seconds",
				Help:    "Duration of API requests including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicore_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicore_errors_total",
				Help: "Total number of classified errors",
			},
			[]string{"kind"},
		),
		loading: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "apicore_loading",
				Help: "1 while at least one tracked request is outstanding",
			},
		),
	}
}

// SetLoading records the loading state; suitable as a loading subscriber.
func (m *MetricsCollector) SetLoading(loading bool) {
	if loading {
		m.loading.Set(1)
	} else {
		m.loading.Set(0)
	}
}

// Stage returns the pipeline stage recording request metrics.
func (m *MetricsCollector) Stage() Stage {
	return funcStage{
		before: func(ctx context.Context, req *Request) error {
			req.SetMetadata(metadataStartTime, time.Now())

			return nil
		},
		after: func(ctx context.Context, req *Request, resp *Response) error {
			m.requestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()

			if start, ok := req.Metadata[metadataStartTime].(time.Time); ok {
				m.requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
			}

			if resp.Attempts > 1 {
				m.retriesTotal.WithLabelValues(req.Method).Add(float64(resp.Attempts - 1))
			}

			if apiErr, ok := AsError(resp.Error); ok {
				m.errorsTotal.WithLabelValues(apiErr.Kind.String()).Inc()
			}

			return nil
		},
	}
}
