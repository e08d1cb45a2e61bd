package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	ScenarioCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conformance_scenario_total",
			Help: "Scenarios executed, by suite and outcome",
		},
		[]string{"suite", "status"},
	)

	StepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conformance_step_failures_total",
			Help: "Failed steps, by suite and failure kind",
		},
		[]string{"suite", "kind"},
	)

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conformance_api_latency_seconds",
			Help:    "REST request latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"endpoint", "status"},
	)

	SchemaViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conformance_schema_violations_total",
			Help: "Schema validation failures, by schema document",
		},
		[]string{"schema"},
	)
)

func init() {
	prometheus.MustRegister(
		ScenarioCount,
		StepFailures,
		APILatency,
		SchemaViolations,
	)
}

// StartMetricsServer starts the Prometheus endpoint and returns the bound
// port. Port 0 asks the kernel for a free one.
func StartMetricsServer(port int) (int, error) {
	if port < 0 {
		port = 0
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("listen on %s failed: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	log.Info().Int("port", actualPort).Msg("metrics server started")

	go func() {
		if err := http.Serve(listener, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	return actualPort, nil
}

// RecordScenario counts one finished scenario.
func RecordScenario(suite string, passed bool) {
	status := "passed"
	if !passed {
		status = "failed"
	}
	ScenarioCount.WithLabelValues(suite, status).Inc()
}

// RecordStepFailure counts one failed step by kind (network, auth, schema).
func RecordStepFailure(suite, kind string) {
	StepFailures.WithLabelValues(suite, kind).Inc()
}

// ObserveRequest records one REST call's latency.
func ObserveRequest(endpoint, status string, d time.Duration) {
	APILatency.WithLabelValues(endpoint, status).Observe(d.Seconds())
}

// RecordSchemaViolation counts one document failing its schema.
func RecordSchemaViolation(schema string) {
	SchemaViolations.WithLabelValues(schema).Inc()
}
