package metrics

import (
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	if ScenarioCount == nil {
		t.Error("ScenarioCount metric not initialized")
	}
	if StepFailures == nil {
		t.Error("StepFailures metric not initialized")
	}
	if APILatency == nil {
		t.Error("APILatency metric not initialized")
	}
	if SchemaViolations == nil {
		t.Error("SchemaViolations metric not initialized")
	}
}

func TestRecordScenario(t *testing.T) {
	before := testutil.ToFloat64(ScenarioCount.WithLabelValues("public", "passed"))
	RecordScenario("public", true)
	after := testutil.ToFloat64(ScenarioCount.WithLabelValues("public", "passed"))
	if after != before+1 {
		t.Fatalf("passed counter not incremented: %v -> %v", before, after)
	}

	before = testutil.ToFloat64(ScenarioCount.WithLabelValues("private", "failed"))
	RecordScenario("private", false)
	after = testutil.ToFloat64(ScenarioCount.WithLabelValues("private", "failed"))
	if after != before+1 {
		t.Fatalf("failed counter not incremented: %v -> %v", before, after)
	}
}

func TestRecordStepFailure(t *testing.T) {
	before := testutil.ToFloat64(StepFailures.WithLabelValues("public", "schema"))
	RecordStepFailure("public", "schema")
	after := testutil.ToFloat64(StepFailures.WithLabelValues("public", "schema"))
	if after != before+1 {
		t.Fatalf("step failure counter not incremented")
	}
}

func TestRecordSchemaViolation(t *testing.T) {
	before := testutil.ToFloat64(SchemaViolations.WithLabelValues("server_time_schema.json"))
	RecordSchemaViolation("server_time_schema.json")
	after := testutil.ToFloat64(SchemaViolations.WithLabelValues("server_time_schema.json"))
	if after != before+1 {
		t.Fatalf("schema violation counter not incremented")
	}
}

func TestObserveRequest(t *testing.T) {
	// Histograms have no direct getter; just make sure observing does not panic.
	ObserveRequest("/0/public/Time", "200", 42*time.Millisecond)
	ObserveRequest("/0/private/OpenOrders", "error", time.Second)
}

func TestStartMetricsServer(t *testing.T) {
	port, err := StartMetricsServer(0)
	if err != nil {
		t.Fatalf("start err: %v", err)
	}
	if port == 0 {
		t.Fatalf("expected a real bound port")
	}

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/metrics")
	if err != nil {
		t.Fatalf("scrape err: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		t.Fatalf("empty metrics payload")
	}
}
