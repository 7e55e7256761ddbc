package observability

import (
	"testing"
	"time"

	"github.com/jpitassi/silverpop/internal/logging"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(apiRequests.WithLabelValues("call", OutcomeFault))
	RecordRequest("call", OutcomeFault, 12*time.Millisecond)
	if got := testutil.ToFloat64(apiRequests.WithLabelValues("call", OutcomeFault)); got != before+1 {
		t.Fatalf("expected counter %v, got %v", before+1, got)
	}

	faults := testutil.ToFloat64(apiFaults.WithLabelValues("login"))
	RecordFaults("login", 2)
	RecordFaults("login", 0)
	if got := testutil.ToFloat64(apiFaults.WithLabelValues("login")); got != faults+2 {
		t.Fatalf("expected faults %v, got %v", faults+2, got)
	}

	logging.Logf("observability/metrics: registration idempotent and recording paths executed")
}
