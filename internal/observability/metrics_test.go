package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(sessions.WithLabelValues(DirectionWrite, OutcomeOK))
	RecordSession(DirectionWrite, true, 3, 120, 2*time.Millisecond)
	RecordSession(DirectionRead, false, 1, 40, time.Millisecond)
	RecordCacheLookup(true)
	RecordCacheLookup(false)

	if got := testutil.ToFloat64(sessions.WithLabelValues(DirectionWrite, OutcomeOK)); got != before+1 {
		t.Fatalf("unexpected write session count: %v", got)
	}
	if got := testutil.ToFloat64(sessions.WithLabelValues(DirectionRead, OutcomeFailed)); got < 1 {
		t.Fatalf("expected failed read session recorded, got %v", got)
	}
	if got := testutil.ToFloat64(cacheLookups.WithLabelValues("miss")); got < 1 {
		t.Fatalf("expected cache miss recorded, got %v", got)
	}
}

func TestWriteTextExposesSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(sessions)
	sessions.WithLabelValues(DirectionRead, OutcomeOK).Inc()

	var buf bytes.Buffer
	if err := WriteText(&buf, reg); err != nil {
		t.Fatalf("write text: %v", err)
	}
	text := buf.String()
	for _, want := range []string{
		"# TYPE instantgraph_session_total counter",
		`instantgraph_session_total{direction="read",outcome="ok"}`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}
