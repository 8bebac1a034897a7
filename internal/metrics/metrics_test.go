package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRegistry_ExposesQueueDepthAndJobMetrics(t *testing.T) {
	reg := New()
	reg.SetQueueDepth("whale", 42)
	reg.ObserveJobDuration("whale", 150*time.Millisecond)
	reg.IncJobsProcessed("whale", "completed")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	reg.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"swapwatch_queue_depth",
		`kind="whale"`,
		"swapwatch_job_duration_seconds",
		"swapwatch_jobs_processed_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics body to contain %q", want)
		}
	}
}

func TestDepthWarnThreshold_IsPositive(t *testing.T) {
	if DepthWarnThreshold <= 0 {
		t.Errorf("expected DepthWarnThreshold > 0, got %d", DepthWarnThreshold)
	}
}
