package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"dev/bravebird/ui-verification-go/pkg/models"
)

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(metricRuns.WithLabelValues("fake", "success"))

	ObserveRun(models.VerificationResult{Driver: "fake", Status: models.StatusSuccess})

	after := testutil.ToFloat64(metricRuns.WithLabelValues("fake", "success"))
	if after != before+1 {
		t.Errorf("runs_total = %v, want %v", after, before+1)
	}
}

func TestStepObserverTracksActiveRuns(t *testing.T) {
	obs := StepObserver("fake")
	before := testutil.ToFloat64(metricActiveRuns)

	obs(models.StepResult{Name: models.StepAcquireSession, Status: models.StatusSuccess})
	if got := testutil.ToFloat64(metricActiveRuns); got != before+1 {
		t.Errorf("runs_active after acquire = %v, want %v", got, before+1)
	}

	obs(models.StepResult{Name: models.StepReleaseSession, Status: models.StatusSuccess})
	if got := testutil.ToFloat64(metricActiveRuns); got != before {
		t.Errorf("runs_active after release = %v, want %v", got, before)
	}
}

func TestStepObserverIgnoresFailedAcquire(t *testing.T) {
	obs := StepObserver("fake")
	before := testutil.ToFloat64(metricActiveRuns)

	obs(models.StepResult{Name: models.StepAcquireSession, Status: models.StatusFailed})
	obs(models.StepResult{Name: models.StepReleaseSession, Status: models.StatusSuccess})
	if got := testutil.ToFloat64(metricActiveRuns); got != before {
		t.Errorf("runs_active = %v, want %v", got, before)
	}
}
