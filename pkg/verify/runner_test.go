package verify_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/ui-verification-go/pkg/models"
	"dev/bravebird/ui-verification-go/pkg/verify"
	"dev/bravebird/ui-verification-go/pkg/verify/verifytest"
)

func testScenario(t *testing.T) verify.Scenario {
	t.Helper()
	s := verify.DefaultScenario()
	s.ScreenshotPath = filepath.Join(t.TempDir(), "jules-scratch", "verification", "verification.png")
	s.Timeout = 200 * time.Millisecond
	s.PollInterval = 5 * time.Millisecond
	return s
}

func stepNames(results []models.StepResult) []models.StepName {
	names := make([]models.StepName, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	return names
}

func TestRunnerCompletesScenario(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	s := testScenario(t)

	result, err := verify.NewRunner(l, s, verify.WithRunID("run-1")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "fake", result.Driver)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, models.ScenarioSteps, stepNames(result.StepResults))
	for i, sr := range result.StepResults {
		assert.Equal(t, i+1, sr.SequenceID)
		assert.Equal(t, models.StatusSuccess, sr.Status, "step %s", sr.Name)
	}

	assert.Equal(t, 1, l.Launches)
	assert.Equal(t, 1, l.CloseCalls)
	assert.Equal(t, 2, l.DOM.Clicks)
	assert.Equal(t, "5", l.DOM.Level)
	assert.True(t, verify.HasClassToken(l.DOM.PanelClass, "hidden"))

	info, err := os.Stat(s.ScreenshotPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Equal(t, s.ScreenshotPath, result.ScreenshotPath)
	assert.Equal(t, s.ScreenshotPath, result.StepResults[models.StepScreenshot.Sequence()-1].ScreenshotPath)
}

func TestRunnerOverwritesScreenshot(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	s := testScenario(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.ScreenshotPath), 0755))
	require.NoError(t, os.WriteFile(s.ScreenshotPath, []byte("stale screenshot contents from a previous run"), 0644))

	_, err := verify.NewRunner(l, s).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(s.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, l.Shot, data)
}

func TestRunnerWaitsForLateRender(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	l.DOM.RenderAfter = 5

	_, err := verify.NewRunner(l, testScenario(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, l.CloseCalls)
}

func TestRunnerReleasesSessionOnFailure(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(l *verifytest.FakeLauncher)
		failedStep models.StepName
		check      func(t *testing.T, err error)
	}{
		{
			name:       "trigger never rendered",
			setup:      func(l *verifytest.FakeLauncher) { l.DOM.TriggerShown = false },
			failedStep: models.StepTriggerVisible,
			check: func(t *testing.T, err error) {
				var ae *verify.AssertionError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, verify.TriggerSelector, ae.Selector)
				assert.Equal(t, "no matching element", ae.Actual)
			},
		},
		{
			name:       "panel does not open",
			setup:      func(l *verifytest.FakeLauncher) { l.DOM.Stuck = true },
			failedStep: models.StepPanelShown,
			check: func(t *testing.T, err error) {
				assert.True(t, verify.IsAssertion(err))
			},
		},
		{
			name:       "wrong default level",
			setup:      func(l *verifytest.FakeLauncher) { l.DOM.Level = "4" },
			failedStep: models.StepDefaultLevel,
			check: func(t *testing.T, err error) {
				var ae *verify.AssertionError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, `"4"`, ae.Actual)
			},
		},
		{
			name:       "target level not offered",
			setup:      func(l *verifytest.FakeLauncher) { l.DOM.Options = []string{"1", "2", "3"} },
			failedStep: models.StepChangeLevel,
			check: func(t *testing.T, err error) {
				assert.False(t, verify.IsAssertion(err))
				assert.Contains(t, err.Error(), "failed to select")
			},
		},
		{
			name:       "empty screenshot",
			setup:      func(l *verifytest.FakeLauncher) { l.Shot = nil },
			failedStep: models.StepScreenshot,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "empty image")
			},
		},
		{
			name:       "server unreachable",
			setup:      func(l *verifytest.FakeLauncher) { l.NavErr = errors.New("net::ERR_CONNECTION_REFUSED") },
			failedStep: models.StepNavigate,
			check: func(t *testing.T, err error) {
				var ne *verify.NavigationError
				require.ErrorAs(t, err, &ne)
				assert.Equal(t, verify.TargetURL, ne.URL)
				assert.False(t, verify.IsAssertion(err))
			},
		},
		{
			name:       "page creation fails",
			setup:      func(l *verifytest.FakeLauncher) { l.PageErr = errors.New("target crashed") },
			failedStep: models.StepAcquireSession,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "failed to create page")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := verifytest.NewFakeLauncher()
			tt.setup(l)

			result, err := verify.NewRunner(l, testScenario(t)).Run(context.Background())
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, 1, l.CloseCalls, "session must be released exactly once")
			assert.Equal(t, models.StatusFailed, result.Status)
			assert.Equal(t, err.Error(), result.ErrorMessage)

			failed, ok := result.FailedStep()
			require.True(t, ok)
			assert.Equal(t, tt.failedStep, failed.Name)

			last := result.StepResults[len(result.StepResults)-1]
			assert.Equal(t, models.StepReleaseSession, last.Name)
			assert.Equal(t, models.StatusSuccess, last.Status)
		})
	}
}

func TestRunnerLaunchFailureSkipsRelease(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	l.LaunchErr = errors.New("chrome not found")

	result, err := verify.NewRunner(l, testScenario(t)).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, l.LaunchErr)
	assert.Equal(t, 0, l.CloseCalls)
	assert.Equal(t, []models.StepName{models.StepAcquireSession}, stepNames(result.StepResults))
}

func TestRunnerReleaseFailure(t *testing.T) {
	t.Run("propagates after success", func(t *testing.T) {
		l := verifytest.NewFakeLauncher()
		l.CloseErr = errors.New("browser already gone")

		result, err := verify.NewRunner(l, testScenario(t)).Run(context.Background())
		var re *verify.ReleaseError
		require.ErrorAs(t, err, &re)
		assert.ErrorIs(t, err, l.CloseErr)
		assert.Equal(t, models.StatusFailed, result.Status)
		assert.Equal(t, 1, l.CloseCalls)
	})

	t.Run("does not mask earlier failure", func(t *testing.T) {
		l := verifytest.NewFakeLauncher()
		l.CloseErr = errors.New("browser already gone")
		l.DOM.Level = "1"

		_, err := verify.NewRunner(l, testScenario(t)).Run(context.Background())
		assert.True(t, verify.IsAssertion(err))
		assert.Equal(t, 1, l.CloseCalls)
	})
}

func TestRunnerObserver(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	var seen []models.StepName

	_, err := verify.NewRunner(l, testScenario(t), verify.WithObserver(func(sr models.StepResult) {
		seen = append(seen, sr.Name)
	})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ScenarioSteps, seen)
}

func TestRunnerCanceledContext(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	l.DOM.TriggerShown = false
	s := testScenario(t)
	s.Timeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := verify.NewRunner(l, s).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.CloseCalls)
}

func TestRunnerBoundsBlockedAction(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	l.DOM.Covered = true
	s := testScenario(t)

	start := time.Now()
	result, err := verify.NewRunner(l, s).Run(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "failed to click "+verify.TriggerSelector)
	assert.Less(t, elapsed, 10*s.Timeout, "a blocked click must fail within the wait window")

	failed, ok := result.FailedStep()
	require.True(t, ok)
	assert.Equal(t, models.StepOpenPanel, failed.Name)
	assert.Equal(t, 1, l.CloseCalls)
	assert.Equal(t, 0, l.DOM.Clicks)
}
