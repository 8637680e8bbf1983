package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"dev/bravebird/ui-verification-go/pkg/models"
	"dev/bravebird/ui-verification-go/pkg/temporal/workflows"
	"dev/bravebird/ui-verification-go/pkg/verify"
	"dev/bravebird/ui-verification-go/pkg/verify/verifytest"
)

type recordingStore struct {
	saved []models.VerificationResult
	err   error
}

func (s *recordingStore) SaveRunResult(_ context.Context, result models.VerificationResult) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, result)
	return nil
}

func newTestActivities(t *testing.T, l *verifytest.FakeLauncher) (*Activities, *testsuite.TestActivityEnvironment) {
	t.Helper()
	a := &Activities{
		ScreenshotDir: t.TempDir(),
		NewLauncher: func(string) (verify.Launcher, error) {
			return l, nil
		},
	}
	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(a)
	return a, env
}

func TestRunVerificationActivity(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	a, env := newTestActivities(t, l)

	val, err := env.ExecuteActivity(a.RunVerificationActivity, models.WorkflowInput{RunID: "abc", Driver: "fake"})
	require.NoError(t, err)

	var result models.VerificationResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "abc", result.RunID)
	assert.Len(t, result.StepResults, len(models.ScenarioSteps))

	want := filepath.Join(a.ScreenshotDir, "abc.png")
	assert.Equal(t, want, result.ScreenshotPath)
	_, statErr := os.Stat(want)
	assert.NoError(t, statErr)
	assert.Equal(t, 1, l.CloseCalls)
}

func TestRunVerificationActivityFailureCarriesResult(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	l.NavErr = errors.New("net::ERR_CONNECTION_REFUSED")
	a, env := newTestActivities(t, l)

	_, err := env.ExecuteActivity(a.RunVerificationActivity, models.WorkflowInput{RunID: "abc", Driver: "fake"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, workflows.ErrTypeNavigation, appErr.Type())
	assert.True(t, appErr.NonRetryable())

	var result models.VerificationResult
	require.NoError(t, appErr.Details(&result))
	assert.Equal(t, models.StatusFailed, result.Status)
	failed, ok := result.FailedStep()
	require.True(t, ok)
	assert.Equal(t, models.StepNavigate, failed.Name)
	assert.Equal(t, 1, l.CloseCalls)
}

func TestRunVerificationActivityUnknownDriver(t *testing.T) {
	a := NewActivities(nil, t.TempDir())
	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(a)

	_, err := env.ExecuteActivity(a.RunVerificationActivity, models.WorkflowInput{RunID: "abc", Driver: "netscape"})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, workflows.ErrTypeDriver, appErr.Type())
}

func TestRecordRunResultActivity(t *testing.T) {
	result := models.VerificationResult{RunID: "abc", Status: models.StatusSuccess}

	t.Run("saves result", func(t *testing.T) {
		store := &recordingStore{}
		a := NewActivities(store, "")
		var s testsuite.WorkflowTestSuite
		env := s.NewTestActivityEnvironment()
		env.RegisterActivity(a)

		_, err := env.ExecuteActivity(a.RecordRunResultActivity, result)
		require.NoError(t, err)
		require.Len(t, store.saved, 1)
		assert.Equal(t, "abc", store.saved[0].RunID)
	})

	t.Run("store error", func(t *testing.T) {
		a := NewActivities(&recordingStore{err: errors.New("deadlock")}, "")
		var s testsuite.WorkflowTestSuite
		env := s.NewTestActivityEnvironment()
		env.RegisterActivity(a)

		_, err := env.ExecuteActivity(a.RecordRunResultActivity, result)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deadlock")
	})

	t.Run("no store", func(t *testing.T) {
		a := NewActivities(nil, "")
		var s testsuite.WorkflowTestSuite
		env := s.NewTestActivityEnvironment()
		env.RegisterActivity(a)

		_, err := env.ExecuteActivity(a.RecordRunResultActivity, result)
		require.NoError(t, err)
	})
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"assertion", &verify.AssertionError{Selector: "#hsk-level"}, workflows.ErrTypeAssertion},
		{"navigation", &verify.NavigationError{URL: verify.TargetURL, Err: errors.New("refused")}, workflows.ErrTypeNavigation},
		{"release", &verify.ReleaseError{Err: errors.New("gone")}, workflows.ErrTypeRelease},
		{"other", errors.New("failed to launch browser"), workflows.ErrTypeRun},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorType(tt.err))
		})
	}
}

func TestRunVerificationActivityHeartbeatsSteps(t *testing.T) {
	l := verifytest.NewFakeLauncher()
	a, env := newTestActivities(t, l)

	var mu sync.Mutex
	var beats []models.VerificationResult
	env.SetOnActivityHeartbeatListener(func(_ *activity.Info, details converter.EncodedValues) {
		var progress models.VerificationResult
		if err := details.Get(&progress); err != nil {
			t.Errorf("decode heartbeat: %v", err)
			return
		}
		mu.Lock()
		beats = append(beats, progress)
		mu.Unlock()
	})

	_, err := env.ExecuteActivity(a.RunVerificationActivity, models.WorkflowInput{RunID: "abc", Driver: "fake"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, beats)
	require.NotEmpty(t, beats[0].StepResults)
	assert.Equal(t, models.StepAcquireSession, beats[0].StepResults[0].Name)

	prev := 0
	for _, b := range beats {
		assert.Equal(t, "abc", b.RunID)
		assert.Equal(t, models.StatusRunning, b.Status)
		assert.GreaterOrEqual(t, len(b.StepResults), prev)
		assert.LessOrEqual(t, len(b.StepResults), len(models.ScenarioSteps))
		prev = len(b.StepResults)
	}
}
