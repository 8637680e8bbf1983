// Package verifytest checks browser drivers against the settings page
// fixture. Driver packages call RunDriverSuite from their own tests.
package verifytest

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/ui-verification-go/pkg/fixture"
	"dev/bravebird/ui-verification-go/pkg/models"
	"dev/bravebird/ui-verification-go/pkg/verify"
)

const suiteTimeout = 60 * time.Second

// RunDriverSuite exercises launcher against a fixture server. It skips
// when the browser cannot be launched in this environment.
func RunDriverSuite(t *testing.T, launcher verify.Launcher) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	skipUnlessLaunchable(t, launcher)

	t.Run("Scenario", func(t *testing.T) { testScenario(t, launcher) })
	t.Run("TogglePairing", func(t *testing.T) { testTogglePairing(t, launcher) })
	t.Run("SelectRoundTrip", func(t *testing.T) { testSelectRoundTrip(t, launcher) })
	t.Run("LevelPersists", func(t *testing.T) { testLevelPersists(t, launcher) })
	t.Run("UnreachableServer", func(t *testing.T) { testUnreachableServer(t, launcher) })
	t.Run("MissingElement", func(t *testing.T) { testMissingElement(t, launcher) })
}

func skipUnlessLaunchable(t *testing.T, launcher verify.Launcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), suiteTimeout)
	defer cancel()

	session, err := launcher.Launch(ctx)
	if err != nil {
		t.Skipf("%s browser not available: %v", launcher.Name(), err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("failed to close availability check session: %v", err)
	}
}

func scenarioFor(t *testing.T, srv *httptest.Server) verify.Scenario {
	t.Helper()
	s := verify.DefaultScenario()
	s.URL = srv.URL + "/"
	s.ScreenshotPath = filepath.Join(t.TempDir(), "jules-scratch", "verification", "verification.png")
	return s
}

// openPage launches a session, loads the fixture and registers cleanup
func openPage(t *testing.T, launcher verify.Launcher, url string) (context.Context, verify.Page) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), suiteTimeout)
	t.Cleanup(cancel)

	session, err := launcher.Launch(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	page, err := session.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Navigate(ctx, url))
	return ctx, page
}

func testScenario(t *testing.T, launcher verify.Launcher) {
	srv := fixture.NewServer()
	defer srv.Close()
	s := scenarioFor(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), suiteTimeout)
	defer cancel()

	result, err := verify.NewRunner(launcher, s).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Len(t, result.StepResults, len(models.ScenarioSteps))

	info, err := os.Stat(s.ScreenshotPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func testTogglePairing(t *testing.T, launcher verify.Launcher) {
	srv := fixture.NewServer()
	defer srv.Close()
	ctx, page := openPage(t, launcher, srv.URL+"/")

	w := verify.Waiter{Timeout: verify.DefaultTimeout, Interval: verify.DefaultPollInterval}
	trigger := page.Element(verify.TriggerSelector)
	panel := page.Element(verify.PanelSelector)

	require.NoError(t, w.ExpectVisible(ctx, trigger))
	require.NoError(t, w.ExpectClassToken(ctx, panel, verify.HiddenClass, true))

	for n := 1; n <= 4; n++ {
		require.NoError(t, trigger.Click(ctx))
		// odd clicks open the panel, even clicks close it
		hidden := n%2 == 0
		require.NoError(t, w.ExpectClassToken(ctx, panel, verify.HiddenClass, hidden), "after %d clicks", n)
	}
}

func testSelectRoundTrip(t *testing.T, launcher verify.Launcher) {
	srv := fixture.NewServer()
	defer srv.Close()
	ctx, page := openPage(t, launcher, srv.URL+"/")

	w := verify.Waiter{Timeout: verify.DefaultTimeout, Interval: verify.DefaultPollInterval}
	level := page.Element(verify.LevelSelector)

	require.NoError(t, w.ExpectValue(ctx, level, verify.DefaultLevel))

	for _, v := range []string{"1", "2", "3", "4", "5", "6"} {
		require.NoError(t, level.Select(ctx, v))
		got, err := level.Value(ctx)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	assert.Error(t, level.Select(ctx, "7"), "selecting a missing option must fail")
}

func testLevelPersists(t *testing.T, launcher verify.Launcher) {
	srv := fixture.NewServer()
	defer srv.Close()
	ctx, page := openPage(t, launcher, srv.URL+"/")

	w := verify.Waiter{Timeout: verify.DefaultTimeout, Interval: verify.DefaultPollInterval}
	level := page.Element(verify.LevelSelector)
	require.NoError(t, w.ExpectValue(ctx, level, verify.DefaultLevel))
	require.NoError(t, level.Select(ctx, verify.TargetLevel))

	require.NoError(t, page.Navigate(ctx, srv.URL+"/"))
	require.NoError(t, w.ExpectValue(ctx, page.Element(verify.LevelSelector), verify.TargetLevel))
}

func testUnreachableServer(t *testing.T, launcher verify.Launcher) {
	srv := fixture.NewServer()
	url := srv.URL + "/"
	srv.Close()

	s := verify.DefaultScenario()
	s.URL = url
	s.ScreenshotPath = filepath.Join(t.TempDir(), "never.png")

	ctx, cancel := context.WithTimeout(context.Background(), suiteTimeout)
	defer cancel()

	result, err := verify.NewRunner(launcher, s).Run(ctx)
	require.Error(t, err)
	assert.True(t, verify.IsNavigation(err), "got %v", err)

	failed, ok := result.FailedStep()
	require.True(t, ok)
	assert.Equal(t, models.StepNavigate, failed.Name)

	last := result.StepResults[len(result.StepResults)-1]
	assert.Equal(t, models.StepReleaseSession, last.Name)
	assert.Equal(t, models.StatusSuccess, last.Status)

	_, statErr := os.Stat(s.ScreenshotPath)
	assert.True(t, os.IsNotExist(statErr))
}

func testMissingElement(t *testing.T, launcher verify.Launcher) {
	srv := fixture.NewServer()
	defer srv.Close()

	s := scenarioFor(t, srv)
	s.TriggerSelector = "#no-such-button"
	s.Timeout = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), suiteTimeout)
	defer cancel()

	result, err := verify.NewRunner(launcher, s).Run(ctx)
	require.Error(t, err)
	assert.True(t, verify.IsAssertion(err), "got %v", err)

	failed, ok := result.FailedStep()
	require.True(t, ok)
	assert.Equal(t, models.StepTriggerVisible, failed.Name)
}
