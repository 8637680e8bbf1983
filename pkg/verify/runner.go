package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.temporal.io/sdk/log"

	"dev/bravebird/ui-verification-go/pkg/models"
)

// StepObserver is notified after every finished checkpoint
type StepObserver func(models.StepResult)

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the key/value logger used for step progress
func WithLogger(logger log.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver adds a step observer
func WithObserver(obs StepObserver) Option {
	return func(r *Runner) {
		if obs != nil {
			r.observers = append(r.observers, obs)
		}
	}
}

// WithRunID tags results with an external run identifier
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// Runner executes the settings panel scenario against one browser session
type Runner struct {
	launcher  Launcher
	scenario  Scenario
	logger    log.Logger
	observers []StepObserver
	runID     string
}

// NewRunner creates a runner for the given launcher and scenario
func NewRunner(launcher Launcher, scenario Scenario, opts ...Option) *Runner {
	r := &Runner{
		launcher: launcher,
		scenario: scenario,
		logger:   log.NewStructuredLogger(slog.Default()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the scenario. The first failing step aborts the run; the
// browser session is released exactly once on every path after it was
// acquired. A release failure is returned only if nothing failed before it.
func (r *Runner) Run(ctx context.Context) (result models.VerificationResult, err error) {
	start := time.Now()
	result = models.VerificationResult{
		RunID:       r.runID,
		Driver:      r.launcher.Name(),
		Status:      models.StatusRunning,
		StepResults: make([]models.StepResult, 0, len(models.ScenarioSteps)),
	}
	r.logger.Info("Starting settings panel verification", "driver", result.Driver, "url", r.scenario.URL)

	defer func() {
		result.TotalDuration = time.Since(start).Milliseconds()
		if err != nil {
			result.Status = models.StatusFailed
			result.ErrorMessage = err.Error()
			r.logger.Error("Verification failed", "error", err, "duration_ms", result.TotalDuration)
			return
		}
		result.Status = models.StatusSuccess
		r.logger.Info("Verification passed", "duration_ms", result.TotalDuration, "screenshot", result.ScreenshotPath)
	}()

	var (
		session Session
		page    Page
	)
	err = r.step(ctx, &result, models.StepAcquireSession, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, r.scenario.launchTimeout())
		defer cancel()
		s, err := r.launcher.Launch(ctx)
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		session = s
		p, err := session.NewPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to create page: %w", err)
		}
		page = p
		return nil
	})
	if session != nil {
		defer func() {
			releaseErr := r.step(ctx, &result, models.StepReleaseSession, func(context.Context) error {
				if cerr := session.Close(); cerr != nil {
					return &ReleaseError{Err: cerr}
				}
				return nil
			})
			if err == nil {
				err = releaseErr
			}
		}()
	}
	if err != nil {
		return result, err
	}

	s := r.scenario
	w := s.waiter()
	trigger := page.Element(s.TriggerSelector)
	panel := page.Element(s.PanelSelector)
	level := page.Element(s.LevelSelector)

	steps := []struct {
		name models.StepName
		fn   func(ctx context.Context) error
	}{
		{models.StepNavigate, func(ctx context.Context) error {
			err := bounded(ctx, w.Timeout, func(ctx context.Context) error {
				return page.Navigate(ctx, s.URL)
			})
			if err != nil {
				var ne *NavigationError
				if errors.As(err, &ne) {
					return err
				}
				return &NavigationError{URL: s.URL, Err: err}
			}
			return nil
		}},
		{models.StepTriggerVisible, func(ctx context.Context) error {
			return w.ExpectVisible(ctx, trigger)
		}},
		{models.StepOpenPanel, func(ctx context.Context) error {
			return click(ctx, w.Timeout, trigger)
		}},
		{models.StepPanelShown, func(ctx context.Context) error {
			if err := w.ExpectVisible(ctx, panel); err != nil {
				return err
			}
			return w.ExpectClassToken(ctx, panel, s.HiddenClass, false)
		}},
		{models.StepDefaultLevel, func(ctx context.Context) error {
			return w.ExpectValue(ctx, level, s.DefaultLevel)
		}},
		{models.StepChangeLevel, func(ctx context.Context) error {
			err := bounded(ctx, w.Timeout, func(ctx context.Context) error {
				return level.Select(ctx, s.TargetLevel)
			})
			if err != nil {
				return fmt.Errorf("failed to select %q on %s: %w", s.TargetLevel, level.Selector(), err)
			}
			return w.ExpectValue(ctx, level, s.TargetLevel)
		}},
		{models.StepScreenshot, func(ctx context.Context) error {
			err := bounded(ctx, w.Timeout, func(ctx context.Context) error {
				return saveScreenshot(ctx, page, s.ScreenshotPath)
			})
			if err != nil {
				return err
			}
			result.ScreenshotPath = s.ScreenshotPath
			return nil
		}},
		{models.StepClosePanel, func(ctx context.Context) error {
			return click(ctx, w.Timeout, trigger)
		}},
		{models.StepPanelHidden, func(ctx context.Context) error {
			return w.ExpectClassToken(ctx, panel, s.HiddenClass, true)
		}},
	}

	for _, st := range steps {
		if err = r.step(ctx, &result, st.name, st.fn); err != nil {
			return result, err
		}
	}
	return result, nil
}

// step runs one checkpoint and records its outcome
func (r *Runner) step(ctx context.Context, result *models.VerificationResult, name models.StepName, fn func(ctx context.Context) error) error {
	started := time.Now()
	r.logger.Debug("Running step", "step", name, "sequence", name.Sequence())

	err := fn(ctx)

	sr := models.StepResult{
		RunID:      result.RunID,
		SequenceID: name.Sequence(),
		Name:       name,
		Status:     models.StatusSuccess,
		ExecutedAt: &started,
		Duration:   time.Since(started).Milliseconds(),
	}
	if name == models.StepScreenshot {
		sr.ScreenshotPath = result.ScreenshotPath
	}
	if err != nil {
		sr.Status = models.StatusFailed
		sr.ErrorMessage = err.Error()
		r.logger.Error("Step failed", "step", name, "error", err)
	} else {
		r.logger.Info("Step passed", "step", name, "duration_ms", sr.Duration)
	}

	result.StepResults = append(result.StepResults, sr)
	for _, obs := range r.observers {
		obs(sr)
	}
	return err
}

// bounded runs one browser action under its own deadline, so an element
// that never becomes actionable fails the step instead of blocking it
func bounded(ctx context.Context, timeout time.Duration, action func(ctx context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := action(actx)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("gave up after %s: %w", timeout, err)
	}
	return err
}

func click(ctx context.Context, timeout time.Duration, el Element) error {
	err := bounded(ctx, timeout, el.Click)
	if err != nil {
		return fmt.Errorf("failed to click %s: %w", el.Selector(), err)
	}
	return nil
}

// saveScreenshot writes the page capture to path, replacing any previous file
func saveScreenshot(ctx context.Context, page Page, path string) error {
	data, err := page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}
	if len(data) == 0 {
		return errors.New("failed to take screenshot: empty image")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create screenshot dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}
