package verify

import "time"

// Fixed contract of the page under test
const (
	TargetURL       = "http://127.0.0.1:8080"
	TriggerSelector = "#settings-button"
	PanelSelector   = "#settings-panel"
	LevelSelector   = "#hsk-level"
	HiddenClass     = "hidden"
	DefaultLevel    = "3"
	TargetLevel     = "5"
	ScreenshotPath  = "jules-scratch/verification/verification.png"
)

// Scenario holds the selectors and values the runner checks against
type Scenario struct {
	URL             string
	TriggerSelector string
	PanelSelector   string
	LevelSelector   string
	HiddenClass     string
	DefaultLevel    string
	TargetLevel     string
	ScreenshotPath  string
	Timeout         time.Duration // bounds every assertion and every single browser action
	PollInterval    time.Duration
	LaunchTimeout   time.Duration
}

// DefaultScenario returns the settings panel scenario with its fixed constants
func DefaultScenario() Scenario {
	return Scenario{
		URL:             TargetURL,
		TriggerSelector: TriggerSelector,
		PanelSelector:   PanelSelector,
		LevelSelector:   LevelSelector,
		HiddenClass:     HiddenClass,
		DefaultLevel:    DefaultLevel,
		TargetLevel:     TargetLevel,
		ScreenshotPath:  ScreenshotPath,
		Timeout:         DefaultTimeout,
		PollInterval:    DefaultPollInterval,
		LaunchTimeout:   DefaultLaunchTimeout,
	}
}

func (s Scenario) launchTimeout() time.Duration {
	if s.LaunchTimeout <= 0 {
		return DefaultLaunchTimeout
	}
	return s.LaunchTimeout
}

func (s Scenario) waiter() Waiter {
	w := Waiter{Timeout: s.Timeout, Interval: s.PollInterval}
	if w.Timeout <= 0 {
		w.Timeout = DefaultTimeout
	}
	if w.Interval <= 0 {
		w.Interval = DefaultPollInterval
	}
	return w
}
