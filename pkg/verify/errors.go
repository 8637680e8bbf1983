package verify

import (
	"errors"
	"fmt"
	"time"
)

// ErrElementNotFound is returned by drivers when a selector matches nothing.
// Polling treats it as "not rendered yet".
var ErrElementNotFound = errors.New("element not found")

// AssertionError reports an expected UI state that was not observed
// within the wait window
type AssertionError struct {
	Selector    string
	Expectation string
	Actual      string
	Timeout     time.Duration
}

func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("assertion failed: %s: expected %s", e.Selector, e.Expectation)
	if e.Actual != "" {
		msg += fmt.Sprintf(", got %s", e.Actual)
	}
	if e.Timeout > 0 {
		msg += fmt.Sprintf(" (waited %s)", e.Timeout)
	}
	return msg
}

// NavigationError reports that the target page could not be loaded,
// typically because no server is listening at the target address
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to navigate to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ReleaseError reports that the browser session could not be closed
type ReleaseError struct {
	Err error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("failed to release browser session: %v", e.Err)
}

func (e *ReleaseError) Unwrap() error { return e.Err }

// IsAssertion reports whether err is (or wraps) an AssertionError
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// IsNavigation reports whether err is (or wraps) a NavigationError
func IsNavigation(err error) bool {
	var ne *NavigationError
	return errors.As(err, &ne)
}
