package verify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultLaunchTimeout covers starting the browser, which may include
	// a first-time browser download
	DefaultLaunchTimeout = 2 * time.Minute
)

// ErrWaitTimeout is returned by Poll when the condition never held
var ErrWaitTimeout = errors.New("timed out waiting for condition")

// Poll runs check immediately and then every interval until it reports
// true, returns an error, or timeout elapses. ErrElementNotFound from check
// counts as "not yet".
func Poll(ctx context.Context, timeout, interval time.Duration, check func(ctx context.Context) (bool, error)) error {
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		done, err := check(ctx)
		if errors.Is(err, ErrElementNotFound) {
			return false, nil
		}
		return done, err
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if wait.Interrupted(err) {
		return ErrWaitTimeout
	}
	return err
}

// Waiter turns element observations into assertions with a fixed wait window
type Waiter struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (w Waiter) expect(ctx context.Context, selector, expectation string, observe func(ctx context.Context) (bool, string, error)) error {
	var last string
	err := Poll(ctx, w.Timeout, w.Interval, func(ctx context.Context) (bool, error) {
		ok, actual, err := observe(ctx)
		switch {
		case errors.Is(err, ErrElementNotFound):
			last = "no matching element"
		case err == nil:
			last = actual
		}
		return ok, err
	})
	if errors.Is(err, ErrWaitTimeout) {
		return &AssertionError{
			Selector:    selector,
			Expectation: expectation,
			Actual:      last,
			Timeout:     w.Timeout,
		}
	}
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", selector, err)
	}
	return nil
}

// ExpectVisible waits until el is rendered and visible
func (w Waiter) ExpectVisible(ctx context.Context, el Element) error {
	return w.expect(ctx, el.Selector(), "to be visible", func(ctx context.Context) (bool, string, error) {
		visible, err := el.Visible(ctx)
		if err != nil {
			return false, "", err
		}
		if !visible {
			return false, "hidden element", nil
		}
		return true, "", nil
	})
}

// ExpectValue waits until el's current value equals want
func (w Waiter) ExpectValue(ctx context.Context, el Element, want string) error {
	return w.expect(ctx, el.Selector(), "value "+strconv.Quote(want), func(ctx context.Context) (bool, string, error) {
		got, err := el.Value(ctx)
		if err != nil {
			return false, "", err
		}
		return got == want, strconv.Quote(got), nil
	})
}

// ExpectClassToken waits until the presence of token in el's class list
// matches present
func (w Waiter) ExpectClassToken(ctx context.Context, el Element, token string, present bool) error {
	expectation := fmt.Sprintf("class list containing %q", token)
	if !present {
		expectation = fmt.Sprintf("class list without %q", token)
	}
	return w.expect(ctx, el.Selector(), expectation, func(ctx context.Context) (bool, string, error) {
		class, err := el.Attribute(ctx, "class")
		if err != nil {
			return false, "", err
		}
		return HasClassToken(class, token) == present, "class=" + strconv.Quote(class), nil
	})
}
