// Package pwbrowser drives Chromium through playwright-go for the settings
// panel runner.
package pwbrowser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"dev/bravebird/ui-verification-go/pkg/verify"
)

// Name is the driver name used in results and API requests
const Name = "playwright"

// actionTimeout bounds single playwright calls; waiting for expected state
// is done by the runner's poller
const actionTimeout = 5 * time.Second

// Launcher starts the playwright driver and a Chromium instance
type Launcher struct {
	Headless bool
	// Install downloads the driver and browsers before the first launch
	Install bool
}

// NewLauncher returns a headless launcher
func NewLauncher() *Launcher {
	return &Launcher{Headless: true}
}

func (l *Launcher) Name() string { return Name }

// Launch starts playwright and a Chromium browser
func (l *Launcher) Launch(ctx context.Context) (verify.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.Headless),
		Args:     []string{"--no-sandbox", "--disable-gpu", "--disable-dev-shm-usage"},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to start chromium: %w", err)
	}

	return &pwSession{pw: pw, browser: browser}, nil
}

type pwSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func (s *pwSession) NewPage(ctx context.Context) (verify.Page, error) {
	bctx, err := s.browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	bctx.SetDefaultTimeout(float64(actionTimeout.Milliseconds()))
	bctx.SetDefaultNavigationTimeout(float64(actionTimeout.Milliseconds()))

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &pwPage{page: page}, nil
}

// Close closes the browser and stops the driver process
func (s *pwSession) Close() error {
	err := s.browser.Close()
	if stopErr := s.pw.Stop(); err == nil {
		err = stopErr
	}
	return err
}

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) Navigate(ctx context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeoutFor(ctx),
	})
	if err != nil {
		return &verify.NavigationError{URL: url, Err: err}
	}
	return nil
}

func (p *pwPage) Element(selector string) verify.Element {
	return &pwElement{locator: p.page.Locator(selector), selector: selector}
}

func (p *pwPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypePng,
		Timeout: timeoutFor(ctx),
	})
}

// pwElement wraps a locator, which re-resolves its selector on every call
type pwElement struct {
	locator  playwright.Locator
	selector string
}

func (e *pwElement) Selector() string { return e.selector }

// present reports ErrElementNotFound instead of letting playwright
// auto-wait for the selector
func (e *pwElement) present() error {
	n, err := e.locator.Count()
	if err != nil {
		return err
	}
	if n == 0 {
		return verify.ErrElementNotFound
	}
	return nil
}

func (e *pwElement) Visible(ctx context.Context) (bool, error) {
	if err := e.present(); err != nil {
		return false, err
	}
	return e.locator.First().IsVisible()
}

func (e *pwElement) Attribute(ctx context.Context, name string) (string, error) {
	if err := e.present(); err != nil {
		return "", err
	}
	return e.locator.First().GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: timeoutFor(ctx),
	})
}

func (e *pwElement) Value(ctx context.Context) (string, error) {
	if err := e.present(); err != nil {
		return "", err
	}
	return e.locator.First().InputValue(playwright.LocatorInputValueOptions{
		Timeout: timeoutFor(ctx),
	})
}

func (e *pwElement) Click(ctx context.Context) error {
	if err := e.present(); err != nil {
		return err
	}
	return e.locator.First().Click(playwright.LocatorClickOptions{
		Timeout: timeoutFor(ctx),
	})
}

func (e *pwElement) Select(ctx context.Context, value string) error {
	if err := e.present(); err != nil {
		return err
	}
	selected, err := e.locator.First().SelectOption(playwright.SelectOptionValues{
		Values: &[]string{value},
	}, playwright.LocatorSelectOptionOptions{
		Timeout: timeoutFor(ctx),
	})
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no option with value %q", value)
	}
	return nil
}

// timeoutFor converts the context deadline into playwright's millisecond
// timeout, capped at actionTimeout
func timeoutFor(ctx context.Context) *float64 {
	d := actionTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d <= 0 {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}
