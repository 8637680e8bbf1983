// Package rodbrowser drives Chromium through go-rod for the settings panel runner.
package rodbrowser

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"dev/bravebird/ui-verification-go/pkg/verify"
)

// Name is the driver name used in results and API requests
const Name = "rod"

// Launcher launches a local Chromium with go-rod
type Launcher struct {
	Headless bool
	// Bin overrides the browser binary; CHROME_BIN is used when empty
	Bin string
}

// NewLauncher returns a headless launcher
func NewLauncher() *Launcher {
	return &Launcher{Headless: true}
}

func (l *Launcher) Name() string { return Name }

// Launch starts the browser and connects to it
func (l *Launcher) Launch(ctx context.Context) (verify.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ctx bounds startup only; the browser process outlives it
	ln := launcher.New().Context(ctx)

	bin := l.Bin
	if bin == "" {
		bin = os.Getenv("CHROME_BIN")
	}
	if bin != "" {
		ln = ln.Bin(bin)
	}

	ln = ln.Headless(l.Headless)

	// Flags for container compatibility
	ln = ln.Set("no-sandbox")
	ln = ln.Set("disable-gpu")
	ln = ln.Set("disable-dev-shm-usage")

	url, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to start chromium: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &rodSession{browser: browser, launcher: ln}, nil
}

type rodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func (s *rodSession) NewPage(ctx context.Context) (verify.Page, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	// Every page call sets its own context
	return &rodPage{page: page.Context(context.Background())}, nil
}

// Close shuts the browser down and removes its temporary profile
func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Cleanup()
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return &verify.NavigationError{URL: url, Err: err}
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

func (p *rodPage) Element(selector string) verify.Element {
	return &rodElement{page: p.page, selector: selector}
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// rodElement re-queries its selector on every call without rod's own retry
// sleeper, so the runner's poller owns all waiting
type rodElement struct {
	page     *rod.Page
	selector string
}

func (e *rodElement) Selector() string { return e.selector }

func (e *rodElement) resolve(ctx context.Context) (*rod.Element, error) {
	has, el, err := e.page.Context(ctx).Has(e.selector)
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, verify.ErrElementNotFound
		}
		return nil, err
	}
	if !has {
		return nil, verify.ErrElementNotFound
	}
	return el, nil
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	el, err := e.resolve(ctx)
	if err != nil {
		return false, err
	}
	return el.Visible()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, error) {
	el, err := e.resolve(ctx)
	if err != nil {
		return "", err
	}
	val, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil
	}
	return *val, nil
}

func (e *rodElement) Value(ctx context.Context) (string, error) {
	el, err := e.resolve(ctx)
	if err != nil {
		return "", err
	}
	val, err := el.Property("value")
	if err != nil {
		return "", err
	}
	return val.Str(), nil
}

func (e *rodElement) Click(ctx context.Context) error {
	el, err := e.resolve(ctx)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Select picks the option whose value attribute equals value and fires
// the input and change events
func (e *rodElement) Select(ctx context.Context, value string) error {
	el, err := e.resolve(ctx)
	if err != nil {
		return err
	}
	selector := fmt.Sprintf("option[value=%q]", value)
	if err := el.Select([]string{selector}, true, rod.SelectorTypeCSSSector); err != nil {
		return fmt.Errorf("no option %s: %w", selector, err)
	}
	return nil
}
