package verifytest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"dev/bravebird/ui-verification-go/pkg/verify"
)

// FakeDOM models the settings page: a toggle button, a panel that carries
// the "hidden" class while closed and a level select defaulting to "3".
// Fields may be changed before a run to provoke failures.
type FakeDOM struct {
	mu sync.Mutex

	PanelClass   string
	Level        string
	Options      []string
	TriggerShown bool

	// RenderAfter delays the trigger's appearance by this many observations
	RenderAfter int
	observed    int

	// Stuck makes clicks on the trigger ineffective
	Stuck  bool
	Clicks int

	// Covered makes trigger clicks block until the context ends, like a
	// button hidden behind an overlay
	Covered bool
}

// NewFakeDOM returns a page with a closed panel and level 3
func NewFakeDOM() *FakeDOM {
	return &FakeDOM{
		PanelClass:   "settings-panel hidden",
		Level:        "3",
		Options:      []string{"1", "2", "3", "4", "5", "6"},
		TriggerShown: true,
	}
}

func (d *FakeDOM) toggle() {
	d.Clicks++
	if d.Stuck {
		return
	}
	tokens := verify.ClassTokens(d.PanelClass)
	kept := tokens[:0]
	found := false
	for _, tok := range tokens {
		if tok == verify.HiddenClass {
			found = true
			continue
		}
		kept = append(kept, tok)
	}
	if !found {
		kept = append(kept, verify.HiddenClass)
	}
	d.PanelClass = strings.Join(kept, " ")
}

// FakeLauncher is an in-memory verify.Launcher over a FakeDOM. It counts
// launches and session releases.
type FakeLauncher struct {
	DOM        *FakeDOM
	LaunchErr  error
	PageErr    error
	CloseErr   error
	NavErr     error
	Shot       []byte
	Launches   int
	CloseCalls int
}

// NewFakeLauncher returns a launcher whose page satisfies the scenario
func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{DOM: NewFakeDOM(), Shot: []byte("\x89PNG fake")}
}

func (l *FakeLauncher) Name() string { return "fake" }

func (l *FakeLauncher) Launch(ctx context.Context) (verify.Session, error) {
	l.Launches++
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	return &fakeSession{l: l}, nil
}

type fakeSession struct {
	l *FakeLauncher
}

func (s *fakeSession) NewPage(ctx context.Context) (verify.Page, error) {
	if s.l.PageErr != nil {
		return nil, s.l.PageErr
	}
	return &fakePage{l: s.l}, nil
}

func (s *fakeSession) Close() error {
	s.l.CloseCalls++
	return s.l.CloseErr
}

type fakePage struct {
	l      *FakeLauncher
	loaded bool
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if p.l.NavErr != nil {
		return p.l.NavErr
	}
	p.loaded = true
	return nil
}

func (p *fakePage) Element(selector string) verify.Element {
	return &fakeElement{page: p, selector: selector}
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.l.Shot, nil
}

type fakeElement struct {
	page     *fakePage
	selector string
}

func (e *fakeElement) Selector() string { return e.selector }

func (e *fakeElement) dom() (*FakeDOM, error) {
	if !e.page.loaded {
		return nil, verify.ErrElementNotFound
	}
	d := e.page.l.DOM
	d.mu.Lock()
	defer d.mu.Unlock()
	switch e.selector {
	case verify.TriggerSelector:
		d.observed++
		if !d.TriggerShown || d.observed <= d.RenderAfter {
			return nil, verify.ErrElementNotFound
		}
	case verify.PanelSelector, verify.LevelSelector:
	default:
		return nil, verify.ErrElementNotFound
	}
	return d, nil
}

func (e *fakeElement) Visible(ctx context.Context) (bool, error) {
	d, err := e.dom()
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.selector == verify.PanelSelector {
		return !verify.HasClassToken(d.PanelClass, verify.HiddenClass), nil
	}
	return true, nil
}

func (e *fakeElement) Attribute(ctx context.Context, name string) (string, error) {
	d, err := e.dom()
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if name == "class" && e.selector == verify.PanelSelector {
		return d.PanelClass, nil
	}
	return "", nil
}

func (e *fakeElement) Value(ctx context.Context) (string, error) {
	d, err := e.dom()
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.selector != verify.LevelSelector {
		return "", nil
	}
	return d.Level, nil
}

func (e *fakeElement) Click(ctx context.Context) error {
	d, err := e.dom()
	if err != nil {
		return err
	}
	d.mu.Lock()
	covered := d.Covered && e.selector == verify.TriggerSelector
	d.mu.Unlock()
	if covered {
		<-ctx.Done()
		return ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.selector == verify.TriggerSelector {
		d.toggle()
	}
	return nil
}

func (e *fakeElement) Select(ctx context.Context, value string) error {
	d, err := e.dom()
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, opt := range d.Options {
		if opt == value {
			d.Level = value
			return nil
		}
	}
	return errors.New("no option with value " + value)
}
