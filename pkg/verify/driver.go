package verify

import "context"

// Launcher starts a browser and hands back an exclusive session
type Launcher interface {
	Name() string
	Launch(ctx context.Context) (Session, error)
}

// Session is an opened browser. Close must release the underlying
// browser process.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single navigable document inside a session
type Page interface {
	Navigate(ctx context.Context, url string) error
	Element(selector string) Element
	// Screenshot captures the current viewport as PNG
	Screenshot(ctx context.Context) ([]byte, error)
}

// Element is a lazily resolved handle: every call re-queries the selector,
// so callers observe DOM changes between calls. Calls return
// ErrElementNotFound when nothing matches.
type Element interface {
	Selector() string
	Visible(ctx context.Context) (bool, error)
	// Attribute returns "" when the attribute is absent
	Attribute(ctx context.Context, name string) (string, error)
	Value(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Select(ctx context.Context, value string) error
}
