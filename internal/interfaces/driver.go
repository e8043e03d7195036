package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/lexport/internal/models"
)

// PageState is the driver's view of the loaded page.
type PageState struct {
	Title string
	URL   string
}

// ElementRef is a stable handle to a located element. Selector is a CSS path
// valid against the page snapshot it was resolved from; Text is the rendered
// text it matched, kept for diagnostics.
type ElementRef struct {
	Selector string
	Text     string
}

// PageDriver is the capability surface the workflow layers consume. The
// chromedp implementation lives in internal/browser; tests substitute fakes.
type PageDriver interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(ctx context.Context, url string) (PageState, error)

	// State returns the current title and URL without navigating.
	State(ctx context.Context) (PageState, error)

	// OuterHTML returns the current document markup for snapshot parsing.
	OuterHTML(ctx context.Context) (string, error)

	// FindByText locates the first link or button whose rendered text
	// contains text (case-sensitive). scope optionally restricts the search
	// to a CSS selector. Returns nil when nothing matches.
	FindByText(ctx context.Context, text, scope string) (*ElementRef, error)

	// Exists reports whether a CSS selector matches anything on the page.
	Exists(ctx context.Context, selector string) (bool, error)

	// Click scrolls the element into view and clicks it.
	Click(ctx context.Context, ref *ElementRef) error

	// TypeInto focuses the element and types text into it.
	TypeInto(ctx context.Context, ref *ElementRef, text string) error

	// SetCookies injects serialized session cookies before navigation.
	SetCookies(ctx context.Context, cookies []models.SessionCookie) error

	// SetDownloadDir directs file downloads into dir.
	SetDownloadDir(ctx context.Context, dir string) error

	// CaptureFailure writes a full-page screenshot and an HTML dump named
	// after the failed stage. Best-effort: errors are logged, never returned.
	CaptureFailure(ctx context.Context, stage string)

	// Headless reports the current session's display mode.
	Headless() bool

	// Relaunch closes the session and starts a new one on the same profile
	// with the requested display mode.
	Relaunch(ctx context.Context, headless bool) error

	// NavigationTimeout is the per-navigation bound the driver applies.
	NavigationTimeout() time.Duration

	// Close tears down the browser session. Safe to call more than once.
	Close() error
}

// DriverFactory launches a PageDriver bound to a profile directory.
type DriverFactory func(ctx context.Context, profileDir string, headless bool) (PageDriver, error)
