package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
)

// LaunchOptions configures a browser session launch.
type LaunchOptions struct {
	ProfileDir        string
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	LogsDir           string
	Attempts          int
	// CleanupLocks is invoked on the profile directory before each launch
	// attempt to clear stale singleton files.
	CleanupLocks func(dir string)
}

// Driver is the chromedp-backed PageDriver implementation. One Driver owns
// one Chrome process bound to one profile directory.
type Driver struct {
	opts   LaunchOptions
	logger arbor.ILogger

	mu          sync.Mutex
	browserCtx  context.Context
	ctxCancel   context.CancelFunc
	allocCancel context.CancelFunc
	closed      bool
}

// Launch starts Chrome against the profile directory, retrying with lock
// cleanup between attempts. Exhausting the attempt bound is fatal for the
// session and wraps models.ErrSessionLaunch.
func Launch(ctx context.Context, opts LaunchOptions, logger arbor.ILogger) (*Driver, error) {
	if opts.Attempts < 1 {
		opts.Attempts = 2
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 60 * time.Second
	}

	d := &Driver{opts: opts, logger: logger}

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if opts.CleanupLocks != nil {
			opts.CleanupLocks(opts.ProfileDir)
		}

		if err := d.start(ctx, opts.Headless); err != nil {
			lastErr = err
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", opts.Attempts).
				Str("profile_dir", opts.ProfileDir).
				Msg("Browser launch attempt failed")
			continue
		}

		logger.Info().
			Str("profile_dir", opts.ProfileDir).
			Bool("headless", opts.Headless).
			Int("attempt", attempt).
			Msg("Browser session launched")
		return d, nil
	}

	return nil, fmt.Errorf("%w: %d attempts on profile %s: %v",
		models.ErrSessionLaunch, opts.Attempts, opts.ProfileDir, lastErr)
}

// start builds the allocator and browser contexts and probes the instance.
func (d *Driver) start(ctx context.Context, headless bool) error {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserDataDir(d.opts.ProfileDir),
		chromedp.WindowSize(1920, 1080),
	)
	if d.opts.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(d.opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	// Startup probe: a browser that cannot reach about:blank is unusable.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		ctxCancel()
		allocCancel()
		return fmt.Errorf("browser failed startup probe: %w", err)
	}

	d.mu.Lock()
	d.browserCtx = browserCtx
	d.ctxCancel = ctxCancel
	d.allocCancel = allocCancel
	d.closed = false
	d.opts.Headless = headless
	d.mu.Unlock()

	return nil
}

func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	d.mu.Lock()
	browserCtx := d.browserCtx
	closed := d.closed
	d.mu.Unlock()

	if closed || browserCtx == nil {
		return fmt.Errorf("browser session is closed")
	}

	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads url and waits for the document body to be ready.
func (d *Driver) Navigate(ctx context.Context, url string) (interfaces.PageState, error) {
	var state interfaces.PageState
	err := d.run(ctx, d.opts.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&state.Title),
		chromedp.Location(&state.URL),
	)
	if err != nil {
		return interfaces.PageState{}, fmt.Errorf("navigate %s: %w", url, err)
	}
	d.logger.Debug().Str("url", state.URL).Str("title", state.Title).Msg("Page loaded")
	return state, nil
}

// State returns the current title and URL without navigating.
func (d *Driver) State(ctx context.Context) (interfaces.PageState, error) {
	var state interfaces.PageState
	err := d.run(ctx, 10*time.Second,
		chromedp.Title(&state.Title),
		chromedp.Location(&state.URL),
	)
	if err != nil {
		return interfaces.PageState{}, err
	}
	return state, nil
}

// OuterHTML returns the current document markup.
func (d *Driver) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, 15*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// FindByText locates the first link or button whose rendered text contains
// text, resolved against a fresh page snapshot.
func (d *Driver) FindByText(ctx context.Context, text, scope string) (*interfaces.ElementRef, error) {
	pageHTML, err := d.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}

	match := FindTextMatch(doc, text, scope)
	if match == nil {
		return nil, nil
	}

	return &interfaces.ElementRef{
		Selector: CSSPath(match),
		Text:     ElementText(match),
	}, nil
}

// Exists reports whether a CSS selector matches anything on the page.
func (d *Driver) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	if err := d.run(ctx, 10*time.Second, chromedp.Evaluate(script, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// Click scrolls the element into view and clicks it.
func (d *Driver) Click(ctx context.Context, ref *interfaces.ElementRef) error {
	if ref == nil || ref.Selector == "" {
		return fmt.Errorf("click: empty element reference")
	}
	err := d.run(ctx, d.opts.NavigationTimeout,
		chromedp.ScrollIntoView(ref.Selector, chromedp.ByQuery),
		chromedp.Click(ref.Selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click %q: %w", ref.Text, err)
	}
	d.logger.Debug().Str("selector", ref.Selector).Str("text", ref.Text).Msg("Clicked element")
	return nil
}

// TypeInto focuses the element and types text into it.
func (d *Driver) TypeInto(ctx context.Context, ref *interfaces.ElementRef, text string) error {
	if ref == nil || ref.Selector == "" {
		return fmt.Errorf("type: empty element reference")
	}
	err := d.run(ctx, 30*time.Second,
		chromedp.Click(ref.Selector, chromedp.ByQuery),
		chromedp.SendKeys(ref.Selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("type into %q: %w", ref.Selector, err)
	}
	return nil
}

// SetDownloadDir directs Chrome's downloads into dir.
func (d *Driver) SetDownloadDir(ctx context.Context, dir string) error {
	err := d.run(ctx, 10*time.Second,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	)
	if err != nil {
		return fmt.Errorf("set download dir %s: %w", dir, err)
	}
	return nil
}

// Headless reports the current session's display mode.
func (d *Driver) Headless() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts.Headless
}

// NavigationTimeout is the per-navigation bound the driver applies.
func (d *Driver) NavigationTimeout() time.Duration {
	return d.opts.NavigationTimeout
}

// Relaunch closes the session and starts a new one on the same profile with
// the requested display mode. Used when a login challenge needs a window.
func (d *Driver) Relaunch(ctx context.Context, headless bool) error {
	d.teardown()
	if d.opts.CleanupLocks != nil {
		d.opts.CleanupLocks(d.opts.ProfileDir)
	}
	d.logger.Info().
		Str("profile_dir", d.opts.ProfileDir).
		Bool("headless", headless).
		Msg("Relaunching browser session")
	if err := d.start(ctx, headless); err != nil {
		return fmt.Errorf("%w: relaunch: %v", models.ErrSessionLaunch, err)
	}
	return nil
}

// Close tears down the browser session. Safe to call more than once.
func (d *Driver) Close() error {
	d.teardown()
	return nil
}

func (d *Driver) teardown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.ctxCancel != nil {
		d.ctxCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	d.closed = true
	d.logger.Debug().Str("profile_dir", d.opts.ProfileDir).Msg("Browser session closed")
}
