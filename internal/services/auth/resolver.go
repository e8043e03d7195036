package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexport/internal/common"
	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
)

// Login page markers for the target site. The manager app titles its login
// page and serves it under /account/login; a bare /login is kept for the
// legacy path.
var (
	loginTitleMarkers = []string{"ログイン", "Login"}
	loginURLMarkers   = []string{"/account/login", "/login"}
)

// Ordered autofill candidates. The site labels the field "ユーザーID" so the
// name varies; first selector that exists on the page wins.
var (
	emailSelectors = []string{
		`input[name="email"]`,
		`input[type="email"]`,
		`input[name="user_id"]`,
		`input[name="login_id"]`,
	}
	passwordSelector = `input[type="password"]`
)

// IsLoginPage reports whether the page state carries login markers.
func IsLoginPage(state interfaces.PageState) bool {
	for _, m := range loginTitleMarkers {
		if strings.Contains(state.Title, m) {
			return true
		}
	}
	for _, m := range loginURLMarkers {
		if strings.Contains(state.URL, m) {
			return true
		}
	}
	return false
}

// Options tunes the resolver's wait behavior.
type Options struct {
	// Interactive reports whether a human could complete a login challenge.
	// When false, reaching a login page is immediately fatal.
	Interactive bool

	// WaitTimeout bounds the human/challenge wait.
	WaitTimeout time.Duration

	// PollInterval is the re-check interval during the wait.
	PollInterval time.Duration
}

// Resolver drives a session from an unknown authentication state to logged
// in, or fails with a distinct error kind.
type Resolver struct {
	driver interfaces.PageDriver
	opts   Options
	logger arbor.ILogger
}

func NewResolver(driver interfaces.PageDriver, opts Options, logger arbor.ILogger) *Resolver {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 180 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Resolver{driver: driver, opts: opts, logger: logger}
}

// Ensure navigates to url and resolves authentication for the job. On return
// with nil error the session is logged in and sitting on url.
func (r *Resolver) Ensure(ctx context.Context, job *models.ClientJob, url string) error {
	state, err := r.driver.Navigate(ctx, url)
	if err != nil {
		return err
	}
	if !IsLoginPage(state) {
		r.logger.Debug().Str("client", job.Name).Str("url", state.URL).Msg("Session already authenticated")
		return nil
	}

	r.logger.Info().Str("client", job.Name).Str("title", state.Title).Msg("Login page detected")

	if job.HasCookies() {
		state, err = r.resolveWithCookies(ctx, job, url)
		if err != nil {
			return err
		}
		if !IsLoginPage(state) {
			r.logger.Info().Str("client", job.Name).Msg("Session restored from stored cookies")
			return nil
		}
		r.logger.Warn().Str("client", job.Name).Msg("Stored cookies rejected, session still on login page")
	}

	if !r.opts.Interactive {
		return fmt.Errorf("%w: login page for client %s in non-interactive environment", models.ErrAuthRequired, job.Name)
	}

	if job.HasCredentials() {
		return r.resolveWithCredentials(ctx, job, url)
	}

	r.logger.Info().
		Str("client", job.Name).
		Dur("timeout", r.opts.WaitTimeout).
		Msg("Waiting for manual login in the browser window")
	return r.waitUntilLoggedIn(ctx, job)
}

// resolveWithCookies injects stored session cookies and reloads the page.
func (r *Resolver) resolveWithCookies(ctx context.Context, job *models.ClientJob, url string) (interfaces.PageState, error) {
	if err := r.driver.SetCookies(ctx, job.Cookies); err != nil {
		return interfaces.PageState{}, fmt.Errorf("inject session cookies: %w", err)
	}
	return r.driver.Navigate(ctx, url)
}

// resolveWithCredentials autofills the login form and blocks until the
// externally-completed challenge clears the login markers. The challenge
// widget cannot be completed headlessly, so a headless session is relaunched
// with a window first.
func (r *Resolver) resolveWithCredentials(ctx context.Context, job *models.ClientJob, url string) error {
	if r.driver.Headless() {
		r.logger.Info().Str("client", job.Name).Msg("Relaunching with a visible window for the login challenge")
		if err := r.driver.Relaunch(ctx, false); err != nil {
			return err
		}
		if _, err := r.driver.Navigate(ctx, url); err != nil {
			return err
		}
	}

	r.autofill(ctx, job)

	r.logger.Info().
		Str("client", job.Name).
		Dur("timeout", r.opts.WaitTimeout).
		Msg("Credentials filled, waiting for challenge completion in the browser")
	return r.waitUntilLoggedIn(ctx, job)
}

// autofill types credentials into the first matching field candidates.
// Best-effort: a field that cannot be found is skipped, the human can still
// complete the form by hand during the wait.
func (r *Resolver) autofill(ctx context.Context, job *models.ClientJob) {
	for _, sel := range emailSelectors {
		found, err := r.driver.Exists(ctx, sel)
		if err != nil || !found {
			continue
		}
		if err := r.driver.TypeInto(ctx, &interfaces.ElementRef{Selector: sel}, job.Credentials.Email); err != nil {
			r.logger.Warn().Err(err).Str("selector", sel).Msg("Autofill of login id failed")
		}
		break
	}

	if found, err := r.driver.Exists(ctx, passwordSelector); err == nil && found {
		if err := r.driver.TypeInto(ctx, &interfaces.ElementRef{Selector: passwordSelector}, job.Credentials.Password); err != nil {
			r.logger.Warn().Err(err).Msg("Autofill of password failed")
		}
	}
}

// waitUntilLoggedIn polls page state until login markers clear or the wait
// bound is hit.
func (r *Resolver) waitUntilLoggedIn(ctx context.Context, job *models.ClientJob) error {
	result, err := common.PollFor(ctx, r.opts.PollInterval, r.opts.WaitTimeout, func(ctx context.Context) (bool, error) {
		state, err := r.driver.State(ctx)
		if err != nil {
			return false, err
		}
		return !IsLoginPage(state), nil
	})
	if err != nil {
		return fmt.Errorf("login wait for client %s: %w", job.Name, err)
	}
	if result != common.PollSatisfied {
		return fmt.Errorf("%w: client %s after %s", models.ErrAuthTimeout, job.Name, r.opts.WaitTimeout)
	}

	r.logger.Info().Str("client", job.Name).Msg("Login completed")
	return nil
}
