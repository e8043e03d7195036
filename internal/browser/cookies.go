package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/ternarybob/lexport/internal/models"
)

// SetCookies injects serialized session cookies into the browser. Done before
// navigation so the first page load already carries the session.
func (d *Driver) SetCookies(ctx context.Context, cookies []models.SessionCookie) error {
	if len(cookies) == 0 {
		return nil
	}

	err := d.run(ctx, 15*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(cookiePath(c.Path)).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(c.Expires, 0))
				param = param.WithExpires(&expires)
			}
			if ss := cookieSameSite(c.SameSite); ss != "" {
				param = param.WithSameSite(ss)
			}
			if err := param.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
	if err != nil {
		return err
	}

	d.logger.Debug().Int("count", len(cookies)).Msg("Session cookies injected")
	return nil
}

func cookiePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

func cookieSameSite(s string) network.CookieSameSite {
	switch s {
	case "Strict", "strict":
		return network.CookieSameSiteStrict
	case "Lax", "lax":
		return network.CookieSameSiteLax
	case "None", "none":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}
