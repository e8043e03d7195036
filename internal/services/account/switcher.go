package account

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexport/internal/browser"
	"github.com/ternarybob/lexport/internal/interfaces"
)

// Menu trigger candidates, most specific first. The manager app renders the
// account switcher as a header dropdown; the markup has drifted between
// releases so several shapes are tried.
var menuTriggerSelectors = []string{
	`[data-toggle="dropdown"]`,
	`.dropdown-toggle`,
	`header button`,
	`nav button`,
	`header a.dropdown`,
}

const minPrefixMatch = 3

// Switcher activates the tenant context matching a client name inside an
// already-authenticated session. A failed switch is a degraded path, not an
// error: the session may already be in the right context.
type Switcher struct {
	driver interfaces.PageDriver
	logger arbor.ILogger

	// SettleWait bounds the pause after a successful switch click.
	SettleWait time.Duration
}

func NewSwitcher(driver interfaces.PageDriver, logger arbor.ILogger) *Switcher {
	return &Switcher{driver: driver, logger: logger, SettleWait: 3 * time.Second}
}

// NormalizeAccountName folds an account display name for fuzzy comparison:
// spaces, hyphens, and bracket characters are stripped and the rest lowercased.
func NormalizeAccountName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case ' ', '　', '-', '_', '(', ')', '[', ']', '【', '】', '（', '）':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// matches reports whether a candidate menu entry plausibly names target.
// Substring in either direction wins; otherwise a common prefix of at least
// minPrefixMatch runes is accepted.
func matches(target, candidate string) bool {
	if target == "" || candidate == "" {
		return false
	}
	if strings.Contains(candidate, target) || strings.Contains(target, candidate) {
		return true
	}
	return commonPrefixLen(target, candidate) >= minPrefixMatch
}

func commonPrefixLen(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n := 0
	for n < len(ar) && n < len(br) && ar[n] == br[n] {
		n++
	}
	return n
}

// SwitchTo opens the account menu and clicks the entry matching targetName.
// At most one menu item is clicked. Returns true when a switch was performed;
// false means execution continues in the current context.
func (s *Switcher) SwitchTo(ctx context.Context, targetName string) (bool, error) {
	target := NormalizeAccountName(targetName)
	if target == "" {
		return false, nil
	}

	if !s.openMenu(ctx) {
		s.logger.Warn().Str("account", targetName).Msg("Account menu trigger not found, staying in current context")
		return false, nil
	}

	entry, err := s.findEntry(ctx, target)
	if err != nil {
		return false, err
	}
	if entry == nil {
		s.logger.Warn().Str("account", targetName).Msg("No account menu entry matched, staying in current context")
		return false, nil
	}

	if err := s.driver.Click(ctx, entry); err != nil {
		return false, err
	}

	s.logger.Info().Str("account", targetName).Str("entry", entry.Text).Msg("Switched account context")
	s.settle(ctx)
	return true, nil
}

// openMenu clicks the first trigger candidate present on the page.
func (s *Switcher) openMenu(ctx context.Context) bool {
	for _, sel := range menuTriggerSelectors {
		found, err := s.driver.Exists(ctx, sel)
		if err != nil || !found {
			continue
		}
		if err := s.driver.Click(ctx, &interfaces.ElementRef{Selector: sel}); err != nil {
			s.logger.Debug().Err(err).Str("selector", sel).Msg("Menu trigger click failed, trying next")
			continue
		}
		return true
	}
	return false
}

// findEntry scans visible menu links for the best candidate. Substring
// matches are preferred over prefix matches so an exact account name beats a
// sibling sharing the first few characters. Among prefix matches the longest
// common prefix wins: sibling tenants often share a leading company name, and
// the longer overlap names the intended one.
func (s *Switcher) findEntry(ctx context.Context, target string) (*interfaces.ElementRef, error) {
	entries, err := s.menuEntries(ctx)
	if err != nil {
		return nil, err
	}

	var prefixFallback *interfaces.ElementRef
	bestPrefix := minPrefixMatch - 1
	for _, e := range entries {
		candidate := NormalizeAccountName(e.Text)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, target) || strings.Contains(target, candidate) {
			return e, nil
		}
		if l := commonPrefixLen(target, candidate); l > bestPrefix {
			fallback := *e
			prefixFallback = &fallback
			bestPrefix = l
		}
	}
	return prefixFallback, nil
}

// menuEntrySelectors cover the shapes the opened dropdown renders entries in.
var menuEntrySelectors = []string{
	`.dropdown-menu a`,
	`ul[role="menu"] a`,
	`header nav a`,
}

// menuEntries collects candidate entries from the opened menu snapshot.
func (s *Switcher) menuEntries(ctx context.Context) ([]*interfaces.ElementRef, error) {
	pageHTML, err := s.driver.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}

	var entries []*interfaces.ElementRef
	for _, sel := range menuEntrySelectors {
		doc.Find(sel).Each(func(_ int, item *goquery.Selection) {
			entries = append(entries, &interfaces.ElementRef{
				Selector: browser.CSSPath(item),
				Text:     browser.ElementText(item),
			})
		})
		if len(entries) > 0 {
			break
		}
	}
	return entries, nil
}

// settle gives the app a bounded moment to re-render after a switch. A slow
// page is tolerated, not failed.
func (s *Switcher) settle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.SettleWait):
	}
}
