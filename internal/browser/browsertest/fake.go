// Package browsertest provides a scriptable in-memory PageDriver for workflow
// tests. Pages are static HTML snapshots keyed by URL; hooks let a test mutate
// the fake's state in response to clicks and navigations, which is enough to
// script multi-step flows like login redirects and history-list refreshes.
package browsertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/lexport/internal/browser"
	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
)

// Page is one scripted page state.
type Page struct {
	Title string
	HTML  string
}

// Fake implements interfaces.PageDriver against scripted pages. Element
// lookup goes through the same goquery snapshot helpers as the real driver,
// so selector behavior matches production.
type Fake struct {
	mu sync.Mutex

	// Pages maps URL to the page served for it.
	Pages map[string]Page

	// CurrentURL is where the fake believes it is.
	CurrentURL string

	// OnNavigate runs before a navigation resolves; it may rewrite the
	// destination (e.g. redirect to a login page).
	OnNavigate func(f *Fake, url string) string

	// OnClick runs after a click is recorded; it may swap pages.
	OnClick func(f *Fake, ref *interfaces.ElementRef)

	// OnSetCookies runs when cookies are injected; typically scripts the
	// session becoming valid.
	OnSetCookies func(f *Fake)

	// OnOuterHTML runs before each page snapshot is served; lets a test
	// script a page that changes between polls.
	OnOuterHTML func(f *Fake)

	// OnExists runs before each Exists call; lets a test script a page
	// transition that completes between checks.
	OnExists func(f *Fake, selector string)

	NavigateErr error

	ClickedTexts   []string
	TypedBySel     map[string]string
	CookiesSet     []models.SessionCookie
	CapturedStages []string
	DownloadDir    string
	RelaunchCalls  []bool
	CloseCalls     int

	headless bool
}

// New returns a fake starting at startURL in headless mode.
func New(startURL string, pages map[string]Page) *Fake {
	return &Fake{
		Pages:      pages,
		CurrentURL: startURL,
		TypedBySel: map[string]string{},
		headless:   true,
	}
}

// SetPage replaces the page served for url.
func (f *Fake) SetPage(url string, page Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pages[url] = page
}

func (f *Fake) page() Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pages[f.CurrentURL]
}

func (f *Fake) Navigate(_ context.Context, url string) (interfaces.PageState, error) {
	if f.NavigateErr != nil {
		return interfaces.PageState{}, f.NavigateErr
	}
	if f.OnNavigate != nil {
		url = f.OnNavigate(f, url)
	}
	f.mu.Lock()
	f.CurrentURL = url
	page := f.Pages[url]
	f.mu.Unlock()
	return interfaces.PageState{Title: page.Title, URL: url}, nil
}

func (f *Fake) State(context.Context) (interfaces.PageState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return interfaces.PageState{Title: f.Pages[f.CurrentURL].Title, URL: f.CurrentURL}, nil
}

func (f *Fake) OuterHTML(context.Context) (string, error) {
	if f.OnOuterHTML != nil {
		f.OnOuterHTML(f)
	}
	return f.page().HTML, nil
}

func (f *Fake) FindByText(_ context.Context, text, scope string) (*interfaces.ElementRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.page().HTML))
	if err != nil {
		return nil, err
	}
	match := browser.FindTextMatch(doc, text, scope)
	if match == nil {
		return nil, nil
	}
	return &interfaces.ElementRef{Selector: browser.CSSPath(match), Text: browser.ElementText(match)}, nil
}

func (f *Fake) Exists(_ context.Context, selector string) (bool, error) {
	if f.OnExists != nil {
		f.OnExists(f, selector)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.page().HTML))
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (f *Fake) Click(_ context.Context, ref *interfaces.ElementRef) error {
	f.mu.Lock()
	f.ClickedTexts = append(f.ClickedTexts, ref.Text)
	f.mu.Unlock()
	if f.OnClick != nil {
		f.OnClick(f, ref)
	}
	return nil
}

func (f *Fake) TypeInto(_ context.Context, ref *interfaces.ElementRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TypedBySel[ref.Selector] = text
	return nil
}

func (f *Fake) SetCookies(_ context.Context, cookies []models.SessionCookie) error {
	f.mu.Lock()
	f.CookiesSet = append(f.CookiesSet, cookies...)
	f.mu.Unlock()
	if f.OnSetCookies != nil {
		f.OnSetCookies(f)
	}
	return nil
}

func (f *Fake) SetDownloadDir(_ context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DownloadDir = dir
	return nil
}

func (f *Fake) CaptureFailure(_ context.Context, stage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CapturedStages = append(f.CapturedStages, stage)
}

func (f *Fake) Headless() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headless
}

func (f *Fake) Relaunch(_ context.Context, headless bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RelaunchCalls = append(f.RelaunchCalls, headless)
	f.headless = headless
	return nil
}

func (f *Fake) NavigationTimeout() time.Duration { return time.Second }

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalls++
	return nil
}
