package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// clickableSelector covers the controls the target site uses for actions:
// plain links styled as buttons, real buttons, and submit inputs.
const clickableSelector = "a, button, input[type=submit]"

// FindTextMatch returns the first link or button in doc whose rendered text
// contains text (case-sensitive, literal substring). scope optionally
// restricts the search to a CSS selector. Returns nil when nothing matches.
func FindTextMatch(doc *goquery.Document, text, scope string) *goquery.Selection {
	root := doc.Selection
	if scope != "" {
		root = doc.Find(scope)
	}

	var match *goquery.Selection
	root.Find(clickableSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(ElementText(sel), text) {
			match = sel
			return false
		}
		return true
	})
	return match
}

// ElementText returns an element's visible text: its text content, or for
// inputs the value attribute.
func ElementText(sel *goquery.Selection) string {
	if goquery.NodeName(sel) == "input" {
		val, _ := sel.Attr("value")
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(sel.Text())
}

// CSSPath builds a CSS selector that uniquely addresses sel within the
// document it was parsed from, using nth-of-type segments from the body
// down. The path stays valid as long as the page is not re-rendered between
// snapshot and click.
func CSSPath(sel *goquery.Selection) string {
	node := sel.Get(0)
	if node == nil {
		return ""
	}

	var segments []string
	for n := node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if n.Data == "html" {
			break
		}
		if n.Data == "body" {
			segments = append(segments, "body")
			break
		}
		segments = append(segments, fmt.Sprintf("%s:nth-of-type(%d)", n.Data, typeIndex(n)))
	}

	// Reverse into document order.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, " > ")
}

// typeIndex returns the 1-based position of n among same-tag element siblings.
func typeIndex(n *html.Node) int {
	index := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && sib.Data == n.Data {
			index++
		}
	}
	return index
}
