package export

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/lexport/internal/browser"
	"github.com/ternarybob/lexport/internal/interfaces"
)

// Button text classification for the preset table. The site renders a green
// "検索条件をコピーして利用" button that re-runs a preset with its displayed
// fields, and plain export links. The copy button is preferred: it reproduces
// the preset's column selection exactly.
func isCopyUseButton(text string) bool {
	return strings.Contains(text, "コピー") && strings.Contains(text, "利用")
}

func isExportButton(text string) bool {
	if strings.Contains(text, "コピー") {
		return false
	}
	return strings.Contains(text, "エクスポート") ||
		strings.Contains(text, "CSV") ||
		strings.Contains(text, "csv") ||
		strings.Contains(text, "ダウンロード")
}

// presetCandidates is diagnostic state from a preset scan: every row and
// button considered, logged when the scan comes up empty.
type presetCandidates struct {
	Rows    []string
	Buttons []string
}

// findPresetControl locates the clickable that starts the export for
// presetName. The row match is an exact case-sensitive substring. When the
// matched row has no usable button, the search widens to the immediately
// following row, then to rows within two positions either side.
func findPresetControl(doc *goquery.Document, presetName string) (*interfaces.ElementRef, *presetCandidates) {
	diag := &presetCandidates{}

	rows := doc.Find("table").First().Find("tbody tr")
	if rows.Length() == 0 {
		rows = doc.Find("tbody tr")
	}

	matched := -1
	rows.Each(func(i int, row *goquery.Selection) {
		text := strings.TrimSpace(row.Text())
		diag.Rows = append(diag.Rows, fmt.Sprintf("row %d: %s", i, collapse(text)))
		if matched == -1 && strings.Contains(text, presetName) {
			matched = i
		}
	})
	if matched == -1 {
		return nil, diag
	}

	// Widening order: the matched row, the one after it, then the ±2 window.
	order := []int{matched, matched + 1, matched - 1, matched + 2, matched - 2}
	seen := map[int]bool{}
	for _, i := range order {
		if i < 0 || i >= rows.Length() || seen[i] {
			continue
		}
		seen[i] = true
		if ref := rowButton(rows.Eq(i), diag); ref != nil {
			return ref, diag
		}
	}
	return nil, diag
}

// rowButton picks the best control inside one row: copy-use first, then any
// export control without a copy label.
func rowButton(row *goquery.Selection, diag *presetCandidates) *interfaces.ElementRef {
	var copyUse, plain *goquery.Selection

	row.Find("a, button").Each(func(_ int, btn *goquery.Selection) {
		text := browser.ElementText(btn)
		if text == "" {
			return
		}
		diag.Buttons = append(diag.Buttons, text)
		switch {
		case copyUse == nil && isCopyUseButton(text):
			copyUse = btn
		case plain == nil && isExportButton(text):
			plain = btn
		}
	})

	pick := copyUse
	if pick == nil {
		pick = plain
	}
	if pick == nil {
		return nil
	}
	return &interfaces.ElementRef{Selector: browser.CSSPath(pick), Text: browser.ElementText(pick)}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
