package export

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/lexport/internal/browser"
	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
)

// History table layout: the exporter page renders the preset table first and
// the export history second. Within a history row, the label sits in the
// second cell and the status/download cell in the sixth.
const (
	historyLabelCell  = 1
	historyStatusCell = 5
	historyMinCells   = 6
)

// historyRow is one parsed export-history entry plus the download control
// found in its status cell, when ready.
type historyRow struct {
	models.HistoryEntry
	Download *interfaces.ElementRef
}

// parseHistoryRows reads the export-history table from a page snapshot,
// bounded to the first lookback rows (newest first). A missing history table
// yields an empty slice, which the polling loop treats as not-ready-yet.
func parseHistoryRows(doc *goquery.Document, lookback int) []historyRow {
	tables := doc.Find("table")
	if tables.Length() < 2 {
		return nil
	}

	var out []historyRow
	tables.Eq(1).Find("tbody tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= lookback {
			return false
		}
		cells := row.Find("td")
		if cells.Length() < historyMinCells {
			return true
		}

		statusCell := cells.Eq(historyStatusCell)
		entry := historyRow{
			HistoryEntry: models.HistoryEntry{
				Label:  strings.TrimSpace(cells.Eq(historyLabelCell).Text()),
				Status: models.ParseHistoryStatus(statusCell.Text()),
			},
		}
		if entry.Status == models.HistoryReady {
			entry.Download = downloadControl(statusCell)
		}
		out = append(out, entry)
		return true
	})
	return out
}

// downloadControl extracts the download link from a ready status cell,
// skipping any copy-labeled control sharing the cell.
func downloadControl(cell *goquery.Selection) *interfaces.ElementRef {
	var link *goquery.Selection
	cell.Find("a, button").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if strings.Contains(browser.ElementText(el), "コピー") {
			return true
		}
		link = el
		return false
	})
	if link == nil {
		return nil
	}
	return &interfaces.ElementRef{Selector: browser.CSSPath(link), Text: browser.ElementText(link)}
}

// matchHistoryRow picks the row produced by the current run: copy-labeled
// rows are preferred because the copy-use button generates them; a row
// merely containing the preset name is the fallback.
func matchHistoryRow(rows []historyRow, presetName string) *historyRow {
	for i := range rows {
		if models.MatchesCopyLabel(rows[i].Label, presetName) {
			return &rows[i]
		}
	}
	for i := range rows {
		if models.MatchesHistoryLabel(rows[i].Label, presetName) {
			return &rows[i]
		}
	}
	return nil
}
