package models

import (
	"strings"
)

// HistoryStatus is the readiness state of one export-history row as rendered
// by the target site. The site is Japanese; the literal markers are part of
// its UI contract.
type HistoryStatus string

const (
	HistoryProcessing HistoryStatus = "processing"
	HistoryExpired    HistoryStatus = "expired"
	HistoryReady      HistoryStatus = "ready"
	HistoryUnknown    HistoryStatus = "unknown"
)

const (
	statusProcessingMarker = "処理中"
	statusExpiredMarker    = "期限切れ"
	statusReadyMarker      = "ダウンロード"

	// copyLabelSuffix is appended by the site when an export is triggered via
	// the copy-displayed-fields button: "<preset>のコピー", sometimes with a
	// trailing sequence number.
	copyLabelSuffix = "のコピー"
)

// ParseHistoryStatus classifies a history row's status cell text.
func ParseHistoryStatus(text string) HistoryStatus {
	switch {
	case strings.Contains(text, statusProcessingMarker):
		return HistoryProcessing
	case strings.Contains(text, statusExpiredMarker):
		return HistoryExpired
	case strings.Contains(text, statusReadyMarker):
		return HistoryReady
	default:
		return HistoryUnknown
	}
}

// HistoryEntry is one row of the target site's export-history list. External
// state: polled, never persisted.
type HistoryEntry struct {
	Label  string        `json:"label"`
	Status HistoryStatus `json:"status"`
}

// CopyLabel returns the label the site generates for a copy-triggered export.
func CopyLabel(presetName string) string {
	return presetName + copyLabelSuffix
}

// MatchesHistoryLabel reports whether a history row label belongs to the
// given preset: either the preset name itself or its generated copy label
// (the copy label may carry a trailing sequence number, which still contains
// the base label as a prefix).
func MatchesHistoryLabel(label, presetName string) bool {
	if presetName == "" {
		return false
	}
	return strings.Contains(label, presetName)
}

// MatchesCopyLabel reports whether a label is specifically the generated
// copy label for the preset. Copy-label rows are preferred when resolving
// which history entry was produced by the current run.
func MatchesCopyLabel(label, presetName string) bool {
	return presetName != "" && strings.Contains(label, CopyLabel(presetName))
}
