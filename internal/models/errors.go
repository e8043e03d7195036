package models

import "errors"

// Workflow error kinds. Stage errors wrap one of these so the retry loop and
// the batch report can classify failures with errors.Is.
var (
	// ErrSessionLaunch means Chrome failed to start after bounded retries.
	// Fatal for the job (or the whole batch in shared-session mode).
	ErrSessionLaunch = errors.New("browser session launch failed")

	// ErrAuthRequired means a login page was reached in an environment where
	// no interactive login is possible.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthTimeout means the human or challenge wait exceeded its bound.
	ErrAuthTimeout = errors.New("authentication wait timed out")

	// ErrPresetNotFound means no preset row matched the requested name.
	ErrPresetNotFound = errors.New("export preset not found")

	// ErrDownloadTriggerNotFound means no download control appeared after the
	// export was triggered.
	ErrDownloadTriggerNotFound = errors.New("download trigger not found")

	// ErrDownloadLinkTimeout means the history list never showed a ready row
	// within the polling bound.
	ErrDownloadLinkTimeout = errors.New("download link polling timed out")

	// ErrDownloadTimeout means no completed file appeared in the download
	// sink within the configured timeout.
	ErrDownloadTimeout = errors.New("download timed out")

	// ErrAccountSwitchSkipped is a degraded, non-fatal condition: no account
	// menu entry matched, execution continues in the current context.
	ErrAccountSwitchSkipped = errors.New("account switch skipped")
)

// Upload error kinds surfaced by the Sheets collaborator.
var (
	ErrSheetNotFound    = errors.New("spreadsheet not found")
	ErrSheetPermission  = errors.New("spreadsheet permission denied")
	ErrSheetTabNotFound = errors.New("sheet tab not found")
)

// CSV decode error kinds.
var (
	ErrCSVFileMissing = errors.New("csv file not found")
	ErrCSVEmpty       = errors.New("csv file is empty")
)

// IsRetryable reports whether a job attempt failing with err is worth
// retrying. Launch and authentication failures will not heal on retry within
// the same environment; stage-level workflow failures often do.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrSessionLaunch),
		errors.Is(err, ErrAuthRequired),
		errors.Is(err, ErrAuthTimeout):
		return false
	}
	return true
}
