package models

import "time"

// AttemptOutcome is the terminal state of one export attempt.
type AttemptOutcome string

const (
	AttemptPending   AttemptOutcome = "pending"
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
)

// ExportAttempt records one try of one client's export. Created at the start
// of each retry iteration, folded into the JobResult when the job terminates.
type ExportAttempt struct {
	ID            string         `json:"id"`
	AttemptNumber int            `json:"attempt_number"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   time.Time      `json:"completed_at,omitempty"`
	Outcome       AttemptOutcome `json:"outcome"`
	FailureReason string         `json:"failure_reason,omitempty"`
}

// JobResult is the per-client terminal record of a batch run.
type JobResult struct {
	Name         string          `json:"name"`
	Success      bool            `json:"success"`
	FilePath     string          `json:"file_path,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	UpdatedCells int64           `json:"updated_cells,omitempty"`
	UpdatedRows  int64           `json:"updated_rows,omitempty"`
	Attempts     []ExportAttempt `json:"attempts,omitempty"`
}

// BatchSummary aggregates a run for operator-facing reporting.
type BatchSummary struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Results    []JobResult `json:"results"`
}

// Succeeded counts successful jobs.
func (s *BatchSummary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Failed counts failed jobs.
func (s *BatchSummary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// AllSucceeded reports whether every job in the batch completed successfully.
// An empty batch counts as successful.
func (s *BatchSummary) AllSucceeded() bool {
	return s.Failed() == 0
}
