package interfaces

import (
	"context"
)

// CSVDecoder turns a downloaded export file into spreadsheet rows.
type CSVDecoder interface {
	// Decode reads the file, converts its legacy encoding to UTF-8, and
	// parses it into rows. Fails distinctly when the file is absent,
	// unreadable, or empty.
	Decode(path string) ([][]string, error)
}

// UploadResult reports what a spreadsheet write changed.
type UploadResult struct {
	UpdatedCells int64
	UpdatedRows  int64
}

// SheetUploader replaces a sheet tab's contents with the given rows.
type SheetUploader interface {
	Upload(ctx context.Context, rows [][]string, spreadsheetID, tabName string) (*UploadResult, error)
}
