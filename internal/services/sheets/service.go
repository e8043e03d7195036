// Package sheets replaces a Google Sheets tab's contents with exported rows.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2/google"
	sheetsapi "google.golang.org/api/sheets/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ternarybob/lexport/internal/common"
	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
)

// defaultTabName is the destination tab the site's exports historically land
// in when a client config leaves it unset.
const defaultTabName = "Raw_Lステップ"

// clearRange wipes every populated column before the write so rows shorter
// than the previous upload leave no stale cells behind.
const clearRange = "A:ZZ"

// Service implements interfaces.SheetUploader on the Sheets v4 API.
type Service struct {
	api    *sheetsapi.Service
	logger arbor.ILogger
}

// NewService builds a Sheets client from service-account JSON. The env var
// named by cfg.CredentialsEnv wins over the credentials file.
func NewService(ctx context.Context, cfg common.SheetsConfig, logger arbor.ILogger) (*Service, error) {
	data, source, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	creds, err := google.CredentialsFromJSON(ctx, data, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials from %s: %w", source, err)
	}

	api, err := sheetsapi.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}

	logger.Info().Str("credentials", source).Msg("Google Sheets client initialized")
	return &Service{api: api, logger: logger}, nil
}

func loadCredentials(cfg common.SheetsConfig) ([]byte, string, error) {
	if cfg.CredentialsEnv != "" {
		if raw := os.Getenv(cfg.CredentialsEnv); raw != "" {
			return []byte(raw), "env:" + cfg.CredentialsEnv, nil
		}
	}
	if cfg.CredentialsFile == "" {
		return nil, "", fmt.Errorf("no google credentials configured")
	}
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, "", fmt.Errorf("read google credentials file: %w", err)
	}
	return data, cfg.CredentialsFile, nil
}

// Upload clears the tab and writes rows starting at A1 with USER_ENTERED
// parsing, so dates and numbers land typed the way a manual paste would.
func (s *Service) Upload(ctx context.Context, rows [][]string, spreadsheetID, tabName string) (*interfaces.UploadResult, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to upload")
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is empty")
	}
	if tabName == "" {
		tabName = defaultTabName
	}

	s.logger.Info().Str("spreadsheet", spreadsheetID).Str("tab", tabName).Int("rows", len(rows)).Msg("Sheet upload starting")

	_, err := s.api.Spreadsheets.Values.
		Clear(spreadsheetID, fmt.Sprintf("%s!%s", tabName, clearRange), &sheetsapi.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err, spreadsheetID, tabName)
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	resp, err := s.api.Spreadsheets.Values.
		Update(spreadsheetID, fmt.Sprintf("%s!A1", tabName), &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err, spreadsheetID, tabName)
	}

	s.logger.Info().
		Str("spreadsheet", spreadsheetID).
		Int64("updated_cells", resp.UpdatedCells).
		Int64("updated_rows", resp.UpdatedRows).
		Msg("Sheet upload done")

	return &interfaces.UploadResult{
		UpdatedCells: resp.UpdatedCells,
		UpdatedRows:  resp.UpdatedRows,
	}, nil
}

// classifyError maps API failures onto the workflow's error kinds for
// operator-facing messaging.
func classifyError(err error, spreadsheetID, tabName string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 404:
			return fmt.Errorf("%w: %s", models.ErrSheetNotFound, spreadsheetID)
		case 403:
			return fmt.Errorf("%w: service account lacks edit access to %s", models.ErrSheetPermission, spreadsheetID)
		}
	}
	if strings.Contains(err.Error(), "Unable to parse range") {
		return fmt.Errorf("%w: %q", models.ErrSheetTabNotFound, tabName)
	}
	return fmt.Errorf("sheet upload: %w", err)
}
