// Package csvdecode turns the target site's CSV exports into UTF-8 rows.
// The site serves Shift_JIS, the encoding Japanese spreadsheet tooling still
// expects; everything downstream works in UTF-8.
package csvdecode

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/ternarybob/lexport/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Service implements interfaces.CSVDecoder.
type Service struct {
	logger arbor.ILogger
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Decode reads a downloaded export file, converts Shift_JIS to UTF-8, and
// parses it into rows. Ragged rows are accepted; the site pads columns
// inconsistently between presets.
func (s *Service) Decode(path string) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrCSVFileMissing, path)
		}
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrCSVEmpty, path)
	}

	// A UTF-8 BOM means the file self-declares its encoding; everything else
	// from the site is Shift_JIS.
	var decoded []byte
	if bytes.HasPrefix(raw, utf8BOM) {
		decoded = bytes.TrimPrefix(raw, utf8BOM)
	} else {
		decoded, err = io.ReadAll(transform.NewReader(bytes.NewReader(raw), japanese.ShiftJIS.NewDecoder()))
		if err != nil {
			return nil, fmt.Errorf("decode shift_jis %s: %w", path, err)
		}
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv %s: %w", path, err)
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		if isEmptyRow(record) {
			continue
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no data rows", models.ErrCSVEmpty, path)
	}

	s.logger.Info().Str("file", path).Int("rows", len(rows)).Msg("CSV decoded")
	return rows, nil
}

func isEmptyRow(record []string) bool {
	for _, field := range record {
		if field != "" {
			return false
		}
	}
	return true
}
