// Package clientsfile loads client job definitions from a YAML file, the
// file-based alternative to the Badger store for one-off and scripted runs.
package clientsfile

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
)

// File is the on-disk document shape.
type File struct {
	Clients []*models.ClientJob `yaml:"clients"`
}

// Load reads and validates a clients file. Every entry must pass job
// validation; a single bad entry fails the whole load so a batch never runs
// on a partially-read configuration.
func Load(path string) ([]*models.ClientJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clients file %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse clients file %s: %w", path, err)
	}
	if len(file.Clients) == 0 {
		return nil, fmt.Errorf("clients file %s defines no clients", path)
	}

	for i, job := range file.Clients {
		if job == nil {
			return nil, fmt.Errorf("clients file %s: entry %d is empty", path, i)
		}
		if err := job.Validate(); err != nil {
			return nil, fmt.Errorf("clients file %s: %w", path, err)
		}
	}
	return file.Clients, nil
}

// ToRecords converts loaded jobs into store records for import.
func ToRecords(jobs []*models.ClientJob, userID string) ([]*interfaces.ClientRecord, error) {
	records := make([]*interfaces.ClientRecord, 0, len(jobs))
	for _, job := range jobs {
		rec := &interfaces.ClientRecord{
			UserID:     userID,
			Name:       job.Name,
			ExportURL:  job.ExportURL,
			PresetName: job.PresetName,
			SheetID:    job.Sheet.SpreadsheetID,
			SheetTab:   job.Sheet.TabName,
			ProfileKey: job.ProfileKey,
		}
		if job.Credentials != nil {
			rec.Email = job.Credentials.Email
			rec.Password = job.Credentials.Password
		}
		if len(job.Cookies) > 0 {
			data, err := json.Marshal(job.Cookies)
			if err != nil {
				return nil, fmt.Errorf("serialize cookies for %s: %w", job.Name, err)
			}
			rec.CookiesJSON = data
			rec.IsSetup = true
		}
		records = append(records, rec)
	}
	return records, nil
}

// FromRecord converts a store record back into a runnable job.
func FromRecord(rec *interfaces.ClientRecord) (*models.ClientJob, error) {
	job := &models.ClientJob{
		Name:       rec.Name,
		ExportURL:  rec.ExportURL,
		PresetName: rec.PresetName,
		Sheet: models.SheetTarget{
			SpreadsheetID: rec.SheetID,
			TabName:       rec.SheetTab,
		},
		ProfileKey: rec.ProfileKey,
	}
	if rec.Email != "" && rec.Password != "" {
		job.Credentials = &models.Credentials{Email: rec.Email, Password: rec.Password}
	}
	if len(rec.CookiesJSON) > 0 {
		if err := json.Unmarshal(rec.CookiesJSON, &job.Cookies); err != nil {
			return nil, fmt.Errorf("parse stored cookies for %s: %w", rec.Name, err)
		}
	}
	return job, nil
}
