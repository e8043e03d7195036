package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SessionCookie is a serialized browser cookie captured during setup and
// replayed before navigation to skip the login page.
type SessionCookie struct {
	Name     string `json:"name" yaml:"name"`
	Value    string `json:"value" yaml:"value"`
	Domain   string `json:"domain" yaml:"domain"`
	Path     string `json:"path" yaml:"path"`
	Secure   bool   `json:"secure" yaml:"secure"`
	HTTPOnly bool   `json:"httpOnly" yaml:"http_only"`
	Expires  int64  `json:"expires" yaml:"expires"`
	SameSite string `json:"sameSite" yaml:"same_site"`
}

// Credentials are the target-site login credentials for autofill.
type Credentials struct {
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
}

// SheetTarget identifies the destination spreadsheet and tab. Opaque to the
// export workflow; consumed by the upload collaborator.
type SheetTarget struct {
	SpreadsheetID string `json:"spreadsheet_id" yaml:"sheet_id" validate:"required"`
	TabName       string `json:"tab_name" yaml:"sheet_name"`
}

// ClientJob is one tenant's export task. Immutable for the duration of a
// batch run.
type ClientJob struct {
	Name        string          `json:"name" yaml:"name" validate:"required"`
	ExportURL   string          `json:"export_url" yaml:"exporter_url" validate:"required,url"`
	PresetName  string          `json:"preset_name" yaml:"preset_name" validate:"required"`
	Sheet       SheetTarget     `json:"sheet" yaml:"sheet"`
	Credentials *Credentials    `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Cookies     []SessionCookie `json:"cookies,omitempty" yaml:"cookies,omitempty"`

	// ProfileKey groups jobs onto one browser profile. Empty means the
	// sanitized client name is used.
	ProfileKey string `json:"profile_key,omitempty" yaml:"profile,omitempty"`
}

// Validate checks required fields before the job enters a batch run.
func (j *ClientJob) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("invalid client job %q: %w", j.Name, err)
	}
	return nil
}

// HasCookies reports whether serialized session cookies are available.
func (j *ClientJob) HasCookies() bool {
	return len(j.Cookies) > 0
}

// HasCredentials reports whether autofill credentials are available.
func (j *ClientJob) HasCredentials() bool {
	return j.Credentials != nil && j.Credentials.Email != "" && j.Credentials.Password != ""
}
