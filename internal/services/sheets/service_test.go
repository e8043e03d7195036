package sheets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/ternarybob/lexport/internal/common"
	"github.com/ternarybob/lexport/internal/models"
)

func commonSheetsConfig(env, file string) common.SheetsConfig {
	return common.SheetsConfig{CredentialsEnv: env, CredentialsFile: file}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", &googleapi.Error{Code: 404, Message: "Requested entity was not found."}, models.ErrSheetNotFound},
		{"permission", &googleapi.Error{Code: 403, Message: "The caller does not have permission"}, models.ErrSheetPermission},
		{"bad tab", &googleapi.Error{Code: 400, Message: "Unable to parse range: nope!A:ZZ"}, models.ErrSheetTabNotFound},
		{"bad tab plain error", errors.New("googleapi: Error 400: Unable to parse range: nope!A1"), models.ErrSheetTabNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err, "sheet-id", "tab")
			assert.ErrorIs(t, got, tt.want)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		got := classifyError(errors.New("rate limited"), "sheet-id", "tab")
		assert.NotErrorIs(t, got, models.ErrSheetNotFound)
		assert.NotErrorIs(t, got, models.ErrSheetPermission)
		assert.NotErrorIs(t, got, models.ErrSheetTabNotFound)
	})
}

func TestLoadCredentialsPrecedence(t *testing.T) {
	t.Run("env wins", func(t *testing.T) {
		t.Setenv("TEST_GOOGLE_CREDS", `{"type":"service_account"}`)
		data, source, err := loadCredentials(commonSheetsConfig("TEST_GOOGLE_CREDS", "does-not-exist.json"))
		assert.NoError(t, err)
		assert.Equal(t, "env:TEST_GOOGLE_CREDS", source)
		assert.JSONEq(t, `{"type":"service_account"}`, string(data))
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, _, err := loadCredentials(commonSheetsConfig("", ""))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := loadCredentials(commonSheetsConfig("UNSET_VAR_XYZ", "does-not-exist.json"))
		assert.Error(t, err)
	})
}
