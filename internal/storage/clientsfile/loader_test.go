package clientsfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/lexport/internal/interfaces"
)

func writeClients(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validYAML = `
clients:
  - name: 株式会社テスト
    exporter_url: https://manager.example.net/line/1/export
    preset_name: 月次レポート
    sheet:
      sheet_id: sheet-abc
      sheet_name: Raw
    profile: shared-team
  - name: acme
    exporter_url: https://manager.example.net/line/2/export
    preset_name: MonthlyReport
    sheet:
      sheet_id: sheet-def
    credentials:
      email: ops@example.com
      password: hunter2
    cookies:
      - name: laravel_session
        value: abc123
        domain: manager.example.net
`

func TestLoad(t *testing.T) {
	jobs, err := Load(writeClients(t, validYAML))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "株式会社テスト", jobs[0].Name)
	assert.Equal(t, "shared-team", jobs[0].ProfileKey)
	assert.Equal(t, "sheet-abc", jobs[0].Sheet.SpreadsheetID)

	assert.True(t, jobs[1].HasCredentials())
	assert.True(t, jobs[1].HasCookies())
	assert.Equal(t, "laravel_session", jobs[1].Cookies[0].Name)
}

func TestLoadRejectsInvalidEntry(t *testing.T) {
	_, err := Load(writeClients(t, `
clients:
  - name: broken
    preset_name: x
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	_, err := Load(writeClients(t, "clients: []\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRecordRoundTrip(t *testing.T) {
	jobs, err := Load(writeClients(t, validYAML))
	require.NoError(t, err)

	records, err := ToRecords(jobs, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "user-1", records[0].UserID)
	assert.False(t, records[0].IsSetup)
	assert.True(t, records[1].IsSetup, "cookie-bearing clients are marked set up")

	back, err := FromRecord(records[1])
	require.NoError(t, err)
	assert.Equal(t, jobs[1].Name, back.Name)
	assert.Equal(t, jobs[1].Credentials.Email, back.Credentials.Email)
	require.Len(t, back.Cookies, 1)
	assert.Equal(t, "abc123", back.Cookies[0].Value)
	require.NoError(t, back.Validate())
}

func TestFromRecordWithoutOptionalFields(t *testing.T) {
	job, err := FromRecord(&interfaces.ClientRecord{
		Name:       "bare",
		ExportURL:  "https://manager.example.net/line/3/export",
		PresetName: "p",
	})
	require.NoError(t, err)
	assert.False(t, job.HasCredentials())
	assert.False(t, job.HasCookies())
}
