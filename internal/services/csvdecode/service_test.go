package csvdecode

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/ternarybob/lexport/internal/common"
	"github.com/ternarybob/lexport/internal/models"
)

func shiftJIS(t *testing.T, s string) []byte {
	t.Helper()
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader([]byte(s)), japanese.ShiftJIS.NewEncoder()))
	require.NoError(t, err)
	return out
}

func writeCSV(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestDecodeShiftJIS(t *testing.T) {
	svc := NewService(common.GetLogger())
	path := writeCSV(t, shiftJIS(t, "名前,メール\n山田太郎,yamada@example.com\n鈴木花子,suzuki@example.com\n"))

	rows, err := svc.Decode(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"名前", "メール"}, rows[0])
	assert.Equal(t, "山田太郎", rows[1][0])
}

func TestDecodeRaggedRows(t *testing.T) {
	svc := NewService(common.GetLogger())
	path := writeCSV(t, shiftJIS(t, "a,b,c\nd,e\nf\n"))

	rows, err := svc.Decode(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 3)
	assert.Len(t, rows[1], 2)
}

func TestDecodeSkipsEmptyLines(t *testing.T) {
	svc := NewService(common.GetLogger())
	path := writeCSV(t, shiftJIS(t, "a,b\n\n\nc,d\n"))

	rows, err := svc.Decode(path)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestDecodeTrimsBOM(t *testing.T) {
	svc := NewService(common.GetLogger())
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("h1,h2\nv1,v2\n")...)
	path := writeCSV(t, data)

	rows, err := svc.Decode(path)
	require.NoError(t, err)
	assert.Equal(t, "h1", rows[0][0])
}

func TestDecodeMissingFile(t *testing.T) {
	svc := NewService(common.GetLogger())
	_, err := svc.Decode(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, models.ErrCSVFileMissing)
}

func TestDecodeEmptyFile(t *testing.T) {
	svc := NewService(common.GetLogger())
	_, err := svc.Decode(writeCSV(t, nil))
	assert.ErrorIs(t, err, models.ErrCSVEmpty)
}

func TestDecodeOnlyBlankLines(t *testing.T) {
	svc := NewService(common.GetLogger())
	_, err := svc.Decode(writeCSV(t, []byte("\n\n")))
	assert.ErrorIs(t, err, models.ErrCSVEmpty)
}
