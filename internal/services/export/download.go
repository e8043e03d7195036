package export

import (
	"os"
	"path/filepath"
	"strings"
)

// In-progress suffixes: Chrome writes .crdownload while transferring; .tmp
// and .part cover other agents sharing the sink.
var inProgressSuffixes = []string{".crdownload", ".part", ".tmp"}

func isInProgress(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range inProgressSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// snapshotDir records the names already present in the download sink so a
// completed file can be told apart from leftovers of earlier runs.
func snapshotDir(dir string) (map[string]struct{}, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Name()] = struct{}{}
	}
	return seen, nil
}

// findNewDownload returns the first completed CSV file that appeared in dir
// since the snapshot, or "" while none qualifies.
func findNewDownload(dir string, before map[string]struct{}) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		name := e.Name()
		if _, existed := before[name]; existed {
			continue
		}
		if isInProgress(name) {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		return filepath.Abs(filepath.Join(dir, name))
	}
	return "", nil
}
