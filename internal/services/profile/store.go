package profile

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lexport/internal/models"
)

// Store maps client jobs to stable Chrome profile directories and owns the
// cleanup of stale lock artifacts that would otherwise block a relaunch.
type Store struct {
	baseDir string
	logger  arbor.ILogger
}

// NewStore creates a profile store rooted at baseDir.
func NewStore(baseDir string, logger arbor.ILogger) *Store {
	return &Store{
		baseDir: baseDir,
		logger:  logger,
	}
}

// disallowedRunes matches everything outside lowercase ASCII alphanumerics
// and the Japanese scripts client names are written in (Hiragana, Katakana,
// CJK unified ideographs).
var disallowedRunes = regexp.MustCompile(`[^a-z0-9\x{3040}-\x{309f}\x{30a0}-\x{30ff}\x{4e00}-\x{9faf}]+`)

var hyphenRuns = regexp.MustCompile(`-+`)

// SanitizeProfileName converts a client display name into a filesystem-safe
// profile directory name. Empty results fall back to "default".
func SanitizeProfileName(name string) string {
	s := strings.ToLower(name)
	s = disallowedRunes.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "default"
	}
	return s
}

// ResolveDir returns the profile directory for a job: the explicit profile
// key when set, otherwise the sanitized client name. Jobs sharing a profile
// key share login state.
func (s *Store) ResolveDir(job *models.ClientJob) string {
	name := job.ProfileKey
	if name == "" {
		name = job.Name
	}
	return filepath.Join(s.baseDir, SanitizeProfileName(name))
}

// lockArtifacts are the Chromium singleton files left behind by an
// ungraceful shutdown. Their presence makes the next launch on the same
// user-data-dir fail with "profile in use".
var lockArtifacts = []string{
	"SingletonLock",
	"SingletonCookie",
	"SingletonSocket",
	"LOCK",
	filepath.Join("Default", "LOCK"),
}

// CleanupLocks removes stale lock artifacts from a profile directory.
// Missing files are expected; any other error is logged and swallowed so a
// cleanup failure never blocks the launch attempt itself. Idempotent.
func (s *Store) CleanupLocks(dir string) {
	for _, name := range lockArtifacts {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove stale profile lock")
			continue
		}
		s.logger.Debug().Str("path", path).Msg("Removed stale profile lock")
	}
}

// EnsureDir creates the profile directory if needed and clears stale locks,
// guaranteeing the subsequent launch never fails on leftovers from a
// previous ungraceful shutdown.
func (s *Store) EnsureDir(job *models.ClientJob) (string, error) {
	dir := s.ResolveDir(job)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	s.CleanupLocks(dir)
	return dir, nil
}
