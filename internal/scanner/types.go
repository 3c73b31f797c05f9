// Package scanner enumerates indexable note files under a notes root,
// respecting exclusion patterns and encrypted-variant suffixes.
package scanner

import (
	"strings"
	"time"
)

// FileInfo contains metadata about a discovered note file.
type FileInfo struct {
	Path      string    // Relative path to the notes root, slash-separated
	AbsPath   string    // Absolute path
	Size      int64     // File size in bytes
	ModTime   time.Time // Last modification time
	Encrypted bool      // Encrypted variant, tracked but not parsed
}

// Options configures the scanner behavior.
type Options struct {
	// RootDir is the notes root directory to scan.
	RootDir string

	// Extensions lists note extensions to include (e.g. ".md", ".org").
	Extensions []string

	// EncryptedSuffixes lists encrypted-variant suffixes (e.g. ".gpg").
	// A file matches when stripping the suffix leaves a note extension.
	EncryptedSuffixes []string

	// ExcludePatterns specifies glob patterns to exclude.
	ExcludePatterns []string

	// MaxFileSize is the maximum file size in bytes (0 = 10MB default).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool
}

// DefaultMaxFileSize is the default maximum file size (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// defaultExcludeDirs are always skipped regardless of configuration.
var defaultExcludeDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".notedb":      true,
	"node_modules": true,
}

// AlwaysExcludedDir reports whether a directory name is skipped
// regardless of configuration.
func AlwaysExcludedDir(name string) bool {
	return defaultExcludeDirs[name]
}

// MatchExtension reports whether name carries one of the note extensions,
// and whether it does so through an encrypted suffix.
func MatchExtension(name string, extensions, encryptedSuffixes []string) (ok, encrypted bool) {
	lower := strings.ToLower(name)

	for _, suffix := range encryptedSuffixes {
		if !strings.HasSuffix(lower, suffix) {
			continue
		}
		stripped := strings.TrimSuffix(lower, suffix)
		for _, ext := range extensions {
			if strings.HasSuffix(stripped, ext) {
				return true, true
			}
		}
	}

	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true, false
		}
	}

	return false, false
}
