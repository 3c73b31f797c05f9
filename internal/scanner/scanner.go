package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/notedb/notedb/internal/errors"
)

// Scanner discovers note files under a root directory.
type Scanner struct{}

// NewScanner creates a new Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// List walks the notes root and returns all indexable files, sorted by
// relative path. Unreadable entries are skipped with a warning; only a
// failure to walk the root itself is an error.
func (s *Scanner) List(ctx context.Context, opts Options) ([]*FileInfo, error) {
	if opts.RootDir == "" {
		return nil, errors.New(errors.ErrCodeInvalidPath, "scan root is empty", nil)
	}

	root, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath, "cannot resolve scan root", err)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var files []*FileInfo

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("scan_entry_skipped",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if defaultExcludeDirs[d.Name()] || matchesAny(rel, d.Name(), opts.ExcludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are skipped unless explicitly followed
		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		ok, encrypted := MatchExtension(d.Name(), opts.Extensions, opts.EncryptedSuffixes)
		if !ok {
			return nil
		}

		if matchesAny(rel, d.Name(), opts.ExcludePatterns) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			slog.Warn("scan_stat_failed",
				slog.String("path", rel),
				slog.String("error", infoErr.Error()),
			)
			return nil
		}

		if info.Size() > maxSize {
			slog.Warn("scan_file_too_large",
				slog.String("path", rel),
				slog.Int64("size", info.Size()),
				slog.Int64("max", maxSize),
			)
			return nil
		}

		files = append(files, &FileInfo{
			Path:      rel,
			AbsPath:   path,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Encrypted: encrypted,
		})
		return nil
	})

	if walkErr != nil {
		if walkErr == ctx.Err() {
			return nil, walkErr
		}
		return nil, errors.New(errors.ErrCodeScanFailed,
			"cannot enumerate notes directory", walkErr).
			WithDetail("root", root)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	slog.Debug("scan_complete",
		slog.String("root", root),
		slog.Int("files", len(files)),
	)

	return files, nil
}

// matchesAny reports whether the relative path or base name matches any
// exclusion pattern. Patterns match path components as well, so "drafts"
// excludes everything under a drafts directory.
func matchesAny(rel, base string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		for _, part := range strings.Split(rel, "/") {
			if ok, _ := filepath.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}
