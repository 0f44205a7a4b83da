package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	enry "github.com/go-enry/go-enry/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/gitignore"
)

// gitignoreCacheSize is the maximum number of gitignore matchers to cache.
// This prevents unbounded memory growth in long-running processes.
const gitignoreCacheSize = 1000

// binarySniffLen is how many leading bytes are inspected for binary content.
const binarySniffLen = 8000

// resultBuffer is the channel buffer between the walk and the consumer.
const resultBuffer = 64

// Scanner discovers indexable files in a repository.
type Scanner struct {
	// gitignoreCache caches parsed gitignore matchers by directory.
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a new Scanner instance.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{
		gitignoreCache: cache,
	}, nil
}

// Scan walks the repository rooted at opts.RootDir and streams discovered
// files. The channel is closed when the walk completes. A missing root fails
// fast with a PathNotFound error before any walking starts.
func (s *Scanner) Scan(ctx context.Context, opts *Options) (<-chan Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.PathNotFound(absRoot)
		}
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	results := make(chan Result, resultBuffer)

	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, maxFileSize, results)
	}()

	return results, nil
}

// walk performs the directory traversal.
func (s *Scanner) walk(ctx context.Context, absRoot string, opts *Options, maxFileSize int64, results chan<- Result) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip entries we can't access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if DeniedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !AllowedExtension(ext) {
			return nil
		}

		relSlash := filepath.ToSlash(relPath)
		if matchesAny(opts.ExcludePatterns, relSlash) {
			return nil
		}

		// Vendored paths (vendor/, minified assets, bundled deps) are noise
		// in search results even when their extension is allowlisted.
		if enry.IsVendor(relSlash) {
			return nil
		}

		if opts.RespectGitignore && s.isGitignored(relPath, absRoot) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		if fi.Size() > maxFileSize {
			slog.Debug("skipping oversized file",
				slog.String("path", relPath),
				slog.Int64("size", fi.Size()))
			return nil
		}

		if isBinary(path) {
			return nil
		}

		file := &File{
			Path:    relPath,
			AbsPath: path,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
			Ext:     ext,
		}

		select {
		case results <- Result{File: file}:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Err: err}:
		case <-ctx.Done():
		}
	}
}

// matchesAny reports whether relSlash matches any doublestar pattern.
// Malformed patterns never match.
func matchesAny(patterns []string, relSlash string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, relSlash); err == nil && ok {
			return true
		}
	}
	return false
}

// isBinary sniffs the leading bytes of a file for binary content.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, binarySniffLen)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return false
	}

	return enry.IsBinary(buf[:n])
}

// isGitignored checks if a file is ignored by gitignore.
func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	// Root .gitignore first
	rootMatcher := s.getGitignoreMatcher(absRoot, "")
	if rootMatcher != nil && rootMatcher.Match(relPath, false) {
		return true
	}

	// Then nested .gitignore files along the path
	parts := strings.Split(filepath.Dir(relPath), string(filepath.Separator))
	currentDir := absRoot
	currentBase := ""

	for _, part := range parts {
		if part == "." {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = filepath.Join(currentBase, part)
		}

		matcher := s.getGitignoreMatcher(currentDir, currentBase)
		if matcher != nil && matcher.Match(relPath, false) {
			return true
		}
	}

	return false
}

// getGitignoreMatcher gets or creates a gitignore matcher for a directory.
func (s *Scanner) getGitignoreMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	matcher, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		return nil
	}

	matcher = gitignore.New()
	if err := matcher.AddFromFile(gitignorePath, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, matcher)
	s.cacheMu.Unlock()

	return matcher
}

// InvalidateGitignoreCache clears the gitignore matcher cache. Call this when
// .gitignore files change so fresh patterns are used on the next scan.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}
