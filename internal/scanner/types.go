// Package scanner discovers the indexable files of a repository.
//
// The walk prunes a fixed directory denylist at any depth, keeps only
// allowlisted extensions, and streams results over a channel so large
// repositories are never buffered in memory.
package scanner

import "time"

// DefaultMaxFileSize is the maximum file size included in a scan (5 MiB).
const DefaultMaxFileSize = 5 * 1024 * 1024

// File is a discovered repository file, prior to loading.
type File struct {
	Path    string    // relative to the repository root
	AbsPath string    // absolute path
	Size    int64     // size in bytes
	ModTime time.Time // last modification time
	Ext     string    // lowercased extension, including the dot
}

// Result is returned on the scanner channel. Exactly one of File and Err is
// set; a walk-level failure arrives as the final result before close.
type Result struct {
	File *File
	Err  error
}

// Options configures a scan.
type Options struct {
	// RootDir is the repository root to scan.
	RootDir string

	// ExcludePatterns are doublestar globs matched against the
	// slash-separated relative path of each file.
	ExcludePatterns []string

	// RespectGitignore enables .gitignore parsing.
	RespectGitignore bool

	// MaxFileSize is the maximum file size in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool
}

// deniedDirs are pruned from the walk wherever they appear.
var deniedDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"__pycache__":  {},
	"venv":         {},
	"env":          {},
	".idea":        {},
	".vscode":      {},
	"dist":         {},
	"build":        {},
	"coverage":     {},
}

// allowedExtensions is the closed set of indexable file extensions.
var allowedExtensions = map[string]struct{}{
	".py":    {},
	".js":    {},
	".ts":    {},
	".tsx":   {},
	".jsx":   {},
	".md":    {},
	".txt":   {},
	".java":  {},
	".go":    {},
	".cpp":   {},
	".c":     {},
	".h":     {},
	".cs":    {},
	".php":   {},
	".rb":    {},
	".rs":    {},
	".swift": {},
	".kt":    {},
}

// DeniedDir reports whether a directory name is on the denylist.
func DeniedDir(name string) bool {
	_, ok := deniedDirs[name]
	return ok
}

// AllowedExtension reports whether a lowercased extension (with dot) is
// indexable.
func AllowedExtension(ext string) bool {
	_, ok := allowedExtensions[ext]
	return ok
}
