// Package scanner discovers ingestable files inside a repository checkout.
// It walks the tree, applies skip-directory rules at any depth, honors
// .gitignore, and filters out binary, generated, oversized, and sensitive
// files before they reach the parsers.
package scanner

import (
	"time"
)

// FileInfo describes one discovered file.
type FileInfo struct {
	Path        string    // relative to the repository root, forward slashes
	AbsPath     string    // absolute path on disk
	Size        int64     // size in bytes
	ModTime     time.Time // last modification time
	Language    string    // language tag from the extension map
	IsCICD      bool      // path sits under a CI/CD marker directory
	IsGenerated bool      // file carries a generated-code marker
}

// Result is streamed from the scan channel. Exactly one field is set.
type Result struct {
	File *FileInfo
	Err  error
}

// Options configures a scan.
type Options struct {
	// RootDir is the repository checkout to walk.
	RootDir string

	// SkipDirs are directory basenames excluded at any depth.
	SkipDirs []string

	// ExcludePatterns are extra file patterns to drop.
	ExcludePatterns []string

	// RespectGitignore enables .gitignore parsing, including nested files.
	RespectGitignore bool

	// MaxFileSize drops files larger than this many bytes.
	MaxFileSize int64

	// FollowSymlinks walks through symbolic links. Off by default so a
	// link cycle cannot wedge the walk.
	FollowSymlinks bool

	// Languages restricts results to these language tags. Empty means
	// every language the extension map knows.
	Languages []string
}
