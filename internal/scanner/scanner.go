package scanner

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/codevec/internal/config"
	ingerr "github.com/Aman-CERP/codevec/internal/errors"
	"github.com/Aman-CERP/codevec/internal/gitignore"
)

// gitignoreCacheSize bounds the matcher cache so long runs over many
// repositories cannot grow memory without limit.
const gitignoreCacheSize = 1000

// Scanner walks repository checkouts. One instance is shared across
// repositories; the gitignore cache keys on absolute directory paths.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, ingerr.InternalError("failed to create gitignore cache", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan streams discovered files over the returned channel. The channel is
// closed when the walk finishes or the context is canceled.
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
		return nil, ingerr.IOError("failed to resolve repository root", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeRepoNotFound, "repository directory does not exist", err).
			WithDetail("path", absRoot).
			WithSuggestion("Clone the repository under the configured base directory before ingesting")
	}
	if !info.IsDir() {
		return nil, ingerr.New(ingerr.ErrCodeRepoNotFound, "repository path is not a directory", nil).
			WithDetail("path", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = config.DefaultMaxFileSize
	}

	skip := make(map[string]struct{}, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = struct{}{}
	}

	wanted := map[string]struct{}{}
	for _, lang := range opts.Languages {
		wanted[lang] = struct{}{}
	}

	results := make(chan Result, 64)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, maxFileSize, skip, wanted, results)
	}()
	return results, nil
}

// walk performs the directory traversal.
func (s *Scanner) walk(ctx context.Context, absRoot string, opts *Options, maxFileSize int64, skip map[string]struct{}, wanted map[string]struct{}, results chan<- Result) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if _, skipped := skip[d.Name()]; skipped {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		lang, ok := config.LanguageForPath(relPath)
		if !ok {
			return nil
		}
		if len(wanted) > 0 {
			if _, want := wanted[lang]; !want {
				return nil
			}
		}

		if s.shouldExcludeFile(relPath, absRoot, opts) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxFileSize {
			return nil
		}
		if s.isBinaryFile(path) {
			return nil
		}

		fi := &FileInfo{
			Path:        relPath,
			AbsPath:     path,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Language:    lang,
			IsCICD:      config.IsCICDPath(relPath),
			IsGenerated: s.isGeneratedFile(path),
		}

		select {
		case results <- Result{File: fi}:
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

// shouldExcludeFile applies sensitive patterns, caller patterns, and
// gitignore rules.
func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *Options) bool {
	baseName := filepath.Base(relPath)

	for _, pattern := range sensitiveFilePatterns {
		if matchFilePattern(baseName, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(baseName, pattern) {
			return true
		}
	}
	if opts.RespectGitignore && s.isGitignored(relPath, absRoot) {
		return true
	}
	return false
}

// matchFilePattern matches a basename against a simple glob pattern:
// "*suffix", "prefix*", "*middle*", or an exact name.
func matchFilePattern(baseName, pattern string) bool {
	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		middle := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(baseName), strings.ToLower(middle))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(baseName, strings.TrimPrefix(pattern, "*"))
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(baseName, strings.TrimSuffix(pattern, "*"))
	default:
		return baseName == pattern
	}
}

// isBinaryFile sniffs the first 512 bytes for a null byte.
func (s *Scanner) isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

// generatedMarkers flag machine-produced files in their first kilobyte.
var generatedMarkers = []string{
	"// Code generated",
	"// DO NOT EDIT",
	"/* DO NOT EDIT",
	"# Generated by",
	"<!-- AUTO-GENERATED -->",
	"@generated",
}

// isGeneratedFile checks the head of a file for generated-code markers.
func (s *Scanner) isGeneratedFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	head := string(buf[:n])
	for _, marker := range generatedMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}

// isGitignored checks the root .gitignore and every nested .gitignore on
// the path to the file.
func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	if m := s.matcherFor(absRoot, ""); m != nil && m.Match(relPath, false) {
		return true
	}

	parts := strings.Split(filepath.Dir(relPath), "/")
	currentDir := absRoot
	currentBase := ""
	for _, part := range parts {
		if part == "." {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		currentBase = filepath.Join(currentBase, part)
		if m := s.matcherFor(currentDir, currentBase); m != nil && m.Match(relPath, false) {
			return true
		}
	}
	return false
}

// matcherFor returns the cached gitignore matcher for a directory, parsing
// it on first use. Directories without a .gitignore return nil.
func (s *Scanner) matcherFor(dir, base string) *gitignore.Matcher {
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

// InvalidateGitignoreCache drops all cached matchers. Safe to call
// concurrently with scans.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

// sensitiveFilePatterns are never ingested, regardless of language.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
