// Package ingest drives the repository ingestion pipeline: file discovery,
// parsing, embedding, and storage, with checkpoint-based resume.
package ingest

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/Aman-CERP/codevec/internal/chunk"
	"github.com/Aman-CERP/codevec/internal/config"
	"github.com/Aman-CERP/codevec/internal/scanner"
)

// LanguageGroup is the unit of per-repository processing: all files of one
// language, sorted by path. Groups are emitted in the configured language
// order so a checkpoint identifies a unique position in the run.
type LanguageGroup struct {
	Language string
	Files    []*scanner.FileInfo
}

// FileResult is the outcome of parsing one file.
type FileResult struct {
	File       *scanner.FileInfo
	Chunks     []*chunk.Chunk
	TotalLines int
	// Err describes a per-file parse failure. The file contributes no
	// chunks but the run continues.
	Err string
}

// FileProcessor turns a repository checkout into a stream of parsed chunks.
type FileProcessor struct {
	cfg      *config.Config
	registry *chunk.Registry
	scanner  *scanner.Scanner
	logger   *slog.Logger
}

// NewFileProcessor wires a processor from its parts.
func NewFileProcessor(cfg *config.Config, registry *chunk.Registry, sc *scanner.Scanner, logger *slog.Logger) *FileProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileProcessor{cfg: cfg, registry: registry, scanner: sc, logger: logger}
}

// CollectFiles scans a repository and groups its files by language in
// processing order. Languages the repository config does not want are
// dropped. Within a group, files are sorted by relative path.
func (p *FileProcessor) CollectFiles(ctx context.Context, repo *config.Repo) ([]LanguageGroup, error) {
	results, err := p.scanner.Scan(ctx, &scanner.Options{
		RootDir:          repo.Path(p.cfg.ReposBaseDir),
		SkipDirs:         p.cfg.Ingestion.SkipDirs,
		RespectGitignore: true,
		MaxFileSize:      p.cfg.Ingestion.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	byLang := map[string][]*scanner.FileInfo{}
	for res := range results {
		if res.Err != nil {
			p.logger.Warn("scan error",
				slog.String("repo", repo.ID),
				slog.String("error", res.Err.Error()))
			continue
		}
		f := res.File
		if !repo.WantsLanguage(f.Language) {
			continue
		}
		if f.IsGenerated {
			continue
		}
		if !inComponents(f.Path, repo.Components) {
			continue
		}
		byLang[f.Language] = append(byLang[f.Language], f)
	}

	var groups []LanguageGroup
	for _, lang := range config.SupportedLanguages() {
		files := byLang[lang]
		if len(files) == 0 {
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		groups = append(groups, LanguageGroup{Language: lang, Files: files})
	}
	return groups, nil
}

// Process parses one language group lazily, sending a FileResult per file.
// The channel closes when the group is exhausted or the context is canceled.
func (p *FileProcessor) Process(ctx context.Context, repo *config.Repo, group LanguageGroup) <-chan *FileResult {
	out := make(chan *FileResult)

	parser, ok := p.registry.Get(group.Language)
	go func() {
		defer close(out)
		if !ok {
			p.logger.Error("no parser registered", slog.String("language", group.Language))
			return
		}

		for _, f := range group.Files {
			select {
			case <-ctx.Done():
				return
			default:
			}

			result := p.parseFile(ctx, parser, repo, f)
			if result == nil {
				return // context canceled mid-parse
			}
			select {
			case out <- result:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// parseFile reads and parses a single file, stamping repository context on
// every chunk.
func (p *FileProcessor) parseFile(ctx context.Context, parser chunk.Parser, repo *config.Repo, f *scanner.FileInfo) *FileResult {
	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return &FileResult{File: f, Err: "read failed: " + err.Error()}
	}
	if int64(len(content)) > p.cfg.Ingestion.MaxFileSize {
		return &FileResult{File: f, Err: "file exceeds size limit"}
	}

	parsed, err := parser.Parse(ctx, &chunk.FileInput{
		Path:    f.AbsPath,
		RelPath: f.Path,
		Content: content,
		RepoID:  repo.ID,
	})
	if err != nil {
		return nil // only context cancellation reaches here
	}
	if !parsed.OK() {
		return &FileResult{File: f, TotalLines: parsed.TotalLines, Err: parsed.Err}
	}

	component := ComponentForPath(f.Path)
	for _, c := range parsed.Chunks {
		c.RepoID = repo.ID
		c.RepoComponent = component
		// Classified per chunk: one file can mix domains, and the path
		// keywords only break the tie when the chunk itself is neutral.
		c.BusinessDomain = p.cfg.Domains.Classify(f.Path, c.Content)
		if f.IsCICD {
			c.SetMeta("is_cicd", "true")
		}
		if repo.RepoType != "" {
			c.SetMeta("service_type", repo.RepoType)
		}
		if len(repo.ServiceDependencies) > 0 {
			c.SetMeta("depends_on_services", strings.Join(repo.ServiceDependencies, ","))
		}
		if repo.HasHelm && underPath(f.Path, repo.HelmPath) {
			c.SetMeta("is_helm", "true")
		}
		if repo.ExposesAPIs && underPath(f.Path, repo.APIBasePath) {
			c.SetMeta("is_api_surface", "true")
		}
	}

	return &FileResult{
		File:       f,
		Chunks:     parsed.Chunks,
		TotalLines: parsed.TotalLines,
	}
}

// inComponents reports whether the path falls under one of the repo's
// declared component directories. An empty list admits the whole tree.
func inComponents(relPath string, components []string) bool {
	if len(components) == 0 {
		return true
	}
	for _, comp := range components {
		if underPath(relPath, comp) {
			return true
		}
	}
	return false
}

// underPath reports whether relPath is the prefix directory itself or a
// descendant of it. An empty prefix matches nothing.
func underPath(relPath, prefix string) bool {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return false
	}
	relPath = strings.TrimPrefix(relPath, "/")
	return relPath == prefix || strings.HasPrefix(relPath, prefix+"/")
}

// monorepoRoots are directories whose second path segment names the
// component.
var monorepoRoots = map[string]struct{}{
	"apps":     {},
	"packages": {},
	"services": {},
}

// namedComponents are first segments that are components in their own right.
var namedComponents = map[string]struct{}{
	"api":       {},
	"contracts": {},
	"docs":      {},
	"frontend":  {},
	"backend":   {},
}

// ComponentForPath derives the repository component from the leading path
// segments. Everything unrecognized is "core".
func ComponentForPath(relPath string) string {
	parts := strings.Split(strings.TrimPrefix(relPath, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "core"
	}
	first := strings.ToLower(parts[0])
	if _, ok := monorepoRoots[first]; ok {
		if len(parts) > 2 {
			return strings.ToLower(parts[1])
		}
		return "core"
	}
	if _, ok := namedComponents[first]; ok {
		return first
	}
	return "core"
}
