package chunk

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Documentation types, chosen by keyword match on the file path.
const (
	DocTypeArchitecture   = "architecture"
	DocTypeAPI            = "api"
	DocTypeAuthentication = "authentication"
	DocTypeDeployment     = "deployment"
	DocTypeDevelopment    = "development"
	DocTypeIntegration    = "integration"
	DocTypeDefault        = "documentation"
)

// docTypePatterns map doc types to path keywords, in match order.
var docTypePatterns = []struct {
	docType  string
	keywords []string
}{
	{DocTypeArchitecture, []string{"architecture", "arch", "overview", "design", "system"}},
	{DocTypeAPI, []string{"api", "endpoint", "swagger", "openapi"}},
	{DocTypeAuthentication, []string{"auth", "login", "magic-link", "session", "jwt"}},
	{DocTypeDeployment, []string{"deploy", "setup", "install", "config"}},
	{DocTypeDevelopment, []string{"dev", "contributing", "coding", "guidelines"}},
	{DocTypeIntegration, []string{"integration", "guide", "example", "tutorial"}},
}

// DocTypeForPath classifies a documentation file by its path.
func DocTypeForPath(relPath string) string {
	lower := strings.ToLower(relPath)
	for _, p := range docTypePatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.docType
			}
		}
	}
	return DocTypeDefault
}

// MarkdownParser splits documentation on level-2 headings. Everything
// between two "## " headings, including deeper headings and fenced code
// blocks, is one chunk. Content above the first level-2 heading contributes
// only the document title.
type MarkdownParser struct{}

// NewMarkdownParser returns a MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Language implements Parser.
func (p *MarkdownParser) Language() string {
	return "documentation"
}

// mdSection is one level-2 section of a document.
type mdSection struct {
	title     string
	startLine int // 1-based line of the "## " heading
	lines     []string
}

// Parse implements Parser.
func (p *MarkdownParser) Parse(ctx context.Context, file *FileInput) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(file.Content) == 0 {
		return &ParseResult{TotalLines: 0}, nil
	}
	if !utf8.Valid(file.Content) {
		return &ParseResult{
			TotalLines: countLines(file.Content),
			Err:        "file is not valid UTF-8",
		}, nil
	}

	lines := strings.Split(string(file.Content), "\n")
	docType := DocTypeForPath(file.RelPath)

	title := ""
	var sections []*mdSection
	var current *mdSection
	inFence := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		// A heading inside a fenced code block is content, not structure.
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}

		if !inFence && isLevel2Heading(line) {
			if current != nil {
				sections = append(sections, current)
			}
			current = &mdSection{
				title:     strings.TrimSpace(strings.TrimPrefix(trimmed, "##")),
				startLine: i + 1,
				lines:     []string{line},
			}
			continue
		}

		if current != nil {
			current.lines = append(current.lines, line)
			continue
		}

		// Preamble: keep the document title only.
		if title == "" && !inFence && strings.HasPrefix(trimmed, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	if current != nil {
		sections = append(sections, current)
	}

	chunks := make([]*Chunk, 0, len(sections))
	for _, sec := range sections {
		content := strings.TrimRight(strings.Join(sec.lines, "\n"), "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}

		c := &Chunk{
			Content:         content,
			Language:        "documentation",
			ItemType:        docType,
			ItemName:        sec.title,
			FilePath:        file.RelPath,
			StartLine:       sec.startLine,
			EndLine:         sec.startLine + strings.Count(content, "\n"),
			RepoID:          file.RepoID,
			ComplexityScore: ComplexityScore(content),
		}
		if c.ItemName == "" {
			c.ItemName = AnonymousName(sec.startLine)
		}
		c.SetMeta("section_level", strconv.Itoa(2))
		c.SetMeta("doc_type", docType)
		if title != "" {
			c.SetMeta("title", title)
		}
		chunks = append(chunks, c)
	}

	return &ParseResult{
		Chunks:     chunks,
		TotalLines: countLines(file.Content),
	}, nil
}

// isLevel2Heading matches "## Heading" but not "###" or deeper.
func isLevel2Heading(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "## ") ||
		(trimmed == "##")
}

var _ Parser = (*MarkdownParser)(nil)
