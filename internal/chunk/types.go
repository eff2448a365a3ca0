// Package chunk turns source files into syntactically coherent units ready
// for embedding. Each supported language has a parser implementing the same
// contract; a registry maps language tags to parser instances.
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Item types shared across languages. Language-specific types (contract,
// modifier, section, ...) are defined next to their parsers.
const (
	ItemFunction    = "function"
	ItemMethod      = "method"
	ItemStruct      = "struct"
	ItemEnum        = "enum"
	ItemTrait       = "trait"
	ItemImpl        = "impl"
	ItemModule      = "module"
	ItemConstant    = "constant"
	ItemStatic      = "static"
	ItemTypeAlias   = "type_alias"
	ItemClass       = "class"
	ItemInterface   = "interface"
	ItemSection     = "section"
	ItemConfigBlock = "config_block"
)

// Chunk is the unit of embedding.
type Chunk struct {
	// Content is the exact source text spanning the chunk, UTF-8.
	Content string
	// Language is one of the supported tags.
	Language string
	// ItemType is the language-specific category (function, struct, ...).
	ItemType string
	// ItemName is the declared name, or a synthesized "<anonymous:line>".
	ItemName string
	// FilePath is relative to the repo root.
	FilePath string
	// StartLine and EndLine are 1-based inclusive.
	StartLine int
	EndLine   int

	// Provenance, stamped by the file processor.
	RepoID        string
	RepoComponent string

	// BusinessDomain is assigned by ordered keyword match; "unknown" default.
	BusinessDomain string

	// ComplexityScore is in [0,1].
	ComplexityScore float64

	// Metadata carries language-specific extras (visibility, async-ness,
	// is_react_component, doc_type, imports, ...).
	Metadata map[string]string
}

// Hash returns the chunk identity: SHA-256 over
// "language|file_path|item_type|item_name|content", lowercase hex.
// Two chunks with the same hash denote the same unit.
func (c *Chunk) Hash() string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		c.Language, c.FilePath, c.ItemType, c.ItemName, c.Content,
	}, "|")))
	return hex.EncodeToString(h[:])
}

// LineCount returns the number of lines spanned by the chunk.
func (c *Chunk) LineCount() int {
	return c.EndLine - c.StartLine + 1
}

// SetMeta sets a metadata key, allocating the map on first use.
func (c *Chunk) SetMeta(key, value string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
}

// AnonymousName synthesizes a stable name for unnamed items.
func AnonymousName(line int) string {
	return fmt.Sprintf("<anonymous:%d>", line)
}

// FileInput is the input handed to a parser.
type FileInput struct {
	// Path is the absolute on-disk path (diagnostics only).
	Path string
	// RelPath is the path relative to the repo root.
	RelPath string
	// Content is the raw file bytes.
	Content []byte
	// RepoID identifies the owning repository.
	RepoID string
}

// ParseResult is the outcome of parsing one file. A failed parse sets Err
// and returns no chunks; it never aborts the run.
type ParseResult struct {
	Chunks     []*Chunk
	TotalLines int
	// Err describes a per-file parse failure (syntax error, bad encoding).
	Err string
}

// OK reports whether the file parsed successfully.
func (r *ParseResult) OK() bool {
	return r.Err == ""
}

// Parser converts one file into an ordered sequence of chunks.
// Implementations must be pure functions of their inputs and must emit
// chunks in source order.
type Parser interface {
	// Language returns the tag this parser handles.
	Language() string

	// Parse extracts chunks. The error return is reserved for context
	// cancellation; per-file failures are reported via ParseResult.Err.
	Parse(ctx context.Context, file *FileInput) (*ParseResult, error)
}

// countLines returns the 1-based number of lines in the content.
func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}
