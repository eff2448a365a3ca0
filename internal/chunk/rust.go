package chunk

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/smacker/go-tree-sitter/rust"
)

// maxImportsPerFile caps the use-statements attached to chunk metadata.
const maxImportsPerFile = 10

// RustParser extracts functions, type declarations, impl blocks, traits,
// modules, and constants from Rust sources using tree-sitter.
type RustParser struct{}

// NewRustParser returns a RustParser.
func NewRustParser() *RustParser {
	return &RustParser{}
}

// Language implements Parser.
func (p *RustParser) Language() string {
	return "rust"
}

// rustItemTypes maps tree-sitter node types to chunk item types.
var rustItemTypes = map[string]string{
	"function_item": ItemFunction,
	"struct_item":   ItemStruct,
	"enum_item":     ItemEnum,
	"trait_item":    ItemTrait,
	"impl_item":     ItemImpl,
	"mod_item":      ItemModule,
	"const_item":    ItemConstant,
	"static_item":   ItemStatic,
	"type_item":     ItemTypeAlias,
}

// Parse implements Parser.
func (p *RustParser) Parse(ctx context.Context, file *FileInput) (*ParseResult, error) {
	if len(file.Content) == 0 {
		return &ParseResult{TotalLines: 0}, nil
	}
	if !utf8.Valid(file.Content) {
		return &ParseResult{
			TotalLines: countLines(file.Content),
			Err:        "file is not valid UTF-8",
		}, nil
	}

	tree, err := parseTree(ctx, file.Content, rust.GetLanguage())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &ParseResult{TotalLines: countLines(file.Content), Err: err.Error()}, nil
	}

	imports := rustImports(tree)
	lines := strings.Split(string(file.Content), "\n")

	var chunks []*Chunk
	p.collectItems(tree.Root, tree.Source, lines, file, imports, &chunks)

	return &ParseResult{
		Chunks:     chunks,
		TotalLines: countLines(file.Content),
	}, nil
}

// collectItems visits top-level items, descending only into module bodies.
// Items inside impl blocks and function bodies belong to their enclosing
// chunk.
func (p *RustParser) collectItems(n *Node, source []byte, lines []string, file *FileInput, imports string, out *[]*Chunk) {
	for _, child := range n.Children {
		itemType, ok := rustItemTypes[child.Type]
		if !ok {
			// Descend through structural wrappers (source_file,
			// declaration_list) but not into leaf items.
			if child.Type == "declaration_list" {
				p.collectItems(child, source, lines, file, imports, out)
			}
			continue
		}

		chunk := p.buildChunk(child, itemType, source, lines, file, imports)
		if chunk != nil {
			*out = append(*out, chunk)
		}

		// Module contents are themselves chunks; the module chunk keeps
		// only its header.
		if child.Type == "mod_item" {
			if body := child.FindChildByType("declaration_list"); body != nil {
				p.collectItems(body, source, lines, file, imports, out)
			}
		}
	}
}

func (p *RustParser) buildChunk(n *Node, itemType string, source []byte, lines []string, file *FileInput, imports string) *Chunk {
	content := n.GetContent(source)
	startLine := n.StartLine()
	endLine := n.EndLine()

	name := p.itemName(n, source)
	if name == "" {
		name = AnonymousName(startLine)
	}

	// Module chunks carry the header only; nested items become their own
	// chunks.
	if itemType == ItemModule {
		header := content
		if idx := strings.Index(content, "{"); idx >= 0 {
			header = strings.TrimRight(content[:idx], " \t") + "{"
		}
		if nl := strings.Index(header, "\n"); nl >= 0 {
			header = header[:nl]
		}
		content = header
		endLine = startLine
	}

	c := &Chunk{
		Content:         content,
		Language:        "rust",
		ItemType:        itemType,
		ItemName:        name,
		FilePath:        file.RelPath,
		StartLine:       startLine,
		EndLine:         endLine,
		RepoID:          file.RepoID,
		ComplexityScore: ComplexityScore(content),
	}

	c.SetMeta("visibility", rustVisibility(n, source))
	if imports != "" {
		c.SetMeta("imports", imports)
	}
	if itemType == ItemFunction {
		if n.FindChildByType("async") != nil {
			c.SetMeta("is_async", "true")
		}
		if strings.HasPrefix(strings.TrimSpace(strings.TrimPrefix(content, rustVisibility(n, source))), "unsafe") ||
			n.FindChildByType("unsafe") != nil {
			c.SetMeta("is_unsafe", "true")
		}
		if hasTestAttribute(lines, startLine) {
			c.SetMeta("has_test_attr", "true")
		}
	}

	return c
}

// itemName extracts the declared name for a Rust item.
func (p *RustParser) itemName(n *Node, source []byte) string {
	switch n.Type {
	case "impl_item":
		// "impl Display for Token" → "Display for Token".
		header := n.GetContent(source)
		if idx := strings.Index(header, "{"); idx >= 0 {
			header = header[:idx]
		}
		header = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "impl"))
		// Drop generic parameters on the impl keyword itself.
		header = strings.TrimSpace(strings.TrimLeft(header, "<"))
		if header == "" {
			return ""
		}
		return header
	case "struct_item", "enum_item", "trait_item", "type_item":
		if id := n.FindChildByType("type_identifier"); id != nil {
			return id.GetContent(source)
		}
	default:
		if id := n.FindChildByType("identifier"); id != nil {
			return id.GetContent(source)
		}
	}
	return ""
}

// rustVisibility returns "pub", "pub(crate)", etc., or "private".
func rustVisibility(n *Node, source []byte) string {
	if vis := n.FindChildByType("visibility_modifier"); vis != nil {
		return vis.GetContent(source)
	}
	return "private"
}

// rustImports collects the file's use declarations, capped.
func rustImports(tree *Tree) string {
	var uses []string
	for _, child := range tree.Root.Children {
		if child.Type != "use_declaration" {
			continue
		}
		uses = append(uses, strings.TrimSpace(child.GetContent(tree.Source)))
		if len(uses) >= maxImportsPerFile {
			break
		}
	}
	return strings.Join(uses, " ")
}

// hasTestAttribute scans the attribute lines directly above the item for a
// test marker (#[test], #[tokio::test], #[cfg(test)]).
func hasTestAttribute(lines []string, startLine int) bool {
	// startLine is 1-based; attributes occupy the lines directly above.
	for i := startLine - 2; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#[") {
			return false
		}
		if strings.Contains(line, "test") {
			return true
		}
	}
	return false
}

var _ Parser = (*RustParser)(nil)
