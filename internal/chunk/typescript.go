package chunk

import (
	"context"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptParser extracts functions, classes, interfaces, type aliases,
// and exported constants from the TypeScript family (.ts, .tsx, .js, .jsx).
// The grammar is selected per file by extension.
type TypeScriptParser struct {
	// tag is the language tag this instance was registered under
	// ("typescript" or "javascript").
	tag string
}

// NewTypeScriptParser returns a parser registered for TypeScript files.
func NewTypeScriptParser() *TypeScriptParser {
	return &TypeScriptParser{tag: "typescript"}
}

// NewJavaScriptParser returns a parser registered for JavaScript files.
func NewJavaScriptParser() *TypeScriptParser {
	return &TypeScriptParser{tag: "javascript"}
}

// Language implements Parser.
func (p *TypeScriptParser) Language() string {
	return p.tag
}

// grammarFor selects the tree-sitter grammar by file extension.
func grammarFor(relPath string) (*sitter.Language, string) {
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".tsx":
		return tsx.GetLanguage(), "tsx"
	case ".ts":
		return typescript.GetLanguage(), "ts"
	case ".jsx":
		return javascript.GetLanguage(), "jsx"
	default:
		return javascript.GetLanguage(), "js"
	}
}

// Parse implements Parser.
func (p *TypeScriptParser) Parse(ctx context.Context, file *FileInput) (*ParseResult, error) {
	if len(file.Content) == 0 {
		return &ParseResult{TotalLines: 0}, nil
	}
	if !utf8.Valid(file.Content) {
		return &ParseResult{
			TotalLines: countLines(file.Content),
			Err:        "file is not valid UTF-8",
		}, nil
	}

	grammar, dialect := grammarFor(file.RelPath)
	tree, err := parseTree(ctx, file.Content, grammar)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &ParseResult{TotalLines: countLines(file.Content), Err: err.Error()}, nil
	}

	imports := tsImports(tree)

	var chunks []*Chunk
	for _, child := range tree.Root.Children {
		node := child
		exported := false
		if child.Type == "export_statement" {
			exported = true
			if decl := tsExportedDeclaration(child); decl != nil {
				node = decl
			} else {
				continue // re-exports carry no body worth embedding
			}
		}

		itemType, name := p.classify(node, tree.Source)
		if itemType == "" {
			continue
		}

		// The chunk spans the export statement when present so the text
		// keeps its "export" prefix.
		span := node
		if exported {
			span = child
		}

		content := span.GetContent(tree.Source)
		startLine := span.StartLine()
		if name == "" {
			name = AnonymousName(startLine)
		}

		c := &Chunk{
			Content:         content,
			Language:        p.tag,
			ItemType:        itemType,
			ItemName:        name,
			FilePath:        file.RelPath,
			StartLine:       startLine,
			EndLine:         span.EndLine(),
			RepoID:          file.RepoID,
			ComplexityScore: ComplexityScore(content),
		}
		c.SetMeta("dialect", dialect)
		c.SetMeta("is_typescript", boolMeta(dialect == "ts" || dialect == "tsx"))
		if exported {
			c.SetMeta("exported", "true")
		}
		if imports != "" {
			c.SetMeta("imports", imports)
		}
		if itemType == ItemFunction || itemType == ItemClass || itemType == ItemConstant {
			if isReactComponent(name, node, content) {
				c.SetMeta("is_react_component", "true")
			}
		}

		chunks = append(chunks, c)
	}

	return &ParseResult{
		Chunks:     chunks,
		TotalLines: countLines(file.Content),
	}, nil
}

// classify maps a top-level node to an item type and name.
func (p *TypeScriptParser) classify(n *Node, source []byte) (string, string) {
	switch n.Type {
	case "function_declaration", "generator_function_declaration":
		return ItemFunction, tsName(n, source)
	case "class_declaration":
		return ItemClass, tsName(n, source)
	case "interface_declaration":
		return ItemInterface, tsName(n, source)
	case "type_alias_declaration":
		return ItemTypeAlias, tsName(n, source)
	case "enum_declaration":
		return ItemEnum, tsName(n, source)
	case "lexical_declaration", "variable_declaration":
		declarator := n.FindChildByType("variable_declarator")
		if declarator == nil {
			return "", ""
		}
		name := tsName(declarator, source)
		if tsDeclaratorIsFunction(declarator) {
			return ItemFunction, name
		}
		return ItemConstant, name
	}
	return "", ""
}

// tsExportedDeclaration unwraps the declaration inside an export statement.
func tsExportedDeclaration(n *Node) *Node {
	for _, child := range n.Children {
		switch child.Type {
		case "function_declaration", "generator_function_declaration",
			"class_declaration", "interface_declaration",
			"type_alias_declaration", "enum_declaration",
			"lexical_declaration", "variable_declaration":
			return child
		}
	}
	return nil
}

// tsDeclaratorIsFunction reports whether the declarator's value is an arrow
// function or function expression.
func tsDeclaratorIsFunction(declarator *Node) bool {
	for _, child := range declarator.Children {
		switch child.Type {
		case "arrow_function", "function", "function_expression":
			return true
		}
	}
	return false
}

// tsName finds the declared identifier for a node.
func tsName(n *Node, source []byte) string {
	for _, t := range []string{"type_identifier", "identifier", "property_identifier"} {
		if id := n.FindChildByType(t); id != nil {
			return id.GetContent(source)
		}
	}
	return ""
}

// tsImports collects the file's import statements, capped.
func tsImports(tree *Tree) string {
	var imports []string
	for _, child := range tree.Root.Children {
		if child.Type != "import_statement" {
			continue
		}
		imports = append(imports, strings.TrimSpace(child.GetContent(tree.Source)))
		if len(imports) >= maxImportsPerFile {
			break
		}
	}
	return strings.Join(imports, " ")
}

// isReactComponent reports whether a chunk is a React component: the name
// starts with an uppercase letter and the body references JSX elements or
// hook-style identifiers.
func isReactComponent(name string, n *Node, content string) bool {
	if name == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(first) {
		return false
	}

	hasJSX := false
	n.Walk(func(node *Node) bool {
		switch node.Type {
		case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
			hasJSX = true
			return false
		}
		return !hasJSX
	})
	if hasJSX {
		return true
	}
	return usesHooks(content)
}

// usesHooks scans for hook-style identifiers: "use" followed by an
// uppercase letter at a word boundary.
func usesHooks(content string) bool {
	for i := 0; i+3 < len(content); i++ {
		if content[i] != 'u' || content[i+1] != 's' || content[i+2] != 'e' {
			continue
		}
		next := content[i+3]
		if next < 'A' || next > 'Z' {
			continue
		}
		if i > 0 {
			prev := content[i-1]
			if prev == '_' || (prev >= 'a' && prev <= 'z') || (prev >= 'A' && prev <= 'Z') || (prev >= '0' && prev <= '9') {
				continue
			}
		}
		return true
	}
	return false
}

func boolMeta(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

var _ Parser = (*TypeScriptParser)(nil)
