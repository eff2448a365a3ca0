package chunk

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/smacker/go-tree-sitter/hcl"
)

// TerraformParser turns top-level HCL blocks (resource, module, variable,
// output, provider, data, locals, terraform) into chunks named
// "type.label1.label2".
type TerraformParser struct{}

// NewTerraformParser returns a TerraformParser.
func NewTerraformParser() *TerraformParser {
	return &TerraformParser{}
}

// Language implements Parser.
func (p *TerraformParser) Language() string {
	return "terraform"
}

// Parse implements Parser.
func (p *TerraformParser) Parse(ctx context.Context, file *FileInput) (*ParseResult, error) {
	if len(file.Content) == 0 {
		return &ParseResult{TotalLines: 0}, nil
	}
	if !utf8.Valid(file.Content) {
		return &ParseResult{
			TotalLines: countLines(file.Content),
			Err:        "file is not valid UTF-8",
		}, nil
	}

	tree, err := parseTree(ctx, file.Content, hcl.GetLanguage())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &ParseResult{TotalLines: countLines(file.Content), Err: err.Error()}, nil
	}
	if tree.Root.HasError {
		return &ParseResult{
			TotalLines: countLines(file.Content),
			Err:        "invalid HCL syntax",
		}, nil
	}

	var chunks []*Chunk
	for _, block := range topLevelBlocks(tree.Root) {
		blockType, labels := hclBlockHeader(block, tree.Source)
		if blockType == "" {
			continue
		}

		content := block.GetContent(tree.Source)
		name := blockType
		if len(labels) > 0 {
			name = blockType + "." + strings.Join(labels, ".")
		}

		c := &Chunk{
			Content:         content,
			Language:        "terraform",
			ItemType:        ItemConfigBlock,
			ItemName:        name,
			FilePath:        file.RelPath,
			StartLine:       block.StartLine(),
			EndLine:         block.EndLine(),
			RepoID:          file.RepoID,
			ComplexityScore: ComplexityScore(content),
		}
		c.SetMeta("block_type", blockType)
		if blockType == "resource" && len(labels) > 0 {
			c.SetMeta("resource_type", labels[0])
			if idx := strings.IndexByte(labels[0], '_'); idx > 0 {
				c.SetMeta("provider", labels[0][:idx])
			}
		}
		if blockType == "provider" && len(labels) > 0 {
			c.SetMeta("provider", labels[0])
		}
		chunks = append(chunks, c)
	}

	return &ParseResult{
		Chunks:     chunks,
		TotalLines: countLines(file.Content),
	}, nil
}

// topLevelBlocks finds block nodes directly under the file body.
func topLevelBlocks(root *Node) []*Node {
	var blocks []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		for _, child := range n.Children {
			switch child.Type {
			case "block":
				blocks = append(blocks, child)
			case "body", "config_file":
				visit(child)
			}
		}
	}
	visit(root)
	return blocks
}

// hclBlockHeader extracts the block type and its labels.
func hclBlockHeader(block *Node, source []byte) (string, []string) {
	blockType := ""
	var labels []string
	for _, child := range block.Children {
		switch child.Type {
		case "identifier":
			if blockType == "" {
				blockType = child.GetContent(source)
			} else {
				labels = append(labels, child.GetContent(source))
			}
		case "string_lit":
			labels = append(labels, strings.Trim(child.GetContent(source), `"`))
		case "block_start", "body":
			return blockType, labels
		}
	}
	return blockType, labels
}

var _ Parser = (*TerraformParser)(nil)
