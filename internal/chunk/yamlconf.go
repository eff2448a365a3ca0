package chunk

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/smacker/go-tree-sitter/yaml"
)

// YAMLParser turns top-level mapping keys of YAML documents into chunks.
// Multi-document streams produce chunks per document. Kubernetes and Helm
// metadata (resource kind, chart name, container images, env vars, ports)
// is extracted when present.
type YAMLParser struct {
	// RecurseOneLevel additionally emits chunks for second-level keys of
	// large top-level blocks.
	RecurseOneLevel bool
}

// NewYAMLParser returns a YAMLParser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Language implements Parser.
func (p *YAMLParser) Language() string {
	return "yaml"
}

// Parse implements Parser.
func (p *YAMLParser) Parse(ctx context.Context, file *FileInput) (*ParseResult, error) {
	if len(file.Content) == 0 {
		return &ParseResult{TotalLines: 0}, nil
	}
	if !utf8.Valid(file.Content) {
		return &ParseResult{
			TotalLines: countLines(file.Content),
			Err:        "file is not valid UTF-8",
		}, nil
	}

	tree, err := parseTree(ctx, file.Content, yaml.GetLanguage())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &ParseResult{TotalLines: countLines(file.Content), Err: err.Error()}, nil
	}
	if tree.Root.HasError {
		return &ParseResult{
			TotalLines: countLines(file.Content),
			Err:        "invalid YAML syntax",
		}, nil
	}

	isCICD := strings.Contains(strings.ToLower(file.RelPath), "workflows") ||
		strings.Contains(strings.ToLower(file.RelPath), "-ci")

	var chunks []*Chunk
	for docIdx, doc := range tree.Root.FindAllByType("document") {
		mapping := findTopMapping(doc)
		if mapping == nil {
			continue
		}

		docMeta := yamlDocMetadata(mapping, tree.Source, file.RelPath)

		for _, pair := range mapping.FindChildrenByType("block_mapping_pair") {
			chunk := p.pairChunk(pair, tree.Source, file, docIdx, docMeta, isCICD)
			if chunk == nil {
				continue
			}
			chunks = append(chunks, chunk)

			if !p.RecurseOneLevel {
				continue
			}
			for _, nested := range nestedMappingPairs(pair) {
				sub := p.pairChunk(nested, tree.Source, file, docIdx, docMeta, isCICD)
				if sub != nil {
					sub.ItemName = chunk.ItemName + "." + sub.ItemName
					chunks = append(chunks, sub)
				}
			}
		}
	}

	return &ParseResult{
		Chunks:     chunks,
		TotalLines: countLines(file.Content),
	}, nil
}

// pairChunk builds a chunk for one top-level key.
func (p *YAMLParser) pairChunk(pair *Node, source []byte, file *FileInput, docIdx int, docMeta map[string]string, isCICD bool) *Chunk {
	content := pair.GetContent(source)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	key := yamlPairKey(pair, source)
	if key == "" {
		key = AnonymousName(pair.StartLine())
	}

	c := &Chunk{
		Content:         content,
		Language:        "yaml",
		ItemType:        ItemConfigBlock,
		ItemName:        key,
		FilePath:        file.RelPath,
		StartLine:       pair.StartLine(),
		EndLine:         pair.EndLine(),
		RepoID:          file.RepoID,
		ComplexityScore: ComplexityScore(content),
	}
	if docIdx > 0 {
		c.SetMeta("document_index", strconv.Itoa(docIdx))
	}
	if isCICD {
		c.SetMeta("is_cicd", "true")
	}
	for k, v := range docMeta {
		c.SetMeta(k, v)
	}

	// Container-level extras scanned from the block text.
	if images := yamlScanValues(content, "image:"); images != "" {
		c.SetMeta("container_images", images)
	}
	if ports := yamlScanValues(content, "containerPort:"); ports != "" {
		c.SetMeta("ports", ports)
	}
	return c
}

// nestedMappingPairs returns the second-level pairs under a top-level key.
func nestedMappingPairs(pair *Node) []*Node {
	for _, child := range pair.Children {
		if child.Type != "block_node" {
			continue
		}
		if mapping := child.FindChildByType("block_mapping"); mapping != nil {
			return mapping.FindChildrenByType("block_mapping_pair")
		}
	}
	return nil
}

// findTopMapping locates the document's top-level block mapping.
func findTopMapping(doc *Node) *Node {
	node := doc.FindChildByType("block_node")
	if node == nil {
		return nil
	}
	return node.FindChildByType("block_mapping")
}

// yamlPairKey extracts the scalar key of a mapping pair.
func yamlPairKey(pair *Node, source []byte) string {
	for _, child := range pair.Children {
		if child.Type == "flow_node" || child.Type == "block_node" {
			return strings.Trim(strings.TrimSpace(child.GetContent(source)), `"'`)
		}
	}
	return ""
}

// yamlDocMetadata extracts Kubernetes and Helm document-level metadata.
func yamlDocMetadata(mapping *Node, source []byte, relPath string) map[string]string {
	meta := map[string]string{}

	kind := ""
	name := ""
	for _, pair := range mapping.FindChildrenByType("block_mapping_pair") {
		key := yamlPairKey(pair, source)
		text := pair.GetContent(source)
		switch key {
		case "kind":
			kind = yamlScalarValue(text)
		case "name":
			name = yamlScalarValue(text)
		case "apiVersion":
			meta["api_version"] = yamlScalarValue(text)
		}
	}

	if kind != "" {
		meta["k8s_resource_type"] = kind
	}

	// Chart.yaml names the Helm chart.
	if strings.HasSuffix(strings.ToLower(relPath), "chart.yaml") && name != "" {
		meta["helm_chart_name"] = name
	}
	return meta
}

// yamlScalarValue returns the value part of "key: value".
func yamlScalarValue(pairText string) string {
	idx := strings.IndexByte(pairText, ':')
	if idx < 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(pairText[idx+1:]), `"'`)
}

// yamlScanValues collects values of repeated "key:" lines inside a block,
// comma-joined and deduplicated.
func yamlScanValues(content, key string) string {
	var values []string
	seen := map[string]struct{}{}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if !strings.HasPrefix(trimmed, key) {
			continue
		}
		v := strings.Trim(strings.TrimSpace(trimmed[len(key):]), `"'`)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return strings.Join(values, ",")
}

var _ Parser = (*YAMLParser)(nil)
