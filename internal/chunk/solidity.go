package chunk

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Solidity item types beyond the shared set.
const (
	ItemContract      = "contract"
	ItemLibrary       = "library"
	ItemModifier      = "modifier"
	ItemEvent         = "event"
	ItemError         = "error"
	ItemStateVariable = "state_variable"
	ItemConstructor   = "constructor"
)

// SolidityParser extracts contracts, interfaces, libraries, and their
// members from Solidity sources. No grammar binding exists for Solidity, so
// this parser is a structural tokenizer: comments and string literals are
// blanked out, then declarations are located by keyword and brace matching.
// If the structure cannot be resolved the file fails; there is no
// line-pattern fallback.
type SolidityParser struct{}

// NewSolidityParser returns a SolidityParser.
func NewSolidityParser() *SolidityParser {
	return &SolidityParser{}
}

// Language implements Parser.
func (p *SolidityParser) Language() string {
	return "solidity"
}

// Parse implements Parser.
func (p *SolidityParser) Parse(ctx context.Context, file *FileInput) (*ParseResult, error) {
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

	src := string(file.Content)
	totalLines := countLines(file.Content)

	san, err := solSanitize(src)
	if err != nil {
		return &ParseResult{TotalLines: totalLines, Err: err.Error()}, nil
	}
	if err := solCheckBalanced(san); err != nil {
		return &ParseResult{TotalLines: totalLines, Err: err.Error()}, nil
	}

	s := &solScanner{
		src:     src,
		san:     san,
		file:    file,
		lineAt:  buildLineTable(src),
		imports: solImports(src, san),
	}
	s.scanRegion(0, len(src), false)

	return &ParseResult{
		Chunks:     s.chunks,
		TotalLines: totalLines,
	}, nil
}

// solScanner walks the sanitized source emitting chunks.
type solScanner struct {
	src     string
	san     string
	file    *FileInput
	lineAt  []int
	imports string
	chunks  []*Chunk
}

// solContainerTypes are declarations owning a member scope.
var solContainerTypes = map[string]string{
	"contract":  ItemContract,
	"interface": ItemInterface,
	"library":   ItemLibrary,
}

// solMemberTypes are declarations inside (or at the top level of) a file.
var solMemberTypes = map[string]string{
	"function":    ItemFunction,
	"modifier":    ItemModifier,
	"event":       ItemEvent,
	"error":       ItemError,
	"struct":      ItemStruct,
	"enum":        ItemEnum,
	"constructor": ItemConstructor,
	"receive":     ItemFunction,
	"fallback":    ItemFunction,
}

// scanRegion emits chunks for declarations between lo and hi.
// insideContract switches member semantics (state variables).
func (s *solScanner) scanRegion(lo, hi int, insideContract bool) {
	pos := lo
	for pos < hi {
		start, word := s.nextWord(pos, hi)
		if word == "" {
			return
		}

		switch {
		case word == "pragma" || word == "import" || word == "using":
			pos = s.skipToSemicolon(start, hi)

		case word == "abstract":
			pos = start + len(word)

		case solContainerTypes[word] != "":
			itemType := solContainerTypes[word]
			name := s.wordAfter(start + len(word))
			open := strings.IndexByte(s.san[start:hi], '{')
			if open < 0 {
				pos = hi
				continue
			}
			open += start
			closing := solMatchBrace(s.san, open)
			s.emit(itemType, name, start, closing+1, "")
			s.scanRegion(open+1, closing, true)
			pos = closing + 1

		case solMemberTypes[word] != "":
			pos = s.scanMember(word, start, hi)

		default:
			// Inside a contract, an unrecognized leading word starts a
			// state variable or constant declaration.
			end := s.skipToSemicolon(start, hi)
			if insideContract {
				s.emitVariable(start, end, ItemStateVariable)
			} else if strings.Contains(s.san[start:end], "constant") {
				s.emitVariable(start, end, ItemConstant)
			}
			pos = end
		}
	}
}

// scanMember consumes one member declaration starting at start and emits
// its chunk. Returns the position after the member.
func (s *solScanner) scanMember(keyword string, start, hi int) int {
	itemType := solMemberTypes[keyword]

	name := ""
	switch keyword {
	case "constructor", "receive", "fallback":
		name = keyword
	default:
		name = s.wordAfter(start + len(keyword))
	}

	// The declaration ends at ';' (bodiless) or at its matching brace.
	end := start
	for i := start; i < hi; i++ {
		ch := s.san[i]
		if ch == ';' {
			end = i + 1
			break
		}
		if ch == '{' {
			end = solMatchBrace(s.san, i) + 1
			break
		}
		end = i + 1
	}

	header := s.san[start:min(end, hi)]
	if idx := strings.IndexByte(header, '{'); idx >= 0 {
		header = header[:idx]
	}

	meta := solSignatureMeta(header)
	s.emit(itemType, name, start, end, meta)
	return end
}

// emit appends a chunk spanning src[startByte:endByte).
func (s *solScanner) emit(itemType, name string, startByte, endByte int, signatureMeta string) {
	if endByte > len(s.src) {
		endByte = len(s.src)
	}
	content := strings.TrimRight(s.src[startByte:endByte], "\n")
	startLine := s.lineOf(startByte)

	if name == "" {
		name = AnonymousName(startLine)
	}

	c := &Chunk{
		Content:         content,
		Language:        "solidity",
		ItemType:        itemType,
		ItemName:        name,
		FilePath:        s.file.RelPath,
		StartLine:       startLine,
		EndLine:         startLine + strings.Count(content, "\n"),
		RepoID:          s.file.RepoID,
		ComplexityScore: ComplexityScore(content),
	}
	if s.imports != "" {
		c.SetMeta("imports", s.imports)
	}
	if signatureMeta != "" {
		for _, kv := range strings.Split(signatureMeta, ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				c.SetMeta(parts[0], parts[1])
			}
		}
	}
	s.chunks = append(s.chunks, c)
}

// emitVariable emits a state variable or constant declaration chunk.
func (s *solScanner) emitVariable(start, end int, itemType string) {
	decl := strings.TrimSpace(s.san[start:end])
	if decl == "" || decl == ";" {
		return
	}
	name := solVariableName(strings.TrimSuffix(decl, ";"))
	meta := solSignatureMeta(decl)
	s.emit(itemType, name, start, end, meta)
}

// nextWord returns the next identifier-like word at or after pos.
func (s *solScanner) nextWord(pos, hi int) (int, string) {
	for pos < hi && !isWordByte(s.san[pos]) {
		pos++
	}
	if pos >= hi {
		return hi, ""
	}
	start := pos
	for pos < hi && isWordByte(s.san[pos]) {
		pos++
	}
	return start, s.san[start:pos]
}

// wordAfter returns the first word following pos, for name extraction.
func (s *solScanner) wordAfter(pos int) string {
	_, word := s.nextWord(pos, len(s.san))
	return word
}

// skipToSemicolon returns the position just past the next ';'.
func (s *solScanner) skipToSemicolon(pos, hi int) int {
	for pos < hi {
		if s.san[pos] == ';' {
			return pos + 1
		}
		pos++
	}
	return hi
}

// lineOf returns the 1-based line number of a byte offset.
func (s *solScanner) lineOf(offset int) int {
	line := 1
	for _, nl := range s.lineAt {
		if nl >= offset {
			break
		}
		line++
	}
	return line
}

// buildLineTable records the byte offset of each newline.
func buildLineTable(src string) []int {
	var offsets []int
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// solSanitize blanks comments and string literals, preserving length and
// newlines so byte offsets and line numbers stay valid.
func solSanitize(src string) (string, error) {
	out := []byte(src)
	i := 0
	for i < len(src) {
		switch {
		case strings.HasPrefix(src[i:], "//"):
			for i < len(src) && src[i] != '\n' {
				out[i] = ' '
				i++
			}
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("unterminated block comment at byte %d", i)
			}
			for j := i; j < i+2+end+2; j++ {
				if out[j] != '\n' {
					out[j] = ' '
				}
			}
			i += 2 + end + 2
		case src[i] == '"' || src[i] == '\'':
			quote := src[i]
			out[i] = ' '
			i++
			for i < len(src) && src[i] != quote {
				if src[i] == '\\' && i+1 < len(src) {
					out[i] = ' '
					i++
				}
				if src[i] == '\n' {
					return "", fmt.Errorf("unterminated string literal at byte %d", i)
				}
				out[i] = ' '
				i++
			}
			if i >= len(src) {
				return "", fmt.Errorf("unterminated string literal")
			}
			out[i] = ' '
			i++
		default:
			i++
		}
	}
	return string(out), nil
}

// solCheckBalanced verifies brace balance over the sanitized source.
func solCheckBalanced(san string) error {
	depth := 0
	for i := 0; i < len(san); i++ {
		switch san[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("unexpected '}' at byte %d", i)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced braces: %d unclosed", depth)
	}
	return nil
}

// solMatchBrace returns the index of the brace matching san[open].
// Balance was verified up front, so a match always exists.
func solMatchBrace(san string, open int) int {
	depth := 0
	for i := open; i < len(san); i++ {
		switch san[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(san) - 1
}

// solImports collects import statements from the original source, capped.
func solImports(src, san string) string {
	var imports []string
	pos := 0
	for pos < len(san) {
		idx := strings.Index(san[pos:], "import")
		if idx < 0 {
			break
		}
		start := pos + idx
		// Word boundary check.
		if start > 0 && isWordByte(san[start-1]) {
			pos = start + len("import")
			continue
		}
		end := strings.IndexByte(san[start:], ';')
		if end < 0 {
			break
		}
		imports = append(imports, strings.TrimSpace(src[start:start+end+1]))
		if len(imports) >= maxImportsPerFile {
			break
		}
		pos = start + end + 1
	}
	return strings.Join(imports, " ")
}

// solSignatureMeta derives visibility and state mutability from a header.
func solSignatureMeta(header string) string {
	var parts []string
	visibility := ""
	for _, v := range []string{"public", "private", "internal", "external"} {
		if containsWord(header, v) {
			visibility = v
			break
		}
	}
	if visibility != "" {
		parts = append(parts, "visibility="+visibility)
	}
	for _, m := range []string{"view", "pure", "payable"} {
		if containsWord(header, m) {
			parts = append(parts, "state_mutability="+m)
			break
		}
	}
	return strings.Join(parts, ",")
}

// solVariableName returns the identifier before '=' or the last word of the
// declaration.
func solVariableName(decl string) string {
	if idx := strings.IndexByte(decl, '='); idx >= 0 {
		decl = decl[:idx]
	}
	fields := strings.Fields(decl)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func containsWord(s, word string) bool {
	pos := 0
	for {
		idx := strings.Index(s[pos:], word)
		if idx < 0 {
			return false
		}
		start := pos + idx
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(s[start-1])
		afterOK := end >= len(s) || !isWordByte(s[end])
		if beforeOK && afterOK {
			return true
		}
		pos = end
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

var _ Parser = (*SolidityParser)(nil)
