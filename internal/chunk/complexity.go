package chunk

import "strings"

// Complexity normalizers. Each term is clamped to 1 before weighting.
const (
	complexityLineNorm   = 200.0
	complexityIndentNorm = 5.0
	complexityBranchNorm = 10.0
)

// branchKeywords are counted as whole words across all languages. The set
// is intentionally coarse; the score only needs to rank chunks, not measure
// cyclomatic complexity.
var branchKeywords = map[string]struct{}{
	"if":     {},
	"else":   {},
	"for":    {},
	"while":  {},
	"match":  {},
	"switch": {},
	"case":   {},
	"loop":   {},
	"catch":  {},
	"when":   {},
}

// ComplexityScore computes the weighted chunk complexity in [0,1]:
// 0.4·lines/200 + 0.3·max_indent/5 + 0.3·branches/10, each term clamped.
func ComplexityScore(content string) float64 {
	lines := strings.Split(content, "\n")

	lineTerm := clamp01(float64(len(lines)) / complexityLineNorm)
	indentTerm := clamp01(float64(maxIndentLevel(lines)) / complexityIndentNorm)
	branchTerm := clamp01(float64(countBranches(content)) / complexityBranchNorm)

	return 0.4*lineTerm + 0.3*indentTerm + 0.3*branchTerm
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// maxIndentLevel returns the deepest indentation level across lines.
// A tab or four spaces count as one level.
func maxIndentLevel(lines []string) int {
	max := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		spaces := 0
		level := 0
		for _, r := range line {
			if r == '\t' {
				level++
				continue
			}
			if r == ' ' {
				spaces++
				if spaces == 4 {
					level++
					spaces = 0
				}
				continue
			}
			break
		}
		if level > max {
			max = level
		}
	}
	return max
}

// countBranches counts branch keywords as whole words.
func countBranches(content string) int {
	count := 0
	word := strings.Builder{}
	flush := func() {
		if word.Len() > 0 {
			if _, ok := branchKeywords[word.String()]; ok {
				count++
			}
			word.Reset()
		}
	}
	for _, r := range content {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			word.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return count
}
