package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusIconAndIndent(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("🚀", "Ingesting 3 repositories")
	w.Status("", "Repos: 3 completed, 0 failed")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "🚀 Ingesting 3 repositories", lines[0])
	assert.Equal(t, "   Repos: 3 completed, 0 failed", lines[1])
}

func TestStatusfFormats(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Statusf("", "Chunks: %d stored, %d dropped", 120, 2)

	assert.Contains(t, buf.String(), "Chunks: 120 stored, 2 dropped")
}

func TestIconShorthands(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("Ingestion complete")
	w.Warning("Interrupted; run again with --resume to continue")
	w.Errorf("repo %s failed", "payments-api")

	out := buf.String()
	assert.Contains(t, out, "✅ Ingestion complete")
	assert.Contains(t, out, "⚠️")
	assert.Contains(t, out, "❌ repo payments-api failed")
}

func TestProgressRedrawsInPlace(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(50, 100, "embedding chunks")
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r"))
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "embedding chunks")
	assert.NotContains(t, out, "\n", "incomplete progress keeps the line open")

	w.Progress(100, 100, "embedding chunks")
	assert.Contains(t, buf.String(), "\n", "completion closes the line")
}

func TestProgressZeroTotalIsSilent(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Progress(0, 0, "scanning")
	assert.Empty(t, buf.String())
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		width   int
		filled  int
	}{
		{"empty", 0, 100, 10, 0},
		{"half", 50, 100, 10, 5},
		{"full", 100, 100, 10, 10},
		{"quarter", 25, 100, 20, 5},
		{"overshoot clamps", 150, 100, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, tt.width)
			assert.Equal(t, tt.filled, strings.Count(bar, "█"))
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}
