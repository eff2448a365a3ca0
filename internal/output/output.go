// Package output formats human-facing CLI messages for codevec commands:
// status lines with icons, run summaries, and an in-place progress bar.
// Structured logging goes to the slog file writer; this package is only
// for what the operator sees on the terminal.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer prints formatted lines to one destination, normally the command's
// stdout. Write errors are ignored: a broken console must not fail a run.
type Writer struct {
	out io.Writer
}

// New returns a Writer printing to out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints one line, prefixed with an icon when given. An empty icon
// indents the line so it aligns under a preceding iconed line.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf is Status with Printf formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a checkmarked line, e.g. "✅ Ingestion complete".
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf is Success with Printf formatting.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line, e.g. "⚠️ Interrupted; run again with --resume".
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf is Warning with Printf formatting.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf is Error with Printf formatting.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Progress redraws an in-place progress bar, e.g. while a large repository
// is being embedded. The line gains its newline when current reaches total.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", renderProgressBar(current, total, 30), pct, msg)

	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
