// Package debug provides a tiny indented tree printer used to render parsed
// books and pagination results for manual inspection.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

func (tw TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// ClippedBlock behaves like TextBlock but truncates values longer than limit
// runes, so page fragments do not flood the dump.
func (tw TreeWriter) ClippedBlock(depth int, label, value string, limit int) {
	if runes := []rune(value); limit > 0 && len(runes) > limit {
		value = string(runes[:limit]) + "..."
	}
	tw.TextBlock(depth, label, value)
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
