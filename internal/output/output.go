// Package output writes aligned status lines for CLI commands.
//
// The interactive ingestion display lives in internal/ui; this package
// covers the simpler commands that print a handful of lines and exit.
package output

import (
	"fmt"
	"io"
)

// Writer prints status lines to a command's output stream. Write errors
// are ignored; there is no useful recovery for console output.
type Writer struct {
	out io.Writer
}

// New creates a Writer on out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints one line prefixed by icon. An empty icon indents the
// line to align with iconed ones.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
}

// Statusf is Status with Printf formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
