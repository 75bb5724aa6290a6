// Package console handles user-facing build output: section headers,
// indented progress lines, warnings and failure text. Color is applied
// only when the stream is a terminal.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI sequences used when color is enabled
const (
	seqReset  = "\033[0m"
	seqBold   = "\033[1m"
	seqYellow = "\033[33m"
	seqRed    = "\033[31m"
)

// Console writes human-readable build progress to a single stream
type Console struct {
	out   io.Writer
	color bool
}

// New creates a console writing to w.
// Color is enabled only when w is a terminal.
func New(w io.Writer) *Console {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}

	return &Console{out: w, color: color}
}

// Header prints a section header for a build phase
func (c *Console) Header(format string, args ...any) {
	if c.color {
		fmt.Fprintf(c.out, seqBold+"-----> "+format+seqReset+"\n", args...)
		return
	}

	fmt.Fprintf(c.out, "-----> "+format+"\n", args...)
}

// Info prints an indented progress line
func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.out, "       "+format+"\n", args...)
}

// Warn prints an indented warning line
func (c *Console) Warn(format string, args ...any) {
	if c.color {
		fmt.Fprintf(c.out, seqYellow+"       WARNING: "+format+seqReset+"\n", args...)
		return
	}

	fmt.Fprintf(c.out, "       WARNING: "+format+"\n", args...)
}

// Error prints a failure line
func (c *Console) Error(format string, args ...any) {
	if c.color {
		fmt.Fprintf(c.out, seqRed+"       ERROR: "+format+seqReset+"\n", args...)
		return
	}

	fmt.Fprintf(c.out, "       ERROR: "+format+"\n", args...)
}

// Writer returns the underlying stream for raw subprocess output
func (c *Console) Writer() io.Writer {
	return c.out
}
