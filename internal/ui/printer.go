package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/multisense/autoconnect/internal/status"
)

// Printer writes styled components to an output. Commands print only
// through a Printer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a Printer for w, or os.Stdout when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Width returns the width used for rendering
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width.
func (p *Printer) SetWidth(width int) *Printer {
	p.width = ClampWidth(width)
	return p
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Field) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
}

// PrintSuccess prints a success box
func (p *Printer) PrintSuccess(title string, details ...Field) {
	p.Println(NewSuccess(title, details...).SetWidth(p.width).Render())
}

// PrintFailure prints a failure box with troubleshooting tips
func (p *Printer) PrintFailure(title string, err error, troubleshooting ...string) {
	p.Println(NewFailure(title, err, troubleshooting...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning box
func (p *Printer) PrintWarning(title string, details ...Field) {
	p.Println(NewWarning(title, details...).SetWidth(p.width).Render())
}

// PrintResults prints the results table.
func (p *Printer) PrintResults(results []status.Result) {
	p.Println(RenderResults(results, p.width))
}

// PrintDocument prints a status document with the last logTail log lines.
func (p *Printer) PrintDocument(doc *status.Document, logTail int) {
	p.Println(RenderDocument(doc, logTail, p.width))
}
