// Package console writes operator-facing output. Colours are applied only
// when the destination is a terminal that supports them.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// WrapWidth is the width long titles are wrapped to
const WrapWidth = 70

type Printer struct {
	out    io.Writer
	ok     lipgloss.Style
	fail   lipgloss.Style
	header lipgloss.Style
	muted  lipgloss.Style
}

func New(out io.Writer) *Printer {
	renderer := lipgloss.NewRenderer(out)
	return &Printer{
		out:    out,
		ok:     renderer.NewStyle().Foreground(lipgloss.Color("42")),  // green
		fail:   renderer.NewStyle().Foreground(lipgloss.Color("196")), // red
		header: renderer.NewStyle().Bold(true),
		muted:  renderer.NewStyle().Foreground(lipgloss.Color("245")), // gray
	}
}

// Writer is the raw destination, for command output passed through as-is
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Printf writes without a trailing newline, for progress dots
func (p *Printer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *Printer) Println(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Success(format string, args ...interface{}) {
	p.styled(p.ok, fmt.Sprintf(format, args...))
}

func (p *Printer) Failure(format string, args ...interface{}) {
	p.styled(p.fail, fmt.Sprintf(format, args...))
}

// Title writes text wrapped to WrapWidth, in bold
func (p *Printer) Title(text string) {
	p.styled(p.header, wordwrap.String(text, WrapWidth))
}

// Indented writes text with every line indented by n spaces
func (p *Printer) Indented(n int, text string) {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	fmt.Fprintln(p.out, strings.Join(lines, "\n"))
}

// Muted renders secondary text
func (p *Printer) Muted(text string) string {
	return renderLines(p.muted, text)
}

func (p *Printer) styled(style lipgloss.Style, text string) {
	fmt.Fprintln(p.out, renderLines(style, text))
}

// renderLines renders line by line; lipgloss pads multi-line blocks to one
// width
func renderLines(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
