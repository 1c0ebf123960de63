package ui

// Styled command output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes styled lines to w.
type Printer struct {
	w io.Writer
	s Styles
}

// NewPrinter returns a Printer for w using the default theme.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, s: NewStyles(lipgloss.NewRenderer(w), DefaultTheme)}
}

// Styles returns the printer's styles.
func (p *Printer) Styles() Styles { return p.s }

func (p *Printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

// Title prints a heading.
func (p *Printer) Title(s string) { p.line(p.s.Title.Render(s)) }

// Success prints a line prefixed with a check mark.
func (p *Printer) Success(format string, args ...any) {
	p.line(p.s.Success.Render("✓ " + fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	p.line(p.s.Warning.Render("! " + fmt.Sprintf(format, args...)))
}

// Error prints err. Multi-line errors keep their layout.
func (p *Printer) Error(err error) {
	lines := strings.Split(err.Error(), "\n")
	p.line(p.s.Error.Render("✗ " + lines[0]))
	for _, l := range lines[1:] {
		p.line(p.s.Dim.Render(l))
	}
}

// KV is one labeled value.
type KV struct {
	Key   string
	Value string
}

// KeyValues prints aligned "key  value" rows inside a box.
func (p *Printer) KeyValues(title string, rows []KV) {
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r.Key))
	}
	var b strings.Builder
	if title != "" {
		b.WriteString(p.s.Title.Render(title))
		b.WriteString("\n")
	}
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.s.Label.Width(width + 2).Render(r.Key))
		b.WriteString(p.s.Base.Render(r.Value))
	}
	p.line(p.s.Box.Render(b.String()))
}

// Table prints a header row followed by rows, columns padded to fit.
func (p *Printer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}
	render := func(style lipgloss.Style, cells []string) string {
		out := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			out[i] = style.Width(widths[i] + 2).Render(cell)
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, out...), " ")
	}
	p.line(render(p.s.Title, headers))
	for _, row := range rows {
		p.line(render(p.s.Base, row))
	}
}

// Hex prints a labeled hex dump.
func (p *Printer) Hex(label string, data []byte) {
	if label != "" {
		p.line(p.s.Label.Render(fmt.Sprintf("%s (%d bytes)", label, len(data))))
	}
	if len(data) == 0 {
		p.line(p.s.Dim.Render("  (empty)"))
		return
	}
	fmt.Fprint(p.w, HexDump(data, 16, p.s.Offset))
}
