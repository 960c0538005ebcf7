// Package style holds the terminal presentation helpers for the CLI:
// pterm styles for the run summary, gated off for non-terminal output.
package style

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// Status classifies a summary line
type Status string

const (
	StatusOK    Status = "ok"
	StatusWarn  Status = "warn"
	StatusError Status = "error"
)

func statusStyle(status Status) *pterm.Style {
	switch status {
	case StatusOK:
		return pterm.NewStyle(pterm.FgGreen)
	case StatusWarn:
		return pterm.NewStyle(pterm.FgYellow)
	case StatusError:
		return pterm.NewStyle(pterm.FgRed, pterm.Bold)
	default:
		return pterm.NewStyle(pterm.FgGray)
	}
}

// Printer writes styled summary lines. Color is dropped when the
// destination is not a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter creates a Printer for w. Styling applies only when w is a
// terminal.
func NewPrinter(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, color: color}
}

// Header prints a bold section title
func (p *Printer) Header(text string) {
	if p.color {
		fmt.Fprintln(p.w, pterm.Bold.Sprint(text))
		return
	}
	fmt.Fprintln(p.w, text)
}

// Line prints one labeled summary value
func (p *Printer) Line(status Status, label string, value interface{}) {
	if p.color {
		fmt.Fprintf(p.w, "  %s %v\n", statusStyle(status).Sprintf("%-12s", label), value)
		return
	}
	fmt.Fprintf(p.w, "  %-12s %v\n", label, value)
}
