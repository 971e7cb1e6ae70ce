package decode

import (
	"fmt"
	"io"

	"github.com/ColonelBlimp/morsekey/internal/cw"
	"github.com/ColonelBlimp/morsekey/internal/keyer"
)

// Printer writes keyer output as plain text.
type Printer struct {
	w         io.Writer
	verbose   bool
	showTable bool
	err       error
}

// NewPrinter creates a printer. With verbose set the code is echoed as it
// is keyed; with showTable set the code table follows every transmission.
func NewPrinter(w io.Writer, verbose, showTable bool) *Printer {
	return &Printer{w: w, verbose: verbose, showTable: showTable}
}

// Banner prints usage hints and, if enabled, the code table. An empty key
// skips the hints.
func (p *Printer) Banner(key, commit string) {
	if key != "" {
		p.printf("Use '%s' as on-key.\n", key)
		if commit != "" {
			p.printf("Press %s to convert the sent code to text\n", commit)
		}
	}
	if p.showTable {
		p.table()
	}
}

// OnToken implements keyer.Listener.
func (p *Printer) OnToken(_ cw.Token, fragment string) {
	if p.verbose {
		p.printf("%s", fragment)
	}
}

// OnCommit implements keyer.Listener.
func (p *Printer) OnCommit(t keyer.Transmission) {
	if p.verbose {
		p.printf("\n")
	}
	p.printf("%s\n\n", t.Text)
	if p.showTable {
		p.table()
	}
}

// Err returns the first write error.
func (p *Printer) Err() error {
	return p.err
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) table() {
	if p.err != nil {
		return
	}
	p.err = cw.WriteTable(p.w)
}
