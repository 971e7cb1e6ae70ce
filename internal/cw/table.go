package cw

import (
	"fmt"
	"io"
	"strings"
)

// TableColumns is the number of symbols per table row.
const TableColumns = 6

// WriteTable writes the code table, six symbols per row, with the digits
// starting on a new block.
func WriteTable(w io.Writer) error {
	_, err := io.WriteString(w, Table())
	return err
}

// Table returns the code table as printed by WriteTable.
func Table() string {
	var b strings.Builder
	for i, r := range symbols {
		if i != 0 && i%TableColumns == 0 {
			b.WriteByte('\n')
		}
		if r == '1' {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "\t\t%c %s", r, codes[i])
	}
	b.WriteByte('\n')
	return b.String()
}
