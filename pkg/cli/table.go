package cli

import (
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

// Table wraps tablewriter with the house style: borderless, left-aligned,
// two-space padding. Nothing is printed when no rows were added, so empty
// result sets stay quiet.
type Table struct {
	tw   *tablewriter.Table
	rows int
}

// NewTable creates a stdout table with the given column headers.
func NewTable(headers ...string) *Table {
	return NewTableTo(os.Stdout, headers...)
}

// NewTableTo renders into w; used by tests and file output.
func NewTableTo(w io.Writer, headers ...string) *Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(true)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetBorder(false)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetTablePadding("  ")
	tw.SetNoWhiteSpace(true)
	return &Table{tw: tw}
}

// Row appends one row of cells.
func (t *Table) Row(values ...string) {
	t.rows++
	t.tw.Append(values)
}

// Flush renders the table. A table with no rows produces no output.
func (t *Table) Flush() {
	if t.rows == 0 {
		return
	}
	t.tw.Render()
}
