package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Table renders column-aligned output for the list and report commands.
// Headers and a dash divider are written lazily on the first Row, so a
// table that never receives a row prints nothing. Rows shorter than the
// header set are padded with empty cells; longer rows are truncated to
// the header count.
type Table struct {
	w       *tabwriter.Writer
	headers []string
	prefix  string
	started bool
	rows    int
}

// NewTable creates a stdout table with the given column headers.
func NewTable(headers ...string) *Table {
	return NewTableTo(os.Stdout, headers...)
}

// NewTableTo creates a table writing to w.
func NewTableTo(w io.Writer, headers ...string) *Table {
	return &Table{
		w:       tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		headers: headers,
	}
}

// WithPrefix sets a string prepended to each line (headers, divider,
// rows). Useful for indenting sub-tables within larger output.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row writes one row. The first call also emits the headers and divider.
func (t *Table) Row(values ...string) {
	t.start()
	if len(values) > len(t.headers) {
		values = values[:len(t.headers)]
	}
	for len(values) < len(t.headers) {
		values = append(values, "")
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(values, "\t"))
	t.rows++
}

// Rows returns the number of rows written so far.
func (t *Table) Rows() int { return t.rows }

// Flush writes any buffered output. An empty table prints nothing.
func (t *Table) Flush() {
	if !t.started {
		return
	}
	t.w.Flush()
}

func (t *Table) start() {
	if t.started {
		return
	}
	t.started = true
	fmt.Fprintln(t.w, t.prefix+strings.Join(t.headers, "\t"))
	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(dividers, "\t"))
}
