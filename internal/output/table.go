package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Table renders tabular data for text output.
type Table struct {
	headers   []string
	rows      [][]string
	right     map[int]bool
	maxWidth  int
	separator string
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{
		headers:   headers,
		right:     map[int]bool{},
		separator: "  ",
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// AlignRight right-aligns the given column, for amounts.
func (t *Table) AlignRight(col int) {
	t.right[col] = true
}

// SetMaxWidth truncates cells longer than n runes with an ellipsis.
// Zero disables truncation.
func (t *Table) SetMaxWidth(n int) {
	t.maxWidth = n
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table. An empty table writes nothing.
func (t *Table) Render(w io.Writer) error {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(t.rows)+1)
	if len(t.headers) > 0 {
		rows = append(rows, t.headers)
	}
	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = t.truncate(cell)
		}
		rows = append(rows, cells)
	}

	widths := columnWidths(rows)
	for i, row := range rows {
		if err := t.renderRow(w, row, widths); err != nil {
			return err
		}
		if i == 0 && len(t.headers) > 0 {
			if err := t.renderRule(w, widths); err != nil {
				return err
			}
		}
	}
	return nil
}

// String returns the table as a string.
func (t *Table) String() string {
	var sb strings.Builder
	_ = t.Render(&sb)
	return sb.String()
}

func (t *Table) truncate(cell string) string {
	if t.maxWidth <= 1 || utf8.RuneCountInString(cell) <= t.maxWidth {
		return cell
	}
	runes := []rune(cell)
	return string(runes[:t.maxWidth-1]) + "…"
}

func columnWidths(rows [][]string) []int {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}
	return widths
}

func (t *Table) renderRow(w io.Writer, cells []string, widths []int) error {
	parts := make([]string, len(widths))
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(cell))
		if t.right[i] {
			parts[i] = pad + cell
		} else {
			parts[i] = cell + pad
		}
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, t.separator), " "))
	return err
}

func (t *Table) renderRule(w io.Writer, widths []int) error {
	parts := make([]string, len(widths))
	for i, width := range widths {
		parts[i] = strings.Repeat("-", width)
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, t.separator))
	return err
}
