package rst

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
)

// gridTable lays out rendered cells as an RST grid table. Each cell is the
// line list produced by an isolated render of one entry element.
type gridTable struct {
	widths []int        // per column, content width plus one space each side
	rows   [][][]string // rows -> cells -> lines
}

func newGridTable(cols int) *gridTable {
	return &gridTable{widths: make([]int, cols)}
}

func (t *gridTable) addRow(cells [][]string) {
	for i, cell := range cells {
		if i >= len(t.widths) {
			t.widths = append(t.widths, 0)
		}
		w := 0
		for _, l := range cell {
			w = max(w, utf8.RuneCountInString(l))
		}
		t.widths[i] = max(t.widths[i], w+2)
	}
	t.rows = append(t.rows, cells)
}

func (t *gridTable) border(fill string) string {
	var b strings.Builder
	b.WriteString("+")
	for _, w := range t.widths {
		b.WriteString(strings.Repeat(fill, w))
		b.WriteString("+")
	}
	return b.String()
}

// rowLines renders one row. The row is as tall as its tallest cell; shorter
// and missing cells are padded with blanks of the column width.
func (t *gridTable) rowLines(row [][]string) []string {
	height := 0
	for _, cell := range row {
		height = max(height, len(cell))
	}

	lines := make([]string, 0, height)
	for k := 0; k < height; k++ {
		var b strings.Builder
		b.WriteString("|")
		for i, w := range t.widths {
			if i < len(row) && k < len(row[i]) {
				l := row[i][k]
				b.WriteString(" ")
				b.WriteString(l)
				b.WriteString(strings.Repeat(" ", w-utf8.RuneCountInString(l)-1))
			} else {
				b.WriteString(strings.Repeat(" ", w))
			}
			b.WriteString("|")
		}
		lines = append(lines, b.String())
	}
	return lines
}

// render returns the table surrounded by blank lines. The first row is the
// header and is closed with an '=' border.
func (t *gridTable) render() []string {
	sep := t.border("-")
	out := []string{"", sep}
	out = append(out, t.rowLines(t.rows[0])...)
	out = append(out, t.border("="))
	for _, row := range t.rows[1:] {
		out = append(out, t.rowLines(row)...)
		out = append(out, sep)
	}
	return append(out, "")
}

func (f *Formatter) visitTable(n *etree.Element) error {
	colsAttr := n.SelectAttrValue("cols", "")
	cols, err := strconv.Atoi(colsAttr)
	if err != nil || cols < 0 {
		return fmt.Errorf("%w: cols=%q", ErrMalformedTable, colsAttr)
	}

	t := newGridTable(cols)
	for _, rowNode := range n.SelectElements("row") {
		var cells [][]string
		for _, entry := range rowNode.ChildElements() {
			lines, err := f.sub(entry)
			if err != nil {
				return err
			}
			for i, l := range lines {
				lines[i] = rstrip(l)
			}
			cells = append(cells, lines)
		}
		t.addRow(cells)
	}

	if len(t.rows) == 0 {
		slog.Debug("skipping table without rows", "cols", cols)
		return nil
	}
	f.push(t.render()...)
	return nil
}
