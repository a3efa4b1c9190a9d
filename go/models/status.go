package models

import (
	"strings"

	"github.com/mgutz/ansi"
)

var (
	ColorCurrent = ansi.ColorCode("green+b")
	ColorQueued  = ansi.ColorCode("yellow")
	ColorIdle    = ansi.ColorCode("default")
	ColorFatal   = ansi.ColorCode("red+b")
)

func colorPad(s, color string, pad int) string {
	length := len(s)
	if color != "" {
		s = color + s + ansi.Reset
	}
	if length < pad {
		s = strings.Repeat(" ", pad-length) + s
	}
	return s
}

// StatusTable renders right-aligned rows, coloring each row with the
// matching entry in colors when color is on.
type StatusTable struct {
	Header []string
	rows   [][]string
	colors []string
}

func (t *StatusTable) Add(color string, cols ...string) {
	t.rows = append(t.rows, cols)
	t.colors = append(t.colors, color)
}

func (t *StatusTable) String(color bool) string {
	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, col := range row {
			if i < len(widths) && len(col) > widths[i] {
				widths[i] = len(col)
			}
		}
	}
	var out []string
	line := make([]string, len(t.Header))
	for i, h := range t.Header {
		line[i] = colorPad(h, "", widths[i])
	}
	out = append(out, strings.Join(line, "  "))
	for n, row := range t.rows {
		c := ""
		if color {
			c = t.colors[n]
		}
		line := make([]string, len(row))
		for i, col := range row {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			line[i] = colorPad(col, c, w)
		}
		out = append(out, strings.Join(line, "  "))
	}
	return strings.Join(out, "\n")
}
