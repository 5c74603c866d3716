package view

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	nameWidth     = 40
	gridCellWidth = 24
	defaultWidth  = 80
)

// Text writes m as plain text. width is the terminal width used to lay out
// grid cells; 0 means 80 columns.
func Text(w io.Writer, m Model, width int) error {
	if m.Empty {
		_, err := fmt.Fprintln(w, "(empty folder)")
		return err
	}
	if m.Mode == ModeGrid {
		return gridText(w, m, width)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-3s %-*s %-12s %s\n", "", nameWidth, "NAME", "SIZE", "MODIFIED")
	b.WriteString(strings.Repeat("-", 3+1+nameWidth+1+12+1+10) + "\n")
	for _, it := range m.Items {
		fmt.Fprintf(&b, "%-3s %-*s %-12s %s\n", mark(it), nameWidth, clip(displayName(it), nameWidth), it.SizeText, it.DateText)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func gridText(w io.Writer, m Model, width int) error {
	if width <= 0 {
		width = defaultWidth
	}
	cols := width / gridCellWidth
	if cols < 1 {
		cols = 1
	}

	var b strings.Builder
	for i, it := range m.Items {
		cell := mark(it) + " " + it.Glyph + " " + displayName(it)
		cell = clip(cell, gridCellWidth-1)
		if (i+1)%cols == 0 || i == len(m.Items)-1 {
			b.WriteString(cell + "\n")
			continue
		}
		b.WriteString(cell + strings.Repeat(" ", gridCellWidth-utf8.RuneCountInString(cell)))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func mark(it Item) string {
	if it.Checked {
		return "[x]"
	}
	return "[ ]"
}

func displayName(it Item) string {
	if it.IsFolder {
		return it.Name + "/"
	}
	return it.Name
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
