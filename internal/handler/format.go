package handler

import (
	"strings"

	"golang.org/x/text/width"
)

// DisplayWidth returns the terminal columns s occupies. East Asian wide and
// fullwidth runes take two columns.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// PadRight pads s with spaces to cols display columns.
func PadRight(s string, cols int) string {
	if w := DisplayWidth(s); w < cols {
		return s + strings.Repeat(" ", cols-w)
	}
	return s
}
