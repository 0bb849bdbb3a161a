package ui

import "golang.org/x/term"

// IsTTY reports whether the given file descriptor refers to a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd)) //nolint:gosec // G115: fds fit in int
}

// TermWidth returns the terminal width in columns, or 80 if unknown.
func TermWidth(fd uintptr) int {
	w, _, err := term.GetSize(int(fd)) //nolint:gosec // G115: fds fit in int
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// truncateLeft shortens s to width runes, keeping the tail (the file name)
// and marking the cut with "…".
func truncateLeft(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return "…" + string(r[len(r)-width+1:])
}
