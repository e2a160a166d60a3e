package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// isTerminal is a test seam for terminal detection.
var isTerminal = func(fd int) bool {
	return term.IsTerminal(fd)
}

// Confirm prints a yes/no question and reads one line of input. Anything
// other than "y" or "yes" (case-insensitive) counts as no.
func Confirm(r *bufio.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N]: ", question)

	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
