package cli

import (
	"fmt"
	"io"
)

// printNotifier writes one-shot session notifications to the terminal.
type printNotifier struct {
	w io.Writer
}

func (n *printNotifier) Success(msg string) {
	fmt.Fprintln(n.w, msg)
}

func (n *printNotifier) Error(msg string) {
	fmt.Fprintln(n.w, "error:", msg)
}
