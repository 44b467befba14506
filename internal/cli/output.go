package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

func success(w io.Writer, format string, args ...any) {
	green.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func warn(w io.Writer, format string, args ...any) {
	yellow.Fprint(w, "! ")
	fmt.Fprintf(w, format+"\n", args...)
}

func failure(w io.Writer, format string, args ...any) {
	red.Fprint(w, "✗ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func header(w io.Writer, text string) {
	bold.Fprintln(w, text)
}

// stateColor picks a color for a store or engine state label.
func stateColor(state string) *color.Color {
	switch state {
	case "ready", "idle", "healthy":
		return green
	case "unavailable", "failed":
		return red
	default:
		return yellow
	}
}
