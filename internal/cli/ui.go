package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	// Color definitions for terminal output
	errorColor = color.New(color.FgRed, color.Bold)
	infoColor  = color.New(color.FgCyan)
	modelColor = color.New(color.FgGreen)
	userColor  = color.New(color.FgYellow, color.Bold)
	dimColor   = color.New(color.Faint)
)

func printError(w io.Writer, format string, args ...any) {
	errorColor.Fprintf(w, "✗ %s\n", fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...any) {
	infoColor.Fprintf(w, "ℹ %s\n", fmt.Sprintf(format, args...))
}
