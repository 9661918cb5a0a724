// Package output provides console output helpers with consistent formatting.
package output

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color codes used for console output.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Gray   = "\033[90m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("NO_COLOR") == ""

// colorize wraps s in the given color when stdout is a terminal.
func colorize(color, s string) string {
	if !colorEnabled {
		return s
	}
	return color + s + Reset
}

// Success prints a success line with a check mark.
func Success(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", colorize(Green, "✓"), fmt.Sprintf(format, args...))
}

// Item prints an indented status line.
func Item(format string, args ...interface{}) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// Info prints an informational line.
func Info(format string, args ...interface{}) {
	fmt.Printf("%s\n", fmt.Sprintf(format, args...))
}

// Warn prints a warning line to stderr.
func Warn(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", colorize(Yellow, "⚠"), fmt.Sprintf(format, args...))
}

// Error prints an error line to stderr.
func Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", colorize(Red, "✗"), fmt.Sprintf(format, args...))
}

// URL formats a service URL for display.
func URL(port int) string {
	return colorize(Cyan, fmt.Sprintf("http://localhost:%d", port))
}
