package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Color definitions
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Success prints a success message in green with a checkmark prefix
func Success(w io.Writer, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Fprintf(w, "✓ %s", msg)
	} else {
		green.Fprint(w, msg)
	}
}

// Info prints an informational message in the default color
func Info(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(w io.Writer, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Fprintf(w, "⚠️  %s", msg)
	} else {
		yellow.Fprint(w, msg)
	}
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(w io.Writer, format string, a ...any) {
	cyan.Fprintf(w, "→ %s", fmt.Sprintf(format, a...))
}

// Delivery prints one status item delivery: time, item id and value.
func Delivery(w io.Writer, at time.Time, id, value string) {
	faint.Fprintf(w, "%s ", at.Format("15:04:05"))
	cyan.Fprintf(w, "%s", id)
	fmt.Fprintf(w, " = %s\n", value)
}

// Error creates a formatted error message with title, explanation, and suggestions
// Prints the formatted error to w with colors and returns a simple error for Cobra
func Error(w io.Writer, title string, explanation string, suggestions []string) error {
	return ErrorWithContext(w, title, explanation, nil, suggestions)
}

// ErrorWithContext creates a formatted error with context details
// Prints the formatted error to w with colors and returns a simple error for Cobra
func ErrorWithContext(w io.Writer, title string, explanation string, context map[string]string, suggestions []string) error {
	// Print title in red
	red.Fprintf(w, "%s\n\n", title)

	// Print explanation
	if explanation != "" {
		fmt.Fprintf(w, "%s\n", explanation)
	}

	// Print context details in key order
	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for key := range context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(w, "\n")
		for _, key := range keys {
			fmt.Fprintf(w, "  %s: %s\n", key, context[key])
		}
	}

	// Print suggestions
	if len(suggestions) > 0 {
		fmt.Fprintf(w, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(w, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(w, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(w, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}
