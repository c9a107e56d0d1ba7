package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Failure describes an error for the terminal
type Failure struct {
	// Context is the upper-cased header, e.g. RESOURCE NOT FOUND
	Context     string
	Problem     string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders the failure:
//
//	✗ RESOURCE NOT FOUND: Cannot find resource 'Bok'.
//
//	   Did you mean: Book?
//
//	   → List resources: apiorm describe
func (f Failure) Format() string {
	var b strings.Builder

	header := newColor(f.NoColor, color.FgRed, color.Bold)
	if f.Context != "" {
		header.Fprintf(&b, "✗ %s: %s\n", strings.ToUpper(f.Context), f.Problem)
	} else {
		header.Fprintf(&b, "✗ %s\n", f.Problem)
	}

	if len(f.Suggestions) > 0 {
		newColor(f.NoColor, color.FgYellow).Fprintf(&b, "\n   Did you mean: %s?\n", strings.Join(f.Suggestions, ", "))
	}

	if len(f.Hints) > 0 {
		b.WriteString("\n")
		hint := newColor(f.NoColor, color.FgCyan)
		for _, h := range f.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Error makes a Failure returnable from commands
func (f Failure) Error() string {
	if f.Context != "" {
		return strings.ToLower(f.Context) + ": " + f.Problem
	}
	return f.Problem
}

// Write prints the failure to w
func (f Failure) Write(w io.Writer) {
	fmt.Fprint(w, f.Format())
}

// Success renders a success line
func Success(message string, noColor bool) string {
	return newColor(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// NotFound builds the failure for an unknown name of the given kind ("resource",
// "operation"), suggesting the closest candidates
func NotFound(kind, name string, candidates []string, hints []string, noColor bool) Failure {
	return Failure{
		Context:     kind + " not found",
		Problem:     fmt.Sprintf("Cannot find %s '%s'.", kind, name),
		Suggestions: FindSimilar(name, candidates, 0),
		Hints:       hints,
		NoColor:     noColor,
	}
}
