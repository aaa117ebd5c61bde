// Package observability provides formatted output utilities for verbose CLI
// mode: boxed application summaries and a span processor that prints workflow
// spans as they finish.
package observability

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/jonathan/bond-onboarding/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxRecordIDsToShow is the default number of record ids listed per sub-step
	maxRecordIDsToShow = 3
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintApplication outputs the status of an application and a checklist of
// the required main steps, in registry order, with any recorded sub-steps
// underneath.
func (p *Printer) PrintApplication(app *types.Application, required []string) {
	if app == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Company:  %s\n", app.CompanyName))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", app.Status))
	if app.SubmittedAt != nil {
		sb.WriteString(fmt.Sprintf("Submitted: %s\n", app.SubmittedAt.Format("2006-01-02 15:04 MST")))
	}

	var steps strings.Builder
	completed := 0
	for _, id := range required {
		main, ok := app.StepProgress[id]
		if ok && main.Completed {
			completed++
		}
		steps.WriteString(fmt.Sprintf("%s Step %s\n", checkmark(ok && main.Completed), id))
		if !ok {
			continue
		}
		for _, subID := range slices.Sorted(maps.Keys(main.Sub)) {
			sub := main.Sub[subID]
			steps.WriteString(fmt.Sprintf("    %s %s%s\n", checkmark(sub.Completed), subID, formatRecordIDs(sub.RecordIDs)))
		}
	}

	sb.WriteString(fmt.Sprintf("Progress: %d/%d required steps\n\n", completed, len(required)))
	sb.WriteString(steps.String())

	p.printBox(fmt.Sprintf("APPLICATION %s", app.ID), strings.TrimSuffix(sb.String(), "\n"))
}

func checkmark(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func formatRecordIDs(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	shown := ids
	if len(shown) > maxRecordIDsToShow {
		shown = shown[:maxRecordIDsToShow]
	}
	s := " (" + strings.Join(shown, ", ")
	if len(ids) > len(shown) {
		s += fmt.Sprintf(", +%d more", len(ids)-len(shown))
	}
	return s + ")"
}
