package ui

import (
	"fmt"
	"io"
	"strings"
)

// StagedFiles prints the staged files in the same frame the interactive view uses
func StagedFiles(w io.Writer, branch string, files []string) {
	header := titleStyle.Render("commitron")
	if branch != "" {
		header += " " + branchStyle.Render(fmt.Sprintf("(%s|●%d)", branch, len(files)))
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "│")
	fmt.Fprintf(w, "◇  Detected %d staged %s:\n", len(files), plural(len(files), "file", "files"))

	// Print each file with indentation
	for _, file := range files {
		fmt.Fprintf(w, "     %s\n", file)
	}
	fmt.Fprintln(w, "│")
}

// CommitMessage prints a generated message indented under a marker line
func CommitMessage(w io.Writer, label, message string) {
	fmt.Fprintf(w, "◆  %s\n\n", label)
	fmt.Fprintf(w, "   %s\n\n", strings.ReplaceAll(message, "\n", "\n   "))
}

// Success prints a completed step
func Success(w io.Writer, text string) {
	fmt.Fprintln(w, successStyle.Render("✓  "+text))
}

// Note prints a secondary status line
func Note(w io.Writer, text string) {
	fmt.Fprintln(w, helpStyle.Render("   "+text))
}

// Error prints err with its hints
func Error(w io.Writer, err error, hints []string) {
	fmt.Fprintln(w, errorStyle.Render("✗  "+err.Error()))
	for _, hint := range hints {
		fmt.Fprintln(w, helpStyle.Render("   hint: "+hint))
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
