// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"asanapdf/internal/service"
)

const (
	// Separator is the separator line around section headers.
	Separator = "------------"
)

// FormatHeader formats a section header.
func FormatHeader(w io.Writer, title string) {
	fmt.Fprintln(w, Separator)
	fmt.Fprintln(w, normalizeName(title))
	fmt.Fprintln(w, Separator)
}

// FormatProject formats a project line for the projects command.
// Format: "{GID}  {NAME}\n"
func FormatProject(w io.Writer, project service.Project) {
	fmt.Fprintf(w, "%s  %s\n", project.ID, normalizeName(project.Name))
}

// FormatTask formats a task line.
// Format: "{N:>4}  {NAME}[  @{ASSIGNEE}][  due {DATE}]\n"
func FormatTask(w io.Writer, num int, task service.Task) {
	line := fmt.Sprintf("%4d  %s", num, normalizeName(task.Name))
	if task.Assignee != nil && strings.TrimSpace(task.Assignee.Name) != "" {
		line += "  @" + task.Assignee.Name
	}
	if task.DueOn != "" {
		line += "  due " + task.DueOn
	}
	fmt.Fprintln(w, line)
}

// FormatField formats a field line for the fields command. Standard fields
// have no id and are printed with a "-" in its place.
// Format: "{GID|-}  {NAME}  ({TYPE})\n"
func FormatField(w io.Writer, id, name, typ string) {
	if id == "" {
		id = "-"
	}
	fmt.Fprintf(w, "%s  %s  (%s)\n", id, normalizeName(name), typ)
}

// normalizeName normalizes a name for single-line display.
// - Empty or whitespace-only names become "(untitled)"
// - Newlines are replaced with spaces
func normalizeName(name string) string {
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.ReplaceAll(name, "\n", " ")

	if strings.TrimSpace(name) == "" {
		return "(untitled)"
	}
	return name
}
