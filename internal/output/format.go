// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"tasksync/internal/geo"
	"tasksync/internal/task"
)

const (
	// ListSeparator is the separator line for list sections.
	ListSeparator = "------------"

	// TimeLayout is used for due dates and creation times. Times are shown in UTC.
	TimeLayout = "2006-01-02 15:04"
)

// PendingRef returns the reference of the n-th pending task ("1", "2", ...).
func PendingRef(n int) string { return strconv.Itoa(n) }

// CompletedRef returns the reference of the n-th completed task ("c1", "c2", ...).
func CompletedRef(n int) string { return "c" + strconv.Itoa(n) }

// FormatTask formats a task line for a list view.
// Format: "{REF:>4}  {TEXT}[  due {DUE}][  @ {ADDRESS}]\n"
func FormatTask(w io.Writer, ref string, t task.Task) {
	var b strings.Builder
	fmt.Fprintf(&b, "%4s  %s", ref, normalizeTitle(t.Text))
	if t.DueDate != nil {
		b.WriteString("  due ")
		b.WriteString(t.DueDate.UTC().Format(TimeLayout))
	}
	if loc := locationSummary(t); loc != "" {
		b.WriteString("  @ ")
		b.WriteString(loc)
	}
	b.WriteByte('\n')
	io.WriteString(w, b.String())
}

// FormatTaskList formats tasks numbered with ref, one per line.
func FormatTaskList(w io.Writer, tasks []task.Task, ref func(int) string) {
	for i, t := range tasks {
		FormatTask(w, ref(i+1), t)
	}
}

// FormatSectionHeader formats a section header.
func FormatSectionHeader(w io.Writer, title string) {
	fmt.Fprintln(w, ListSeparator)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, ListSeparator)
}

// FormatTaskDetail formats every field of a task, one per line.
// Absent optional fields are omitted.
func FormatTaskDetail(w io.Writer, t task.Task) {
	status := "pending"
	if t.Completed {
		status = "completed"
	}
	field := func(name, value string) {
		fmt.Fprintf(w, "%-10s %s\n", name+":", value)
	}
	field("text", normalizeTitle(t.Text))
	field("status", status)
	if t.DueDate != nil {
		field("due", t.DueDate.UTC().Format(TimeLayout))
	}
	if c := t.LocationCoords; c != nil {
		field("location", FormatCoords(*c))
	}
	if a := t.LocationAddress; a != nil {
		field("address", *a)
	}
	if !t.CreatedAt.IsZero() {
		field("created", t.CreatedAt.UTC().Format(TimeLayout))
	}
	field("id", t.ID)
}

// FormatCoords renders a position as "lat, lon" with six decimals.
func FormatCoords(c task.Coords) string {
	return fmt.Sprintf("%.6f, %.6f", c.Latitude, c.Longitude)
}

// locationSummary prefers the address preview over raw coordinates.
func locationSummary(t task.Task) string {
	if a := t.LocationAddress; a != nil && strings.TrimSpace(*a) != "" {
		return geo.Preview(normalizeTitle(*a))
	}
	if c := t.LocationCoords; c != nil {
		return FormatCoords(*c)
	}
	return ""
}

// normalizeTitle normalizes a task text for display.
// - Empty or whitespace-only texts become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
