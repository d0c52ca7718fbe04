// Package task defines the to-do record mirrored from the remote task store.
package task

import (
	"strings"
	"time"
)

// Coords is a geographic position attached to a task.
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Task represents a single to-do item in one user's partition.
type Task struct {
	// ID is the key assigned by the remote store. It is never reassigned.
	ID string

	Text      string
	Completed bool

	// Optional fields. nil means absent.
	DueDate         *time.Time
	LocationCoords  *Coords
	LocationAddress *string

	// CreatedAt is assigned by the remote store at creation time.
	CreatedAt time.Time
}

// New returns a fresh, uncompleted task with the given text.
// All optional fields are absent. Returns ErrEmptyText if text is blank.
func New(text string) (Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Task{}, ErrEmptyText
	}
	return Task{Text: text}, nil
}

// HasLocation reports whether the task carries coordinates or an address.
func (t Task) HasLocation() bool {
	return t.LocationCoords != nil || t.LocationAddress != nil
}

// Pending returns the tasks with Completed == false, in order.
func Pending(tasks []Task) []Task {
	return filter(tasks, false)
}

// Completed returns the tasks with Completed == true, in order.
func Completed(tasks []Task) []Task {
	return filter(tasks, true)
}

func filter(tasks []Task, completed bool) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Completed == completed {
			out = append(out, t)
		}
	}
	return out
}
