package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"tasksync/internal/output"
	"tasksync/internal/store"
	"tasksync/internal/task"
)

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Completed bool // true for a "c" prefix
	TaskNum   int  // 1-based position in the pending or completed view
}

// String renders the reference the way list output shows it.
func (r TaskRef) String() string {
	if r.Completed {
		return output.CompletedRef(r.TaskNum)
	}
	return output.PendingRef(r.TaskNum)
}

var (
	// ErrTaskRefRequired indicates no task reference was provided.
	ErrTaskRefRequired = errors.New("task reference required")

	// ErrInvalidTaskRef indicates a reference that is neither N nor cN.
	ErrInvalidTaskRef = errors.New("invalid task reference")
)

// ParseTaskRef parses the task reference in args[0].
//
// Parsing rules:
// 1. All digits → position in the pending view
// 2. "c" followed by digits (e.g. c1, c12) → position in the completed view
// 3. Zero is never a valid position
// 4. Otherwise → error: invalid task reference: <ref>
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 {
		return TaskRef{}, ErrTaskRefRequired
	}
	arg := args[0]

	ref := TaskRef{}
	digits := arg
	if rest, ok := strings.CutPrefix(arg, "c"); ok {
		ref.Completed = true
		digits = rest
	}
	if !isAllDigits(digits) {
		return TaskRef{}, fmt.Errorf("%w: %s", ErrInvalidTaskRef, arg)
	}
	num, err := strconv.Atoi(digits)
	if err != nil || num < 1 {
		return TaskRef{}, fmt.Errorf("%w: %s", ErrInvalidTaskRef, arg)
	}
	ref.TaskNum = num
	return ref, nil
}

// ResolveTask returns the task ref points at in the current views of tasks.
func ResolveTask(tasks *store.Store, ref TaskRef) (task.Task, error) {
	view := tasks.Pending()
	if ref.Completed {
		view = tasks.Completed()
	}
	if ref.TaskNum > len(view) {
		return task.Task{}, fmt.Errorf("%w: %s", task.ErrNotFound, ref)
	}
	return view[ref.TaskNum-1], nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
