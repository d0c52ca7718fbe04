package task

import (
	"fmt"
	"strings"
	"time"
)

// Field is one optional field of a Patch.
// The zero Field is absent: the stored value is left untouched.
// A Field built with Null clears the stored value.
type Field[T any] struct {
	set   bool
	value *T
}

// Value returns a present, non-null field.
func Value[T any](v T) Field[T] {
	return Field[T]{set: true, value: &v}
}

// Null returns a present field that clears the stored value.
func Null[T any]() Field[T] {
	return Field[T]{set: true}
}

// IsSet reports whether the field takes part in the update.
func (f Field[T]) IsSet() bool { return f.set }

// IsNull reports whether the field is present and clears the value.
func (f Field[T]) IsNull() bool { return f.set && f.value == nil }

// Get returns the value and true if the field is present and non-null.
func (f Field[T]) Get() (T, bool) {
	if f.value == nil {
		var zero T
		return zero, false
	}
	return *f.value, true
}

// ptr returns a copy of the value as a pointer, or nil for null.
func (f Field[T]) ptr() *T {
	if f.value == nil {
		return nil
	}
	v := *f.value
	return &v
}

// Patch is a partial update of a task.
// Every present field is written verbatim, absent fields are untouched.
type Patch struct {
	Text            Field[string]
	Completed       Field[bool]
	DueDate         Field[time.Time]
	LocationCoords  Field[Coords]
	LocationAddress Field[string]
}

// IsEmpty reports whether the patch has no present fields.
func (p Patch) IsEmpty() bool {
	return !p.Text.IsSet() && !p.Completed.IsSet() && !p.DueDate.IsSet() &&
		!p.LocationCoords.IsSet() && !p.LocationAddress.IsSet()
}

// Validate rejects patches that would leave a task without text or completion state.
func (p Patch) Validate() error {
	if p.Text.IsSet() {
		text, ok := p.Text.Get()
		if !ok || strings.TrimSpace(text) == "" {
			return ErrEmptyText
		}
	}
	if p.Completed.IsNull() {
		return fmt.Errorf("%w: completed cannot be null", ErrInvalidPatch)
	}
	return nil
}
