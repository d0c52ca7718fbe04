package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DueLayout is the wire format of due dates: ISO-8601 in UTC with milliseconds.
const DueLayout = "2006-01-02T15:04:05.000Z07:00"

// record is the JSON shape stored for each task. The id is the record key.
type record struct {
	Text            string  `json:"text"`
	Completed       bool    `json:"completed"`
	DueDate         *string `json:"dueDate"`
	LocationCoords  *Coords `json:"locationCoords"`
	LocationAddress *string `json:"locationAddress"`
	CreatedAt       int64   `json:"createdAt"`
}

// Encode serializes t to its wire record. t.ID is not part of the record.
func Encode(t Task) ([]byte, error) {
	r := record{
		Text:            t.Text,
		Completed:       t.Completed,
		LocationCoords:  t.LocationCoords,
		LocationAddress: t.LocationAddress,
	}
	if t.DueDate != nil {
		s := FormatDue(*t.DueDate)
		r.DueDate = &s
	}
	if !t.CreatedAt.IsZero() {
		r.CreatedAt = t.CreatedAt.UnixMilli()
	}
	return json.Marshal(r)
}

// Decode parses a wire record stored under id.
// A due date that cannot be parsed is treated as absent.
func Decode(id string, data []byte) (Task, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	t := Task{
		ID:              id,
		Text:            r.Text,
		Completed:       r.Completed,
		LocationCoords:  r.LocationCoords,
		LocationAddress: r.LocationAddress,
	}
	if r.DueDate != nil {
		if due, err := ParseDue(*r.DueDate); err == nil {
			t.DueDate = &due
		}
	}
	if r.CreatedAt != 0 {
		t.CreatedAt = time.UnixMilli(r.CreatedAt).UTC()
	}
	return t, nil
}

// Merge writes the present fields of p over the stored record data.
// Keys p does not name are left exactly as stored, including ones this
// package does not know about.
func Merge(data []byte, p Patch) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode task record: %w", err)
	}
	if fields == nil {
		return nil, errors.New("decode task record: not an object")
	}

	var err error
	set := func(key string, v any) {
		if err != nil {
			return
		}
		var raw []byte
		if raw, err = json.Marshal(v); err == nil {
			fields[key] = raw
		}
	}
	if p.Text.IsSet() {
		set("text", p.Text.ptr())
	}
	if p.Completed.IsSet() {
		set("completed", p.Completed.ptr())
	}
	if p.DueDate.IsSet() {
		var due *string
		if d, ok := p.DueDate.Get(); ok {
			s := FormatDue(d)
			due = &s
		}
		set("dueDate", due)
	}
	if p.LocationCoords.IsSet() {
		set("locationCoords", p.LocationCoords.ptr())
	}
	if p.LocationAddress.IsSet() {
		set("locationAddress", p.LocationAddress.ptr())
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// DecodePartition decodes every record of a partition in key order.
// Records that fail to decode are passed to skip and left out.
func DecodePartition(records map[string][]byte, skip func(id string, err error)) []Task {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Task, 0, len(ids))
	for _, id := range ids {
		t, err := Decode(id, records[id])
		if err != nil {
			if skip != nil {
				skip(id, err)
			}
			continue
		}
		out = append(out, t)
	}
	return out
}

// FormatDue renders a due date in wire format.
func FormatDue(t time.Time) string {
	return t.UTC().Format(DueLayout)
}

// ParseDue parses a due date given as a date ("2006-01-02"), a date and time
// without offset ("2006-01-02 15:04" or "2006-01-02T15:04:05"), or RFC 3339.
// Values without an offset are read as UTC. Date-only values are the start of
// that day.
func ParseDue(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty due date")
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("due date: use YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC3339: %q", s)
}
