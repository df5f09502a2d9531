package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/markbook-backend/internal/markbook"
)

// ExportDateLayout matches JavaScript's Date.prototype.toISOString.
const ExportDateLayout = "2006-01-02T15:04:05.000Z"

// Snapshot is the unit of export, import and remote persistence.
type Snapshot struct {
	Students       []markbook.Student      `json:"students"`
	Weeks          []string                `json:"weeks"`
	VisibleMetrics markbook.VisibleMetrics `json:"visibleMetrics"`
	ExportDate     string                  `json:"exportDate"`
}

// Decoded is what an import yields. VisibleMetrics is nil when the file carried none.
type Decoded struct {
	Students       []markbook.Student
	Weeks          []string
	VisibleMetrics markbook.VisibleMetrics
}

// FormatError reports an import that could not be understood.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e == nil {
		return "invalid snapshot format"
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid snapshot format: %s: %v", e.Reason, e.Err)
	}
	return "invalid snapshot format: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// Build captures st at now.
func Build(st markbook.State, now time.Time) Snapshot {
	students := st.Students
	if students == nil {
		students = []markbook.Student{}
	}
	weeks := st.Weeks
	if weeks == nil {
		weeks = []string{}
	}
	return Snapshot{
		Students:       students,
		Weeks:          weeks,
		VisibleMetrics: st.VisibleMetrics,
		ExportDate:     now.UTC().Format(ExportDateLayout),
	}
}

// Serialize renders the store's current contents as 2-space indented JSON.
func Serialize(store *markbook.Store, now time.Time) ([]byte, error) {
	return Marshal(Build(store.State(), now))
}

func Marshal(s Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Deserialize parses text. Both "students" and "weeks" must be present and
// non-null; nothing inside a student is validated.
func Deserialize(text []byte) (*Decoded, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(text, &top); err != nil {
		return nil, &FormatError{Reason: "not a JSON object", Err: err}
	}
	rawStudents, hasStudents := present(top, "students")
	rawWeeks, hasWeeks := present(top, "weeks")
	if !hasStudents || !hasWeeks {
		return nil, &FormatError{Reason: "missing students or weeks"}
	}

	out := &Decoded{}
	if err := json.Unmarshal(rawStudents, &out.Students); err != nil {
		return nil, &FormatError{Reason: "students", Err: err}
	}
	if err := json.Unmarshal(rawWeeks, &out.Weeks); err != nil {
		return nil, &FormatError{Reason: "weeks", Err: err}
	}
	if rawVisible, ok := present(top, "visibleMetrics"); ok {
		if err := json.Unmarshal(rawVisible, &out.VisibleMetrics); err != nil {
			return nil, &FormatError{Reason: "visibleMetrics", Err: err}
		}
	}
	if out.Students == nil {
		out.Students = []markbook.Student{}
	}
	if out.Weeks == nil {
		out.Weeks = []string{}
	}
	return out, nil
}

func present(top map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := top[key]
	if !ok {
		return nil, false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	return trimmed, true
}

// Import parses text and, only when it parses, replaces the store's roster and
// week list wholesale. On error the store is untouched.
func Import(store *markbook.Store, text []byte) (*Decoded, error) {
	d, err := Deserialize(text)
	if err != nil {
		return nil, err
	}
	store.Replace(d.Students, d.Weeks, d.VisibleMetrics)
	return d, nil
}

// State converts a decoded import into a store state, using fallback
// visibility when the import had none.
func (d *Decoded) State(fallback markbook.VisibleMetrics) markbook.State {
	visible := d.VisibleMetrics
	if visible == nil {
		visible = fallback
	}
	return markbook.State{Students: d.Students, Weeks: d.Weeks, VisibleMetrics: visible}
}
