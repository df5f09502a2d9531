package markbook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MetricKey names one of the three tracked per-week counters.
type MetricKey string

const (
	MetricHousePoints       MetricKey = "housePoints"
	MetricReadingSessions   MetricKey = "readingSessions"
	MetricHomeworkCompleted MetricKey = "homeworkCompleted"
)

// AllMetrics is the fixed metric set in display order.
var AllMetrics = []MetricKey{MetricHousePoints, MetricReadingSessions, MetricHomeworkCompleted}

func IsMetric(k MetricKey) bool {
	switch k {
	case MetricHousePoints, MetricReadingSessions, MetricHomeworkCompleted:
		return true
	default:
		return false
	}
}

// WeekValues maps a week label to a count. A missing label reads as 0.
type WeekValues map[string]int

// UnmarshalJSON accepts any JSON number (fractions are truncated) and drops
// null entries, so imported files are installed without shape validation.
func (w *WeekValues) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*w = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(WeekValues, len(raw))
	for week, v := range raw {
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		n, err := decodeNumber(trimmed)
		if err != nil {
			return err
		}
		out[week] = n
	}
	*w = out
	return nil
}

// decodeNumber reads a JSON number, or a string holding one, truncating any
// fraction.
func decodeNumber(raw []byte) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, err
	}
	return int(math.Trunc(f)), nil
}

// MetricTable holds one WeekValues per metric.
type MetricTable map[MetricKey]WeekValues

// Value returns the stored count or 0 when the metric or week is absent.
func (t MetricTable) Value(k MetricKey, week string) int {
	if t == nil {
		return 0
	}
	return t[k][week]
}

func (t MetricTable) clone() MetricTable {
	if t == nil {
		return nil
	}
	out := make(MetricTable, len(t))
	for k, wv := range t {
		if wv == nil {
			out[k] = nil
			continue
		}
		cp := make(WeekValues, len(wv))
		for week, v := range wv {
			cp[week] = v
		}
		out[k] = cp
	}
	return out
}

func emptyMetricTable() MetricTable {
	return MetricTable{
		MetricHousePoints:       WeekValues{},
		MetricReadingSessions:   WeekValues{},
		MetricHomeworkCompleted: WeekValues{},
	}
}

type Student struct {
	ID     int         `json:"id"`
	Name   string      `json:"name"`
	House  string      `json:"house"`
	Status string      `json:"status"`
	Data   MetricTable `json:"data"`
}

// UnmarshalJSON accepts the id as a JSON number or a numeric string.
func (s *Student) UnmarshalJSON(b []byte) error {
	type plain Student
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*s = Student(aux.plain)
	id := bytes.TrimSpace(aux.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return nil
	}
	n, err := decodeNumber(id)
	if err != nil {
		return fmt.Errorf("student id %s: %w", id, err)
	}
	s.ID = n
	return nil
}

func (s Student) clone() Student {
	s.Data = s.Data.clone()
	return s
}

// VisibleMetrics controls which metric columns and series are rendered.
type VisibleMetrics map[MetricKey]bool

func DefaultVisibleMetrics() VisibleMetrics {
	return VisibleMetrics{
		MetricHousePoints:       true,
		MetricReadingSessions:   true,
		MetricHomeworkCompleted: true,
	}
}

func (v VisibleMetrics) clone() VisibleMetrics {
	if v == nil {
		return nil
	}
	out := make(VisibleMetrics, len(v))
	for k, b := range v {
		out[k] = b
	}
	return out
}

// Visible lists the fixed metrics whose flag is set, in display order.
func (v VisibleMetrics) Visible() []MetricKey {
	out := make([]MetricKey, 0, len(AllMetrics))
	for _, k := range AllMetrics {
		if v[k] {
			out = append(out, k)
		}
	}
	return out
}

// StudentField is a replaceable scalar field of a Student.
type StudentField string

const (
	FieldName   StudentField = "name"
	FieldHouse  StudentField = "house"
	FieldStatus StudentField = "status"
)

// State is a detached copy of everything a Store holds.
type State struct {
	Students       []Student      `json:"students"`
	Weeks          []string       `json:"weeks"`
	VisibleMetrics VisibleMetrics `json:"visibleMetrics"`
}
