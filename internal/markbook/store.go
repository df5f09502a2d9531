package markbook

import (
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Store owns the roster, the week list and the metric visibility flags.
// Every mutation builds a replacement slice/map and swaps it in under the
// lock, so readers never observe a partially applied change.
type Store struct {
	mu       sync.RWMutex
	students []Student
	weeks    []string
	visible  VisibleMetrics
	selected int // 0 means no selection; ids start at 1
}

func NewStore() *Store {
	return &Store{
		students: []Student{},
		weeks:    []string{},
		visible:  DefaultVisibleMetrics(),
	}
}

// State returns a deep copy of the current contents.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	students := make([]Student, len(s.students))
	for i, st := range s.students {
		students[i] = st.clone()
	}
	return State{
		Students:       students,
		Weeks:          append([]string{}, s.weeks...),
		VisibleMetrics: s.visible.clone(),
	}
}

func (s *Store) Students() []Student { return s.State().Students }

func (s *Store) Weeks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.weeks...)
}

func (s *Store) VisibleMetrics() VisibleMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible.clone()
}

// Student returns a copy of the student with id.
func (s *Store) Student(id int) (Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.students {
		if st.ID == id {
			return st.clone(), true
		}
	}
	return Student{}, false
}

// AddStudent appends a student with id max(ids)+1. A name that trims to
// empty is ignored and reported with ok=false.
func (s *Store) AddStudent(name, house, status string) (Student, bool) {
	if strings.TrimSpace(name) == "" {
		return Student{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	maxID := 0
	for _, st := range s.students {
		if st.ID > maxID {
			maxID = st.ID
		}
	}
	student := Student{
		ID:     maxID + 1,
		Name:   name,
		House:  house,
		Status: status,
		Data:   emptyMetricTable(),
	}
	next := make([]Student, 0, len(s.students)+1)
	next = append(next, s.students...)
	s.students = append(next, student)
	return student.clone(), true
}

// RemoveStudent drops the student with id and clears the selection if it
// pointed at that student. Unknown ids are ignored.
func (s *Store) RemoveStudent(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]Student, 0, len(s.students))
	for _, st := range s.students {
		if st.ID != id {
			next = append(next, st)
		}
	}
	s.students = next
	if s.selected == id {
		s.selected = 0
	}
}

// UpdateStudentField replaces name, house or status. Unknown ids and fields are ignored.
func (s *Store) UpdateStudentField(id int, field StudentField, value string) {
	s.replaceStudent(id, func(st *Student) {
		switch field {
		case FieldName:
			st.Name = value
		case FieldHouse:
			st.House = value
		case FieldStatus:
			st.Status = value
		}
	})
}

// SetMetricValue stores rawValue parsed as a non-negative integer under
// data[key][week]. Unparseable input counts as 0, negatives clamp to 0.
func (s *Store) SetMetricValue(id int, key MetricKey, week, rawValue string) {
	if !IsMetric(key) {
		return
	}
	v := ParseCount(rawValue)
	s.replaceStudent(id, func(st *Student) {
		data := st.Data.clone()
		if data == nil {
			data = MetricTable{}
		}
		wv := data[key]
		if wv == nil {
			wv = WeekValues{}
		}
		wv[week] = v
		data[key] = wv
		st.Data = data
	})
}

func (s *Store) replaceStudent(id int, mutate func(st *Student)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, st := range s.students {
		if st.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	updated := s.students[idx].clone()
	mutate(&updated)
	next := make([]Student, len(s.students))
	copy(next, s.students)
	next[idx] = updated
	s.students = next
}

// AddWeek appends label unless it trims to empty or is already present
// (exact, case-sensitive match).
func (s *Store) AddWeek(label string) bool {
	if strings.TrimSpace(label) == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.weeks {
		if w == label {
			return false
		}
	}
	next := make([]string, 0, len(s.weeks)+1)
	next = append(next, s.weeks...)
	s.weeks = append(next, label)
	return true
}

// RemoveWeek deletes label from the week list and from every student's metric tables.
func (s *Store) RemoveWeek(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	weeks := make([]string, 0, len(s.weeks))
	for _, w := range s.weeks {
		if w != label {
			weeks = append(weeks, w)
		}
	}
	students := make([]Student, len(s.students))
	for i, st := range s.students {
		cp := st.clone()
		for _, wv := range cp.Data {
			delete(wv, label)
		}
		students[i] = cp
	}
	s.weeks = weeks
	s.students = students
}

// ToggleMetricVisibility flips the flag for key; an absent flag reads as false.
func (s *Store) ToggleMetricVisibility(key MetricKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.visible.clone()
	if next == nil {
		next = VisibleMetrics{}
	}
	next[key] = !next[key]
	s.visible = next
}

// Select marks a student for the chart view. Unknown ids clear the selection.
func (s *Store) Select(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = 0
	for _, st := range s.students {
		if st.ID == id {
			s.selected = id
			return
		}
	}
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = 0
	s.mu.Unlock()
}

// Selected returns a copy of the selected student, if any.
func (s *Store) Selected() (Student, bool) {
	s.mu.RLock()
	id := s.selected
	s.mu.RUnlock()
	if id == 0 {
		return Student{}, false
	}
	return s.Student(id)
}

// Replace installs students and weeks verbatim, discarding the previous
// roster. A nil visible keeps the flags already in effect. The selection is cleared.
func (s *Store) Replace(students []Student, weeks []string, visible VisibleMetrics) {
	nextStudents := make([]Student, len(students))
	for i, st := range students {
		nextStudents[i] = st.clone()
	}
	nextWeeks := append([]string{}, weeks...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.students = nextStudents
	s.weeks = nextWeeks
	if visible != nil {
		s.visible = visible.clone()
	}
	s.selected = 0
}

// ParseCount reads the leading integer of raw the way a number input is
// coerced: surrounding text is ignored, no digits means 0, negatives clamp to 0.
func ParseCount(raw string) int {
	s := strings.TrimLeftFunc(raw, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 || neg {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// only overflow gets here
		return int(^uint(0) >> 1)
	}
	return n
}
