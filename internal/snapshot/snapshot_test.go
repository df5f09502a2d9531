package snapshot

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/markbook-backend/internal/markbook"
)

func seededStore(t *testing.T) *markbook.Store {
	t.Helper()
	s := markbook.NewSampleStore()
	s.AddWeek("Week 1")
	s.AddWeek("Week 2")
	s.SetMetricValue(1, markbook.MetricHousePoints, "Week 1", "4")
	s.SetMetricValue(2, markbook.MetricHomeworkCompleted, "Week 2", "1")
	s.ToggleMetricVisibility(markbook.MetricReadingSessions)
	return s
}

func TestSerializeShape(t *testing.T) {
	now := time.Date(2024, 10, 14, 8, 30, 15, 123_000_000, time.UTC)
	raw, err := Serialize(seededStore(t), now)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(string(raw), "\n  \"students\": [") {
		t.Fatalf("expected two-space indentation, got:\n%s", raw)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, k := range []string{"students", "weeks", "visibleMetrics", "exportDate"} {
		if _, ok := top[k]; !ok {
			t.Fatalf("missing top-level key %q", k)
		}
	}
	var date string
	_ = json.Unmarshal(top["exportDate"], &date)
	if date != "2024-10-14T08:30:15.123Z" {
		t.Fatalf("exportDate: want=%q got=%q", "2024-10-14T08:30:15.123Z", date)
	}
}

func TestRoundTrip(t *testing.T) {
	store := seededStore(t)
	raw, err := Serialize(store, time.Now())
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	d, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	st := store.State()
	if !reflect.DeepEqual(d.Students, st.Students) {
		t.Fatalf("students differ:\nwant=%+v\ngot=%+v", st.Students, d.Students)
	}
	if !reflect.DeepEqual(d.Weeks, st.Weeks) {
		t.Fatalf("weeks differ: want=%v got=%v", st.Weeks, d.Weeks)
	}
	if !reflect.DeepEqual(d.VisibleMetrics, st.VisibleMetrics) {
		t.Fatalf("visibleMetrics differ: want=%v got=%v", st.VisibleMetrics, d.VisibleMetrics)
	}
}

func TestEmptyStoreSerializesArrays(t *testing.T) {
	raw, err := Serialize(markbook.NewStore(), time.Now())
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(string(raw), `"students": []`) || !strings.Contains(string(raw), `"weeks": []`) {
		t.Fatalf("expected empty arrays, got:\n%s", raw)
	}
	if _, err := Deserialize(raw); err != nil {
		t.Fatalf("Deserialize(empty): %v", err)
	}
}

func TestImportMissingWeeksLeavesStoreUnchanged(t *testing.T) {
	store := seededStore(t)
	before := store.State()

	_, err := Import(store, []byte(`{"students": []}`))
	if err == nil {
		t.Fatalf("Import: expected error")
	}
	if !IsFormatError(err) {
		t.Fatalf("Import: expected FormatError, got %T", err)
	}
	if !reflect.DeepEqual(before, store.State()) {
		t.Fatalf("store changed after failed import")
	}
}

func TestDeserializeFormatErrors(t *testing.T) {
	inputs := []string{
		`not json`,
		`[1,2,3]`,
		`{"weeks": []}`,
		`{"students": null, "weeks": []}`,
		`{"students": "x", "weeks": []}`,
		`{"students": [], "weeks": [1]}`,
	}
	for _, in := range inputs {
		if _, err := Deserialize([]byte(in)); !IsFormatError(err) {
			t.Fatalf("Deserialize(%s): want FormatError got=%v", in, err)
		}
	}
}

func TestDeserializeStringStudentID(t *testing.T) {
	in := `{"students":[{"id":"7","name":"Kai","house":"Unicorns","status":"New","data":{}}],"weeks":[]}`
	d, err := Deserialize([]byte(in))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(d.Students) != 1 || d.Students[0].ID != 7 {
		t.Fatalf("students: want one with id=7 got=%+v", d.Students)
	}
}

func TestImportIsTotalReplacement(t *testing.T) {
	store := seededStore(t)
	store.Select(1)
	in := `{"students":[{"id":9,"name":"Kai","house":"Unicorns","status":"New","data":{"housePoints":{"X":2}}}],"weeks":["X"]}`
	d, err := Import(store, []byte(in))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if d.VisibleMetrics != nil {
		t.Fatalf("VisibleMetrics: want nil when absent")
	}
	st := store.State()
	if len(st.Students) != 1 || st.Students[0].House != "Unicorns" {
		t.Fatalf("students not replaced verbatim: %+v", st.Students)
	}
	if st.VisibleMetrics[markbook.MetricReadingSessions] {
		t.Fatalf("visibility should be kept from before the import")
	}
	if _, ok := store.Selected(); ok {
		t.Fatalf("selection should be cleared by import")
	}
	if got := markbook.Total(st.Students[0].Data, st.Weeks, markbook.MetricHousePoints); got != 2 {
		t.Fatalf("Total: want=2 got=%d", got)
	}
}

func TestDecodedStateFallback(t *testing.T) {
	d := &Decoded{Students: []markbook.Student{}, Weeks: []string{}}
	st := d.State(markbook.DefaultVisibleMetrics())
	if !st.VisibleMetrics[markbook.MetricHousePoints] {
		t.Fatalf("fallback visibility not applied")
	}
}
