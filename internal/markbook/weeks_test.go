package markbook

import (
	"testing"
	"time"
)

func TestSuggestWeekName(t *testing.T) {
	cases := []struct {
		now  time.Time
		want string
	}{
		// Wednesday 2024-10-16 -> Monday 14/10
		{time.Date(2024, 10, 16, 9, 0, 0, 0, time.UTC), "Week 14/10"},
		// Monday stays itself
		{time.Date(2024, 10, 14, 9, 0, 0, 0, time.UTC), "Week 14/10"},
		// Sunday rolls forward to the next day
		{time.Date(2024, 10, 20, 9, 0, 0, 0, time.UTC), "Week 21/10"},
		// crossing a month boundary
		{time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC), "Week 28/10"},
	}
	for _, tc := range cases {
		if got := SuggestWeekName(tc.now); got != tc.want {
			t.Fatalf("SuggestWeekName(%s): want=%q got=%q", tc.now.Format("2006-01-02"), tc.want, got)
		}
	}
}
