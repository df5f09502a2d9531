package markbook

import (
	"fmt"
	"time"
)

// SuggestWeekName proposes a label for the week containing now, named after
// its Monday as "Week D/M". Weekdays count from Sunday, so on a Sunday the
// following Monday is used.
func SuggestWeekName(now time.Time) string {
	start := now.AddDate(0, 0, -int(now.Weekday())+1)
	return fmt.Sprintf("Week %d/%d", start.Day(), int(start.Month()))
}
