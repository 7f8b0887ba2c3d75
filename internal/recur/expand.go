package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"timetrace/internal/model"
)

// DefaultHorizonDays is the forward window over which routine occurrences are
// pre-materialized.
const DefaultHorizonDays = 30

// ISO weekday 1..7 -> rrule weekday.
var rruleWeekdays = [...]rrule.Weekday{
	rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU,
}

// Expand generates the concrete occurrence times of a routine over
// windowDays calendar days starting at windowStart's date. Each occurrence
// falls on a day whose ISO weekday (Monday=1 .. Sunday=7) is in the routine's
// set, at the routine's hour:minute local time. The result is ordered and
// deterministic; persisting it is the caller's job, and re-running without
// clearing prior rows duplicates occurrences.
func Expand(r model.Routine, windowStart time.Time, windowDays int) ([]time.Time, error) {
	if len(r.Weekdays) == 0 || windowDays <= 0 {
		return nil, nil
	}

	byDay := make([]rrule.Weekday, 0, len(r.Weekdays))
	for _, wd := range r.Weekdays {
		if wd < 1 || wd > 7 {
			return nil, fmt.Errorf("expand routine %d: weekday %d out of range 1..7", r.ID, wd)
		}
		byDay = append(byDay, rruleWeekdays[wd-1])
	}

	loc := windowStart.Location()
	start := time.Date(windowStart.Year(), windowStart.Month(), windowStart.Day(), r.Hour, r.Minute, 0, 0, loc)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byDay,
		Dtstart:   start,
	})
	if err != nil {
		return nil, fmt.Errorf("expand routine %d: %w", r.ID, err)
	}

	// Last instant of the window: day windowDays-1 at hour:minute.
	end := start.AddDate(0, 0, windowDays-1)
	return rule.Between(start, end, true), nil
}

// ISOWeekday converts Go's Sunday=0 numbering to Monday=1 .. Sunday=7.
func ISOWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}
