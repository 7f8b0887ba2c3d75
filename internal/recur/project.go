package recur

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"timetrace/internal/lunar"
)

// LunarConverter is the calendar-conversion dependency of the birthday
// projector. lunar.Converter is the production implementation.
type LunarConverter interface {
	SolarToLunar(year, month, day int) (lunarYear, lunarMonth, lunarDay int, leap bool, err error)
	LunarToSolar(lunarYear, lunarMonth, lunarDay int, leap bool) (year, month, day int, err error)
}

// Projection is a computed, non-persisted occurrence of a birthday anchor in
// a specific year. It deliberately is not a Schedule: mutation operations
// accept stored row ids only, so a projection can never be completed or
// deleted directly.
type Projection struct {
	Year int
	Time time.Time // local midnight of the projected date
}

// projectionIDBase spaces derived ids far above any realistic row id so a
// projection's id can never collide with a stored schedule.
const projectionIDBase = 1_000_000

// DeriveProjectionID produces a stable identifier for one year's projection
// of an anchor, for UI selection and de-duplication.
func DeriveProjectionID(anchorID uint, year int) uint {
	return anchorID*projectionIDBase + uint(year)
}

// ProjectAnniversary computes the anniversary of anchor in each requested
// year, at local midnight, keeping only dates on or after the start of now's
// day. Years where the anchor's lunar date does not exist (leap-month
// mismatch) are skipped rather than failing the whole projection. The result
// is sorted ascending by time.
func ProjectAnniversary(conv LunarConverter, anchor time.Time, isLunar bool, years []int, now time.Time) ([]Projection, error) {
	loc := now.Location()
	a := anchor.In(loc)

	var (
		month, day int
		lunarDay   int
		lunarMonth int
		leap       bool
	)
	if isLunar {
		var err error
		_, lunarMonth, lunarDay, leap, err = conv.SolarToLunar(a.Year(), int(a.Month()), a.Day())
		if err != nil {
			return nil, fmt.Errorf("project anniversary: anchor %s: %w", a.Format("2006-01-02"), err)
		}
	} else {
		month, day = int(a.Month()), a.Day()
	}

	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	out := make([]Projection, 0, len(years))
	for _, year := range years {
		var y, m, d int
		if isLunar {
			var err error
			y, m, d, err = conv.LunarToSolar(year, lunarMonth, lunarDay, leap)
			if err != nil {
				if errors.Is(err, lunar.ErrInvalidDate) {
					continue // this year has no such lunar day
				}
				return nil, fmt.Errorf("project anniversary: year %d: %w", year, err)
			}
		} else {
			y, m, d = year, month, day
		}

		ts := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
		if ts.Before(startOfToday) {
			continue
		}
		out = append(out, Projection{Year: year, Time: ts})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
