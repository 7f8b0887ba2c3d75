package lunar

import (
	"errors"
	"fmt"
	"time"

	"github.com/6tail/lunar-go/calendar"
)

// ErrInvalidDate marks inputs outside the supported range or dates that do
// not exist (e.g. day 30 of a 29-day lunar month, or a leap month the target
// year does not have).
var ErrInvalidDate = errors.New("invalid date")

// Supported conversion range.
const (
	MinYear = 1900
	MaxYear = 2100
)

// SolarToLunar converts a Gregorian date to its lunisolar equivalent.
// leap reports whether the date falls in a leap month.
func SolarToLunar(year, month, day int) (lunarYear, lunarMonth, lunarDay int, leap bool, err error) {
	if err = checkSolar(year, month, day); err != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: solar %04d-%02d-%02d: %v", ErrInvalidDate, year, month, day, r)
		}
	}()

	l := calendar.NewSolarFromYmd(year, month, day).GetLunar()
	lunarYear = l.GetYear()
	lunarMonth = l.GetMonth() // negative for leap months
	lunarDay = l.GetDay()
	if lunarMonth < 0 {
		leap = true
		lunarMonth = -lunarMonth
	}
	return
}

// LunarToSolar converts a lunisolar date to Gregorian. A (month, day) pair
// with leap=false always resolves to the first, non-leap occurrence of that
// month.
func LunarToSolar(lunarYear, lunarMonth, lunarDay int, leap bool) (year, month, day int, err error) {
	if lunarYear < MinYear || lunarYear > MaxYear {
		err = fmt.Errorf("%w: lunar year %d out of range %d..%d", ErrInvalidDate, lunarYear, MinYear, MaxYear)
		return
	}
	if lunarMonth < 1 || lunarMonth > 12 || lunarDay < 1 || lunarDay > 30 {
		err = fmt.Errorf("%w: lunar month %d day %d", ErrInvalidDate, lunarMonth, lunarDay)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: lunar %04d-%02d-%02d leap=%t: %v", ErrInvalidDate, lunarYear, lunarMonth, lunarDay, leap, r)
		}
	}()

	m := lunarMonth
	if leap {
		m = -m
	}
	lm := calendar.NewLunarYear(lunarYear).GetMonth(m)
	if lm == nil {
		// The year has no such (leap) month.
		err = fmt.Errorf("%w: lunar year %d has no month %d (leap=%t)", ErrInvalidDate, lunarYear, lunarMonth, leap)
		return
	}
	if lunarDay > lm.GetDayCount() {
		err = fmt.Errorf("%w: lunar %d-%02d has only %d days, got day %d", ErrInvalidDate, lunarYear, lunarMonth, lm.GetDayCount(), lunarDay)
		return
	}

	s := calendar.NewLunarFromYmd(lunarYear, m, lunarDay).GetSolar()
	year = s.GetYear()
	month = s.GetMonth()
	day = s.GetDay()
	return
}

func checkSolar(year, month, day int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("%w: solar year %d out of range %d..%d", ErrInvalidDate, year, MinYear, MaxYear)
	}
	// time.Date normalizes overflow, so a changed day means the input did not exist.
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != time.Month(month) || d.Day() != day {
		return fmt.Errorf("%w: solar %04d-%02d-%02d does not exist", ErrInvalidDate, year, month, day)
	}
	return nil
}

// Converter adapts the package functions to the recur.LunarConverter
// interface so the projector can be exercised with a fake in tests.
type Converter struct{}

func (Converter) SolarToLunar(year, month, day int) (int, int, int, bool, error) {
	return SolarToLunar(year, month, day)
}

func (Converter) LunarToSolar(lunarYear, lunarMonth, lunarDay int, leap bool) (int, int, int, error) {
	return LunarToSolar(lunarYear, lunarMonth, lunarDay, leap)
}
