package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"timetrace/internal/model"
	"timetrace/internal/recur"
	"timetrace/internal/repository"
)

// RoutineInput represents data required to create a routine.
type RoutineInput struct {
	Title    string
	Weekdays []int // Monday=1 .. Sunday=7
	Hour     int
	Minute   int
}

// RoutineService owns the routine lifecycle: creation with synchronous
// occurrence materialization, cascading deletion, horizon regeneration and
// the periodic completion reset.
type RoutineService struct {
	routines    *repository.RoutineRepository
	schedules   *repository.ScheduleRepository
	horizonDays int
}

func NewRoutineService(routines *repository.RoutineRepository, schedules *repository.ScheduleRepository, horizonDays int) *RoutineService {
	if horizonDays <= 0 {
		horizonDays = recur.DefaultHorizonDays
	}
	return &RoutineService{routines: routines, schedules: schedules, horizonDays: horizonDays}
}

// AddRoutine validates the rule, then persists the routine together with its
// materialized occurrences for the horizon starting at now's date. Both
// succeed or neither does.
func (s *RoutineService) AddRoutine(ctx context.Context, input RoutineInput, now time.Time) (*model.Routine, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(input.Weekdays) == 0 {
		return nil, fmt.Errorf("%w: at least one weekday is required", ErrValidation)
	}
	for _, wd := range input.Weekdays {
		if wd < 1 || wd > 7 {
			return nil, fmt.Errorf("%w: weekday %d out of range 1..7", ErrValidation, wd)
		}
	}
	if input.Hour < 0 || input.Hour > 23 {
		return nil, fmt.Errorf("%w: hour %d out of range 0..23", ErrValidation, input.Hour)
	}
	if input.Minute < 0 || input.Minute > 59 {
		return nil, fmt.Errorf("%w: minute %d out of range 0..59", ErrValidation, input.Minute)
	}

	routine := model.Routine{
		Title:    title,
		Weekdays: normalizeWeekdays(input.Weekdays),
		Hour:     input.Hour,
		Minute:   input.Minute,
	}

	times, err := recur.Expand(routine, now, s.horizonDays)
	if err != nil {
		return nil, err
	}
	occurrences := make([]model.Schedule, 0, len(times))
	for _, t := range times {
		occurrences = append(occurrences, model.Schedule{
			Title:     routine.Title,
			Timestamp: t,
			Priority:  1,
		})
	}

	if err := s.routines.CreateWithOccurrences(ctx, &routine, occurrences); err != nil {
		return nil, err
	}
	return &routine, nil
}

func (s *RoutineService) List(ctx context.Context) ([]model.Routine, error) {
	return s.routines.ListAll(ctx)
}

// DeleteRoutine removes the routine and every schedule row generated from it.
func (s *RoutineService) DeleteRoutine(ctx context.Context, id uint) error {
	if _, err := s.routines.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: routine %d", ErrNotFound, id)
		}
		return err
	}
	return s.routines.Delete(ctx, id)
}

// Regenerate rebuilds a routine's occurrences for a fresh horizon starting at
// now's date. Rows from today onward are cleared first so a range that is
// already materialized never gets duplicated; past occurrences keep their
// completion history.
func (s *RoutineService) Regenerate(ctx context.Context, id uint, now time.Time) error {
	routine, err := s.routines.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: routine %d", ErrNotFound, id)
		}
		return err
	}

	times, err := recur.Expand(*routine, now, s.horizonDays)
	if err != nil {
		return err
	}

	today := startOfDay(now)
	if err := s.schedules.DeleteRoutineOccurrencesFrom(ctx, routine.ID, today); err != nil {
		return err
	}

	occurrences := make([]model.Schedule, 0, len(times))
	for _, t := range times {
		occurrences = append(occurrences, model.Schedule{
			Title:         routine.Title,
			Timestamp:     t,
			Priority:      1,
			IsFromRoutine: true,
			RoutineID:     &routine.ID,
		})
	}
	return s.schedules.InsertBatch(ctx, occurrences)
}

// ResetCompletion clears the completed flag on all routine-generated rows.
// The periodic trigger calls this on its daily cadence; running it twice in
// a period changes nothing the second time.
func (s *RoutineService) ResetCompletion(ctx context.Context) error {
	return s.schedules.ResetRoutineCompletion(ctx)
}

func normalizeWeekdays(weekdays []int) model.Weekdays {
	seen := make(map[int]bool, len(weekdays))
	out := make(model.Weekdays, 0, len(weekdays))
	for _, wd := range weekdays {
		if !seen[wd] {
			seen[wd] = true
			out = append(out, wd)
		}
	}
	sort.Ints(out)
	return out
}
