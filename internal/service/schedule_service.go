package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"timetrace/internal/model"
	"timetrace/internal/recur"
	"timetrace/internal/repository"
)

// ScheduleInput represents data required to create a one-off schedule.
type ScheduleInput struct {
	Title     string
	Timestamp time.Time
	Priority  int
	Notes     string
}

// DateGroup is one calendar day's slice of the byDate view, in timestamp
// order.
type DateGroup struct {
	Date      time.Time
	Schedules []model.Schedule
}

// BirthdayOccurrence is one year's projection of a birthday anchor. It is a
// transient view value, never a stored row; only its anchor can be mutated.
type BirthdayOccurrence struct {
	Anchor model.Schedule
	Year   int
	Time   time.Time
}

// DerivedID identifies this projection for UI selection. It never matches a
// stored schedule id.
func (o BirthdayOccurrence) DerivedID() uint {
	return recur.DeriveProjectionID(o.Anchor.ID, o.Year)
}

// ScheduleService is the aggregator: its views are pure recomputations over
// the gateway's current snapshot, and it owns the debounced downstream
// refresh.
type ScheduleService struct {
	schedules  *repository.ScheduleRepository
	conv       recur.LunarConverter
	yearsAhead int
	debounce   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	refresh func()
}

func NewScheduleService(schedules *repository.ScheduleRepository, conv recur.LunarConverter, yearsAhead int, debounce time.Duration) *ScheduleService {
	if yearsAhead < 0 {
		yearsAhead = 0
	}
	return &ScheduleService{
		schedules:  schedules,
		conv:       conv,
		yearsAhead: yearsAhead,
		debounce:   debounce,
	}
}

// OnRefresh sets the callback fired (debounced) after snapshot changes.
func (s *ScheduleService) OnRefresh(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = fn
}

// Run consumes the gateway change feed until ctx is cancelled, collapsing
// bursts of mutations into a single refresh.
func (s *ScheduleService) Run(ctx context.Context, feed *repository.ChangeFeed) {
	ch, cancel := feed.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.timer != nil {
				s.timer.Stop()
				s.timer = nil
			}
			s.mu.Unlock()
			return
		case <-ch:
			s.scheduleRefresh()
		}
	}
}

// scheduleRefresh cancels any pending refresh and arms a new one.
func (s *ScheduleService) scheduleRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refresh == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.refresh)
}

// Upcoming returns pending one-off and routine-generated schedules at or
// after now, soonest first. Birthday anchors are excluded; they belong to
// BirthdaysUpcoming.
func (s *ScheduleService) Upcoming(ctx context.Context, now time.Time) ([]model.Schedule, error) {
	all, err := s.schedules.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Schedule
	for _, sc := range all {
		if sc.IsBirthday || sc.IsCompleted || sc.Timestamp.Before(now) {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

// ByDate groups all pending non-birthday schedules by local calendar day,
// chronological in and across groups.
func (s *ScheduleService) ByDate(ctx context.Context) ([]DateGroup, error) {
	all, err := s.schedules.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var groups []DateGroup
	for _, sc := range all {
		if sc.IsBirthday || sc.IsCompleted {
			continue
		}
		day := startOfDay(sc.Timestamp.Local())
		if n := len(groups); n > 0 && groups[n-1].Date.Equal(day) {
			groups[n-1].Schedules = append(groups[n-1].Schedules, sc)
			continue
		}
		groups = append(groups, DateGroup{Date: day, Schedules: []model.Schedule{sc}})
	}
	return groups, nil
}

// Completed returns every completed schedule, across kinds.
func (s *ScheduleService) Completed(ctx context.Context) ([]model.Schedule, error) {
	all, err := s.schedules.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Schedule
	for _, sc := range all {
		if sc.IsCompleted {
			out = append(out, sc)
		}
	}
	return out, nil
}

// BirthdaysUpcoming projects every birthday anchor onto the current and the
// configured following years and merges the projections that have not passed
// yet, soonest first. An anchor whose projection fails is skipped, not fatal.
func (s *ScheduleService) BirthdaysUpcoming(ctx context.Context, now time.Time) ([]BirthdayOccurrence, error) {
	anchors, err := s.schedules.ListBirthdays(ctx)
	if err != nil {
		return nil, err
	}

	years := make([]int, 0, s.yearsAhead+1)
	for y := now.Year(); y <= now.Year()+s.yearsAhead; y++ {
		years = append(years, y)
	}

	var out []BirthdayOccurrence
	for _, anchor := range anchors {
		projections, err := recur.ProjectAnniversary(s.conv, anchor.Timestamp, anchor.IsLunar, years, now)
		if err != nil {
			log.Printf("project birthday %d (%s): %v", anchor.ID, anchor.Title, err)
			continue
		}
		for _, p := range projections {
			out = append(out, BirthdayOccurrence{Anchor: anchor, Year: p.Year, Time: p.Time})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// AddSchedule validates and persists a one-off event.
func (s *ScheduleService) AddSchedule(ctx context.Context, input ScheduleInput) (*model.Schedule, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.Priority == 0 {
		input.Priority = 1
	}

	schedule := model.Schedule{
		Title:     title,
		Timestamp: input.Timestamp,
		Priority:  input.Priority,
		Notes:     input.Notes,
	}
	if err := s.schedules.Insert(ctx, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// AddBirthday persists a birthday anchor. Only the anchor's month and day
// matter; views re-project it onto the year being viewed. For lunar anchors
// the date must convert cleanly up front.
func (s *ScheduleService) AddBirthday(ctx context.Context, name string, anchor time.Time, isLunar bool) (*model.Schedule, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if isLunar {
		a := anchor.Local()
		if _, _, _, _, err := s.conv.SolarToLunar(a.Year(), int(a.Month()), a.Day()); err != nil {
			return nil, err
		}
	}

	schedule := model.Schedule{
		Title:      name,
		Timestamp:  anchor,
		Priority:   1,
		IsLunar:    isLunar,
		IsBirthday: true,
	}
	if err := s.schedules.Insert(ctx, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ToggleCompletion flips the completed flag of a stored schedule. Derived
// projection ids have no row and fail with ErrNotFound.
func (s *ScheduleService) ToggleCompletion(ctx context.Context, id uint) (*model.Schedule, error) {
	schedule, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, id)
	}
	schedule.IsCompleted = !schedule.IsCompleted
	if err := s.schedules.Update(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// Delete removes a stored schedule. Deleting a routine-generated occurrence
// removes only that occurrence, never the routine.
func (s *ScheduleService) Delete(ctx context.Context, id uint) error {
	if _, err := s.schedules.GetByID(ctx, id); err != nil {
		return mapNotFound(err, id)
	}
	return s.schedules.Delete(ctx, id)
}

// Get resolves a stored schedule by id.
func (s *ScheduleService) Get(ctx context.Context, id uint) (*model.Schedule, error) {
	schedule, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, id)
	}
	return schedule, nil
}

func mapNotFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: schedule %d", ErrNotFound, id)
	}
	return err
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
