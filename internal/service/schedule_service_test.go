package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"timetrace/internal/lunar"
	"timetrace/internal/recur"
	"timetrace/internal/repository"
)

func newTestEnv(t *testing.T) (*ScheduleService, *RoutineService, *repository.ChangeFeed) {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	feed := repository.NewChangeFeed()
	scheduleRepo := repository.NewScheduleRepository(db, feed)
	routineRepo := repository.NewRoutineRepository(db, feed)
	scheduleSvc := NewScheduleService(scheduleRepo, lunar.Converter{}, 1, 10*time.Millisecond)
	routineSvc := NewRoutineService(routineRepo, scheduleRepo, 30)
	return scheduleSvc, routineSvc, feed
}

func TestAddScheduleValidation(t *testing.T) {
	svc, _, _ := newTestEnv(t)
	ctx := context.Background()

	if _, err := svc.AddSchedule(ctx, ScheduleInput{Title: "   "}); !errors.Is(err, ErrValidation) {
		t.Errorf("blank title err = %v, want ErrValidation", err)
	}

	sc, err := svc.AddSchedule(ctx, ScheduleInput{Title: "Dentist", Timestamp: time.Now().AddDate(0, 0, 3)})
	if err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if sc.ID == 0 {
		t.Error("expected a persisted id")
	}
	if sc.Priority != 1 {
		t.Errorf("default priority = %d, want 1", sc.Priority)
	}
}

func TestUpcomingExcludesPastCompletedAndBirthdays(t *testing.T) {
	svc, _, _ := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := svc.AddSchedule(ctx, ScheduleInput{Title: "Yesterday", Timestamp: now.AddDate(0, 0, -1)}); err != nil {
		t.Fatal(err)
	}
	future, err := svc.AddSchedule(ctx, ScheduleInput{Title: "Tomorrow", Timestamp: now.AddDate(0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	done, err := svc.AddSchedule(ctx, ScheduleInput{Title: "Done later", Timestamp: now.AddDate(0, 0, 2)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ToggleCompletion(ctx, done.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddBirthday(ctx, "Ann", time.Date(1990, 6, 15, 0, 0, 0, 0, time.Local), false); err != nil {
		t.Fatal(err)
	}

	upcoming, err := svc.Upcoming(ctx, now)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != future.ID {
		t.Fatalf("got %d entries, want only %q", len(upcoming), "Tomorrow")
	}
}

func TestByDateGrouping(t *testing.T) {
	svc, _, _ := newTestEnv(t)
	ctx := context.Background()

	day1 := time.Date(2026, 4, 10, 0, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 4, 11, 0, 0, 0, 0, time.Local)
	for _, in := range []ScheduleInput{
		{Title: "Lunch", Timestamp: day1.Add(12 * time.Hour)},
		{Title: "Gym", Timestamp: day1.Add(18 * time.Hour)},
		{Title: "Flight", Timestamp: day2.Add(9 * time.Hour)},
	} {
		if _, err := svc.AddSchedule(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	groups, err := svc.ByDate(ctx)
	if err != nil {
		t.Fatalf("ByDate: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if !groups[0].Date.Equal(day1) || len(groups[0].Schedules) != 2 {
		t.Errorf("group 0 = %s with %d entries, want %s with 2", groups[0].Date, len(groups[0].Schedules), day1)
	}
	if !groups[1].Date.Equal(day2) || len(groups[1].Schedules) != 1 {
		t.Errorf("group 1 = %s with %d entries, want %s with 1", groups[1].Date, len(groups[1].Schedules), day2)
	}
	if groups[0].Schedules[0].Title != "Lunch" || groups[0].Schedules[1].Title != "Gym" {
		t.Errorf("group 0 order = %q, %q", groups[0].Schedules[0].Title, groups[0].Schedules[1].Title)
	}
}

func TestCompletedComplement(t *testing.T) {
	svc, _, _ := newTestEnv(t)
	ctx := context.Background()

	a, err := svc.AddSchedule(ctx, ScheduleInput{Title: "A", Timestamp: time.Now().AddDate(0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddSchedule(ctx, ScheduleInput{Title: "B", Timestamp: time.Now().AddDate(0, 0, 2)}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ToggleCompletion(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	done, err := svc.Completed(ctx)
	if err != nil {
		t.Fatalf("Completed: %v", err)
	}
	if len(done) != 1 || done[0].ID != a.ID {
		t.Fatalf("completed = %+v, want only A", done)
	}

	// Toggling back moves it out again.
	if _, err := svc.ToggleCompletion(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	done, err = svc.Completed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 0 {
		t.Fatalf("completed after reopen = %+v, want empty", done)
	}
}

func TestBirthdaysUpcomingSolar(t *testing.T) {
	svc, _, _ := newTestEnv(t)
	ctx := context.Background()

	anchor, err := svc.AddBirthday(ctx, "Ann", time.Date(1990, 6, 15, 0, 0, 0, 0, time.Local), false)
	if err != nil {
		t.Fatal(err)
	}

	// Viewed in March: this year's and next year's projection (yearsAhead=1).
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	occ, err := svc.BirthdaysUpcoming(ctx, now)
	if err != nil {
		t.Fatalf("BirthdaysUpcoming: %v", err)
	}
	if len(occ) != 2 {
		t.Fatalf("got %d occurrences, want 2", len(occ))
	}
	want := time.Date(2026, 6, 15, 0, 0, 0, 0, time.Local)
	if !occ[0].Time.Equal(want) {
		t.Errorf("first occurrence = %s, want %s", occ[0].Time, want)
	}
	if occ[0].Anchor.ID != anchor.ID {
		t.Errorf("anchor id = %d, want %d", occ[0].Anchor.ID, anchor.ID)
	}
	if occ[0].DerivedID() == anchor.ID {
		t.Error("derived id must not collide with the anchor row id")
	}

	// Viewed in August: this year's date has passed.
	now = time.Date(2026, 8, 1, 10, 0, 0, 0, time.Local)
	occ, err = svc.BirthdaysUpcoming(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 1 || occ[0].Year != 2027 {
		t.Fatalf("after the date passed got %+v, want only 2027", occ)
	}
}

func TestBirthdayLunarValidatedUpFront(t *testing.T) {
	svc, _, _ := newTestEnv(t)
	ctx := context.Background()

	// A date outside the conversion tables must be rejected at creation.
	if _, err := svc.AddBirthday(ctx, "Old", time.Date(1850, 1, 1, 0, 0, 0, 0, time.Local), true); !errors.Is(err, lunar.ErrInvalidDate) {
		t.Errorf("err = %v, want lunar.ErrInvalidDate", err)
	}

	// A valid lunar anchor projects within the current year or the next.
	if _, err := svc.AddBirthday(ctx, "Li", time.Date(1995, 3, 1, 0, 0, 0, 0, time.Local), true); err != nil {
		t.Fatalf("AddBirthday lunar: %v", err)
	}
	occ, err := svc.BirthdaysUpcoming(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) == 0 {
		t.Fatal("expected at least one lunar projection")
	}
	for _, o := range occ {
		if o.Time.Hour() != 0 || o.Time.Minute() != 0 {
			t.Errorf("projection not at midnight: %s", o.Time)
		}
	}
}

func TestMutationsRejectDerivedIDs(t *testing.T) {
	svc, _, _ := newTestEnv(t)
	ctx := context.Background()

	anchor, err := svc.AddBirthday(ctx, "Ann", time.Date(1990, 6, 15, 0, 0, 0, 0, time.Local), false)
	if err != nil {
		t.Fatal(err)
	}
	derived := recur.DeriveProjectionID(anchor.ID, time.Now().Year())

	if _, err := svc.ToggleCompletion(ctx, derived); !errors.Is(err, ErrNotFound) {
		t.Errorf("ToggleCompletion(derived) err = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, derived); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(derived) err = %v, want ErrNotFound", err)
	}

	// The anchor itself remains mutable.
	if err := svc.Delete(ctx, anchor.ID); err != nil {
		t.Errorf("Delete(anchor) = %v", err)
	}
}

func TestDebounceCollapsesBursts(t *testing.T) {
	svc, _, feed := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int32
	svc.OnRefresh(func() { fired.Add(1) })
	go svc.Run(ctx, feed)
	time.Sleep(20 * time.Millisecond) // let the subscriber attach

	for i := 0; i < 5; i++ {
		if _, err := svc.AddSchedule(ctx, ScheduleInput{Title: "Burst", Timestamp: time.Now().AddDate(0, 0, 1)}); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("refresh fired %d times for a burst, want 1", got)
	}

	// A later lone mutation fires again.
	if _, err := svc.AddSchedule(ctx, ScheduleInput{Title: "Later", Timestamp: time.Now().AddDate(0, 0, 2)}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 2 {
		t.Errorf("refresh fired %d times in total, want 2", got)
	}
}
