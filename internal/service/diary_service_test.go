package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"timetrace/internal/repository"
)

func newDiaryService(t *testing.T) *DiaryService {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	repo := repository.NewDiaryRepository(db, repository.NewChangeFeed())
	return NewDiaryService(repo)
}

func TestDiarySaveAndGet(t *testing.T) {
	svc := newDiaryService(t)
	ctx := context.Background()
	day := time.Date(2026, 4, 10, 14, 30, 0, 0, time.Local)

	if _, err := svc.Save(ctx, day, "   ", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("blank content err = %v, want ErrValidation", err)
	}

	if _, err := svc.Save(ctx, day, "Long day.", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Any instant of the same day resolves to the same entry.
	got, err := svc.Get(ctx, time.Date(2026, 4, 10, 8, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Content != "Long day." {
		t.Fatalf("got %+v, want the saved entry", got)
	}

	// Saving again replaces, never duplicates.
	if _, err := svc.Save(ctx, day, "Better evening.", []string{"walk.jpg"}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err = svc.Get(ctx, day)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "Better evening." {
		t.Errorf("content = %q after upsert", got.Content)
	}
	if len(got.ImagePaths) != 1 || got.ImagePaths[0] != "walk.jpg" {
		t.Errorf("image paths = %v", got.ImagePaths)
	}

	// Another day is untouched.
	other, err := svc.Get(ctx, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if other != nil {
		t.Errorf("unexpected entry for the next day: %+v", other)
	}
}

func TestDiaryDelete(t *testing.T) {
	svc := newDiaryService(t)
	ctx := context.Background()
	day := time.Date(2026, 4, 10, 0, 0, 0, 0, time.Local)

	saved, err := svc.Save(ctx, day, "Note.", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := svc.Get(ctx, day)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("entry still present after delete: %+v", got)
	}
}
