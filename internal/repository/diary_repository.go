package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"timetrace/internal/model"
)

// DiaryRepository handles CRUD for date-keyed diary entries.
type DiaryRepository struct {
	db   *gorm.DB
	feed *ChangeFeed
}

func NewDiaryRepository(db *gorm.DB, feed *ChangeFeed) *DiaryRepository {
	return &DiaryRepository{db: db, feed: feed}
}

// GetByDate returns the entry for the given day (keyed by local midnight),
// or nil when none exists.
func (r *DiaryRepository) GetByDate(ctx context.Context, date time.Time) (*model.Diary, error) {
	var diary model.Diary
	err := r.db.WithContext(ctx).Where("date = ?", dayKey(date)).First(&diary).Error
	switch {
	case err == nil:
		return &diary, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find diary: %w", err)
	}
}

// Upsert creates or replaces the entry for the diary's day.
func (r *DiaryRepository) Upsert(ctx context.Context, diary *model.Diary) error {
	diary.Date = dayKey(diary.Date)

	var existing model.Diary
	db := r.db.WithContext(ctx)
	err := db.Where("date = ?", diary.Date).First(&existing).Error
	switch {
	case err == nil:
		diary.ID = existing.ID
		if err := db.Save(diary).Error; err != nil {
			return fmt.Errorf("update diary: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(diary).Error; err != nil {
			return fmt.Errorf("create diary: %w", err)
		}
	default:
		return fmt.Errorf("find diary: %w", err)
	}
	r.feed.Publish()
	return nil
}

func (r *DiaryRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Diary{}, id).Error; err != nil {
		return fmt.Errorf("delete diary: %w", err)
	}
	r.feed.Publish()
	return nil
}

func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
