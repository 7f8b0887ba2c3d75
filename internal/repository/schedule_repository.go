package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"timetrace/internal/model"
)

// ScheduleRepository handles CRUD for schedules.
type ScheduleRepository struct {
	db   *gorm.DB
	feed *ChangeFeed
}

func NewScheduleRepository(db *gorm.DB, feed *ChangeFeed) *ScheduleRepository {
	return &ScheduleRepository{db: db, feed: feed}
}

// ListAll returns the full snapshot, oldest timestamp first.
func (r *ScheduleRepository) ListAll(ctx context.Context) ([]model.Schedule, error) {
	var schedules []model.Schedule
	if err := r.db.WithContext(ctx).Order("timestamp ASC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// ListBirthdays returns all birthday anchors.
func (r *ScheduleRepository) ListBirthdays(ctx context.Context) ([]model.Schedule, error) {
	var schedules []model.Schedule
	if err := r.db.WithContext(ctx).Where("is_birthday = ?", true).
		Order("timestamp ASC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id uint) (*model.Schedule, error) {
	var schedule model.Schedule
	if err := r.db.WithContext(ctx).First(&schedule, id).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *ScheduleRepository) Insert(ctx context.Context, schedule *model.Schedule) error {
	if err := r.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	r.feed.Publish()
	return nil
}

// InsertBatch inserts a set of schedules in one transaction.
func (r *ScheduleRepository) InsertBatch(ctx context.Context, schedules []model.Schedule) error {
	if len(schedules) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&schedules).Error; err != nil {
		return fmt.Errorf("insert schedules: %w", err)
	}
	r.feed.Publish()
	return nil
}

func (r *ScheduleRepository) Update(ctx context.Context, schedule *model.Schedule) error {
	if err := r.db.WithContext(ctx).Save(schedule).Error; err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	r.feed.Publish()
	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Schedule{}, id).Error; err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	r.feed.Publish()
	return nil
}

// ResetRoutineCompletion clears the completed flag on every routine-generated
// row. Running it twice in a period is a no-op the second time.
func (r *ScheduleRepository) ResetRoutineCompletion(ctx context.Context) error {
	res := r.db.WithContext(ctx).Model(&model.Schedule{}).
		Where("is_from_routine = ?", true).
		Update("is_completed", false)
	if res.Error != nil {
		return fmt.Errorf("reset routine completion: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		r.feed.Publish()
	}
	return nil
}

// DeleteRoutineOccurrencesFrom removes a routine's generated rows with a
// timestamp at or after the given instant. Used to guard re-materialization
// against duplicating an already-covered horizon.
func (r *ScheduleRepository) DeleteRoutineOccurrencesFrom(ctx context.Context, routineID uint, from time.Time) error {
	if err := r.db.WithContext(ctx).
		Where("routine_id = ? AND is_from_routine = ? AND timestamp >= ?", routineID, true, from).
		Delete(&model.Schedule{}).Error; err != nil {
		return fmt.Errorf("delete routine occurrences: %w", err)
	}
	r.feed.Publish()
	return nil
}
