package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"timetrace/internal/model"
)

// RoutineRepository handles CRUD for routines and owns the cascade to their
// generated schedule rows.
type RoutineRepository struct {
	db   *gorm.DB
	feed *ChangeFeed
}

func NewRoutineRepository(db *gorm.DB, feed *ChangeFeed) *RoutineRepository {
	return &RoutineRepository{db: db, feed: feed}
}

func (r *RoutineRepository) ListAll(ctx context.Context) ([]model.Routine, error) {
	var routines []model.Routine
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&routines).Error; err != nil {
		return nil, err
	}
	return routines, nil
}

func (r *RoutineRepository) GetByID(ctx context.Context, id uint) (*model.Routine, error) {
	var routine model.Routine
	if err := r.db.WithContext(ctx).First(&routine, id).Error; err != nil {
		return nil, err
	}
	return &routine, nil
}

// CreateWithOccurrences inserts a routine and its materialized occurrence
// batch as one transaction. The occurrences get the assigned routine id
// before insertion; on any failure nothing is left behind.
func (r *RoutineRepository) CreateWithOccurrences(ctx context.Context, routine *model.Routine, occurrences []model.Schedule) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(routine).Error; err != nil {
			return fmt.Errorf("create routine: %w", err)
		}
		for i := range occurrences {
			occurrences[i].RoutineID = &routine.ID
			occurrences[i].IsFromRoutine = true
		}
		if len(occurrences) > 0 {
			if err := tx.Create(&occurrences).Error; err != nil {
				return fmt.Errorf("create occurrences: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.feed.Publish()
	return nil
}

// Delete removes a routine and all schedule rows generated from it.
func (r *RoutineRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("routine_id = ?", id).Delete(&model.Schedule{}).Error; err != nil {
			return fmt.Errorf("delete routine occurrences: %w", err)
		}
		if err := tx.Delete(&model.Routine{}, id).Error; err != nil {
			return fmt.Errorf("delete routine: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.feed.Publish()
	return nil
}
