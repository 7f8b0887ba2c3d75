package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"timetrace/internal/model"
	"timetrace/internal/repository"
)

// DiaryService provides helpers around date-keyed diary entries.
type DiaryService struct {
	repo *repository.DiaryRepository
}

func NewDiaryService(repo *repository.DiaryRepository) *DiaryService {
	return &DiaryService{repo: repo}
}

// Get returns the entry for the given day, or nil when none exists.
func (s *DiaryService) Get(ctx context.Context, date time.Time) (*model.Diary, error) {
	return s.repo.GetByDate(ctx, date)
}

// Save creates or replaces the entry for the given day.
func (s *DiaryService) Save(ctx context.Context, date time.Time, content string, imagePaths []string) (*model.Diary, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: diary content is required", ErrValidation)
	}
	diary := model.Diary{
		Date:       date,
		Content:    content,
		ImagePaths: imagePaths,
	}
	if err := s.repo.Upsert(ctx, &diary); err != nil {
		return nil, err
	}
	return &diary, nil
}

func (s *DiaryService) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}
