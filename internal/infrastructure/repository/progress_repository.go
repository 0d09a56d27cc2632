package repository

import (
	"context"

	"github.com/waste3d/coursemarket-api/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// MarkComplete добавляет лекцию в пройденные. Дубликат - не ошибка, created=false.
func (r *ProgressRepository) MarkComplete(ctx context.Context, userID, courseID, lectureID string) (created bool, err error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.CompletedLecture{
		UserID:    userID,
		CourseID:  courseID,
		LectureID: lectureID,
	})
	return res.RowsAffected == 1, res.Error
}

// Get никогда не возвращает nil-список: нет записей - пустой прогресс.
func (r *ProgressRepository) Get(ctx context.Context, userID, courseID string) (*domain.CourseProgress, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&domain.CompletedLecture{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("created_at asc, lecture_id asc").
		Pluck("lecture_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return &domain.CourseProgress{UserID: userID, CourseID: courseID, CompletedLectures: ids}, nil
}

// ListForUser - прогресс по всем курсам юзера, ключ - id курса.
func (r *ProgressRepository) ListForUser(ctx context.Context, userID string) (map[string][]string, error) {
	var rows []domain.CompletedLecture
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc, lecture_id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, row := range rows {
		out[row.CourseID] = append(out[row.CourseID], row.LectureID)
	}
	return out, nil
}
