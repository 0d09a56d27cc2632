package repository

import (
	"context"
	"errors"

	"github.com/waste3d/coursemarket-api/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Курсы намеренно не кешируем: цена на витрине и в покупке должна совпадать.
type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) GetByID(ctx context.Context, id string) (*domain.Course, error) {
	var course domain.Course
	err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) ListPublished(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	err := r.db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("created_at desc").
		Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Course, error) {
	courses := []domain.Course{}
	if len(ids) == 0 {
		return courses, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Course{}).Count(&count).Error
	return count, err
}

// Save используется сидером: вставка или перезапись по id.
func (r *CourseRepository) Save(ctx context.Context, course *domain.Course) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(course).Error
}
