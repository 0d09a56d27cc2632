package usecase

import (
	"context"
	"strings"

	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
)

type ProgressUseCase struct {
	progress          *repository.ProgressRepository
	enrollments       *repository.EnrollmentRepository
	requireEnrollment bool
}

func NewProgressUseCase(pr *repository.ProgressRepository, er *repository.EnrollmentRepository, requireEnrollment bool) *ProgressUseCase {
	return &ProgressUseCase{progress: pr, enrollments: er, requireEnrollment: requireEnrollment}
}

// MarkComplete: повторная отметка той же лекции - успех с created=false.
func (uc *ProgressUseCase) MarkComplete(ctx context.Context, userID, courseID, lectureID string) (bool, error) {
	courseID = strings.TrimSpace(courseID)
	lectureID = strings.TrimSpace(lectureID)
	if courseID == "" {
		return false, domain.ErrCourseIDRequired
	}
	if lectureID == "" {
		return false, domain.ErrLectureIDRequired
	}

	if uc.requireEnrollment {
		enrolled, err := uc.enrollments.IsEnrolled(ctx, userID, courseID)
		if err != nil {
			return false, err
		}
		if !enrolled {
			return false, domain.ErrNotEnrolled
		}
	}
	return uc.progress.MarkComplete(ctx, userID, courseID, lectureID)
}

func (uc *ProgressUseCase) GetProgress(ctx context.Context, userID, courseID string) (*domain.CourseProgress, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, domain.ErrCourseIDRequired
	}
	return uc.progress.Get(ctx, userID, courseID)
}
