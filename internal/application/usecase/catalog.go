package usecase

import (
	"context"

	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
	"github.com/waste3d/coursemarket-api/internal/pricing"

	"github.com/shopspring/decimal"
)

// CourseView - курс на витрине. FinalPrice считается той же функцией, что и сумма покупки.
type CourseView struct {
	Course        domain.Course
	FinalPrice    decimal.Decimal
	Currency      string
	EnrolledCount int
}

type EnrolledCourse struct {
	CourseView
	CompletedLectures []string
}

type UserData struct {
	User            domain.User
	EnrolledCourses []string
}

type CatalogUseCase struct {
	users       *repository.UserRepository
	courses     *repository.CourseRepository
	enrollments *repository.EnrollmentRepository
	progress    *repository.ProgressRepository
	currency    string
}

func NewCatalogUseCase(
	ur *repository.UserRepository,
	cr *repository.CourseRepository,
	er *repository.EnrollmentRepository,
	pr *repository.ProgressRepository,
	currency string,
) *CatalogUseCase {
	return &CatalogUseCase{users: ur, courses: cr, enrollments: er, progress: pr, currency: currency}
}

func (uc *CatalogUseCase) view(c domain.Course) (CourseView, error) {
	price, err := pricing.Charge(c.Price, c.Discount, uc.currency)
	if err != nil {
		return CourseView{}, err
	}
	return CourseView{Course: c, FinalPrice: price, Currency: uc.currency}, nil
}

func (uc *CatalogUseCase) ListCourses(ctx context.Context) ([]CourseView, error) {
	courses, err := uc.courses.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]CourseView, 0, len(courses))
	for _, c := range courses {
		v, err := uc.view(c)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// GetCourse: неопубликованный курс для витрины не существует.
func (uc *CatalogUseCase) GetCourse(ctx context.Context, id string) (*CourseView, error) {
	c, err := uc.courses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsPublished {
		return nil, domain.ErrCourseNotFound
	}
	v, err := uc.view(*c)
	if err != nil {
		return nil, err
	}
	students, err := uc.enrollments.EnrolledUserIDs(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	v.EnrolledCount = len(students)
	return &v, nil
}

func (uc *CatalogUseCase) UserData(ctx context.Context, userID string) (*UserData, error) {
	u, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids, err := uc.enrollments.EnrolledCourseIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserData{User: *u, EnrolledCourses: ids}, nil
}

// EnrolledCourses - курсы юзера вместе с пройденными лекциями.
func (uc *CatalogUseCase) EnrolledCourses(ctx context.Context, userID string) ([]EnrolledCourse, error) {
	ids, err := uc.enrollments.EnrolledCourseIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	courses, err := uc.courses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	progress, err := uc.progress.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	out := make([]EnrolledCourse, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		v, err := uc.view(c)
		if err != nil {
			return nil, err
		}
		lectures := progress[id]
		if lectures == nil {
			lectures = []string{}
		}
		out = append(out, EnrolledCourse{CourseView: v, CompletedLectures: lectures})
	}
	return out, nil
}

// IsEnrolled нужен внутреннему gRPC API.
func (uc *CatalogUseCase) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	if courseID == "" {
		return false, domain.ErrCourseIDRequired
	}
	return uc.enrollments.IsEnrolled(ctx, userID, courseID)
}
