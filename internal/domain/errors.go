package domain

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок. Конкретные ошибки оборачивают их через %w,
// транспорт сопоставляет статус через errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrAuthentication    = errors.New("authentication failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUpstream          = errors.New("payment provider unavailable")
)

var (
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrCourseNotFound   = fmt.Errorf("course %w", ErrNotFound)
	ErrPurchaseNotFound = fmt.Errorf("purchase %w", ErrNotFound)

	ErrCourseIDRequired   = fmt.Errorf("%w: courseId is required", ErrValidation)
	ErrLectureIDRequired  = fmt.Errorf("%w: lectureId is required", ErrValidation)
	ErrCourseNotAvailable = fmt.Errorf("%w: course is not published", ErrValidation)
	ErrAlreadyEnrolled    = fmt.Errorf("%w: already enrolled in this course", ErrValidation)
	ErrNotEnrolled        = fmt.Errorf("%w: not enrolled in this course", ErrValidation)
	ErrInvalidPrice       = fmt.Errorf("%w: price must be >= 0", ErrValidation)
	ErrInvalidDiscount    = fmt.Errorf("%w: discount must be between 0 and 100", ErrValidation)
	ErrUnknownCheckout    = fmt.Errorf("%w: unknown checkout mode", ErrValidation)
	ErrPaymentRejected    = fmt.Errorf("%w: payment provider rejected the request", ErrValidation)

	ErrPendingExists     = fmt.Errorf("%w: another pending purchase exists for this course", ErrInvalidTransition)
	ErrPaymentInProgress = fmt.Errorf("%w: payment for this course is already being processed", ErrInvalidTransition)

	// Юзер удален провайдером идентификации, запоздавшие user.created/updated его не возвращают
	ErrUserDeleted = fmt.Errorf("user deleted: %w", ErrNotFound)
)
