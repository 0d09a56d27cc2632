package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/pricing"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnrollmentRepository - журнал записей на курсы. Список курсов юзера и список студентов
// курса читаются из одной таблицы, поэтому половинчатой записи не бывает.
type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	return isEnrolled(r.db.WithContext(ctx), userID, courseID)
}

func isEnrolled(db *gorm.DB, userID, courseID string) (bool, error) {
	var count int64
	err := db.Model(&domain.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

// Enroll идемпотентен: повторный вызов возвращает created=false.
func (r *EnrollmentRepository) Enroll(ctx context.Context, userID, courseID, purchaseID string) (created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err = enroll(tx, userID, courseID, purchaseID)
		return err
	})
	return created, err
}

func enroll(tx *gorm.DB, userID, courseID, purchaseID string) (bool, error) {
	enrolled, err := isEnrolled(tx, userID, courseID)
	if err != nil || enrolled {
		return false, err
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		PurchaseID: purchaseID,
	})
	return res.RowsAffected == 1, res.Error
}

// CompletePurchase переводит покупку Pending -> Completed, записывает на курс и кладет
// событие в outbox одной транзакцией. CompletionNoop значит, что покупка уже не Pending
// (проиграли гонку или повторная доставка). CompletionDuplicate: покупка оплачена, но юзер
// уже записан по другой покупке, событие в outbox не кладем.
func (r *EnrollmentRepository) CompletePurchase(ctx context.Context, purchaseID string) (result domain.Completion, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Purchase{}).
			Where("id = ? AND status = ?", purchaseID, domain.PurchasePending).
			Update("status", domain.PurchaseCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		p, err := getPurchase(tx, purchaseID)
		if err != nil {
			return err
		}
		created, err := enroll(tx, p.UserID, p.CourseID, p.ID)
		if err != nil {
			return err
		}
		if !created {
			result = domain.CompletionDuplicate
			return nil
		}
		result = domain.CompletionEnrolled

		payload, err := json.Marshal(domain.EnrollmentCompleted{
			PurchaseID: p.ID,
			UserID:     p.UserID,
			CourseID:   p.CourseID,
			Amount:     pricing.Format(p.Amount, p.Currency),
			Currency:   p.Currency,
			EnrolledAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return enqueue(tx, &domain.OutboxMessage{
			EventID: uuid.NewString(),
			Topic:   domain.TopicEnrollmentCompleted,
			Key:     p.UserID,
			Payload: payload,
		})
	})
	if err != nil {
		return domain.CompletionNoop, err
	}
	return result, nil
}

func (r *EnrollmentRepository) EnrolledCourseIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&domain.Enrollment{}).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Pluck("course_id", &ids).Error
	return ids, err
}

func (r *EnrollmentRepository) EnrolledUserIDs(ctx context.Context, courseID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&domain.Enrollment{}).
		Where("course_id = ?", courseID).
		Order("created_at asc").
		Pluck("user_id", &ids).Error
	return ids, err
}
