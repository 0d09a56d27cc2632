package repository

import (
	"context"
	"errors"

	"github.com/waste3d/coursemarket-api/internal/domain"

	"gorm.io/gorm"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create сохраняет покупку в статусе Pending. Юзер и курс проверяются в той же транзакции.
// На пару (user, course) допускается одна Pending покупка: вторая дает ErrPendingExists,
// в том числе когда параллельную вставку отбил уникальный индекс.
func (r *PurchaseRepository) Create(ctx context.Context, p *domain.Purchase) error {
	p.Status = domain.PurchasePending
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).Where("id = ?", p.UserID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrUserNotFound
		}
		if err := tx.Model(&domain.Course{}).Where("id = ?", p.CourseID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrCourseNotFound
		}
		if err := tx.Model(&domain.Purchase{}).
			Where("user_id = ? AND course_id = ? AND status = ?", p.UserID, p.CourseID, domain.PurchasePending).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrPendingExists
		}
		return tx.Create(p).Error
	})
	if err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPendingExists) {
		return err
	}
	if _, ferr := r.FindPending(ctx, p.UserID, p.CourseID); ferr == nil {
		return domain.ErrPendingExists
	}
	return err
}

func (r *PurchaseRepository) Get(ctx context.Context, id string) (*domain.Purchase, error) {
	return getPurchase(r.db.WithContext(ctx), id)
}

func getPurchase(db *gorm.DB, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SetStatus - единственный способ сменить статус помимо CompletePurchase.
// Обновление условное: строка меняется только пока она Pending.
func (r *PurchaseRepository) SetStatus(ctx context.Context, id string, to domain.PurchaseStatus) error {
	if !domain.PurchasePending.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	res := r.db.WithContext(ctx).Model(&domain.Purchase{}).
		Where("id = ? AND status = ?", id, domain.PurchasePending).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.explainNoop(ctx, id)
	}
	return nil
}

// AttachProviderRef статус не трогает и работает только пока покупка Pending.
func (r *PurchaseRepository) AttachProviderRef(ctx context.Context, id, ref string) error {
	res := r.db.WithContext(ctx).Model(&domain.Purchase{}).
		Where("id = ? AND status = ?", id, domain.PurchasePending).
		Update("provider_ref", ref)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.explainNoop(ctx, id)
	}
	return nil
}

// FindPending возвращает Pending покупку для (user, course) независимо от способа оплаты.
func (r *PurchaseRepository) FindPending(ctx context.Context, userID, courseID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, domain.PurchasePending).
		Order("created_at desc").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, userID string) ([]domain.Purchase, error) {
	var purchases []domain.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&purchases).Error
	return purchases, err
}

// 0 затронутых строк: либо покупки нет, либо она уже в терминальном статусе.
func (r *PurchaseRepository) explainNoop(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrInvalidTransition
}
