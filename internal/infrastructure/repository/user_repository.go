package repository

import (
	"context"
	"errors"

	"github.com/waste3d/coursemarket-api/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert создает юзера или обновляет профиль. Повторный user.created не падает.
// Удаленный юзер не восстанавливается: запоздавшее событие дает ErrUserDeleted.
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.User
		err := tx.Unscoped().Select("id", "deleted_at").First(&existing, "id = ?", user.ID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil && existing.DeletedAt.Valid {
			return domain.ErrUserDeleted
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "name", "image_url", "updated_at"}),
			// удаление между проверкой и вставкой тоже не откатываем
			Where: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "users.deleted_at IS NULL"}}},
		}).Create(user).Error
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Delete - мягкое удаление, покупки продолжают ссылаться на юзера.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.User{}, "id = ?", id).Error
}
