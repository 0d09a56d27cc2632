package repository

import (
	"fmt"

	"github.com/waste3d/coursemarket-api/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open подключается к postgres (прод) или sqlite (локально и в тестах).
func Open(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	case "sqlite":
		return OpenSQLite(dsn)
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite: один писатель, а ":memory:" - отдельная база на каждое соединение
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Одна Pending покупка на пару (user, course). Частичные индексы есть и в postgres, и в sqlite.
const onePendingIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_purchase_one_pending
	ON purchases (user_id, course_id) WHERE status = 'Pending'`

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Course{},
		&domain.Purchase{},
		&domain.Enrollment{},
		&domain.CompletedLecture{},
		&domain.WebhookEvent{},
		&domain.OutboxMessage{},
	)
	if err != nil {
		return err
	}
	return db.Exec(onePendingIndex).Error
}
