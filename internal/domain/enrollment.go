package domain

import "time"

// Enrollment - единственный источник правды для обеих сторон записи:
// курсы юзера и студенты курса читаются из одной таблицы.
type Enrollment struct {
	UserID     string `gorm:"primaryKey;size:64"`
	CourseID   string `gorm:"primaryKey;size:64;index"`
	PurchaseID string `gorm:"size:36"`
	CreatedAt  time.Time
}
