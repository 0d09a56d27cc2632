package domain

import "time"

// CompletedLecture - одна строка на пройденную лекцию, (user, course) дает CourseProgress.
type CompletedLecture struct {
	UserID    string `gorm:"primaryKey;size:64;index:idx_progress_user_course"`
	CourseID  string `gorm:"primaryKey;size:64;index:idx_progress_user_course"`
	LectureID string `gorm:"primaryKey;size:64"`
	CreatedAt time.Time
}

type CourseProgress struct {
	UserID            string   `json:"userId"`
	CourseID          string   `json:"courseId"`
	CompletedLectures []string `json:"completedLectures"`
}
