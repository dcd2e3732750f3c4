package models

import "time"

type Enrollment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_enrollments_student_course" json:"student_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_enrollments_student_course" json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Student   User      `gorm:"foreignKey:StudentID" json:"-"`
	Course    Course    `gorm:"foreignKey:CourseID" json:"-"`
}
