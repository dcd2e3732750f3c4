package models

import "time"

type Course struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TeacherID   uint      `gorm:"not null;index" json:"teacher_id"`
	Title       string    `gorm:"not null;size:255;index" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	StartDate   time.Time `gorm:"type:date;not null" json:"start_date"`
	EndDate     time.Time `gorm:"type:date;not null" json:"end_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Teacher     User      `gorm:"foreignKey:TeacherID" json:"-"`
}
