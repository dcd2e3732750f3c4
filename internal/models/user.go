package models

import "time"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// User is a registered account. Password holds the bcrypt hash, never plaintext.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"not null;size:100" json:"username"`
	Email     string    `gorm:"not null;size:255;uniqueIndex:idx_users_email" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"size:20;not null;default:'student'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ValidRole(role string) bool {
	return role == RoleStudent || role == RoleTeacher
}
