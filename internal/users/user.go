package users

import (
	"strings"
	"time"
)

// User is a registered account with optional body profile fields. Height
// and weight are stored normalized (cm and kg) alongside the unit the
// user prefers to see them in.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;size:120;not null" json:"-"`
	FirstName    string    `gorm:"column:first_name;size:120" json:"firstName"`
	LastName     string    `gorm:"column:last_name;size:120" json:"lastName"`
	HeightCm     *float64  `gorm:"column:height_cm" json:"heightCm"`
	HeightUnit   string    `gorm:"column:height_unit;size:16" json:"heightUnit"`
	WeightKg     *float64  `gorm:"column:weight_kg" json:"weightKg"`
	WeightUnit   string    `gorm:"column:weight_unit;size:16" json:"weightUnit"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
