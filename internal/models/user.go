package models

import "time"

// User represents a platform account able to buy raffle tickets and poll entries.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name         string `gorm:"type:text;not null"`             // Display name.
	Phone        string `gorm:"type:text;not null;uniqueIndex"` // Contact phone, login identifier.
	PasswordHash string `gorm:"type:text;not null"`             // bcrypt password hash.
	PixKey       string `gorm:"type:text"`                      // PIX key used for prize payouts.

	ReferredBy string `gorm:"type:text;index"` // Affiliate code captured at signup, immutable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
