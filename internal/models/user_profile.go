package models

import "time"

// UserProfile stores a user's saved bookmaker account id, used as the
// fallback when a deposit request carries no resolved account.
type UserProfile struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Bookmaker string `gorm:"primaryKey"`
	AccountID string
	UpdatedAt time.Time
}
