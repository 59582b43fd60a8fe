package repository

import (
	"errors"

	"cashdesk-watcher/internal/models"

	"gorm.io/gorm"
)

type UserProfileRepository struct {
	db *gorm.DB
}

func NewUserProfileRepository(db *gorm.DB) *UserProfileRepository {
	return &UserProfileRepository{db: db}
}

// AccountID returns the user's saved account id for a bookmaker, or ""
// when no profile exists.
func (r *UserProfileRepository) AccountID(userID int64, bookmaker string) (string, error) {
	var profile models.UserProfile
	err := r.db.First(&profile, "user_id = ? AND bookmaker = ?", userID, bookmaker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return profile.AccountID, nil
}
