package repository

import (
	"errors"

	"cashdesk-watcher/internal/models"

	"gorm.io/gorm"
)

type RequisiteRepository struct {
	db *gorm.DB
}

func NewRequisiteRepository(db *gorm.DB) *RequisiteRepository {
	return &RequisiteRepository{db: db}
}

// Active returns the active requisite row, the mailbox credential
// fallback when settings carry none.
func (r *RequisiteRepository) Active() (*models.Requisite, error) {
	var req models.Requisite
	err := r.db.First(&req, "active = ?", true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}
