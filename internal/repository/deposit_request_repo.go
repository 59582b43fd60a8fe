package repository

import (
	"errors"
	"time"

	"cashdesk-watcher/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DepositRequestRepository struct {
	db *gorm.DB
}

func NewDepositRequestRepository(db *gorm.DB) *DepositRequestRepository {
	return &DepositRequestRepository{db: db}
}

// FindMatchCandidate returns the most recently created pending request
// with the exact amount, created at or after since. No tolerance window;
// amounts are compared at two decimal places.
func (r *DepositRequestRepository) FindMatchCandidate(amount decimal.Decimal, since time.Time) (*models.DepositRequest, error) {
	var req models.DepositRequest
	err := r.db.
		Where("status = ? AND amount = ? AND created_at >= ?", models.StatusPending, amount.Round(2), since).
		Order("created_at DESC").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *DepositRequestRepository) GetByID(id uuid.UUID) (*models.DepositRequest, error) {
	var req models.DepositRequest
	if err := r.db.First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// MarkBankReceived flips bank_received exactly once. The WHERE clause is
// the idempotency guard: a repeat delivery of the same notification
// affects zero rows and reports acquired=false.
func (r *DepositRequestRepository) MarkBankReceived(id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.Model(&models.DepositRequest{}).
		Where("id = ? AND bank_received = ?", id, false).
		Updates(map[string]interface{}{
			"bank_received":    true,
			"bank_received_at": at,
			"status":           models.StatusBankReceived,
			"updated_at":       at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkCompleted advances bank_received -> completed. Guarded on the
// current status so concurrent retry paths cannot complete twice.
func (r *DepositRequestRepository) MarkCompleted(id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.Model(&models.DepositRequest{}).
		Where("id = ? AND status = ?", id, models.StatusBankReceived).
		Updates(map[string]interface{}{
			"status":       models.StatusCompleted,
			"processed_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetReceiptReceived records the receipt-upload signal from the external
// receipt handler.
func (r *DepositRequestRepository) SetReceiptReceived(id uuid.UUID, at time.Time) error {
	return r.db.Model(&models.DepositRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"receipt_received": true,
			"updated_at":       at,
		}).Error
}

// SetAccountID persists an account id resolved via the profile fallback.
func (r *DepositRequestRepository) SetAccountID(id uuid.UUID, accountID string) error {
	return r.db.Model(&models.DepositRequest{}).
		Where("id = ?", id).
		Update("account_id", accountID).Error
}

// ListPending returns the requests currently inside the matching window.
func (r *DepositRequestRepository) ListPending(since time.Time) ([]models.DepositRequest, error) {
	var reqs []models.DepositRequest
	err := r.db.
		Where("status = ? AND created_at >= ?", models.StatusPending, since).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

// ListStalled returns bank_received requests whose receipt has arrived
// but whose completion failed earlier (gateway error or timeout).
func (r *DepositRequestRepository) ListStalled(olderThan time.Time) ([]models.DepositRequest, error) {
	var reqs []models.DepositRequest
	err := r.db.
		Where("status = ? AND receipt_received = ? AND bank_received_at <= ?",
			models.StatusBankReceived, true, olderThan).
		Order("bank_received_at ASC").
		Find(&reqs).Error
	return reqs, err
}
