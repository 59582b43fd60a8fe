package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deposit request statuses. Status only moves forward
// (pending -> bank_received -> completed); cancellation/timeout
// transitions are owned by the conversational flow.
const (
	StatusPending        = "pending"
	StatusBankReceived   = "bank_received"
	StatusCompleted      = "completed"
	StatusAwaitingManual = "awaiting_manual"
	StatusRejected       = "rejected"
)

type DepositRequest struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID          int64     `gorm:"index"`
	Bookmaker       string    `gorm:"index"`
	AccountID       *string
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);index"`
	Status          string          `gorm:"index"`
	BankReceived    bool
	BankReceivedAt  *time.Time
	ReceiptReceived bool
	AdminChatID     *int64
	AdminMessageID  *int
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
	ProcessedAt     *time.Time
}
