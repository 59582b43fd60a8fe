package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ReconcileAuditLog is an append-only record of one match attempt,
// written once per processed notification regardless of outcome.
type ReconcileAuditLog struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Bank      string          `gorm:"index"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2)"`
	Matched   bool
	Note      string
	Details   datatypes.JSON
	CreatedAt time.Time `gorm:"index"`
}
