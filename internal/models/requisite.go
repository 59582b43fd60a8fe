package models

import (
	"time"

	"github.com/google/uuid"
)

// Requisite is a payment requisite with its monitored mailbox
// credentials. The active row is the credential fallback when the
// watcher settings carry no host/user/password.
type Requisite struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string
	ImapHost     string
	ImapPassword string
	Active       bool `gorm:"index"`
	CreatedAt    time.Time
}
