package repository

import (
	"encoding/json"
	"sync"
	"time"

	"cashdesk-watcher/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Recorder appends match-attempt audit rows and upserts liveness keys.
// Both methods swallow their own storage errors: audit/health writes must
// never destabilize the watcher loop.
type Recorder struct {
	db      *gorm.DB
	log     *zap.Logger
	migrate sync.Once
}

func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

func (r *Recorder) LogAttempt(bank string, amount decimal.Decimal, matched bool, note string, details map[string]interface{}) {
	r.migrate.Do(func() {
		if err := r.db.AutoMigrate(&models.ReconcileAuditLog{}); err != nil {
			r.log.Error("audit table migration failed", zap.Error(err))
		}
	})

	entry := models.ReconcileAuditLog{
		ID:        uuid.New(),
		Bank:      bank,
		Amount:    amount,
		Matched:   matched,
		Note:      note,
		CreatedAt: time.Now(),
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = raw
		}
	}
	if err := r.db.Create(&entry).Error; err != nil {
		r.log.Error("audit append failed",
			zap.String("bank", bank),
			zap.String("amount", amount.StringFixed(2)),
			zap.String("note", note),
			zap.Error(err))
	}
}

func (r *Recorder) UpdateHealth(key string) {
	now := time.Now()
	record := models.HealthRecord{
		Key:       key,
		Value:     now.UTC().Format(time.RFC3339),
		UpdatedAt: now,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		r.log.Error("health upsert failed", zap.String("key", key), zap.Error(err))
	}
}
