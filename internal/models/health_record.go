package models

import "time"

// HealthRecord is a liveness key/value upserted by the watcher
// (e.g. last_idle_at) and read by operators.
type HealthRecord struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
