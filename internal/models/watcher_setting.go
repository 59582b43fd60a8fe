package models

import "time"

// WatcherSetting is a persisted runtime setting, re-read on every
// watcher cycle. Environment variables take precedence over rows.
type WatcherSetting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
