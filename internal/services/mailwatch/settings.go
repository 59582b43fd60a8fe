package mailwatch

import (
	"os"
	"strconv"
	"time"

	"cashdesk-watcher/internal/models"
	"cashdesk-watcher/internal/services/notification"
)

// Config is the watcher's runtime configuration, re-read every cycle so
// operators can reconfigure without a restart.
type Config struct {
	Enabled     bool
	Host        string
	Email       string
	Password    string
	Folder      string
	Bank        string
	Interval    time.Duration
	IdleEnabled bool
	Keepalive   time.Duration
}

func (c Config) CredentialsOK() bool {
	return c.Host != "" && c.Email != "" && c.Password != ""
}

// SettingsSource is the persisted key/value settings table.
type SettingsSource interface {
	All() (map[string]string, error)
}

// RequisiteSource supplies the active-requisite credential fallback.
type RequisiteSource interface {
	Active() (*models.Requisite, error)
}

// SettingsLoader resolves the watcher Config: environment variables win
// over persisted settings, and missing mailbox credentials fall back to
// the active requisite.
type SettingsLoader struct {
	settings   SettingsSource
	requisites RequisiteSource
}

func NewSettingsLoader(settings SettingsSource, requisites RequisiteSource) *SettingsLoader {
	return &SettingsLoader{settings: settings, requisites: requisites}
}

func (l *SettingsLoader) Load() (Config, error) {
	values, err := l.settings.All()
	if err != nil {
		return Config{}, err
	}

	get := func(envKey, key, fallback string) string {
		if v := os.Getenv(envKey); v != "" {
			return v
		}
		if v := values[key]; v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Enabled:     parseBool(get("WATCHER_ENABLED", "enabled", "false")),
		Host:        get("IMAP_HOST", "imap_host", ""),
		Email:       get("IMAP_EMAIL", "email", ""),
		Password:    get("IMAP_PASSWORD", "password", ""),
		Folder:      get("IMAP_FOLDER", "folder", "INBOX"),
		Bank:        get("WATCHER_BANK", "bank", notification.BankKaspi),
		Interval:    parseSeconds(get("WATCHER_INTERVAL_SECONDS", "interval_seconds", ""), 60*time.Second),
		IdleEnabled: parseBool(get("WATCHER_IDLE_ENABLED", "idle_enabled", "true")),
		Keepalive:   parseSeconds(get("WATCHER_KEEPALIVE_SECONDS", "keepalive_seconds", ""), 60*time.Second),
	}

	if !cfg.CredentialsOK() && l.requisites != nil {
		req, err := l.requisites.Active()
		if err == nil && req != nil {
			if cfg.Host == "" {
				cfg.Host = req.ImapHost
			}
			if cfg.Email == "" {
				cfg.Email = req.Email
			}
			if cfg.Password == "" {
				cfg.Password = req.ImapPassword
			}
		}
	}

	// clamp so the poll fallback stays responsive
	if cfg.Interval < 5*time.Second {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Interval > 10*time.Minute {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Keepalive < 10*time.Second {
		cfg.Keepalive = 10 * time.Second
	}

	return cfg, nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v == "yes" || v == "on"
	}
	return b
}

func parseSeconds(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
