package config

import (
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config holds the static process configuration, loaded from the
// environment. Watcher runtime settings live in the database instead
// and are read per cycle.
type Config struct {
	ServerPort      string `mapstructure:"SERVER_PORT"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	TelegramToken   string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	CashdeskBaseURL string `mapstructure:"CASHDESK_BASE_URL"`
	CashdeskAPIKey  string `mapstructure:"CASHDESK_API_KEY"`
	AdminBaseURL    string `mapstructure:"ADMIN_BASE_URL"`
	AdminAPIKey     string `mapstructure:"ADMIN_API_KEY"`
	DefaultBank     string `mapstructure:"WATCHER_BANK"`
	CORSOrigin      string `mapstructure:"CORS_ORIGIN"`
}

func Load() (Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("WATCHER_BANK", "kaspi")
	viper.SetDefault("CORS_ORIGIN", "http://localhost:3000")

	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "TELEGRAM_BOT_TOKEN",
		"CASHDESK_BASE_URL", "CASHDESK_API_KEY",
		"ADMIN_BASE_URL", "ADMIN_API_KEY",
		"WATCHER_BANK", "CORS_ORIGIN",
	} {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func InitDB(databaseURL string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
}
