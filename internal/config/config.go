package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port                    string
	AllowedOrigin           string
	DatabaseURL             string
	DatabaseAutoMigrate     bool
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	CartTTLMinutes          int
	RegisterID              string
	ReceiptPrefix           string
	ReceiptStart            int64
	TaxRatesFile            string
	BusinessTimezone        string
	AllowFractionalServices bool
	AuthSecret              string
	AccessTokenTTLMinutes   int
	LogLevel                string
	LogPretty               bool
}

// Load reads the environment, optionally layered over the file named by
// POS_CONFIG_FILE.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv("POS_CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("config file not readable, using environment only")
		}
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("DATABASE_AUTO_MIGRATE", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CART_TTL_MINUTES", 720)
	v.SetDefault("REGISTER_ID", "main")
	v.SetDefault("RECEIPT_PREFIX", "KS-")
	v.SetDefault("RECEIPT_START", 10001)
	v.SetDefault("BUSINESS_TIMEZONE", "UTC")
	v.SetDefault("ALLOW_FRACTIONAL_SERVICES", false)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	cfg := Config{
		Port:                    v.GetString("PORT"),
		AllowedOrigin:           v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:             strings.TrimSpace(v.GetString("DATABASE_URL")),
		DatabaseAutoMigrate:     v.GetBool("DATABASE_AUTO_MIGRATE"),
		RedisAddr:               strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:           v.GetString("REDIS_PASSWORD"),
		RedisDB:                 v.GetInt("REDIS_DB"),
		CartTTLMinutes:          v.GetInt("CART_TTL_MINUTES"),
		RegisterID:              strings.TrimSpace(v.GetString("REGISTER_ID")),
		ReceiptPrefix:           v.GetString("RECEIPT_PREFIX"),
		ReceiptStart:            v.GetInt64("RECEIPT_START"),
		TaxRatesFile:            strings.TrimSpace(v.GetString("TAX_RATES_FILE")),
		BusinessTimezone:        strings.TrimSpace(v.GetString("BUSINESS_TIMEZONE")),
		AllowFractionalServices: v.GetBool("ALLOW_FRACTIONAL_SERVICES"),
		AuthSecret:              strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes:   v.GetInt("ACCESS_TOKEN_TTL_MINUTES"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		LogPretty:               v.GetBool("LOG_PRETTY"),
	}

	if cfg.CartTTLMinutes < 1 {
		cfg.CartTTLMinutes = 720
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.ReceiptStart < 1 {
		cfg.ReceiptStart = 10001
	}
	if cfg.RegisterID == "" {
		cfg.RegisterID = "main"
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLMinutes) * time.Minute
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// Location resolves BusinessTimezone, which decides where a business day
// starts and ends.
func (c Config) Location() (*time.Location, error) {
	if c.BusinessTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	return loc, nil
}
