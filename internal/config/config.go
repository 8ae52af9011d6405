package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port       string
	Store      string
	DBConn     string
	LogLevel   string
	JWTSecret  string
	TokenTTL   time.Duration
	CBRURL     string
	HMACSecret string

	ListDefaultLimit  int
	ListMaxLimit      int
	IngestWorkers     int
	MaxUploadBytes    int64
	ModelVersion      string
	DefaultConfidence float64
	PolicyFile        string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	ReportEmail  string

	KeyRateSchedule  string
	KeyRateMargin    float64
	KeyRateLookback  int
	RedecideSchedule string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Store:        getEnv("STORE", "postgres"),
		DBConn:       getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=credit sslmode=disable"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:    getEnv("JWT_SECRET", "secret"),
		CBRURL:       getEnv("CBR_URL", "https://www.cbr.ru/DailyInfoWebServ/DailyInfo.asmx"),
		HMACSecret:   getEnv("HMAC_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		ModelVersion: getEnv("MODEL_VERSION", "v1.0"),
		PolicyFile:   getEnv("POLICY_FILE", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "scoring@localhost"),
		ReportEmail:  getEnv("REPORT_EMAIL", ""),

		KeyRateSchedule:  getEnv("KEY_RATE_SCHEDULE", "@hourly"),
		RedecideSchedule: getEnv("REDECIDE_SCHEDULE", "@every 15m"),
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ListDefaultLimit, err = getInt("LIST_DEFAULT_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.ListMaxLimit, err = getInt("LIST_MAX_LIMIT", 500); err != nil {
		return nil, err
	}
	if cfg.IngestWorkers, err = getInt("INGEST_WORKERS", 8); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_BYTES", 32<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)
	if cfg.DefaultConfidence, err = getFloat("DEFAULT_CONFIDENCE", 0.82); err != nil {
		return nil, err
	}
	if cfg.KeyRateMargin, err = getFloat("KEY_RATE_MARGIN", 5.0); err != nil {
		return nil, err
	}
	if cfg.KeyRateLookback, err = getInt("KEY_RATE_LOOKBACK_DAYS", 30); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Store != "postgres" && c.Store != "memory" {
		return fmt.Errorf("STORE must be postgres or memory, got %q", c.Store)
	}
	if c.Store == "postgres" && c.DBConn == "" {
		return fmt.Errorf("DB_CONN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.HMACSecret == "" {
		return fmt.Errorf("HMAC_SECRET is required")
	}
	if c.ListDefaultLimit <= 0 || c.ListMaxLimit < c.ListDefaultLimit {
		return fmt.Errorf("LIST_DEFAULT_LIMIT must be positive and not exceed LIST_MAX_LIMIT")
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive")
	}
	if c.DefaultConfidence < 0 || c.DefaultConfidence > 1 {
		return fmt.Errorf("DEFAULT_CONFIDENCE must be within [0,1]")
	}
	if c.KeyRateMargin < 0 {
		return fmt.Errorf("KEY_RATE_MARGIN must not be negative")
	}
	if c.KeyRateLookback <= 0 {
		return fmt.Errorf("KEY_RATE_LOOKBACK_DAYS must be positive")
	}
	return nil
}

// SMTPEnabled reports whether upload reports should be emailed
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.ReportEmail != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
