package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	Library  LibraryConfig
	BookInfo BookInfoConfig
	Sync     SyncConfig
	LINE     LINEConfig
	Patron   PatronConfig
	JWT      JWTConfig
	Cookie   CookieConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// LibraryConfig holds circulation system (upstream) configuration
type LibraryConfig struct {
	BaseURL    string
	CardNo     string
	Password   string
	PageSize   int
	TimeoutSec int
	MaxRetries int
	BackoffMs  int
}

// BookInfoConfig holds book metadata lookup configuration
type BookInfoConfig struct {
	BaseURL       string
	APIKey        string
	TimeoutSec    int
	CacheTTLHours int
	RatePerSec    float64
}

// SyncConfig holds reconciliation run configuration
type SyncConfig struct {
	BatchSize       int
	SyncCron        string // nightly reconciliation
	ReminderCron    string // due-soon reminder
	RenewDaysAhead  int    // renew loans due within this many days
	RemindDaysAhead int
}

// LINEConfig holds LINE Messaging API configuration
type LINEConfig struct {
	ChannelToken string
	PatronUserID string
}

// PatronConfig holds the single patron's API login credential
type PatronConfig struct {
	PasswordHash string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(appMode),
		Library:  loadLibraryConfig(),
		BookInfo: loadBookInfoConfig(),
		Sync:     loadSyncConfig(),
		LINE: LINEConfig{
			ChannelToken: getEnv("LINE_CHANNEL_TOKEN", ""),
			PatronUserID: getEnv("LINE_PATRON_USER_ID", ""),
		},
		Patron: PatronConfig{
			PasswordHash: getEnv("PATRON_PASSWORD_HASH", ""),
		},
		JWT:    loadJWTConfig(appMode),
		Cookie: loadCookieConfig(appMode),
	}

	if config.Library.BaseURL == "" {
		return nil, fmt.Errorf("LIBRARY_BASE_URL is required")
	}

	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "libtrack"),
	}
}

// loadLibraryConfig loads circulation system config
func loadLibraryConfig() LibraryConfig {
	return LibraryConfig{
		BaseURL:    strings.TrimRight(getEnv("LIBRARY_BASE_URL", ""), "/"),
		CardNo:     getEnv("LIBRARY_CARD_NO", ""),
		Password:   getEnv("LIBRARY_PASSWORD", ""),
		PageSize:   getEnvInt("LIBRARY_PAGE_SIZE", 50),
		TimeoutSec: getEnvInt("LIBRARY_TIMEOUT_SEC", 5),
		MaxRetries: getEnvInt("LIBRARY_MAX_RETRIES", 2),
		BackoffMs:  getEnvInt("LIBRARY_BACKOFF_MS", 300),
	}
}

// loadBookInfoConfig loads book metadata lookup config
func loadBookInfoConfig() BookInfoConfig {
	rate, _ := strconv.ParseFloat(getEnv("BOOKINFO_RATE_PER_SEC", "5"), 64)

	return BookInfoConfig{
		BaseURL:       strings.TrimRight(getEnv("BOOKINFO_BASE_URL", ""), "/"),
		APIKey:        getEnv("BOOKINFO_API_KEY", ""),
		TimeoutSec:    getEnvInt("BOOKINFO_TIMEOUT_SEC", 3),
		CacheTTLHours: getEnvInt("BOOKINFO_CACHE_TTL_HOURS", 24),
		RatePerSec:    rate,
	}
}

// loadSyncConfig loads reconciliation run config
func loadSyncConfig() SyncConfig {
	return SyncConfig{
		BatchSize:       getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncCron:        getEnv("SYNC_CRON", "0 2 * * *"),
		ReminderCron:    getEnv("REMINDER_CRON", "30 8 * * *"),
		RenewDaysAhead:  getEnvInt("RENEW_DAYS_AHEAD", 1),
		RemindDaysAhead: getEnvInt("REMIND_DAYS_AHEAD", 2),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	accessMins, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "15"))
	refreshDays, _ := strconv.Atoi(getEnv("REFRESH_TOKEN_DAYS", "7"))

	return JWTConfig{
		Secret:           getEnv(prefix+"JWT_SECRET", "default_secret"),
		RefreshSecret:    getEnv(prefix+"JWT_REFRESH_SECRET", "default_refresh_secret"),
		AccessTokenMins:  accessMins,
		RefreshTokenDays: refreshDays,
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	secure, _ := strconv.ParseBool(getEnv(prefix+"COOKIE_SECURE", "false"))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

// LibraryTimeout returns the per-attempt timeout for loan client calls
func (c *LibraryConfig) LibraryTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Backoff returns the base backoff duration for loan client retries
func (c *LibraryConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// Timeout returns the per-call timeout for metadata lookups
func (c *BookInfoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// CacheTTL returns the metadata cache time-to-live
func (c *BookInfoConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" && c.IsDev() {
		return "*"
	}
	return origins
}
