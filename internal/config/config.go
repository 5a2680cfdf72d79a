package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server      ServerConfig
	API         APIConfig
	Credentials CredentialsConfig
	Desk        DeskConfig
	Reporting   ReportingConfig
	MongoDB     MongoDBConfig
	Sheets      SheetsConfig
	WhatsApp    WhatsAppConfig
}

// ServerConfig holds options for the local presentation API.
type ServerConfig struct {
	Port      string
	LoginPage string
	LogLevel  string
}

// APIConfig describes how to reach the stock backend.
type APIConfig struct {
	Environment   string
	BaseURL       string
	LocalURL      string
	ProductionURL string
	Timeout       time.Duration
}

// CredentialsConfig selects where session credentials are persisted.
type CredentialsConfig struct {
	Backend      string
	FilePath     string
	DeskID       string
	LoggedOutTTL time.Duration
}

// Credential storage backends.
const (
	CredentialsMemory  = "memory"
	CredentialsFile    = "file"
	CredentialsMongoDB = "mongodb"
)

// DeskConfig holds client-side behavior knobs.
type DeskConfig struct {
	SearchDebounce    time.Duration
	LowStockThreshold int
	RecentSalesLimit  int
	AnalyticsDays     int
	AnalyticsLimit    int
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	RefreshSchedule string
	CronSchedule    string
	WeeklySchedule  string
	Timezone        string
	OutputDir       string
	ReceiptsDir     string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// Enabled reports whether a MongoDB deployment was configured.
func (c MongoDBConfig) Enabled() bool {
	return c.URI != ""
}

// SheetsConfig contains configuration required to export to Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether sheet export was configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API digest.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	Recipient     string
}

// Enabled reports whether the daily digest can be delivered.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != "" && c.Recipient != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when the environment is set directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      getenvWithDefault("APP_PORT", "8080"),
			LoginPage: getenvWithDefault("LOGIN_PAGE", "login.html"),
			LogLevel:  getenvWithDefault("LOG_LEVEL", "info"),
		},
		API: APIConfig{
			Environment:   getenvWithDefault("APP_ENV", "development"),
			BaseURL:       os.Getenv("API_BASE_URL"),
			LocalURL:      getenvWithDefault("LOCAL_API_URL", "http://localhost:5001/api"),
			ProductionURL: os.Getenv("PRODUCTION_API_URL"),
		},
		Credentials: CredentialsConfig{
			Backend:  strings.ToLower(getenvWithDefault("CREDENTIALS_BACKEND", CredentialsFile)),
			FilePath: getenvWithDefault("CREDENTIALS_FILE", ".stockdesk/credentials.json"),
			DeskID:   getenvWithDefault("DESK_ID", "desk"),
		},
		Reporting: ReportingConfig{
			RefreshSchedule: getenvWithDefault("REFRESH_CRON_SCHEDULE", "@every 2m"),
			CronSchedule:    getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			WeeklySchedule:  getenvWithDefault("WEEKLY_REPORT_SCHEDULE", "0 21 * * 0"),
			Timezone:        getenvWithDefault("TIMEZONE", "Asia/Kolkata"),
			OutputDir:       getenvWithDefault("REPORTS_DIR", "reports"),
			ReceiptsDir:     getenvWithDefault("RECEIPTS_DIR", "receipts"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "stockdesk"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			Recipient:     os.Getenv("WHATSAPP_DIGEST_RECIPIENT"),
		},
	}

	var err error
	if cfg.API.Timeout, err = getenvDuration("API_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Credentials.LoggedOutTTL, err = getenvDuration("LOGGED_OUT_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Desk.SearchDebounce, err = getenvDuration("SEARCH_DEBOUNCE", 300*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Desk.LowStockThreshold, err = getenvInt("LOW_STOCK_THRESHOLD", 10); err != nil {
		return nil, err
	}
	if cfg.Desk.RecentSalesLimit, err = getenvInt("RECENT_SALES_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.Desk.AnalyticsDays, err = getenvInt("ANALYTICS_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.Desk.AnalyticsLimit, err = getenvInt("ANALYTICS_LIMIT", 10); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolveBaseURL picks the backend URL: an explicit API_BASE_URL wins,
// production deployments use PRODUCTION_API_URL, everything else the local URL.
func (c APIConfig) ResolveBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	if strings.EqualFold(c.Environment, "production") && c.ProductionURL != "" {
		return strings.TrimSuffix(c.ProductionURL, "/")
	}
	return strings.TrimSuffix(c.LocalURL, "/")
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.API.ResolveBaseURL() == "" {
		return errors.New("API_BASE_URL or LOCAL_API_URL must be provided")
	}
	if strings.EqualFold(c.API.Environment, "production") && c.API.BaseURL == "" && c.API.ProductionURL == "" {
		return errors.New("PRODUCTION_API_URL must be provided when APP_ENV=production")
	}
	if c.API.Timeout <= 0 {
		return errors.New("API_TIMEOUT must be positive")
	}

	switch c.Credentials.Backend {
	case CredentialsMemory:
	case CredentialsFile:
		if c.Credentials.FilePath == "" {
			return errors.New("CREDENTIALS_FILE must be provided for the file backend")
		}
	case CredentialsMongoDB:
		if !c.MongoDB.Enabled() {
			return errors.New("MONGODB_URI must be provided for the mongodb credentials backend")
		}
		if c.Credentials.DeskID == "" {
			return errors.New("DESK_ID must be provided for the mongodb credentials backend")
		}
	default:
		return fmt.Errorf("unsupported CREDENTIALS_BACKEND %q", c.Credentials.Backend)
	}

	if c.Desk.SearchDebounce <= 0 {
		return errors.New("SEARCH_DEBOUNCE must be positive")
	}
	if c.Desk.LowStockThreshold <= 0 {
		return errors.New("LOW_STOCK_THRESHOLD must be positive")
	}
	if c.Desk.AnalyticsDays <= 0 || c.Desk.AnalyticsLimit <= 0 {
		return errors.New("ANALYTICS_DAYS and ANALYTICS_LIMIT must be positive")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}
	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Reporting.Timezone, err)
	}

	if c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID == "" {
		return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided with GOOGLE_SHEETS_CREDENTIALS_PATH")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}
