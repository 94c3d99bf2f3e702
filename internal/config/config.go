package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMongoDB = "mongodb"
	StoreDriverMemory  = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Ledger    LedgerConfig
	Alerts    AlertsConfig
	Mail      MailConfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port           string
	LogLevel       string
	MaxUploadBytes int64
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver  string
	Timeout time.Duration
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI        string
	DBName     string
	Collection string
}

// LedgerConfig holds stock mutation policy.
type LedgerConfig struct {
	AllowNegativeStock bool
}

// AlertsConfig tunes asynchronous alert delivery.
type AlertsConfig struct {
	Recipient   string
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// MailConfig points at an HTTP mail delivery API.
type MailConfig struct {
	APIURL   string
	APIToken string
	From     string
}

// RabbitMQConfig enables publishing alerts to a topic exchange.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// RedisConfig enables the report cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// SheetsConfig contains configuration required to read import feeds from Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// ReportingConfig holds view thresholds and scheduler settings.
type ReportingConfig struct {
	LowStockLevel  int64
	HighStockLevel int64
	CronSchedule   string
	Timezone       string
}

// TelemetryConfig holds tracing exporter settings.
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// MailEnabled reports whether alert e-mails can be sent.
func (c *Config) MailEnabled() bool {
	return c.Mail.APIURL != "" && c.Alerts.Recipient != ""
}

// SheetsEnabled reports whether spreadsheet imports are configured.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID != ""
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
		// Missing .env files are acceptable when configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	var errs []error
	cfg := &Config{
		Server: ServerConfig{
			Port:           getenvWithDefault("APP_PORT", "8080"),
			LogLevel:       getenvWithDefault("LOG_LEVEL", "info"),
			MaxUploadBytes: getenvInt64("IMPORT_MAX_UPLOAD_BYTES", 8<<20, &errs),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(getenvWithDefault("STORE_DRIVER", StoreDriverMongoDB)),
			Timeout: getenvDuration("STORE_TIMEOUT", 5*time.Second, &errs),
		},
		MongoDB: MongoDBConfig{
			URI:        os.Getenv("MONGODB_URI"),
			DBName:     getenvWithDefault("MONGODB_DB_NAME", "inventory"),
			Collection: getenvWithDefault("MONGODB_COLLECTION", "inventories"),
		},
		Ledger: LedgerConfig{
			AllowNegativeStock: getenvBool("ALLOW_NEGATIVE_STOCK", true, &errs),
		},
		Alerts: AlertsConfig{
			Recipient:   os.Getenv("ALERT_EMAIL"),
			QueueSize:   int(getenvInt64("ALERT_QUEUE_SIZE", 256, &errs)),
			Workers:     int(getenvInt64("ALERT_WORKERS", 2, &errs)),
			SendTimeout: getenvDuration("ALERT_SEND_TIMEOUT", 10*time.Second, &errs),
		},
		Mail: MailConfig{
			APIURL:   os.Getenv("MAIL_API_URL"),
			APIToken: os.Getenv("MAIL_API_TOKEN"),
			From:     getenvWithDefault("MAIL_FROM", "inventory@localhost"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getenvWithDefault("RABBITMQ_EXCHANGE", "inventory_alerts"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       int(getenvInt64("REDIS_DB", 0, &errs)),
			TTL:      getenvDuration("REPORT_CACHE_TTL", 30*time.Second, &errs),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_IMPORT_ID"),
		},
		Reporting: ReportingConfig{
			LowStockLevel:  getenvInt64("LOW_STOCK_LEVEL", 10, &errs),
			HighStockLevel: getenvInt64("HIGH_STOCK_LEVEL", 14, &errs),
			CronSchedule:   getenvWithDefault("DIGEST_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:       getenvWithDefault("TIMEZONE", "UTC"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  getenvWithDefault("SERVICE_NAME", "stockledger"),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case StoreDriverMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.Store.Driver)
	}

	switch {
	case c.Store.Timeout <= 0:
		return errors.New("STORE_TIMEOUT must be positive")
	case c.Alerts.SendTimeout <= 0:
		return errors.New("ALERT_SEND_TIMEOUT must be positive")
	case c.Alerts.QueueSize < 1:
		return errors.New("ALERT_QUEUE_SIZE must be at least 1")
	case c.Alerts.Workers < 1:
		return errors.New("ALERT_WORKERS must be at least 1")
	}

	if c.Mail.APIURL != "" && c.Alerts.Recipient == "" {
		return errors.New("ALERT_EMAIL must be provided when MAIL_API_URL is set")
	}

	if c.Reporting.LowStockLevel > c.Reporting.HighStockLevel {
		return errors.New("LOW_STOCK_LEVEL must not exceed HIGH_STOCK_LEVEL")
	}

	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt64(key string, fallback int64, errs *[]error) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer: %w", key, err))
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a boolean: %w", key, err))
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration: %w", key, err))
		return fallback
	}
	return d
}
