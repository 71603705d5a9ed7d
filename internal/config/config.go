package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Category delete policies. Restrict refuses to delete a category that still
// has products; detach nulls the product references first.
const (
	CategoryDeleteRestrict = "restrict"
	CategoryDeleteDetach   = "detach"
)

type Config struct {
	// HTTP Server
	Port    string
	BaseURL string

	// Database
	SQLiteDBPath string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Uploads
	UploadDir     string
	MaxImageWidth int

	// Catalog policy
	CategoryDeletePolicy string
	LowStockThreshold    int

	// PDF rendering
	ChromePath string

	// AMQP (optional; empty URL disables ledger event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets bookkeeping export (ledger worker)
	GoogleSpreadsheetID string
	SalesSheetName      string
	ExpensesSheetName   string
}

func Load() *Config {
	return &Config{
		Port:    getEnv("PORT", "8080"),
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ropastore.db"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),

		UploadDir:     getEnv("UPLOAD_DIR", "./data/uploads"),
		MaxImageWidth: getEnvInt("MAX_IMAGE_WIDTH", 1200),

		CategoryDeletePolicy: getEnv("CATEGORY_DELETE_POLICY", CategoryDeleteRestrict),
		LowStockThreshold:    getEnvInt("LOW_STOCK_THRESHOLD", 10),

		ChromePath: getEnv("CHROME_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ropastore"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_entries"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SalesSheetName:      getEnv("SALES_SHEET_NAME", "Sales"),
		ExpensesSheetName:   getEnv("EXPENSES_SHEET_NAME", "Expenses"),
	}
}

// Validate checks the configuration and returns an error naming every
// problem found, not just the first one.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SessionSecret == "" {
		errors = append(errors, "SESSION_SECRET must be set")
	} else if len(c.SessionSecret) < 16 {
		errors = append(errors, "SESSION_SECRET too short: need at least 16 characters")
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	switch c.CategoryDeletePolicy {
	case CategoryDeleteRestrict, CategoryDeleteDetach:
	default:
		errors = append(errors, fmt.Sprintf("invalid category delete policy '%s': must be one of [%s %s]",
			c.CategoryDeletePolicy, CategoryDeleteRestrict, CategoryDeleteDetach))
	}

	if c.MaxImageWidth < 100 {
		errors = append(errors, fmt.Sprintf("invalid max image width %d: must be at least 100", c.MaxImageWidth))
	}
	if c.LowStockThreshold < 1 {
		errors = append(errors, fmt.Sprintf("invalid low stock threshold %d: must be at least 1", c.LowStockThreshold))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
