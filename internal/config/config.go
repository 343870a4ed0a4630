package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/silvercare/nas-gateway/internal/gateway"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Debug          bool
	MaxUploadBytes int64

	// NAS store configuration
	NASBaseURL   string
	NASImagePath string
	NASUsername  string
	NASPassword  string
	NASTimeout   time.Duration

	// Archive storage configuration
	ArchiveBackend   string // "memory", "azure" or "s3"
	StorageAccount   string
	StorageContainer string
	S3Bucket         string
	S3Region         string
	S3Prefix         string
	S3Endpoint       string

	// Schedule configuration
	AuditFlushSchedule string
	ProbeSchedule      string
	AuditReportAlways  bool

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Debug:          getBoolEnv("DEBUG", false),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 32<<20)),

		NASBaseURL:   getEnv("NAS_URL", ""),
		NASImagePath: getEnv("NAS_IMAGE_PATH", "/images"),
		NASUsername:  getEnv("NAS_USERNAME", ""),
		NASPassword:  getEnv("NAS_PASSWORD", ""),
		NASTimeout:   getDurationEnv("NAS_TIMEOUT", 0),

		ArchiveBackend:   strings.ToLower(getEnv("ARCHIVE_BACKEND", "memory")),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "nas-audit"),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3Prefix:         getEnv("S3_PREFIX", "nas-audit"),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),

		AuditFlushSchedule: getScheduleEnv("AUDIT_FLUSH_SCHEDULE", "0 0 * * * *"),
		ProbeSchedule:      getScheduleEnv("PROBE_SCHEDULE", "0 */5 * * * *"),
		AuditReportAlways:  getBoolEnv("AUDIT_REPORT_ALWAYS", false),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Store returns the gateway's view of the NAS configuration.
func (c *Config) Store() gateway.StoreConfig {
	return gateway.StoreConfig{
		BaseURL:    c.NASBaseURL,
		PathPrefix: c.NASImagePath,
		Username:   c.NASUsername,
		Password:   c.NASPassword,
		Timeout:    c.NASTimeout,
	}
}

func (c *Config) validate() error {
	if c.NASBaseURL == "" {
		return fmt.Errorf("NAS_URL is required")
	}

	if !strings.HasPrefix(c.NASBaseURL, "http://") && !strings.HasPrefix(c.NASBaseURL, "https://") {
		return fmt.Errorf("NAS_URL must start with http:// or https://")
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	switch c.ArchiveBackend {
	case "memory":
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when ARCHIVE_BACKEND is 'azure'")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when ARCHIVE_BACKEND is 's3'")
		}
	default:
		return fmt.Errorf("ARCHIVE_BACKEND must be 'memory', 'azure' or 's3'")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getScheduleEnv keeps an explicitly empty value, which disables the job
func getScheduleEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
