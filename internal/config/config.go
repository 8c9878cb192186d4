package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	Uploads  UploadConfig
	Library  LibraryConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	DBName     string
	SSLMode    string
	TestDBName string // Separate database for testing
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// SMTPConfig holds the outgoing mail configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Enabled  bool
}

// UploadConfig holds the file upload configuration
type UploadConfig struct {
	Dir         string
	MaxSizeMB   int64
	ServePrefix string
}

// LibraryConfig holds fallback values used when the system_settings
// row is missing or unreadable.
type LibraryConfig struct {
	StudentDailyFine   int
	FacultyDailyFine   int
	StudentBorrowDays  int
	FacultyBorrowDays  int
	NotifierIntervalHr int
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			Username:   getEnv("DB_USERNAME", "postgres"),
			Password:   getEnv("DB_PASSWORD", "password"),
			DBName:     getEnv("DB_NAME", "libtrack"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			TestDBName: getEnv("TEST_DB_NAME", "libtrack_test"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "your-secret-key-here"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "library@libtrack.edu"),
			Enabled:  getEnv("SMTP_ENABLED", "false") == "true",
		},
		Uploads: UploadConfig{
			Dir:         getEnv("UPLOAD_DIR", "./uploads"),
			MaxSizeMB:   int64(getEnvAsInt("UPLOAD_MAX_SIZE_MB", 10)),
			ServePrefix: getEnv("UPLOAD_SERVE_PREFIX", "/uploads"),
		},
		Library: LibraryConfig{
			StudentDailyFine:   getEnvAsInt("STUDENT_DAILY_FINE", 5),
			FacultyDailyFine:   getEnvAsInt("FACULTY_DAILY_FINE", 11),
			StudentBorrowDays:  getEnvAsInt("STUDENT_BORROW_DAYS", 7),
			FacultyBorrowDays:  getEnvAsInt("FACULTY_BORROW_DAYS", 14),
			NotifierIntervalHr: getEnvAsInt("NOTIFIER_INTERVAL_HOURS", 24),
		},
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
