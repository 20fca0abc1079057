package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig holds all the configuration for the database connection.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSL      string
}

// AppConfig holds general application configuration
type AppConfig struct {
	ServerConfig ServerConfig
	VaultConfig  VaultConfig
	UploadConfig UploadConfig
}

type ServerConfig struct {
	Port     string `env:"SERVER_PORT,default=8080"`
	LogLevel string `env:"SERVER_LOG_LEVEL,default=info"`
}

// VaultConfig points at the root directory of the content-addressed
// asset store.
type VaultConfig struct {
	Root string `env:"VAULT_ROOT,default=./data/vault"`
}

// UploadConfig holds upload size and timing settings. SessionTimeout sets
// the upload session manager's inactivity timeout (and so its reaper
// cadence) and OrphanSweepPeriod the orphan sweep interval. MaxUploadBytes
// is read from the environment but not passed to the asset core, which
// enforces the fixed assetcore.MaxUploadSize ceiling.
type UploadConfig struct {
	MaxUploadBytes    int64         `env:"UPLOAD_MAX_BYTES,default=10485760"`
	SessionTimeout    time.Duration `env:"UPLOAD_SESSION_TIMEOUT,default=5m"`
	OrphanSweepPeriod time.Duration `env:"ORPHAN_SWEEP_PERIOD,default=1h"`
}

// IsDevelopmentMode checks if the application is running in development mode
func IsDevelopmentMode() bool {
	return strings.ToLower(os.Getenv("SERVER_ENV")) == "development"
}

// LoadEnvironment loads environment variables from appropriate .env file
// This function is called in the init() function of cmd/assetd/main.go
// It automatically loads .env.development in development mode, .env otherwise
func LoadEnvironment() {
	isDev := IsDevelopmentMode()

	// Choose appropriate env file
	envFile := ".env"
	if isDev {
		// Try development-specific env file first
		if _, err := os.Stat(".env.development"); err == nil {
			envFile = ".env.development"
		}
	}

	// Try to load .env file but continue if it's not found
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("Running without %s file, using environment variables", envFile)
	} else {
		log.Printf("Environment variables loaded from %s file", envFile)
	}

	if isDev {
		log.Println("Running in DEVELOPMENT mode")
	}
}

// LoadDBConfig loads database settings from environment variables
// Used by cmd/assetd for both the connection pool and migrations
func LoadDBConfig() DatabaseConfig {
	isDev := IsDevelopmentMode()

	var cfg DatabaseConfig

	if isDev {
		// Development defaults - connect to localhost
		cfg = DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "assetvault",
			SSL:      "disable",
		}
	} else {
		// Production/Docker defaults
		cfg = DatabaseConfig{
			Host:     "db",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "assetvault",
			SSL:      "disable",
		}
	}

	// Override with environment variables if set
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		cfg.Port = port
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}
	if ssl := os.Getenv("DB_SSL"); ssl != "" {
		cfg.SSL = ssl
	}

	return cfg
}

// LoadAppConfig loads general application configuration
func LoadAppConfig() AppConfig {
	var cfg AppConfig
	cfg.ServerConfig = LoadServerConfig()
	cfg.VaultConfig = LoadVaultConfig()
	cfg.UploadConfig = LoadUploadConfig()

	return cfg
}

func LoadServerConfig() ServerConfig {
	var cfg ServerConfig

	// Default to development settings
	isDev := IsDevelopmentMode()
	if isDev {
		cfg = ServerConfig{
			Port:     "8080",
			LogLevel: "debug",
		}
	} else {
		cfg = ServerConfig{
			Port:     "8080",
			LogLevel: "info",
		}
	}

	// Override with environment variables if set
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if logLevel := os.Getenv("SERVER_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg
}

// LoadVaultConfig loads the asset vault's root directory.
func LoadVaultConfig() VaultConfig {
	cfg := VaultConfig{Root: "./data/vault"}
	if root := strings.TrimSpace(os.Getenv("VAULT_ROOT")); root != "" {
		cfg.Root = root
	}
	return cfg
}

// LoadUploadConfig loads upload size limits and session timing, falling
// back to the §4.4/§4.5 defaults (10 MiB ceiling, 5 minute session
// timeout) when unset.
func LoadUploadConfig() UploadConfig {
	cfg := UploadConfig{
		MaxUploadBytes:    10 * 1024 * 1024,
		SessionTimeout:    5 * time.Minute,
		OrphanSweepPeriod: time.Hour,
	}

	if raw := strings.TrimSpace(os.Getenv("UPLOAD_MAX_BYTES")); raw != "" {
		if maxBytes, err := strconv.ParseInt(raw, 10, 64); err == nil && maxBytes > 0 {
			cfg.MaxUploadBytes = maxBytes
		}
	}

	if raw := strings.TrimSpace(os.Getenv("UPLOAD_SESSION_TIMEOUT")); raw != "" {
		if timeout, err := time.ParseDuration(raw); err == nil && timeout > 0 {
			cfg.SessionTimeout = timeout
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ORPHAN_SWEEP_PERIOD")); raw != "" {
		if period, err := time.ParseDuration(raw); err == nil && period > 0 {
			cfg.OrphanSweepPeriod = period
		}
	}

	return cfg
}
