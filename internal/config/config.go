package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sitechron/fieldsync/internal/models"
)

// Config holds all agent configuration
type Config struct {
	ServerAddress     string                  `json:"serverAddress"`
	DatabasePath      string                  `json:"databasePath"`
	RemoteDatabaseURL string                  `json:"remoteDatabaseUrl"`
	UserID            string                  `json:"userId"`
	Remote            Remote                  `json:"remote"`
	Security          Security                `json:"security"`
	Tracking          Tracking                `json:"tracking"`
	Sync              Sync                    `json:"sync"`
	Sites             []models.GeofenceConfig `json:"sites"`
}

// Remote configuration for the crew server API
type Remote struct {
	BaseURL            string `json:"baseUrl"`
	RequestTimeoutSecs int    `json:"requestTimeoutSecs"`
	TokenURL           string `json:"tokenUrl"`
	ClientID           string `json:"clientId"`
	ClientSecret       string `json:"clientSecret"`
}

// UsePostgres returns true if the agent should talk to the crew database
// directly instead of the HTTP API
func (c *Config) UsePostgres() bool {
	return c.RemoteDatabaseURL != ""
}

// Security configuration for the local control surface
type Security struct {
	APIKeyHash   string `json:"apiKeyHash"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// Tracking configuration
type Tracking struct {
	LocationMaxAgeSecs int `json:"locationMaxAgeSecs"`
}

// Sync configuration
type Sync struct {
	ProbeIntervalSecs   int `json:"probeIntervalSecs"`
	DebounceSecs        int `json:"debounceSecs"`
	SyncIntervalSecs    int `json:"syncIntervalSecs"`
	AttemptCap          int `json:"attemptCap"`
	DeadLetterRetention int `json:"deadLetterRetention"`
}

// ProbeInterval returns the connectivity probe period
func (s Sync) ProbeInterval() time.Duration {
	return time.Duration(s.ProbeIntervalSecs) * time.Second
}

// Debounce returns the connectivity debounce window
func (s Sync) Debounce() time.Duration {
	return time.Duration(s.DebounceSecs) * time.Second
}

// SyncInterval returns the periodic reconciliation period
func (s Sync) SyncInterval() time.Duration {
	return time.Duration(s.SyncIntervalSecs) * time.Second
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: "127.0.0.1:7410",
		DatabasePath:  "fieldsync.db",
		Remote: Remote{
			RequestTimeoutSecs: 15,
		},
		Security: Security{
			APIKeyHeader: "X-API-Key",
		},
		Tracking: Tracking{
			LocationMaxAgeSecs: 120,
		},
		Sync: Sync{
			ProbeIntervalSecs:   15,
			DebounceSecs:        2,
			SyncIntervalSecs:    300,
			AttemptCap:          5,
			DeadLetterRetention: 200,
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("REMOTE_DATABASE_URL"); dbURL != "" {
		cfg.RemoteDatabaseURL = dbURL
	}
	if userID := os.Getenv("USER_ID"); userID != "" {
		cfg.UserID = userID
	}
	if baseURL := os.Getenv("REMOTE_BASE_URL"); baseURL != "" {
		cfg.Remote.BaseURL = baseURL
	}
	if tokenURL := os.Getenv("REMOTE_TOKEN_URL"); tokenURL != "" {
		cfg.Remote.TokenURL = tokenURL
	}
	if clientID := os.Getenv("REMOTE_CLIENT_ID"); clientID != "" {
		cfg.Remote.ClientID = clientID
	}
	if clientSecret := os.Getenv("REMOTE_CLIENT_SECRET"); clientSecret != "" {
		cfg.Remote.ClientSecret = clientSecret
	}
	if hash := os.Getenv("API_KEY_HASH"); hash != "" {
		cfg.Security.APIKeyHash = hash
	}

	// Sync tuning
	if interval := os.Getenv("SYNC_INTERVAL_SECS"); interval != "" {
		if secs, err := strconv.Atoi(interval); err == nil && secs > 0 {
			cfg.Sync.SyncIntervalSecs = secs
		}
	}
	if cap := os.Getenv("SYNC_ATTEMPT_CAP"); cap != "" {
		if n, err := strconv.Atoi(cap); err == nil && n > 0 {
			cfg.Sync.AttemptCap = n
		}
	}

	// Make the database path absolute so a daemon started from any working
	// directory finds the same store
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	cfg.DatabasePath = absPath

	return cfg, nil
}
