package recengine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a recommendation engine.
//
// It includes settings for:
//   - The generation service (optional; the engine works without it)
//   - The interaction event store (SQLite, PostgreSQL, or MySQL)
//   - Pipeline tuning constants (decay half-life, score blend, list size)
//
// Example:
//
//	config := &recengine.Config{
//	    LLM: recengine.LLMConfig{
//	        APIKey: "sk-...",
//	        Model:  "gpt-4o-mini",
//	    },
//	    Store: recengine.StoreConfig{
//	        Provider: "sqlite",
//	        SQLite:   recengine.SQLiteConfig{Path: "./cartsense.db"},
//	    },
//	    Tuning: recengine.DefaultTuning(),
//	}
type Config struct {
	// LLM contains generation-service configuration. An empty APIKey means
	// the service is not configured and the engine builds results
	// deterministically.
	LLM LLMConfig `json:"llm"`

	// Store contains event store configuration.
	Store StoreConfig `json:"store"`

	// Tuning contains pipeline tuning constants.
	Tuning TuningConfig `json:"tuning"`
}

// LLMConfig contains configuration for the generation service.
type LLMConfig struct {
	// Provider selects the generation backend: "openai" (default, covers any
	// OpenAI-compatible gateway via BaseURL) or "ollama" for local models.
	Provider string `json:"provider,omitempty"`

	// APIKey is the API key for the service. Empty means not configured,
	// except for ollama which needs no key.
	APIKey string `json:"api_key"`

	// Model is the model name to use (e.g., "gpt-4o-mini").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional; any OpenAI-compatible
	// gateway works).
	BaseURL string `json:"base_url,omitempty"`
}

// Configured reports whether a generation service is available: an API key
// for openai-style backends, or the ollama provider which needs none.
func (c LLMConfig) Configured() bool {
	return c.APIKey != "" || c.Provider == "ollama"
}

// StoreConfig contains configuration for the event store.
//
// Supported providers: sqlite, postgres, mysql.
type StoreConfig struct {
	// Provider is the event store provider name (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `json:"sqlite,omitempty"`

	// Postgres contains PostgreSQL-specific configuration.
	Postgres PostgresConfig `json:"postgres,omitempty"`

	// MySQL contains MySQL-specific configuration.
	MySQL MySQLConfig `json:"mysql,omitempty"`
}

// SQLiteConfig contains SQLite event store settings.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string `json:"path"`
}

// PostgresConfig contains PostgreSQL event store settings.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode,omitempty"`
}

// MySQLConfig contains MySQL event store settings.
type MySQLConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
}

// TuningConfig contains the pipeline tuning constants.
//
// These were fixed literals in earlier revisions; they are configuration so
// they can be tuned and tested independently.
type TuningConfig struct {
	// HalfLifeDays is the recency decay half-life in days.
	HalfLifeDays float64 `json:"half_life_days"`

	// FrequencyWeight is the replenishment-score weight on purchase count.
	FrequencyWeight float64 `json:"frequency_weight"`

	// RecencyWeight is the replenishment-score weight on the recency score.
	RecencyWeight float64 `json:"recency_weight"`

	// QuantityWeight is the replenishment-score weight on capped quantity.
	QuantityWeight float64 `json:"quantity_weight"`

	// QuantityCap bounds the quantity contribution to the score.
	QuantityCap int `json:"quantity_cap"`

	// ListSize is the target recommendation list size K.
	ListSize int `json:"list_size"`

	// ReplenishmentTopN is how many pattern candidates feed the brief and
	// the padding source.
	ReplenishmentTopN int `json:"replenishment_top_n"`

	// TopCategoryCount is how many affinity categories are reported.
	TopCategoryCount int `json:"top_category_count"`

	// ViewWeight is the secondary-signal multiplier for product views.
	ViewWeight float64 `json:"view_weight"`

	// CartWeight is the secondary-signal multiplier for cart adds.
	CartWeight float64 `json:"cart_weight"`

	// GenerationTimeout bounds the single generation-service attempt.
	GenerationTimeout time.Duration `json:"generation_timeout"`
}

// DefaultTuning returns the standard tuning constants:
// 30-day half-life, 0.4/0.4/0.2 score blend with quantity cap 10,
// list size 6, and a 20-second generation timeout.
func DefaultTuning() TuningConfig {
	return TuningConfig{
		HalfLifeDays:      30,
		FrequencyWeight:   0.4,
		RecencyWeight:     0.4,
		QuantityWeight:    0.2,
		QuantityCap:       10,
		ListSize:          6,
		ReplenishmentTopN: 6,
		TopCategoryCount:  3,
		ViewWeight:        0.15,
		CartWeight:        0.3,
		GenerationTimeout: 20 * time.Second,
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql)
//   - SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE
//   - LLM_PROVIDER (openai, ollama), LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//   - RECS_LIST_SIZE, RECS_HALF_LIFE_DAYS, RECS_GENERATION_TIMEOUT_SECONDS
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")

	store := StoreConfig{Provider: provider}
	switch provider {
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		store.Postgres = PostgresConfig{
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     port,
			User:     getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnvOrDefault("POSTGRES_DATABASE", "cartsense"),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		store.MySQL = MySQLConfig{
			Host:     getEnvOrDefault("MYSQL_HOST", "127.0.0.1"),
			Port:     port,
			User:     getEnvOrDefault("MYSQL_USER", "root"),
			Password: os.Getenv("MYSQL_PASSWORD"),
			DBName:   getEnvOrDefault("MYSQL_DATABASE", "cartsense"),
		}
	default:
		store.SQLite = SQLiteConfig{
			Path: getEnvOrDefault("SQLITE_PATH", "./cartsense.db"),
		}
	}

	tuning := DefaultTuning()
	if v := os.Getenv("RECS_LIST_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			tuning.ListSize = n
		}
	}
	if v := os.Getenv("RECS_HALF_LIFE_DAYS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			tuning.HalfLifeDays = f
		}
	}
	if v := os.Getenv("RECS_GENERATION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			tuning.GenerationTimeout = time.Duration(n) * time.Second
		}
	}

	config := &Config{
		LLM: LLMConfig{
			Provider: getEnvOrDefault("LLM_PROVIDER", "openai"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		},
		Store:  store,
		Tuning: tuning,
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Missing tuning fields fall back to DefaultTuning values.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	config := &Config{Tuning: DefaultTuning()}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	return config, nil
}

// Validate validates the configuration.
//
// Checks that:
//   - A store provider is specified and is one of sqlite, postgres, mysql
//   - The tuning list size and half-life are positive
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	switch c.Store.Provider {
	case "sqlite", "postgres", "mysql":
	case "":
		return NewEngineError("Validate", ErrInvalidConfig)
	default:
		return NewEngineError("Validate", ErrInvalidConfig)
	}
	if c.Tuning.ListSize <= 0 || c.Tuning.HalfLifeDays <= 0 {
		return NewEngineError("Validate", ErrInvalidConfig)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
