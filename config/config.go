package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"casino/database"
	"casino/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Storage configuration
	StorageBackend string // "postgres" or "memory"
	DatabaseURL    string
	DatabaseName   string

	// Wallet configuration
	StartingBalance decimal.Decimal

	// Server configuration
	ListenAddr string
	LogLevel   string

	// Seats per table, by game
	SeatsPerGame map[models.GameType]int

	// NATS configuration
	NATSServers string
	NATSStream  string

	// Metrics configuration
	MetricsEnabled        bool
	MetricsExporter       string // "console", "otlp" or "none"
	OTLPEndpoint          string
	MetricsExportInterval int // seconds
	ServiceName           string

	// Environment
	Environment string // "development", "production" or "test"
}

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"
)

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// Get returns the global configuration instance
func Get() *Config {
	mu.RLock()
	if instance != nil {
		defer mu.RUnlock()
		return instance
	}
	mu.RUnlock()

	once.Do(func() {
		cfg, err := load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		mu.Lock()
		instance = cfg
		mu.Unlock()
	})
	return instance
}

// SetTestConfig replaces the global instance. Only for tests.
func SetTestConfig(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// NewTestConfig returns an in-memory configuration suitable for tests
func NewTestConfig() *Config {
	return &Config{
		StorageBackend:        StorageBackendMemory,
		StartingBalance:       decimal.NewFromInt(1000),
		ListenAddr:            ":0",
		LogLevel:              "debug",
		SeatsPerGame:          defaultSeats(),
		NATSStream:            "CASINO_EVENTS",
		MetricsExporter:       "none",
		MetricsExportInterval: 60,
		ServiceName:           "casino",
		Environment:           "test",
	}
}

func defaultSeats() map[models.GameType]int {
	return map[models.GameType]int{
		models.GameBlackjack: 5,
		models.GamePoker:     8,
		models.GameBaccarat:  10,
		models.GameRoulette:  10,
		models.GameCraps:     10,
	}
}

// load loads configuration from the environment, reading .env first if present
func load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		StorageBackend:        getEnvWithDefault("STORAGE_BACKEND", StorageBackendPostgres),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		DatabaseName:          os.Getenv("DATABASE_NAME"),
		StartingBalance:       decimal.NewFromInt(1000),
		ListenAddr:            getEnvWithDefault("LISTEN_ADDR", ":8080"),
		LogLevel:              getEnvWithDefault("LOG_LEVEL", "info"),
		SeatsPerGame:          defaultSeats(),
		NATSServers:           os.Getenv("NATS_SERVERS"),
		NATSStream:            getEnvWithDefault("NATS_STREAM", "CASINO_EVENTS"),
		MetricsEnabled:        os.Getenv("METRICS_ENABLED") == "true",
		MetricsExporter:       getEnvWithDefault("METRICS_EXPORTER", "console"),
		OTLPEndpoint:          getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		MetricsExportInterval: 60,
		ServiceName:           getEnvWithDefault("SERVICE_NAME", "casino"),
		Environment:           getEnvWithDefault("ENVIRONMENT", "development"),
	}

	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		parsed, err := decimal.NewFromString(balance)
		if err != nil || parsed.IsNegative() {
			return nil, fmt.Errorf("invalid STARTING_BALANCE %q", balance)
		}
		config.StartingBalance = parsed
	}
	if interval := os.Getenv("METRICS_EXPORT_INTERVAL"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil && parsed > 0 {
			config.MetricsExportInterval = parsed
		}
	}
	for _, game := range models.GameTypes {
		key := "SEATS_" + strings.ToUpper(string(game))
		if seats := os.Getenv(key); seats != "" {
			parsed, err := strconv.Atoi(seats)
			if err != nil || parsed < 1 {
				return nil, fmt.Errorf("invalid %s %q", key, seats)
			}
			config.SeatsPerGame[game] = parsed
		}
	}

	switch config.StorageBackend {
	case StorageBackendPostgres, StorageBackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", config.StorageBackend)
	}

	if config.Environment != "test" && config.StorageBackend == StorageBackendPostgres {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

// GetDatabaseURL returns the connection URL with DATABASE_NAME applied
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
