package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	Graph   GraphConfig
	Logging LoggingConfig
	Ledger  LedgerConfig
	Fraud   FraudConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// GraphConfig describes connectivity to the Neo4j journal. An empty URI
// disables journaling.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
	WriteTimeout   time.Duration
}

// Enabled reports whether a graph URI was configured.
func (g GraphConfig) Enabled() bool {
	return g.URI != ""
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	Colored       bool
	IncludeCaller bool
}

// LedgerConfig holds the default terms for newly opened accounts.
type LedgerConfig struct {
	SavingsRate       decimal.Decimal
	CheckingOverdraft decimal.Decimal
}

// FraudConfig holds the detector thresholds and scan behaviour.
type FraudConfig struct {
	LargeAmount      decimal.Decimal
	VelocityWindow   time.Duration
	VelocityMaxBurst int
	ScanMode         string // incremental|rescan
	ScanWorkers      int
	EnforceBlacklist bool
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultGraphTimeout     = 5 * time.Second
	defaultSavingsRate      = "0.02"
	defaultOverdraft        = "1000"
	defaultLargeAmount      = "10000.00"
	defaultVelocityWindow   = 60 * time.Second
	defaultVelocityMaxBurst = 3
	defaultScanMode         = "incremental"
	defaultScanWorkers      = 4
)

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:              valueOrDefault("SERVER_HOST", defaultHost),
			AllowedOriginsCSV: os.Getenv("SERVER_ALLOWED_ORIGINS"),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			Colored:       parseBoolWithDefault("LOG_COLOR", false),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Fraud: FraudConfig{
			VelocityMaxBurst: parseIntWithDefault("FRAUD_VELOCITY_MAX_BURST", defaultVelocityMaxBurst),
			ScanMode:         strings.ToLower(valueOrDefault("FRAUD_SCAN_MODE", defaultScanMode)),
			ScanWorkers:      parseIntWithDefault("FRAUD_SCAN_WORKERS", defaultScanWorkers),
			EnforceBlacklist: parseBoolWithDefault("FRAUD_ENFORCE_BLACKLIST", false),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", defaultIdleTimeout, &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"GRAPH_WRITE_TIMEOUT", defaultGraphTimeout, &cfg.Graph.WriteTimeout},
		{"FRAUD_VELOCITY_WINDOW", defaultVelocityWindow, &cfg.Fraud.VelocityWindow},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.key, d.fallback); err != nil {
			return Config{}, err
		}
	}

	amounts := []struct {
		key      string
		fallback string
		dst      *decimal.Decimal
	}{
		{"LEDGER_SAVINGS_RATE", defaultSavingsRate, &cfg.Ledger.SavingsRate},
		{"LEDGER_CHECKING_OVERDRAFT", defaultOverdraft, &cfg.Ledger.CheckingOverdraft},
		{"FRAUD_LARGE_AMOUNT", defaultLargeAmount, &cfg.Fraud.LargeAmount},
	}
	for _, a := range amounts {
		if *a.dst, err = parseDecimal(a.key, a.fallback); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Ledger.SavingsRate.IsNegative() {
		return fmt.Errorf("LEDGER_SAVINGS_RATE must not be negative, got %s", c.Ledger.SavingsRate)
	}
	if c.Ledger.CheckingOverdraft.IsNegative() {
		return fmt.Errorf("LEDGER_CHECKING_OVERDRAFT must not be negative, got %s", c.Ledger.CheckingOverdraft)
	}
	if !c.Fraud.LargeAmount.IsPositive() {
		return fmt.Errorf("FRAUD_LARGE_AMOUNT must be positive, got %s", c.Fraud.LargeAmount)
	}
	if c.Fraud.VelocityWindow <= 0 {
		return fmt.Errorf("FRAUD_VELOCITY_WINDOW must be positive, got %s", c.Fraud.VelocityWindow)
	}
	if c.Fraud.VelocityMaxBurst <= 0 {
		return fmt.Errorf("FRAUD_VELOCITY_MAX_BURST must be positive, got %d", c.Fraud.VelocityMaxBurst)
	}
	switch c.Fraud.ScanMode {
	case "incremental", "rescan":
	default:
		return fmt.Errorf("FRAUD_SCAN_MODE must be incremental or rescan, got %q", c.Fraud.ScanMode)
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseDecimal(key, fallback string) (decimal.Decimal, error) {
	v := valueOrDefault(key, fallback)
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
