package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RefreshMode selects how the price refresh job replaces table contents.
type RefreshMode string

const (
	// RefreshSwap writes the new rows under a fresh version and repoints the
	// current-version marker once they are all stored.
	RefreshSwap RefreshMode = "swap"
	// RefreshLegacy clears the table, then fetches, then inserts.
	RefreshLegacy RefreshMode = "legacy"
)

// Market data sources.
const (
	SourceCoinGecko = "coingecko"
	SourceAlpaca    = "alpaca"
)

// Config is read once at process start and handed to every component.
type Config struct {
	Environment   string
	LogLevel      string
	Region        string
	ServerAddress string

	// Users
	UsersTable       string
	EmailIndex       string
	UniqueEmailGuard bool

	// Prices
	PricesTable   string
	RefreshMode   RefreshMode
	MarketSource  string
	CoinGeckoURL  string
	CoinLimit     int
	MarketTimeout time.Duration
	AlpacaKey     string
	AlpacaSecret  string
	AlpacaSymbols []string

	// Export
	ExportBucket    string
	ExportSortField string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	env := &envParser{}
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Region:      getEnv("AWS_REGION", "eu-west-1"),

		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),

		UsersTable:       os.Getenv("STORAGE_USERS_NAME"),
		EmailIndex:       getEnv("USERS_EMAIL_INDEX", "emailIndex"),
		UniqueEmailGuard: env.boolean("USERS_UNIQUE_EMAIL_GUARD", false),

		PricesTable:   getEnv("STORAGE_CRYPTOPRICEALEX_NAME", "CryptoPrices"),
		RefreshMode:   RefreshMode(getEnv("REFRESH_MODE", string(RefreshSwap))),
		MarketSource:  getEnv("MARKET_DATA_SOURCE", SourceCoinGecko),
		CoinGeckoURL:  getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		CoinLimit:     env.integer("COINGECKO_PER_PAGE", 10),
		MarketTimeout: env.duration("MARKET_HTTP_TIMEOUT", 10*time.Second),
		AlpacaKey:     os.Getenv("ALPACA_API_KEY"),
		AlpacaSecret:  os.Getenv("ALPACA_SECRET_KEY"),
		AlpacaSymbols: getEnvList("ALPACA_CRYPTO_SYMBOLS", []string{"BTC/USD", "ETH/USD"}),

		ExportBucket:    os.Getenv("EXPORT_BUCKET_NAME"),
		ExportSortField: getEnv("EXPORT_SORT_FIELD", "name"),
	}
	if err := env.err(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values every entry point relies on. Table and bucket
// names are checked by the Require* helpers of the entry points that need
// them.
func (c *Config) Validate() error {
	switch c.RefreshMode {
	case RefreshSwap, RefreshLegacy:
	default:
		return fmt.Errorf("REFRESH_MODE must be %q or %q, got %q", RefreshSwap, RefreshLegacy, c.RefreshMode)
	}

	switch c.MarketSource {
	case SourceCoinGecko, SourceAlpaca:
	default:
		return fmt.Errorf("MARKET_DATA_SOURCE must be %q or %q, got %q", SourceCoinGecko, SourceAlpaca, c.MarketSource)
	}

	if c.CoinLimit <= 0 {
		return fmt.Errorf("COINGECKO_PER_PAGE must be positive, got %d", c.CoinLimit)
	}
	if c.PricesTable == "" {
		return fmt.Errorf("STORAGE_CRYPTOPRICEALEX_NAME must not be empty")
	}
	return nil
}

// RequireUsers checks the settings of the user handlers.
func (c *Config) RequireUsers() error {
	if c.UsersTable == "" {
		return fmt.Errorf("STORAGE_USERS_NAME is required")
	}
	return nil
}

// RequireExport checks the settings of the export job.
func (c *Config) RequireExport() error {
	if c.ExportBucket == "" {
		return fmt.Errorf("EXPORT_BUCKET_NAME is required")
	}
	return nil
}

// IsDevelopment reports whether the process runs outside AWS.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads typed variables and remembers every malformed one, so a
// typo fails Load instead of silently selecting the default.
type envParser struct {
	errs []error
}

func (p *envParser) boolean(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "":
		return defaultValue
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		p.errs = append(p.errs, fmt.Errorf("%s must be a boolean, got %q", key, os.Getenv(key)))
		return defaultValue
	}
}

func (p *envParser) integer(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return n
}

func (p *envParser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a duration such as 10s, got %q", key, value))
		return defaultValue
	}
	return d
}

func (p *envParser) err() error { return errors.Join(p.errs...) }

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
