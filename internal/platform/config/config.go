package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage backends selectable with DATA_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds application configuration.
type Config struct {
	Port         string
	IsProduction bool
	LogLevel     slog.Level

	DataBackend   string
	SQLiteDBPath  string
	DatabaseURL   string
	EnableDBCheck bool

	MaxAmount            decimal.Decimal
	MaxDescriptionLength int
	DefaultPeriodDays    int
	MaxRenewalDays       int

	ReadModelRefreshInterval time.Duration

	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	RateLimit          string
	CORSAllowedOrigins []string

	problems []error
}

// Binding lets a caller attach extra sources, such as command line flags, to the viper instance.
type Binding func(v *viper.Viper) error

// LoadConfig loads configuration from environment variables and .env file if present.
// Bindings are applied last, so a bound flag that was set wins over the environment.
func LoadConfig(bindings ...Binding) (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_BACKEND", BackendSQLite)
	v.SetDefault("SQLITE_DB_PATH", "./data/allowance.db")
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("ENABLE_DB_CHECK", true)
	v.SetDefault("MAX_AMOUNT", "999999.99")
	v.SetDefault("MAX_DESCRIPTION_LENGTH", domain.DefaultMaxDescriptionLength)
	v.SetDefault("DEFAULT_PERIOD_DAYS", 30)
	v.SetDefault("MAX_RENEWAL_DAYS", 365)
	v.SetDefault("READ_MODEL_REFRESH_INTERVAL", "1m")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "allowance")
	v.SetDefault("AMQP_ROUTING_KEY", "budget.snapshot")
	v.SetDefault("RATE_LIMIT", "60-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	// Environment variables override .env values, which override the defaults above.
	v.AutomaticEnv()

	for _, bind := range bindings {
		if err := bind(v); err != nil {
			return nil, fmt.Errorf("bind configuration source: %w", err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:                 v.GetString("PORT"),
		IsProduction:         v.GetBool("IS_PRODUCTION"),
		DataBackend:          strings.ToLower(strings.TrimSpace(v.GetString("DATA_BACKEND"))),
		SQLiteDBPath:         v.GetString("SQLITE_DB_PATH"),
		DatabaseURL:          v.GetString("PGSQL_URL"),
		EnableDBCheck:        v.GetBool("ENABLE_DB_CHECK"),
		MaxDescriptionLength: v.GetInt("MAX_DESCRIPTION_LENGTH"),
		DefaultPeriodDays:    v.GetInt("DEFAULT_PERIOD_DAYS"),
		MaxRenewalDays:       v.GetInt("MAX_RENEWAL_DAYS"),
		AMQPURL:              v.GetString("AMQP_URL"),
		AMQPExchange:         v.GetString("AMQP_EXCHANGE"),
		AMQPRoutingKey:       v.GetString("AMQP_ROUTING_KEY"),
		RateLimit:            v.GetString("RATE_LIMIT"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		cfg.problems = append(cfg.problems, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	maxAmount, err := decimal.NewFromString(strings.TrimSpace(v.GetString("MAX_AMOUNT")))
	if err != nil {
		cfg.problems = append(cfg.problems, fmt.Errorf("MAX_AMOUNT %q is not a number", v.GetString("MAX_AMOUNT")))
	}
	cfg.MaxAmount = maxAmount

	refreshStr := v.GetString("READ_MODEL_REFRESH_INTERVAL")
	refresh, err := time.ParseDuration(refreshStr)
	if err != nil {
		cfg.problems = append(cfg.problems, fmt.Errorf("READ_MODEL_REFRESH_INTERVAL %q: %w", refreshStr, err))
	}
	cfg.ReadModelRefreshInterval = refresh

	for _, origin := range strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	problems := append([]error(nil), c.problems...)

	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			problems = append(problems, errors.New("SQLITE_DB_PATH is required for the sqlite backend"))
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			problems = append(problems, errors.New("PGSQL_URL is required for the postgres backend"))
		}
	default:
		problems = append(problems, fmt.Errorf("DATA_BACKEND %q is not one of memory, sqlite, postgres", c.DataBackend))
	}

	if !c.MaxAmount.IsPositive() {
		problems = append(problems, errors.New("MAX_AMOUNT must be greater than zero"))
	}
	if c.MaxDescriptionLength <= 0 {
		problems = append(problems, errors.New("MAX_DESCRIPTION_LENGTH must be greater than zero"))
	}
	if c.DefaultPeriodDays <= 0 {
		problems = append(problems, errors.New("DEFAULT_PERIOD_DAYS must be greater than zero"))
	}
	if c.MaxRenewalDays < c.DefaultPeriodDays {
		problems = append(problems, errors.New("MAX_RENEWAL_DAYS must not be less than DEFAULT_PERIOD_DAYS"))
	}
	if c.ReadModelRefreshInterval < 0 {
		problems = append(problems, errors.New("READ_MODEL_REFRESH_INTERVAL must not be negative"))
	}

	for _, origin := range c.CORSAllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			problems = append(problems, fmt.Errorf("CORS_ALLOWED_ORIGINS entry %q must be * or start with http:// or https://", origin))
		}
	}

	if c.AMQPURL != "" {
		u, err := url.Parse(c.AMQPURL)
		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			problems = append(problems, errors.New("AMQP_URL must use the amqp or amqps scheme"))
		}
		if strings.TrimSpace(c.AMQPExchange) == "" {
			problems = append(problems, errors.New("AMQP_EXCHANGE is required when AMQP_URL is set"))
		}
	}

	return errors.Join(problems...)
}

// ValidationRules converts the limits into the domain's rule set.
func (c *Config) ValidationRules() domain.ValidationRules {
	rules := domain.DefaultValidationRules()
	if c.MaxAmount.IsPositive() {
		rules.MaxAmount = domain.MoneyFromDecimal(c.MaxAmount)
	}
	if c.MaxDescriptionLength > 0 {
		rules.MaxDescriptionLength = c.MaxDescriptionLength
	}
	if c.DefaultPeriodDays > 0 {
		rules.DefaultPeriodLength = time.Duration(c.DefaultPeriodDays) * 24 * time.Hour
	}
	if c.MaxRenewalDays > 0 {
		rules.MaxRenewalHorizon = time.Duration(c.MaxRenewalDays) * 24 * time.Hour
	}
	return rules
}

// AMQPEnabled reports whether snapshots should be forwarded to a broker.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}
