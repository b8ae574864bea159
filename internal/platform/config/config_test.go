package config

import (
	"testing"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	v.SetDefault("DATA_BACKEND", BackendSQLite)
	v.SetDefault("SQLITE_DB_PATH", "./data/allowance.db")
	v.SetDefault("MAX_AMOUNT", "999999.99")
	v.SetDefault("MAX_DESCRIPTION_LENGTH", 50)
	v.SetDefault("DEFAULT_PERIOD_DAYS", 30)
	v.SetDefault("MAX_RENEWAL_DAYS", 365)
	v.SetDefault("READ_MODEL_REFRESH_INTERVAL", "1m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg := fromViper(v)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.DataBackend)
	assert.Equal(t, time.Minute, cfg.ReadModelRefreshInterval)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.AMQPEnabled())
	require.NoError(t, cfg.Validate())

	rules := cfg.ValidationRules()
	assert.Equal(t, domain.DefaultMaxAmount, rules.MaxAmount)
	assert.Equal(t, 30*24*time.Hour, rules.DefaultPeriodLength)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("DATA_BACKEND", "Memory")
	t.Setenv("MAX_AMOUNT", "250.50")
	t.Setenv("DEFAULT_PERIOD_DAYS", "14")
	t.Setenv("READ_MODEL_REFRESH_INTERVAL", "0s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.DataBackend)
	assert.True(t, cfg.MaxAmount.Equal(decimal.RequireFromString("250.5")))
	assert.Equal(t, domain.Money(25050), cfg.ValidationRules().MaxAmount)
	assert.Equal(t, 14*24*time.Hour, cfg.ValidationRules().DefaultPeriodLength)
	assert.Zero(t, cfg.ReadModelRefreshInterval)
}

func TestConfig_ValidateCollectsEveryProblem(t *testing.T) {
	cfg := &Config{
		DataBackend:          BackendPostgres,
		MaxAmount:            decimal.Zero,
		MaxDescriptionLength: 0,
		DefaultPeriodDays:    30,
		MaxRenewalDays:       10,
		AMQPURL:              "http://broker",
		AMQPExchange:         "allowance",
		CORSAllowedOrigins:   []string{"localhost:3000"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "PGSQL_URL is required")
	assert.Contains(t, msg, "MAX_AMOUNT must be greater than zero")
	assert.Contains(t, msg, "MAX_DESCRIPTION_LENGTH")
	assert.Contains(t, msg, "MAX_RENEWAL_DAYS")
	assert.Contains(t, msg, "amqp or amqps")
	assert.Contains(t, msg, `"localhost:3000"`)
}

func TestConfig_ValidateRejectsUnknownBackend(t *testing.T) {
	cfg := &Config{
		DataBackend:          "mongo",
		MaxAmount:            decimal.NewFromInt(10),
		MaxDescriptionLength: 50,
		DefaultPeriodDays:    30,
		MaxRenewalDays:       365,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `DATA_BACKEND "mongo"`)
}

func TestLoadConfig_BindingsOverrideEnvironment(t *testing.T) {
	t.Setenv("DATA_BACKEND", BackendPostgres)

	cfg, err := LoadConfig(func(v *viper.Viper) error {
		v.Set("DATA_BACKEND", BackendMemory)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.DataBackend)

	_, err = LoadConfig(func(*viper.Viper) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
}
