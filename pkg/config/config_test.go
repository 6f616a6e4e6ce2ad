package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, []string{"IR", "KP", "SY", "CU", "MM"}, cfg.Risk.HighRiskCountries)
	assert.Equal(t, 40, cfg.Risk.CountryHighPoints)
	assert.Equal(t, 30, cfg.Risk.PEPPoints)
	assert.Equal(t, 50, cfg.Risk.SanctionedPoints)
	assert.Equal(t, 90, cfg.Risk.CriticalThreshold)
	assert.Equal(t, 0, cfg.Risk.DocumentPoints["PASSPORT"])
	assert.Equal(t, 20, cfg.Risk.DocumentPoints["OTHER"])

	assert.Equal(t, 5, cfg.AML.StructuringMinCount)
	assert.True(t, cfg.AML.StructuringMinSum.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 24*time.Hour, cfg.AML.StructuringWindow)
	assert.Equal(t, 0.6, cfg.AML.FlagThreshold)
	assert.Equal(t, 0.8, cfg.AML.BlockThreshold)

	assert.Equal(t, 5*time.Second, cfg.Watchlist.SourceTimeout)
	assert.False(t, cfg.Watchlist.ConservativeOnFailure)

	assert.True(t, cfg.Limits.BaseDailyLimit.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, 365*24*time.Hour, cfg.KYC.VerificationValidity)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RISK_HIGH_RISK_COUNTRIES", "ir, kp")
	t.Setenv("AML_BLOCK_THRESHOLD", "0.9")
	t.Setenv("LIMIT_BASE_DAILY", "250000")
	t.Setenv("WATCHLIST_CONSERVATIVE_ON_FAILURE", "true")
	t.Setenv("WATCHLIST_HTTP_SOURCES", "ofac=https://screening.example.com/v1/check")

	cfg := Load()

	assert.Equal(t, []string{"IR", "KP"}, cfg.Risk.HighRiskCountries, "country codes are normalized to upper case")
	assert.Equal(t, 0.9, cfg.AML.BlockThreshold)
	assert.True(t, cfg.Limits.BaseDailyLimit.Equal(decimal.NewFromInt(250000)))
	assert.True(t, cfg.Watchlist.ConservativeOnFailure)
	assert.Equal(t, []string{"ofac=https://screening.example.com/v1/check"}, cfg.Watchlist.HTTPSources,
		"source URLs keep their case")
}

func TestNormalizeRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache.internal:6380")
	cfg := Load()
	assert.Equal(t, "cache.internal:6380", cfg.Redis.URL)
}

func TestValidateCore(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/cred")
	t.Setenv("JWT_SECRET", "unit-test-secret")
	assert.NoError(t, Load().ValidateCore())

	t.Setenv("JWT_SECRET", "change-this-secret")
	assert.Error(t, Load().ValidateCore())
}

func TestValidateCoreNamesEveryMissingSetting(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test-secret")

	cfg := Load()
	cfg.Database.URL = ""
	cfg.Redis.URL = " "
	cfg.Server.Port = ""

	err := cfg.ValidateCore()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
	assert.Contains(t, err.Error(), "SERVER_PORT")
}
