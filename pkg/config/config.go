// Package config holds the typed configuration for the compliance engine.
// Every tunable used by the risk scorer, AML detectors, watchlist
// aggregator and limit calculator is an explicit field with a documented
// default; nothing is read from ad hoc key/value bags at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Risk      RiskConfig
	AML       AMLConfig
	Watchlist WatchlistConfig
	Limits    LimitsConfig
	KYC       KYCConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// RiskConfig drives the profile risk scorer. Scores are additive points
// clipped to [0,100].
type RiskConfig struct {
	// Country lists use upper-case ISO 3166-1 alpha-2 codes.
	HighRiskCountries   []string
	MediumRiskCountries []string
	CountryHighPoints   int // default 40
	CountryMediumPoints int // default 20

	// Age band outside [YoungAgeLimit, OldAgeLimit] adds AgePoints.
	AgePoints     int // default 10
	YoungAgeLimit int // default 25
	OldAgeLimit   int // default 65

	// DocumentPoints maps document type to its risk contribution (0-20).
	DocumentPoints map[string]int

	PEPPoints        int // default 30
	SanctionedPoints int // default 50

	// Level thresholds on the composite score.
	CriticalThreshold int // default 90
	HighThreshold     int // default 70
	MediumThreshold   int // default 30

	// PremiumScoreThreshold and EnhancedScoreThreshold derive the KYC level
	// from the composite score; EnhancedAmountThreshold upgrades BASIC to
	// ENHANCED when the declared expected transaction amount exceeds it.
	PremiumScoreThreshold   int // default 70
	EnhancedScoreThreshold  int // default 30
	EnhancedAmountThreshold decimal.Decimal
}

// AMLConfig drives the transaction pattern detectors. Weights sum into an
// aggregate score clipped to [0,1].
type AMLConfig struct {
	StructuringMinCount int             // default 5
	StructuringMinSum   decimal.Decimal // default 10000
	StructuringWindow   time.Duration   // default 24h
	StructuringWeight   float64         // default 0.3

	LayeringMinDepth int           // default 3
	LayeringWindow   time.Duration // default 1h
	LayeringWeight   float64       // default 0.4

	RapidMovementMinSum decimal.Decimal // default 50000
	RapidMovementWindow time.Duration   // default 5m
	RapidMovementWeight float64         // default 0.2

	HighValueAmount decimal.Decimal // default 100000
	HighValueWeight float64         // default 0.6

	// Local hours >= NightStartHour or <= NightEndHour count as unusual.
	NightStartHour      int     // default 22
	NightEndHour        int     // default 6
	UnusualTimingWeight float64 // default 0.2

	HighRiskCountries []string
	GeographicWeight  float64 // default 0.8

	FlagThreshold  float64 // default 0.6
	BlockThreshold float64 // default 0.8
}

// WatchlistConfig bounds the sanctions source fan-out.
type WatchlistConfig struct {
	SourceTimeout time.Duration // per-source budget, default 5s
	BatchTimeout  time.Duration // overall join budget, default 10s

	// ConservativeOnFailure applies FailureConfidenceFloor to the verdict
	// when any source errors, instead of silently excluding the failure.
	ConservativeOnFailure  bool    // default false (preserves source behavior)
	FailureConfidenceFloor float64 // default 0.5

	// VerdictCacheTTL bounds how long a clean screening verdict may be
	// reused before the sources are queried again. 0 disables caching.
	VerdictCacheTTL time.Duration

	// HTTPSources lists remote screening providers as name=url pairs.
	HTTPSources []string

	// StaticEntries seeds the built-in list source with full names,
	// screened at confidence 0.9. Meant for dev and test environments.
	StaticEntries []string
}

// LimitsConfig holds the base limit every derived limit scales from.
type LimitsConfig struct {
	BaseDailyLimit decimal.Decimal // default 100000
}

type KYCConfig struct {
	VerificationValidity time.Duration // default 8760h (365 days)
	ExpirySweepInterval  time.Duration // default 1h; 0 disables the sweep
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "change-this-secret"),
			Expiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),
		},
		Risk:      loadRiskConfig(),
		AML:       loadAMLConfig(),
		Watchlist: loadWatchlistConfig(),
		Limits: LimitsConfig{
			BaseDailyLimit: getDecimalEnv("LIMIT_BASE_DAILY", decimal.NewFromInt(100000)),
		},
		KYC: KYCConfig{
			VerificationValidity: getDurationEnv("KYC_VERIFICATION_VALIDITY", 365*24*time.Hour),
			ExpirySweepInterval:  getDurationEnv("KYC_EXPIRY_SWEEP_INTERVAL", time.Hour),
		},
	}
}

func loadRiskConfig() RiskConfig {
	return RiskConfig{
		HighRiskCountries:   getListEnv("RISK_HIGH_RISK_COUNTRIES", []string{"IR", "KP", "SY", "CU", "MM"}),
		MediumRiskCountries: getListEnv("RISK_MEDIUM_RISK_COUNTRIES", []string{"PK", "NG", "VE", "YE", "AF"}),
		CountryHighPoints:   getIntEnv("RISK_COUNTRY_HIGH_POINTS", 40),
		CountryMediumPoints: getIntEnv("RISK_COUNTRY_MEDIUM_POINTS", 20),
		AgePoints:           getIntEnv("RISK_AGE_POINTS", 10),
		YoungAgeLimit:       getIntEnv("RISK_YOUNG_AGE_LIMIT", 25),
		OldAgeLimit:         getIntEnv("RISK_OLD_AGE_LIMIT", 65),
		DocumentPoints: map[string]int{
			"PASSPORT":        0,
			"NATIONAL_ID":     5,
			"DRIVERS_LICENSE": 10,
			"RESIDENCE_CARD":  15,
			"OTHER":           20,
		},
		PEPPoints:               getIntEnv("RISK_PEP_POINTS", 30),
		SanctionedPoints:        getIntEnv("RISK_SANCTIONED_POINTS", 50),
		CriticalThreshold:       getIntEnv("RISK_CRITICAL_THRESHOLD", 90),
		HighThreshold:           getIntEnv("RISK_HIGH_THRESHOLD", 70),
		MediumThreshold:         getIntEnv("RISK_MEDIUM_THRESHOLD", 30),
		PremiumScoreThreshold:   getIntEnv("RISK_PREMIUM_SCORE_THRESHOLD", 70),
		EnhancedScoreThreshold:  getIntEnv("RISK_ENHANCED_SCORE_THRESHOLD", 30),
		EnhancedAmountThreshold: getDecimalEnv("RISK_ENHANCED_AMOUNT_THRESHOLD", decimal.NewFromInt(10000)),
	}
}

func loadAMLConfig() AMLConfig {
	return AMLConfig{
		StructuringMinCount: getIntEnv("AML_STRUCTURING_MIN_COUNT", 5),
		StructuringMinSum:   getDecimalEnv("AML_STRUCTURING_MIN_SUM", decimal.NewFromInt(10000)),
		StructuringWindow:   getDurationEnv("AML_STRUCTURING_WINDOW", 24*time.Hour),
		StructuringWeight:   getFloatEnv("AML_STRUCTURING_WEIGHT", 0.3),

		LayeringMinDepth: getIntEnv("AML_LAYERING_MIN_DEPTH", 3),
		LayeringWindow:   getDurationEnv("AML_LAYERING_WINDOW", time.Hour),
		LayeringWeight:   getFloatEnv("AML_LAYERING_WEIGHT", 0.4),

		RapidMovementMinSum: getDecimalEnv("AML_RAPID_MOVEMENT_MIN_SUM", decimal.NewFromInt(50000)),
		RapidMovementWindow: getDurationEnv("AML_RAPID_MOVEMENT_WINDOW", 5*time.Minute),
		RapidMovementWeight: getFloatEnv("AML_RAPID_MOVEMENT_WEIGHT", 0.2),

		HighValueAmount: getDecimalEnv("AML_HIGH_VALUE_AMOUNT", decimal.NewFromInt(100000)),
		HighValueWeight: getFloatEnv("AML_HIGH_VALUE_WEIGHT", 0.6),

		NightStartHour:      getIntEnv("AML_NIGHT_START_HOUR", 22),
		NightEndHour:        getIntEnv("AML_NIGHT_END_HOUR", 6),
		UnusualTimingWeight: getFloatEnv("AML_UNUSUAL_TIMING_WEIGHT", 0.2),

		HighRiskCountries: getListEnv("AML_HIGH_RISK_COUNTRIES", []string{"IR", "KP", "SY", "CU", "MM"}),
		GeographicWeight:  getFloatEnv("AML_GEOGRAPHIC_WEIGHT", 0.8),

		FlagThreshold:  getFloatEnv("AML_FLAG_THRESHOLD", 0.6),
		BlockThreshold: getFloatEnv("AML_BLOCK_THRESHOLD", 0.8),
	}
}

func loadWatchlistConfig() WatchlistConfig {
	return WatchlistConfig{
		SourceTimeout:          getDurationEnv("WATCHLIST_SOURCE_TIMEOUT", 5*time.Second),
		BatchTimeout:           getDurationEnv("WATCHLIST_BATCH_TIMEOUT", 10*time.Second),
		ConservativeOnFailure:  getBoolEnv("WATCHLIST_CONSERVATIVE_ON_FAILURE", false),
		FailureConfidenceFloor: getFloatEnv("WATCHLIST_FAILURE_CONFIDENCE_FLOOR", 0.5),
		VerdictCacheTTL:        getDurationEnv("WATCHLIST_VERDICT_CACHE_TTL", time.Hour),
		HTTPSources:            getRawListEnv("WATCHLIST_HTTP_SOURCES", nil),
		StaticEntries:          getRawListEnv("WATCHLIST_STATIC_ENTRIES", nil),
	}
}

// ValidateCore checks the settings the engine cannot start without.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		missing = append(missing, "REDIS_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" || c.JWT.Secret == "change-this-secret" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getRawListEnv splits a comma list without upper-casing, for values such
// as URLs where case matters.
func getRawListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
