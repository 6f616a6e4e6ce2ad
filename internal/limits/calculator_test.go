package limits

import (
	"testing"

	"cred/internal/domain"
	"cred/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newCalculator() *Calculator {
	return NewCalculator(config.LimitsConfig{BaseDailyLimit: decimal.NewFromInt(100000)})
}

func TestCalculateByLevel(t *testing.T) {
	c := newCalculator()

	basic := c.Calculate(domain.KYCLevelBasic, domain.RiskLevelLow)
	enhanced := c.Calculate(domain.KYCLevelEnhanced, domain.RiskLevelLow)
	premium := c.Calculate(domain.KYCLevelPremium, domain.RiskLevelLow)

	assert.True(t, basic.Daily.Equal(decimal.NewFromInt(10000)))
	assert.True(t, enhanced.Daily.Equal(decimal.NewFromInt(50000)))
	assert.True(t, premium.Daily.Equal(decimal.NewFromInt(100000)))
}

func TestCalculateRiskAdjustment(t *testing.T) {
	c := newCalculator()

	high := c.Calculate(domain.KYCLevelPremium, domain.RiskLevelHigh)
	critical := c.Calculate(domain.KYCLevelPremium, domain.RiskLevelCritical)

	assert.True(t, high.Daily.Equal(decimal.NewFromInt(50000)), "HIGH halves the base")
	assert.True(t, critical.Daily.Equal(decimal.NewFromInt(10000)), "CRITICAL divides by 10")
}

func TestCalculateDerivedPeriods(t *testing.T) {
	c := newCalculator()

	l := c.Calculate(domain.KYCLevelBasic, domain.RiskLevelLow)

	assert.True(t, l.Monthly.Equal(l.Daily.Mul(decimal.NewFromInt(30))))
	assert.True(t, l.Total.Equal(l.Monthly.Mul(decimal.NewFromInt(12))))
}

func TestCalculateMonotonicInRiskLevel(t *testing.T) {
	c := newCalculator()

	levels := []domain.KYCLevel{domain.KYCLevelBasic, domain.KYCLevelEnhanced, domain.KYCLevelPremium}
	ordered := []domain.RiskLevel{
		domain.RiskLevelLow,
		domain.RiskLevelMedium,
		domain.RiskLevelHigh,
		domain.RiskLevelCritical,
	}

	for _, level := range levels {
		prev := decimal.Decimal{}
		for i, rl := range ordered {
			daily := c.Calculate(level, rl).Daily
			if i > 0 {
				assert.True(t, daily.LessThanOrEqual(prev),
					"daily(%s, %s) must not exceed daily at lower risk", level, rl)
			}
			prev = daily
		}
	}
}
