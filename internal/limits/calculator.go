// Package limits derives transaction limits from KYC level and risk level.
package limits

import (
	"cred/internal/domain"
	"cred/pkg/config"

	"github.com/shopspring/decimal"
)

var (
	two    = decimal.NewFromInt(2)
	ten    = decimal.NewFromInt(10)
	thirty = decimal.NewFromInt(30)
	twelve = decimal.NewFromInt(12)
)

type Calculator struct {
	base decimal.Decimal
}

func NewCalculator(cfg config.LimitsConfig) *Calculator {
	return &Calculator{base: cfg.BaseDailyLimit}
}

// Calculate is pure: the same level and risk level always yield the same
// limits. Callers persist the result on the KYC record whenever either
// input changes; the gate never recomputes limits on the transfer path.
func (c *Calculator) Calculate(level domain.KYCLevel, riskLevel domain.RiskLevel) domain.TransactionLimits {
	daily := c.base

	switch level {
	case domain.KYCLevelBasic:
		daily = daily.Div(ten)
	case domain.KYCLevelEnhanced:
		daily = daily.Div(two)
	case domain.KYCLevelPremium:
		// full base
	}

	switch riskLevel {
	case domain.RiskLevelHigh:
		daily = daily.Div(two)
	case domain.RiskLevelCritical:
		daily = daily.Div(ten)
	}

	monthly := daily.Mul(thirty)

	return domain.TransactionLimits{
		Daily:   daily,
		Monthly: monthly,
		Total:   monthly.Mul(twelve),
	}
}
