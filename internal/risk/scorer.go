// Package risk implements the profile risk scorer. Scoring is a pure
// function of the profile and configuration: no I/O, no hidden state.
package risk

import (
	"cred/internal/domain"
	"cred/pkg/clock"
	"cred/pkg/config"

	"github.com/google/uuid"
)

type Scorer struct {
	cfg   config.RiskConfig
	clock clock.Clock
}

func NewScorer(cfg config.RiskConfig, clk clock.Clock) *Scorer {
	return &Scorer{cfg: cfg, clock: clk}
}

// Score maps a profile to a composite risk assessment. Contributions are
// additive and the composite is clipped to [0,100].
func (s *Scorer) Score(profile *domain.Profile) *domain.RiskAssessment {
	now := s.clock.Now()

	var factors []domain.RiskFactor
	score := 0

	if pts := s.countryPoints(profile.Nationality); pts > 0 {
		factors = append(factors, domain.RiskFactor{
			Name:         "country_risk",
			Contribution: pts,
			Detail:       profile.Nationality,
		})
		score += pts
	}

	age := profile.Age(now)
	if age < s.cfg.YoungAgeLimit || age > s.cfg.OldAgeLimit {
		factors = append(factors, domain.RiskFactor{
			Name:         "age_risk",
			Contribution: s.cfg.AgePoints,
		})
		score += s.cfg.AgePoints
	}

	if pts, ok := s.cfg.DocumentPoints[profile.DocumentType]; ok && pts > 0 {
		factors = append(factors, domain.RiskFactor{
			Name:         "document_risk",
			Contribution: pts,
			Detail:       profile.DocumentType,
		})
		score += pts
	}

	if profile.IsPEP {
		factors = append(factors, domain.RiskFactor{
			Name:         "pep",
			Contribution: s.cfg.PEPPoints,
		})
		score += s.cfg.PEPPoints
	}

	if profile.IsSanctioned {
		factors = append(factors, domain.RiskFactor{
			Name:         "sanctioned",
			Contribution: s.cfg.SanctionedPoints,
		})
		score += s.cfg.SanctionedPoints
	}

	score = clip(score)

	return &domain.RiskAssessment{
		ID:        uuid.New(),
		SubjectID: profile.SubjectID,
		Score:     score,
		Level:     s.DeriveLevel(score),
		Factors:   factors,
		CreatedAt: now,
	}
}

// DeriveLevel maps a composite score to its risk level.
func (s *Scorer) DeriveLevel(score int) domain.RiskLevel {
	switch {
	case score >= s.cfg.CriticalThreshold:
		return domain.RiskLevelCritical
	case score >= s.cfg.HighThreshold:
		return domain.RiskLevelHigh
	case score >= s.cfg.MediumThreshold:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelLow
	}
}

// DeriveKYCLevel decides the verification depth a profile requires.
// PEPs and high scores always get PREMIUM; declared transaction volume
// can raise BASIC to ENHANCED.
func (s *Scorer) DeriveKYCLevel(score int, profile *domain.Profile) domain.KYCLevel {
	if score >= s.cfg.PremiumScoreThreshold || profile.IsPEP {
		return domain.KYCLevelPremium
	}
	if score >= s.cfg.EnhancedScoreThreshold ||
		profile.ExpectedTransactionAmount.GreaterThan(s.cfg.EnhancedAmountThreshold) {
		return domain.KYCLevelEnhanced
	}
	return domain.KYCLevelBasic
}

func (s *Scorer) countryPoints(nationality string) int {
	for _, c := range s.cfg.HighRiskCountries {
		if c == nationality {
			return s.cfg.CountryHighPoints
		}
	}
	for _, c := range s.cfg.MediumRiskCountries {
		if c == nationality {
			return s.cfg.CountryMediumPoints
		}
	}
	return 0
}

func clip(score int) int {
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
