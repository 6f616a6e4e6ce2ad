package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Profile carries the identity attributes submitted at enrollment.
// Document extraction and biometric matching happen upstream; the engine
// only sees the extracted fields and the document content hash.
type Profile struct {
	SubjectID    uuid.UUID `json:"subject_id" validate:"required"`
	Nationality  string    `json:"nationality" validate:"required,iso_country"`
	DateOfBirth  time.Time `json:"date_of_birth" validate:"required,past_date"`
	DocumentType string    `json:"document_type" validate:"required"`
	DocumentNo   string    `json:"document_number" validate:"required"`
	DocumentHash string    `json:"document_hash" validate:"required"`
	IsPEP        bool      `json:"is_pep"`
	IsSanctioned bool      `json:"is_sanctioned"`

	// ExpectedTransactionAmount is the declared typical transfer size,
	// used only for KYC level derivation.
	ExpectedTransactionAmount decimal.Decimal `json:"expected_transaction_amount"`

	// FullName is only used for watchlist screening.
	FullName string `json:"full_name" validate:"required"`
}

// Age returns the subject's age in whole years at the given instant.
func (p *Profile) Age(now time.Time) int {
	years := now.Year() - p.DateOfBirth.Year()
	anniversary := p.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
