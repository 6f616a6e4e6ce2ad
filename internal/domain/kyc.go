// Package domain defines the core business entities for the compliance engine.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==============================================================================
// ENUMS & STATUS TYPES
// ==============================================================================

// KYCStatus represents the verification lifecycle status.
type KYCStatus string

const (
	KYCStatusPending   KYCStatus = "pending"
	KYCStatusVerified  KYCStatus = "verified"
	KYCStatusRejected  KYCStatus = "rejected"
	KYCStatusExpired   KYCStatus = "expired"
	KYCStatusSuspended KYCStatus = "suspended"
)

// KYCLevel represents the depth of verification performed.
type KYCLevel string

const (
	KYCLevelBasic    KYCLevel = "basic"
	KYCLevelEnhanced KYCLevel = "enhanced"
	KYCLevelPremium  KYCLevel = "premium"
)

// RiskLevel classifies the composite risk score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// ==============================================================================
// STORAGE CODES
// ==============================================================================
// The storage and wire layers carry statuses and levels as small integers.
// The mappings below are the only place those codes appear; everything else
// works with the typed string enums.

var kycStatusCodes = map[KYCStatus]int{
	KYCStatusPending:   0,
	KYCStatusVerified:  1,
	KYCStatusRejected:  2,
	KYCStatusExpired:   3,
	KYCStatusSuspended: 4,
}

var kycLevelCodes = map[KYCLevel]int{
	KYCLevelBasic:    0,
	KYCLevelEnhanced: 1,
	KYCLevelPremium:  2,
}

var riskLevelCodes = map[RiskLevel]int{
	RiskLevelLow:      0,
	RiskLevelMedium:   1,
	RiskLevelHigh:     2,
	RiskLevelCritical: 3,
}

// Code returns the integer storage code for the status.
func (s KYCStatus) Code() (int, error) {
	code, ok := kycStatusCodes[s]
	if !ok {
		return 0, fmt.Errorf("unknown kyc status %q", s)
	}
	return code, nil
}

// KYCStatusFromCode maps a storage code back to a status.
func KYCStatusFromCode(code int) (KYCStatus, error) {
	for s, c := range kycStatusCodes {
		if c == code {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown kyc status code %d", code)
}

func (l KYCLevel) Code() (int, error) {
	code, ok := kycLevelCodes[l]
	if !ok {
		return 0, fmt.Errorf("unknown kyc level %q", l)
	}
	return code, nil
}

func KYCLevelFromCode(code int) (KYCLevel, error) {
	for l, c := range kycLevelCodes {
		if c == code {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown kyc level code %d", code)
}

func (r RiskLevel) Code() (int, error) {
	code, ok := riskLevelCodes[r]
	if !ok {
		return 0, fmt.Errorf("unknown risk level %q", r)
	}
	return code, nil
}

func RiskLevelFromCode(code int) (RiskLevel, error) {
	for r, c := range riskLevelCodes {
		if c == code {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown risk level code %d", code)
}

// ==============================================================================
// METADATA
// ==============================================================================

// Metadata is a free-form JSON column attached to audit snapshots.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}

// ==============================================================================
// KYC RECORD
// ==============================================================================

// TransactionLimits holds the persisted spend ceilings for a subject.
// They are recomputed whenever level or risk level changes, never lazily,
// so "what limit applied at time T" stays reproducible from the audit trail.
type TransactionLimits struct {
	Daily   decimal.Decimal `json:"daily" db:"daily_limit"`
	Monthly decimal.Decimal `json:"monthly" db:"monthly_limit"`
	Total   decimal.Decimal `json:"total" db:"total_limit"`
}

// KYCRecord is the per-subject verification state. It is the only mutable
// shared resource in the engine; all mutations go through the lifecycle
// manager under a per-subject lock.
type KYCRecord struct {
	SubjectID       uuid.UUID         `json:"subject_id" db:"subject_id"`
	Status          KYCStatus         `json:"status" db:"status"`
	Level           KYCLevel          `json:"level" db:"level"`
	RiskLevel       RiskLevel         `json:"risk_level" db:"risk_level"`
	RiskScore       int               `json:"risk_score" db:"risk_score"`
	DocumentHash    string            `json:"document_hash" db:"document_hash"`
	VerificationID  string            `json:"verification_id" db:"verification_id"`
	VerifiedAt      *time.Time        `json:"verified_at,omitempty" db:"verified_at"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty" db:"expires_at"`
	Whitelisted     bool              `json:"whitelisted" db:"whitelisted"`
	Blacklisted     bool              `json:"blacklisted" db:"blacklisted"`
	BlacklistReason string            `json:"blacklist_reason,omitempty" db:"blacklist_reason"`
	Limits          TransactionLimits `json:"limits"`
	VerifiedBy      string            `json:"verified_by,omitempty" db:"verified_by"`
	RejectionReason string            `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// IsVerified reports whether the subject may currently hold and move value.
// It holds iff the record is verified, unexpired, whitelisted, and not
// blacklisted. All four legs are checked here and nowhere else.
func (r *KYCRecord) IsVerified(now time.Time) bool {
	if r.Status != KYCStatusVerified {
		return false
	}
	if r.ExpiresAt == nil || !now.Before(*r.ExpiresAt) {
		return false
	}
	return r.Whitelisted && !r.Blacklisted
}

// IsActive reports whether the record participates in the system at all.
// Blacklisting forces it false in the same update that clears the whitelist.
func (r *KYCRecord) IsActive() bool {
	return !r.Blacklisted && r.Status != KYCStatusRejected && r.Status != KYCStatusExpired
}

// NewKYCRecord creates the PENDING record produced at enrollment.
func NewKYCRecord(subjectID uuid.UUID, now time.Time) *KYCRecord {
	return &KYCRecord{
		SubjectID: subjectID,
		Status:    KYCStatusPending,
		Level:     KYCLevelBasic,
		RiskLevel: RiskLevelLow,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
