package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PatternType names one AML detection pattern.
type PatternType string

const (
	PatternStructuring    PatternType = "structuring"
	PatternLayering       PatternType = "layering"
	PatternRapidMovement  PatternType = "rapid_movement"
	PatternHighValue      PatternType = "high_value"
	PatternUnusualTiming  PatternType = "unusual_timing"
	PatternGeographicRisk PatternType = "geographic_risk"
)

// PatternMatch is one detector hit with its confidence.
type PatternMatch struct {
	Pattern     PatternType `json:"pattern"`
	Confidence  float64     `json:"confidence"`
	Weight      float64     `json:"weight"`
	Description string      `json:"description,omitempty"`
}

// AMLCheckResult is produced per transaction evaluation. The aggregate
// score is the clipped sum of triggered pattern weights in [0,1].
type AMLCheckResult struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	SubjectID     uuid.UUID       `json:"subject_id"`
	Amount        decimal.Decimal `json:"amount"`
	Patterns      []PatternMatch  `json:"patterns"`
	RiskScore     float64         `json:"risk_score"` // 0-1
	Flagged       bool            `json:"flagged"`
	Blocked       bool            `json:"blocked"`
	Degraded      bool            `json:"degraded"` // a detector could not read history
	EvaluatedAt   time.Time       `json:"evaluated_at"`
}

// TransactionContext carries the per-transaction attributes the detectors
// need beyond amount and history.
type TransactionContext struct {
	TransactionID       uuid.UUID `json:"transaction_id"`
	CounterpartyCountry string    `json:"counterparty_country,omitempty"`
	AccountCountry      string    `json:"account_country,omitempty"`
	LocalTime           time.Time `json:"local_time"`
	ChainDepth          int       `json:"chain_depth"` // hops observed for layering
}

// TransactionRecord is one historical transaction in a subject's window.
type TransactionRecord struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	SubjectID  uuid.UUID       `json:"subject_id" db:"subject_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	ChainDepth int             `json:"chain_depth" db:"chain_depth"`
	Country    string          `json:"country" db:"country"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
}
