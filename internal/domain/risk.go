package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskFactor is one named contribution to a composite score.
type RiskFactor struct {
	Name         string  `json:"name"`
	Contribution int     `json:"contribution"`
	Weight       float64 `json:"weight"`
	Detail       string  `json:"detail,omitempty"`
}

// RiskAssessment is the immutable output of one scoring invocation.
// The most recent assessment determines KYCRecord.RiskScore.
type RiskAssessment struct {
	ID        uuid.UUID    `json:"id"`
	SubjectID uuid.UUID    `json:"subject_id"`
	Score     int          `json:"score"` // composite, 0-100
	Level     RiskLevel    `json:"level"`
	Factors   []RiskFactor `json:"factors"`
	CreatedAt time.Time    `json:"created_at"`
}
