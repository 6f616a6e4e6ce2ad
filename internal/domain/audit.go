package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEvent is one append-only entry in the compliance audit trail.
// Before/after snapshots are stored as raw JSON so historical decisions
// can be replayed exactly as they were taken.
type AuditEvent struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Actor       string          `json:"actor" db:"actor"`
	Action      string          `json:"action" db:"action"`
	SubjectID   uuid.UUID       `json:"subject_id" db:"subject_id"`
	BeforeState json.RawMessage `json:"before_state,omitempty" db:"before_state"`
	AfterState  json.RawMessage `json:"after_state,omitempty" db:"after_state"`
	Reason      string          `json:"reason,omitempty" db:"reason"`
	Metadata    Metadata        `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Audit actions emitted by the lifecycle manager and admin workflow.
const (
	AuditActionEnrolled        = "KYC_ENROLLED"
	AuditActionVerified        = "KYC_VERIFIED"
	AuditActionRejected        = "KYC_REJECTED"
	AuditActionSuspended       = "KYC_SUSPENDED"
	AuditActionReinstated      = "KYC_REINSTATED"
	AuditActionExpired         = "KYC_EXPIRED"
	AuditActionWhitelistSet    = "WHITELIST_SET"
	AuditActionBlacklistSet    = "BLACKLIST_SET"
	AuditActionRiskRescored    = "RISK_RESCORED"
	AuditActionTransferDenied  = "TRANSFER_DENIED"
	AuditActionTransferAllowed = "TRANSFER_ALLOWED"

	AuditActionScreeningDegraded = "SCREENING_DEGRADED"
)

// NewAuditEvent builds an event with marshalled snapshots. Marshal errors
// are swallowed: a snapshot that cannot be encoded must not block the
// decision it records.
func NewAuditEvent(actor, action string, subjectID uuid.UUID, before, after interface{}, reason string, now time.Time) *AuditEvent {
	ev := &AuditEvent{
		ID:        uuid.New(),
		Actor:     actor,
		Action:    action,
		SubjectID: subjectID,
		Reason:    reason,
		CreatedAt: now,
	}
	if before != nil {
		ev.BeforeState, _ = json.Marshal(before)
	}
	if after != nil {
		ev.AfterState, _ = json.Marshal(after)
	}
	return ev
}
