// Package compliance is the engine's service surface. It composes the
// scorer, the watchlist aggregator, the AML detector, the lifecycle
// state machine, and the enforcement gate behind one API so callers
// (enrollment, admin review, pre-transfer enforcement) share a single
// entry point.
package compliance

import (
	"context"

	"cred/internal/admin"
	"cred/internal/aml"
	"cred/internal/domain"
	"cred/internal/enforcement"
	"cred/internal/kyc"
	"cred/internal/risk"
	"cred/internal/watchlist"
	"cred/pkg/clock"
	"cred/pkg/errors"
	"cred/pkg/logger"
	"cred/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rejection reasons applied by the automatic enrollment decision.
const (
	reasonWatchlistMatch = "watchlist match"
	reasonCriticalRisk   = "critical risk score"
)

// AuditReader serves the audit trail query surface.
type AuditReader interface {
	ListBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]domain.AuditEvent, error)
}

// AuditWriter appends transfer decision events.
type AuditWriter interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
}

// HistoryRecorder appends committed transactions to the window the AML
// detectors read.
type HistoryRecorder interface {
	Record(ctx context.Context, tx *domain.TransactionRecord) error
}

type Service struct {
	validator  *validator.Validator
	scorer     *risk.Scorer
	aggregator *watchlist.Aggregator
	detector   *aml.Detector
	lifecycle  *kyc.Service
	gate       *enforcement.Gate
	admin      *admin.Service
	auditRead  AuditReader
	auditWrite AuditWriter
	history    HistoryRecorder
	clock      clock.Clock
	logger     logger.Logger
}

func NewService(
	val *validator.Validator,
	scorer *risk.Scorer,
	aggregator *watchlist.Aggregator,
	detector *aml.Detector,
	lifecycle *kyc.Service,
	gate *enforcement.Gate,
	adminSvc *admin.Service,
	auditRead AuditReader,
	auditWrite AuditWriter,
	history HistoryRecorder,
	clk clock.Clock,
	log logger.Logger,
) *Service {
	return &Service{
		validator:  val,
		scorer:     scorer,
		aggregator: aggregator,
		detector:   detector,
		lifecycle:  lifecycle,
		gate:       gate,
		admin:      adminSvc,
		auditRead:  auditRead,
		auditWrite: auditWrite,
		history:    history,
		clock:      clk,
		logger:     log.Named("compliance"),
	}
}

// StatusView is the externally observable verification state.
type StatusView struct {
	Record     *domain.KYCRecord `json:"record"`
	IsVerified bool              `json:"is_verified"`
}

// VerificationOutcome is the result of one enrollment run.
type VerificationOutcome struct {
	KYCRecord  *domain.KYCRecord        `json:"record"`
	Assessment *domain.RiskAssessment   `json:"assessment"`
	Watchlist  *domain.WatchlistVerdict `json:"watchlist"`

	// PendingReview is set when screening produced insufficient data and
	// the record was parked for a manual admin decision.
	PendingReview bool `json:"pending_review"`

	// Degraded is set when at least one external check failed; the
	// decision was still made from the checks that succeeded.
	Degraded bool `json:"degraded"`
}

// CheckStatus returns the current record and the composed verification
// invariant for a subject.
func (s *Service) CheckStatus(ctx context.Context, subjectID uuid.UUID) (*StatusView, error) {
	record, err := s.lifecycle.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		Record:     record,
		IsVerified: record.IsVerified(s.clock.Now()),
	}, nil
}

// InitiateVerification runs the enrollment pipeline: profile validation,
// risk scoring, watchlist screening, then the lifecycle transition. A
// watchlist match or a critical score rejects; insufficient screening
// data parks the record for manual review; everything else verifies and
// sets limits.
func (s *Service) InitiateVerification(ctx context.Context, profile *domain.Profile) (*VerificationOutcome, error) {
	if err := s.validator.Validate(profile); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, err.Error())
	}

	assessment := s.scorer.Score(profile)
	verdict := s.aggregator.Check(ctx, profile)
	level := s.scorer.DeriveKYCLevel(assessment.Score, profile)

	record, err := s.lifecycle.Enroll(ctx, profile.SubjectID, profile.DocumentHash,
		level, assessment.Level, assessment.Score, "system")
	if err != nil {
		return nil, err
	}

	outcome := &VerificationOutcome{
		KYCRecord:  record,
		Assessment: assessment,
		Watchlist:  verdict,
		Degraded:   verdict.Degraded,
	}

	switch {
	case verdict.Sanctioned:
		record, err = s.lifecycle.Reject(ctx, profile.SubjectID, "system", reasonWatchlistMatch)

	case assessment.Level == domain.RiskLevelCritical:
		record, err = s.lifecycle.Reject(ctx, profile.SubjectID, "system", reasonCriticalRisk)

	case verdict.InsufficientData:
		// No screening source answered. The record stays PENDING until
		// an admin approves or rejects it.
		outcome.PendingReview = true
		s.logger.Warn("enrollment parked for manual review", map[string]interface{}{
			"subject_id":     profile.SubjectID,
			"failed_sources": verdict.FailedSources,
		})

	default:
		record, err = s.lifecycle.Verify(ctx, profile.SubjectID, level,
			assessment.Level, assessment.Score, profile.DocumentHash,
			uuid.NewString(), "system")
	}
	if err != nil {
		return nil, err
	}

	if outcome.Degraded {
		event := domain.NewAuditEvent("system", domain.AuditActionScreeningDegraded,
			profile.SubjectID, nil, nil, errors.ErrExternalCheckDegraded.Error(), s.clock.Now())
		event.Metadata = domain.Metadata{
			"failed_sources":    verdict.FailedSources,
			"sources_succeeded": verdict.SourcesSucceeded,
		}
		if auditErr := s.auditWrite.Create(ctx, event); auditErr != nil {
			s.logger.Error("failed to audit degraded screening", map[string]interface{}{
				"subject_id": profile.SubjectID,
				"error":      auditErr.Error(),
			})
		}
	}

	outcome.KYCRecord = record
	s.logger.Info("verification initiated", map[string]interface{}{
		"subject_id": profile.SubjectID,
		"status":     record.Status,
		"risk_score": assessment.Score,
		"kyc_level":  level,
		"degraded":   outcome.Degraded,
	})
	return outcome, nil
}

// EvaluateTransaction runs the AML pattern detectors for a prospective
// transaction. The result can be passed to ValidateTransfer so the hot
// path consumes a precomputed verdict.
func (s *Service) EvaluateTransaction(ctx context.Context, subjectID uuid.UUID, amount decimal.Decimal, txCtx domain.TransactionContext) (*domain.AMLCheckResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrap(errors.ErrValidation, "amount must be positive")
	}
	return s.detector.Evaluate(ctx, subjectID, amount, txCtx)
}

// ValidateTransfer is the synchronous pre-transfer check. Every decision,
// allow or deny, lands in the audit trail.
func (s *Service) ValidateTransfer(ctx context.Context, subjectID uuid.UUID, amount decimal.Decimal, amlResult *domain.AMLCheckResult) error {
	err := s.gate.ValidateTransfer(ctx, subjectID, amount, amlResult)

	action := domain.AuditActionTransferAllowed
	reason := ""
	if err != nil {
		action = domain.AuditActionTransferDenied
		reason = err.Error()
	}

	event := domain.NewAuditEvent("system", action, subjectID, nil, map[string]interface{}{
		"amount": amount,
	}, reason, s.clock.Now())
	if auditErr := s.auditWrite.Create(ctx, event); auditErr != nil {
		s.logger.Error("failed to audit transfer decision", map[string]interface{}{
			"subject_id": subjectID,
			"action":     action,
			"error":      auditErr.Error(),
		})
	}

	return err
}

// RecordTransfer is called after the caller commits a transfer. It
// advances the rolling usage counters and appends the transaction to the
// history window.
func (s *Service) RecordTransfer(ctx context.Context, subjectID uuid.UUID, amount decimal.Decimal, txCtx domain.TransactionContext) error {
	if err := s.gate.RecordTransfer(ctx, subjectID, amount); err != nil {
		return err
	}

	record := &domain.TransactionRecord{
		ID:         txCtx.TransactionID,
		SubjectID:  subjectID,
		Amount:     amount,
		ChainDepth: txCtx.ChainDepth,
		Country:    txCtx.CounterpartyCountry,
		OccurredAt: s.clock.Now(),
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := s.history.Record(ctx, record); err != nil {
		return errors.Wrap(err, "failed to append transaction history")
	}
	return nil
}

// AuditTrail returns the most recent audit events for a subject.
func (s *Service) AuditTrail(ctx context.Context, subjectID uuid.UUID, limit int) ([]domain.AuditEvent, error) {
	return s.auditRead.ListBySubject(ctx, subjectID, limit)
}

// ExpireDue sweeps verified records whose validity elapsed. Wired to a
// background ticker in the engine main.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	return s.lifecycle.ExpireDue(ctx)
}

// Admin decision surface. Authorization and notification live in the
// admin workflow; the facade only forwards.

func (s *Service) Approve(ctx context.Context, actor admin.Actor, subjectID uuid.UUID) (*domain.KYCRecord, error) {
	return s.admin.Approve(ctx, actor, subjectID)
}

func (s *Service) Reject(ctx context.Context, actor admin.Actor, subjectID uuid.UUID, reason string) (*domain.KYCRecord, error) {
	return s.admin.Reject(ctx, actor, subjectID, reason)
}

func (s *Service) Suspend(ctx context.Context, actor admin.Actor, subjectID uuid.UUID, reason string) (*domain.KYCRecord, error) {
	return s.admin.Suspend(ctx, actor, subjectID, reason)
}

func (s *Service) Reinstate(ctx context.Context, actor admin.Actor, subjectID uuid.UUID) (*domain.KYCRecord, error) {
	return s.admin.Reinstate(ctx, actor, subjectID)
}

func (s *Service) UpdateRiskScore(ctx context.Context, actor admin.Actor, subjectID uuid.UUID, score int) (*domain.KYCRecord, error) {
	return s.admin.Rescore(ctx, actor, subjectID, score)
}

func (s *Service) SetWhitelist(ctx context.Context, actor admin.Actor, subjectID uuid.UUID, whitelisted bool, reason string) (*domain.KYCRecord, error) {
	return s.admin.SetWhitelist(ctx, actor, subjectID, whitelisted, reason)
}

func (s *Service) SetBlacklist(ctx context.Context, actor admin.Actor, subjectID uuid.UUID, blacklisted bool, reason string) (*domain.KYCRecord, error) {
	return s.admin.SetBlacklist(ctx, actor, subjectID, blacklisted, reason)
}
