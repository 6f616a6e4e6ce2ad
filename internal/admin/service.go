// Package admin implements the decision workflow for manual review:
// authorization, the mandatory-reason rule, and outbound notification
// around the lifecycle transitions.
package admin

import (
	"context"
	"time"

	"cred/internal/domain"
	"cred/internal/notification"
	"cred/internal/risk"
	"cred/pkg/errors"
	"cred/pkg/logger"

	"github.com/google/uuid"
)

// Lifecycle is the slice of the state machine the workflow drives.
type Lifecycle interface {
	Get(ctx context.Context, subjectID uuid.UUID) (*domain.KYCRecord, error)
	Verify(ctx context.Context, subjectID uuid.UUID, level domain.KYCLevel, riskLevel domain.RiskLevel, riskScore int, documentHash, verificationID, verifiedBy string) (*domain.KYCRecord, error)
	Reject(ctx context.Context, subjectID uuid.UUID, actor, reason string) (*domain.KYCRecord, error)
	Suspend(ctx context.Context, subjectID uuid.UUID, actor, reason string) (*domain.KYCRecord, error)
	Reinstate(ctx context.Context, subjectID uuid.UUID, actor string) (*domain.KYCRecord, error)
	UpdateRisk(ctx context.Context, subjectID uuid.UUID, actor string, score int, level domain.RiskLevel) (*domain.KYCRecord, error)
	SetWhitelist(ctx context.Context, subjectID uuid.UUID, actor string, whitelisted bool, reason string) (*domain.KYCRecord, error)
	SetBlacklist(ctx context.Context, subjectID uuid.UUID, actor string, blacklisted bool, reason string) (*domain.KYCRecord, error)
}

const notifyTimeout = 5 * time.Second

type Service struct {
	lifecycle Lifecycle
	scorer    *risk.Scorer
	notifier  notification.Notifier
	logger    logger.Logger
}

func NewService(lifecycle Lifecycle, scorer *risk.Scorer, notifier notification.Notifier, log logger.Logger) *Service {
	return &Service{
		lifecycle: lifecycle,
		scorer:    scorer,
		notifier:  notifier,
		logger:    log.Named("admin"),
	}
}

// Approve verifies a record parked for manual review, applying the level
// and risk snapshot stored at enrollment.
func (s *Service) Approve(ctx context.Context, actor Actor, subjectID uuid.UUID) (*domain.KYCRecord, error) {
	if !actor.Can(PermApprove) {
		return nil, errors.ErrPermissionDenied
	}

	current, err := s.lifecycle.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	record, err := s.lifecycle.Verify(ctx, subjectID,
		current.Level, current.RiskLevel, current.RiskScore,
		current.DocumentHash, uuid.NewString(), actor.ID)
	if err != nil {
		return nil, err
	}

	s.dispatch(subjectID, notification.EventVerificationApproved, map[string]interface{}{
		"level": record.Level,
	})
	return record, nil
}

// Reject declines a record. The reason is mandatory and becomes part of
// the record and the audit trail.
func (s *Service) Reject(ctx context.Context, actor Actor, subjectID uuid.UUID, reason string) (*domain.KYCRecord, error) {
	if !actor.Can(PermReject) {
		return nil, errors.ErrPermissionDenied
	}

	record, err := s.lifecycle.Reject(ctx, subjectID, actor.ID, reason)
	if err != nil {
		return nil, err
	}

	s.dispatch(subjectID, notification.EventVerificationRejected, map[string]interface{}{
		"reason": reason,
	})
	return record, nil
}

// Suspend pauses a record pending investigation.
func (s *Service) Suspend(ctx context.Context, actor Actor, subjectID uuid.UUID, reason string) (*domain.KYCRecord, error) {
	if !actor.Can(PermSuspend) {
		return nil, errors.ErrPermissionDenied
	}

	record, err := s.lifecycle.Suspend(ctx, subjectID, actor.ID, reason)
	if err != nil {
		return nil, err
	}

	s.dispatch(subjectID, notification.EventAccountSuspended, map[string]interface{}{
		"reason": reason,
	})
	return record, nil
}

// Reinstate lifts a suspension.
func (s *Service) Reinstate(ctx context.Context, actor Actor, subjectID uuid.UUID) (*domain.KYCRecord, error) {
	if !actor.Can(PermReinstate) {
		return nil, errors.ErrPermissionDenied
	}

	record, err := s.lifecycle.Reinstate(ctx, subjectID, actor.ID)
	if err != nil {
		return nil, err
	}

	s.dispatch(subjectID, notification.EventAccountReinstated, nil)
	return record, nil
}

// Rescore stores a new risk score. The risk level is derived from the
// score and the limits are recomputed by the lifecycle in the same
// update.
func (s *Service) Rescore(ctx context.Context, actor Actor, subjectID uuid.UUID, score int) (*domain.KYCRecord, error) {
	if !actor.Can(PermRescore) {
		return nil, errors.ErrPermissionDenied
	}
	if score < 0 || score > 100 {
		return nil, errors.Wrap(errors.ErrValidation, "risk score must be within [0,100]")
	}

	level := s.scorer.DeriveLevel(score)
	record, err := s.lifecycle.UpdateRisk(ctx, subjectID, actor.ID, score, level)
	if err != nil {
		return nil, err
	}

	s.dispatch(subjectID, notification.EventRiskRescored, map[string]interface{}{
		"risk_level": level,
	})
	return record, nil
}

// SetWhitelist toggles the whitelist override.
func (s *Service) SetWhitelist(ctx context.Context, actor Actor, subjectID uuid.UUID, whitelisted bool, reason string) (*domain.KYCRecord, error) {
	if !actor.Can(PermWhitelist) {
		return nil, errors.ErrPermissionDenied
	}
	return s.lifecycle.SetWhitelist(ctx, subjectID, actor.ID, whitelisted, reason)
}

// SetBlacklist toggles the blacklist override.
func (s *Service) SetBlacklist(ctx context.Context, actor Actor, subjectID uuid.UUID, blacklisted bool, reason string) (*domain.KYCRecord, error) {
	if !actor.Can(PermBlacklist) {
		return nil, errors.ErrPermissionDenied
	}

	record, err := s.lifecycle.SetBlacklist(ctx, subjectID, actor.ID, blacklisted, reason)
	if err != nil {
		return nil, err
	}

	if blacklisted {
		s.dispatch(subjectID, notification.EventAccountBlacklisted, map[string]interface{}{
			"reason": reason,
		})
	}
	return record, nil
}

// dispatch sends the outcome notification without blocking the decision.
// The decision is already committed; a delivery failure is logged only.
func (s *Service) dispatch(subjectID uuid.UUID, eventType string, data map[string]interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, subjectID, eventType, data); err != nil {
			s.logger.Error("failed to dispatch notification", map[string]interface{}{
				"subject_id": subjectID,
				"event":      eventType,
				"error":      err.Error(),
			})
		}
	}()
}
