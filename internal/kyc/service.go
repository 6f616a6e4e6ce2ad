// Package kyc implements the verification lifecycle state machine. All
// mutations for one subject are serialized behind a per-subject lock and
// every state change emits an audit event.
package kyc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cred/internal/domain"
	"cred/internal/limits"
	"cred/pkg/clock"
	"cred/pkg/config"
	"cred/pkg/errors"
	"cred/pkg/logger"

	"github.com/google/uuid"
)

// RecordRepository persists KYC records. Update must be atomic per record;
// the postgres implementation additionally takes a row lock so the
// per-subject guarantee survives multiple engine instances.
type RecordRepository interface {
	Get(ctx context.Context, subjectID uuid.UUID) (*domain.KYCRecord, error)
	Create(ctx context.Context, record *domain.KYCRecord) error
	Update(ctx context.Context, record *domain.KYCRecord) error
	ListExpired(ctx context.Context, before time.Time) ([]uuid.UUID, error)
}

// AuditRepository appends to the audit trail.
type AuditRepository interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
}

type Service struct {
	records RecordRepository
	audit   AuditRepository
	limits  *limits.Calculator
	cfg     config.KYCConfig
	clock   clock.Clock
	logger  logger.Logger

	// subjectLocks serializes read-modify-write cycles per subject inside
	// this process.
	mu           sync.Mutex
	subjectLocks map[uuid.UUID]*sync.Mutex
}

func NewService(records RecordRepository, audit AuditRepository, calc *limits.Calculator, cfg config.KYCConfig, clk clock.Clock, log logger.Logger) *Service {
	return &Service{
		records:      records,
		audit:        audit,
		limits:       calc,
		cfg:          cfg,
		clock:        clk,
		logger:       log.Named("kyc"),
		subjectLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) lockSubject(subjectID uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.subjectLocks[subjectID]
	if !ok {
		l = &sync.Mutex{}
		s.subjectLocks[subjectID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Get returns the current record snapshot for a subject.
func (s *Service) Get(ctx context.Context, subjectID uuid.UUID) (*domain.KYCRecord, error) {
	return s.records.Get(ctx, subjectID)
}

// Enroll creates the PENDING record for a new enrollment. The scoring
// snapshot is stored immediately so a record parked for manual review
// still carries the level and risk the admin decision will apply.
// A subject whose previous record ended REJECTED or EXPIRED re-enters
// PENDING through a fresh enrollment; any other existing record makes
// the enrollment fail.
func (s *Service) Enroll(ctx context.Context, subjectID uuid.UUID, documentHash string, level domain.KYCLevel, riskLevel domain.RiskLevel, riskScore int, actor string) (*domain.KYCRecord, error) {
	unlock := s.lockSubject(subjectID)
	defer unlock()

	now := s.clock.Now()

	existing, err := s.records.Get(ctx, subjectID)
	switch {
	case errors.Is(err, errors.ErrRecordNotFound):
		record := domain.NewKYCRecord(subjectID, now)
		record.DocumentHash = documentHash
		record.Level = level
		record.RiskLevel = riskLevel
		record.RiskScore = riskScore

		if err := s.records.Create(ctx, record); err != nil {
			return nil, errors.Wrap(err, "failed to create kyc record")
		}
		s.emitAudit(ctx, actor, domain.AuditActionEnrolled, subjectID, nil, record, "")
		return record, nil

	case err != nil:
		return nil, err
	}

	if existing.Status != domain.KYCStatusRejected && existing.Status != domain.KYCStatusExpired {
		return nil, errors.Wrap(errors.ErrValidation, "subject already enrolled")
	}

	before := *existing
	fresh := domain.NewKYCRecord(subjectID, now)
	fresh.CreatedAt = existing.CreatedAt
	fresh.DocumentHash = documentHash
	fresh.Level = level
	fresh.RiskLevel = riskLevel
	fresh.RiskScore = riskScore

	if err := s.records.Update(ctx, fresh); err != nil {
		return nil, errors.Wrap(err, "failed to re-enroll kyc record")
	}
	s.emitAudit(ctx, actor, domain.AuditActionEnrolled, subjectID, &before, fresh, "re-enrollment")
	return fresh, nil
}

// Verify transitions a record to VERIFIED, stamps the expiry, whitelists
// the subject, and persists the limits for the given level and risk level.
func (s *Service) Verify(ctx context.Context, subjectID uuid.UUID, level domain.KYCLevel, riskLevel domain.RiskLevel, riskScore int, documentHash, verificationID, verifiedBy string) (*domain.KYCRecord, error) {
	return s.mutate(ctx, subjectID, verifiedBy, domain.AuditActionVerified, "", func(record *domain.KYCRecord) error {
		if err := validateTransition(record.Status, domain.KYCStatusVerified); err != nil {
			return err
		}

		now := s.clock.Now()
		expires := now.Add(s.cfg.VerificationValidity)

		record.Status = domain.KYCStatusVerified
		record.Level = level
		record.RiskLevel = riskLevel
		record.RiskScore = riskScore
		record.DocumentHash = documentHash
		record.VerificationID = verificationID
		record.VerifiedBy = verifiedBy
		record.VerifiedAt = &now
		record.ExpiresAt = &expires
		record.Whitelisted = true
		record.RejectionReason = ""
		record.Limits = s.limits.Calculate(level, riskLevel)
		return nil
	})
}

// Reject moves a record to the terminal REJECTED state.
func (s *Service) Reject(ctx context.Context, subjectID uuid.UUID, actor, reason string) (*domain.KYCRecord, error) {
	if reason == "" {
		return nil, errors.ErrReasonRequired
	}
	return s.mutate(ctx, subjectID, actor, domain.AuditActionRejected, reason, func(record *domain.KYCRecord) error {
		if err := validateTransition(record.Status, domain.KYCStatusRejected); err != nil {
			return err
		}
		record.Status = domain.KYCStatusRejected
		record.RejectionReason = reason
		record.Whitelisted = false
		return nil
	})
}

// Suspend pauses a verified record.
func (s *Service) Suspend(ctx context.Context, subjectID uuid.UUID, actor, reason string) (*domain.KYCRecord, error) {
	if reason == "" {
		return nil, errors.ErrReasonRequired
	}
	return s.mutate(ctx, subjectID, actor, domain.AuditActionSuspended, reason, func(record *domain.KYCRecord) error {
		if err := validateTransition(record.Status, domain.KYCStatusSuspended); err != nil {
			return err
		}
		record.Status = domain.KYCStatusSuspended
		return nil
	})
}

// Reinstate returns a suspended record to VERIFIED. The previous expiry is
// kept: suspension does not extend the verification validity.
func (s *Service) Reinstate(ctx context.Context, subjectID uuid.UUID, actor string) (*domain.KYCRecord, error) {
	return s.mutate(ctx, subjectID, actor, domain.AuditActionReinstated, "", func(record *domain.KYCRecord) error {
		if record.Status != domain.KYCStatusSuspended {
			if record.Status == domain.KYCStatusVerified {
				return errors.ErrAlreadyFinalized
			}
			return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, record.Status, domain.KYCStatusVerified)
		}
		record.Status = domain.KYCStatusVerified
		return nil
	})
}

// SetWhitelist toggles the whitelist flag. A blacklisted record cannot be
// re-whitelisted without clearing the blacklist first.
func (s *Service) SetWhitelist(ctx context.Context, subjectID uuid.UUID, actor string, whitelisted bool, reason string) (*domain.KYCRecord, error) {
	return s.mutate(ctx, subjectID, actor, domain.AuditActionWhitelistSet, reason, func(record *domain.KYCRecord) error {
		if whitelisted && record.Blacklisted {
			return errors.ErrBlacklisted
		}
		record.Whitelisted = whitelisted
		return nil
	})
}

// SetBlacklist toggles the blacklist flag. Blacklisting clears the
// whitelist in the same update so no intermediate state is observable.
func (s *Service) SetBlacklist(ctx context.Context, subjectID uuid.UUID, actor string, blacklisted bool, reason string) (*domain.KYCRecord, error) {
	if blacklisted && reason == "" {
		return nil, errors.ErrReasonRequired
	}
	return s.mutate(ctx, subjectID, actor, domain.AuditActionBlacklistSet, reason, func(record *domain.KYCRecord) error {
		record.Blacklisted = blacklisted
		if blacklisted {
			record.BlacklistReason = reason
			record.Whitelisted = false
		} else {
			record.BlacklistReason = ""
		}
		return nil
	})
}

// UpdateRisk stores a fresh risk score and level and recomputes the
// persisted limits in the same update.
func (s *Service) UpdateRisk(ctx context.Context, subjectID uuid.UUID, actor string, score int, level domain.RiskLevel) (*domain.KYCRecord, error) {
	return s.mutate(ctx, subjectID, actor, domain.AuditActionRiskRescored, "", func(record *domain.KYCRecord) error {
		record.RiskScore = score
		record.RiskLevel = level
		record.Limits = s.limits.Calculate(record.Level, level)
		return nil
	})
}

// ExpireDue sweeps VERIFIED records whose expiry has passed into EXPIRED.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.records.ListExpired(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list expired records")
	}

	expired := 0
	for _, subjectID := range due {
		_, err := s.mutate(ctx, subjectID, "system", domain.AuditActionExpired, "verification validity elapsed", func(record *domain.KYCRecord) error {
			if err := validateTransition(record.Status, domain.KYCStatusExpired); err != nil {
				return err
			}
			if record.ExpiresAt == nil || now.Before(*record.ExpiresAt) {
				return errors.ErrInvalidTransition
			}
			record.Status = domain.KYCStatusExpired
			return nil
		})
		if err != nil {
			// Concurrent admin action may have moved the record already.
			s.logger.Warn("expiry sweep skipped record", map[string]interface{}{
				"subject_id": subjectID,
				"error":      err.Error(),
			})
			continue
		}
		expired++
	}
	return expired, nil
}

// mutate runs one serialized read-modify-write cycle for a subject. The
// whole transition is atomic: a validation failure leaves the stored
// record untouched.
func (s *Service) mutate(ctx context.Context, subjectID uuid.UUID, actor, action, reason string, apply func(*domain.KYCRecord) error) (*domain.KYCRecord, error) {
	unlock := s.lockSubject(subjectID)
	defer unlock()

	record, err := s.records.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	before := *record
	if err := apply(record); err != nil {
		return nil, err
	}
	record.UpdatedAt = s.clock.Now()

	if err := s.records.Update(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to update kyc record")
	}

	s.emitAudit(ctx, actor, action, subjectID, &before, record, reason)

	s.logger.Info("kyc record updated", map[string]interface{}{
		"subject_id": subjectID,
		"action":     action,
		"status":     record.Status,
		"actor":      actor,
	})
	return record, nil
}

func (s *Service) emitAudit(ctx context.Context, actor, action string, subjectID uuid.UUID, before, after interface{}, reason string) {
	event := domain.NewAuditEvent(actor, action, subjectID, before, after, reason, s.clock.Now())
	if err := s.audit.Create(ctx, event); err != nil {
		s.logger.Error("failed to write audit event", map[string]interface{}{
			"subject_id": subjectID,
			"action":     action,
			"error":      err.Error(),
		})
	}
}
