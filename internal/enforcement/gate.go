// Package enforcement implements the synchronous pre-transfer gate. The
// gate consumes only already-materialized state: the stored KYC record,
// the rolling usage counters, and an optionally precomputed AML verdict.
// Scoring and screening never happen on this path.
package enforcement

import (
	"context"

	"cred/internal/domain"
	"cred/pkg/clock"
	"cred/pkg/errors"
	"cred/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordReader provides the current KYC record snapshot.
type RecordReader interface {
	Get(ctx context.Context, subjectID uuid.UUID) (*domain.KYCRecord, error)
}

// Usage is the rolling spend consumed against each limit period.
type Usage struct {
	Daily   decimal.Decimal
	Monthly decimal.Decimal
	Total   decimal.Decimal
}

// UsageStore tracks rolling usage per subject. Record is called by the
// transfer executor after a transfer commits; the gate only reads.
type UsageStore interface {
	Usage(ctx context.Context, subjectID uuid.UUID) (Usage, error)
	Record(ctx context.Context, subjectID uuid.UUID, amount decimal.Decimal) error
}

type Gate struct {
	records RecordReader
	usage   UsageStore
	clock   clock.Clock
	logger  logger.Logger
}

func NewGate(records RecordReader, usage UsageStore, clk clock.Clock, log logger.Logger) *Gate {
	return &Gate{
		records: records,
		usage:   usage,
		clock:   clk,
		logger:  log.Named("enforcement"),
	}
}

// ValidateTransfer decides whether the subject may move the given amount
// right now. Every returned error is fail-closed: the caller must not
// execute the transfer. amlResult may be nil when no per-transaction
// screening was requested.
func (g *Gate) ValidateTransfer(ctx context.Context, subjectID uuid.UUID, amount decimal.Decimal, amlResult *domain.AMLCheckResult) error {
	record, err := g.records.Get(ctx, subjectID)
	if err != nil {
		return err
	}

	if err := g.checkRecord(record); err != nil {
		g.logger.Warn("transfer denied", map[string]interface{}{
			"subject_id": subjectID,
			"amount":     amount,
			"reason":     err.Error(),
		})
		return err
	}

	if amlResult != nil && amlResult.Blocked {
		g.logger.Warn("transfer denied", map[string]interface{}{
			"subject_id": subjectID,
			"amount":     amount,
			"reason":     "aml verdict blocked",
			"aml_score":  amlResult.RiskScore,
		})
		return errors.ErrTransactionBlocked
	}

	if err := g.checkLimits(ctx, record, amount); err != nil {
		g.logger.Warn("transfer denied", map[string]interface{}{
			"subject_id": subjectID,
			"amount":     amount,
			"reason":     err.Error(),
		})
		return err
	}

	return nil
}

// RecordTransfer advances the rolling usage counters after the caller has
// committed the transfer.
func (g *Gate) RecordTransfer(ctx context.Context, subjectID uuid.UUID, amount decimal.Decimal) error {
	return g.usage.Record(ctx, subjectID, amount)
}

// checkRecord evaluates the status flags, most specific denial first.
func (g *Gate) checkRecord(record *domain.KYCRecord) error {
	if record.Blacklisted {
		return errors.ErrBlacklisted
	}
	if !record.Whitelisted {
		return errors.ErrNotWhitelisted
	}
	if record.Status != domain.KYCStatusVerified {
		return errors.ErrNotVerified
	}
	now := g.clock.Now()
	if record.ExpiresAt == nil || !now.Before(*record.ExpiresAt) {
		return errors.ErrExpired
	}
	// Belt and braces: the individual flags above imply this, but the
	// composed invariant is what the rest of the system observes.
	if !record.IsVerified(now) {
		return errors.ErrNotVerified
	}
	return nil
}

func (g *Gate) checkLimits(ctx context.Context, record *domain.KYCRecord, amount decimal.Decimal) error {
	usage, err := g.usage.Usage(ctx, record.SubjectID)
	if err != nil {
		// Fail closed: without usage data the limit cannot be proven.
		return errors.Wrap(err, "usage lookup failed")
	}

	if usage.Daily.Add(amount).GreaterThan(record.Limits.Daily) {
		return errors.ErrDailyLimitExceeded
	}
	if usage.Monthly.Add(amount).GreaterThan(record.Limits.Monthly) {
		return errors.ErrMonthlyLimitExceeded
	}
	if usage.Total.Add(amount).GreaterThan(record.Limits.Total) {
		return errors.ErrTotalLimitExceeded
	}
	return nil
}
