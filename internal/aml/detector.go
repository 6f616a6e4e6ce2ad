// Package aml evaluates transactions against a configurable set of
// money-laundering pattern detectors.
package aml

import (
	"context"
	"time"

	"cred/internal/domain"
	"cred/pkg/clock"
	"cred/pkg/config"
	"cred/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// HistoryProvider returns a subject's transactions inside a time window.
type HistoryProvider interface {
	Window(ctx context.Context, subjectID uuid.UUID, from, to time.Time) ([]domain.TransactionRecord, error)
}

type Detector struct {
	cfg     config.AMLConfig
	history HistoryProvider
	clock   clock.Clock
	logger  logger.Logger
}

func NewDetector(cfg config.AMLConfig, history HistoryProvider, clk clock.Clock, log logger.Logger) *Detector {
	return &Detector{
		cfg:     cfg,
		history: history,
		clock:   clk,
		logger:  log.Named("aml"),
	}
}

// patternCheck is one independent, side-effect-free detector over the
// historical window plus the transaction under evaluation.
type patternCheck func(in *evaluation) *domain.PatternMatch

type evaluation struct {
	subjectID uuid.UUID
	amount    decimal.Decimal
	txCtx     domain.TransactionContext
	window    []domain.TransactionRecord
	now       time.Time
}

// Evaluate runs every applicable detector concurrently and folds the
// triggered weights into an aggregate score clipped to [0,1]. A history
// read failure does not abort the evaluation: the history-dependent
// detectors are skipped and the result is marked degraded.
func (d *Detector) Evaluate(ctx context.Context, subjectID uuid.UUID, amount decimal.Decimal, txCtx domain.TransactionContext) (*domain.AMLCheckResult, error) {
	now := d.clock.Now()

	in := &evaluation{
		subjectID: subjectID,
		amount:    amount,
		txCtx:     txCtx,
		now:       now,
	}

	result := &domain.AMLCheckResult{
		ID:            uuid.New(),
		TransactionID: txCtx.TransactionID,
		SubjectID:     subjectID,
		Amount:        amount,
		EvaluatedAt:   now,
	}

	// One read covers the widest window; each detector narrows it.
	window, err := d.history.Window(ctx, subjectID, now.Add(-d.widestWindow()), now)
	if err != nil {
		d.logger.Warn("history read failed, evaluating without window", map[string]interface{}{
			"subject_id": subjectID,
			"error":      err.Error(),
		})
		result.Degraded = true
	} else {
		in.window = window
	}

	checks := []patternCheck{
		d.checkHighValue,
		d.checkUnusualTiming,
		d.checkGeographicRisk,
	}
	if !result.Degraded {
		checks = append(checks, d.checkStructuring, d.checkLayering, d.checkRapidMovement)
	}

	matches := make([]*domain.PatternMatch, len(checks))
	g, _ := errgroup.WithContext(ctx)
	for i, check := range checks {
		i, check := i, check
		g.Go(func() error {
			matches[i] = check(in)
			return nil
		})
	}
	_ = g.Wait()

	score := 0.0
	for _, m := range matches {
		if m == nil {
			continue
		}
		result.Patterns = append(result.Patterns, *m)
		score += m.Weight
	}
	if score > 1 {
		score = 1
	}

	result.RiskScore = score
	result.Flagged = score >= d.cfg.FlagThreshold
	result.Blocked = score >= d.cfg.BlockThreshold

	if result.Flagged || result.Blocked {
		d.logger.Warn("transaction flagged by pattern detectors", map[string]interface{}{
			"subject_id":     subjectID,
			"transaction_id": txCtx.TransactionID,
			"risk_score":     score,
			"patterns":       len(result.Patterns),
			"blocked":        result.Blocked,
		})
	}

	return result, nil
}

func (d *Detector) widestWindow() time.Duration {
	widest := d.cfg.StructuringWindow
	if d.cfg.LayeringWindow > widest {
		widest = d.cfg.LayeringWindow
	}
	if d.cfg.RapidMovementWindow > widest {
		widest = d.cfg.RapidMovementWindow
	}
	return widest
}

// ==============================================================================
// DETECTORS
// ==============================================================================

// checkStructuring fires when many sub-threshold transactions inside the
// trailing window add up past the reporting threshold.
func (d *Detector) checkStructuring(in *evaluation) *domain.PatternMatch {
	cutoff := in.now.Add(-d.cfg.StructuringWindow)

	count := 1 // the transaction under evaluation
	sum := in.amount
	for _, tx := range in.window {
		if tx.OccurredAt.Before(cutoff) {
			continue
		}
		count++
		sum = sum.Add(tx.Amount)
	}

	if count >= d.cfg.StructuringMinCount && sum.GreaterThanOrEqual(d.cfg.StructuringMinSum) {
		return &domain.PatternMatch{
			Pattern:     domain.PatternStructuring,
			Confidence:  1,
			Weight:      d.cfg.StructuringWeight,
			Description: "repeated sub-threshold transfers inside the trailing window",
		}
	}
	return nil
}

// checkLayering fires on transaction chains deep enough to suggest
// deliberate obfuscation of origin.
func (d *Detector) checkLayering(in *evaluation) *domain.PatternMatch {
	cutoff := in.now.Add(-d.cfg.LayeringWindow)

	depth := in.txCtx.ChainDepth
	for _, tx := range in.window {
		if tx.OccurredAt.Before(cutoff) {
			continue
		}
		if tx.ChainDepth > depth {
			depth = tx.ChainDepth
		}
	}

	if depth >= d.cfg.LayeringMinDepth {
		return &domain.PatternMatch{
			Pattern:     domain.PatternLayering,
			Confidence:  1,
			Weight:      d.cfg.LayeringWeight,
			Description: "multi-hop transaction chain inside the trailing window",
		}
	}
	return nil
}

func (d *Detector) checkRapidMovement(in *evaluation) *domain.PatternMatch {
	cutoff := in.now.Add(-d.cfg.RapidMovementWindow)

	sum := in.amount
	for _, tx := range in.window {
		if tx.OccurredAt.Before(cutoff) {
			continue
		}
		sum = sum.Add(tx.Amount)
	}

	if sum.GreaterThanOrEqual(d.cfg.RapidMovementMinSum) {
		return &domain.PatternMatch{
			Pattern:     domain.PatternRapidMovement,
			Confidence:  1,
			Weight:      d.cfg.RapidMovementWeight,
			Description: "high volume moved inside a short window",
		}
	}
	return nil
}

func (d *Detector) checkHighValue(in *evaluation) *domain.PatternMatch {
	if in.amount.GreaterThanOrEqual(d.cfg.HighValueAmount) {
		return &domain.PatternMatch{
			Pattern:     domain.PatternHighValue,
			Confidence:  1,
			Weight:      d.cfg.HighValueWeight,
			Description: "single transaction above the high-value threshold",
		}
	}
	return nil
}

func (d *Detector) checkUnusualTiming(in *evaluation) *domain.PatternMatch {
	localTime := in.txCtx.LocalTime
	if localTime.IsZero() {
		localTime = in.now
	}

	hour := localTime.Hour()
	if hour >= d.cfg.NightStartHour || hour <= d.cfg.NightEndHour {
		return &domain.PatternMatch{
			Pattern:     domain.PatternUnusualTiming,
			Confidence:  1,
			Weight:      d.cfg.UnusualTimingWeight,
			Description: "transaction outside normal local hours",
		}
	}
	return nil
}

func (d *Detector) checkGeographicRisk(in *evaluation) *domain.PatternMatch {
	for _, c := range d.cfg.HighRiskCountries {
		if c == in.txCtx.CounterpartyCountry || c == in.txCtx.AccountCountry {
			return &domain.PatternMatch{
				Pattern:     domain.PatternGeographicRisk,
				Confidence:  1,
				Weight:      d.cfg.GeographicWeight,
				Description: "counterparty or account in a high-risk jurisdiction",
			}
		}
	}
	return nil
}
