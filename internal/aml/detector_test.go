package aml

import (
	"context"
	"errors"
	"testing"
	"time"

	"cred/internal/domain"
	"cred/pkg/clock"
	"cred/pkg/config"
	"cred/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHistory struct {
	records []domain.TransactionRecord
	err     error
}

func (s *stubHistory) Window(ctx context.Context, subjectID uuid.UUID, from, to time.Time) ([]domain.TransactionRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.TransactionRecord
	for _, r := range s.records {
		if !r.OccurredAt.Before(from) && !r.OccurredAt.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newDetector(history HistoryProvider) *Detector {
	return NewDetector(config.Load().AML, history, clock.NewFake(testNow), logger.NewNop())
}

func record(subjectID uuid.UUID, amount int64, age time.Duration) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		Amount:     decimal.NewFromInt(amount),
		OccurredAt: testNow.Add(-age),
	}
}

func daytimeCtx() domain.TransactionContext {
	return domain.TransactionContext{
		TransactionID: uuid.New(),
		LocalTime:     testNow, // 12:00, inside normal hours
	}
}

func findPattern(t *testing.T, result *domain.AMLCheckResult, p domain.PatternType) *domain.PatternMatch {
	t.Helper()
	for i := range result.Patterns {
		if result.Patterns[i].Pattern == p {
			return &result.Patterns[i]
		}
	}
	return nil
}

func TestEvaluateStructuring(t *testing.T) {
	subjectID := uuid.New()

	// Four prior transactions of 2100 in the last 24h; the fifth is the
	// one under evaluation. count=5, sum=10500.
	history := &stubHistory{records: []domain.TransactionRecord{
		record(subjectID, 2100, 2*time.Hour),
		record(subjectID, 2100, 5*time.Hour),
		record(subjectID, 2100, 10*time.Hour),
		record(subjectID, 2100, 20*time.Hour),
	}}

	result, err := newDetector(history).Evaluate(context.Background(), subjectID, decimal.NewFromInt(2100), daytimeCtx())

	require.NoError(t, err)
	match := findPattern(t, result, domain.PatternStructuring)
	require.NotNil(t, match, "structuring must fire for 5 transactions summing past 10000")
	assert.Equal(t, 0.3, match.Weight)
	assert.False(t, result.Flagged)
}

func TestEvaluateStructuringIgnoresOldTransactions(t *testing.T) {
	subjectID := uuid.New()
	history := &stubHistory{records: []domain.TransactionRecord{
		record(subjectID, 2100, 2*time.Hour),
		record(subjectID, 2100, 5*time.Hour),
		record(subjectID, 2100, 10*time.Hour),
		record(subjectID, 2100, 30*time.Hour), // outside the 24h window
	}}

	result, err := newDetector(history).Evaluate(context.Background(), subjectID, decimal.NewFromInt(2100), daytimeCtx())

	require.NoError(t, err)
	assert.Nil(t, findPattern(t, result, domain.PatternStructuring))
}

func TestEvaluateHighValueBlocks(t *testing.T) {
	subjectID := uuid.New()
	txCtx := daytimeCtx()
	txCtx.CounterpartyCountry = "IR"

	result, err := newDetector(&stubHistory{}).Evaluate(context.Background(), subjectID, decimal.NewFromInt(150000), txCtx)

	require.NoError(t, err)
	require.NotNil(t, findPattern(t, result, domain.PatternHighValue))
	require.NotNil(t, findPattern(t, result, domain.PatternGeographicRisk))

	// 0.6 + 0.8 = 1.4, clipped to 1.
	assert.Equal(t, 1.0, result.RiskScore)
	assert.True(t, result.Flagged)
	assert.True(t, result.Blocked)
}

func TestEvaluateRapidMovement(t *testing.T) {
	subjectID := uuid.New()
	history := &stubHistory{records: []domain.TransactionRecord{
		record(subjectID, 30000, time.Minute),
		record(subjectID, 15000, 3*time.Minute),
	}}

	result, err := newDetector(history).Evaluate(context.Background(), subjectID, decimal.NewFromInt(5000), daytimeCtx())

	require.NoError(t, err)
	assert.NotNil(t, findPattern(t, result, domain.PatternRapidMovement))
}

func TestEvaluateLayering(t *testing.T) {
	subjectID := uuid.New()
	txCtx := daytimeCtx()
	txCtx.ChainDepth = 4

	result, err := newDetector(&stubHistory{}).Evaluate(context.Background(), subjectID, decimal.NewFromInt(100), txCtx)

	require.NoError(t, err)
	assert.NotNil(t, findPattern(t, result, domain.PatternLayering))
}

func TestEvaluateUnusualTiming(t *testing.T) {
	subjectID := uuid.New()
	txCtx := daytimeCtx()
	txCtx.LocalTime = time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)

	result, err := newDetector(&stubHistory{}).Evaluate(context.Background(), subjectID, decimal.NewFromInt(100), txCtx)

	require.NoError(t, err)
	assert.NotNil(t, findPattern(t, result, domain.PatternUnusualTiming))
}

func TestEvaluateHistoryFailureDegrades(t *testing.T) {
	subjectID := uuid.New()
	history := &stubHistory{err: errors.New("history store unavailable")}

	result, err := newDetector(history).Evaluate(context.Background(), subjectID, decimal.NewFromInt(150000), daytimeCtx())

	require.NoError(t, err, "a degraded evaluation still produces a result")
	assert.True(t, result.Degraded)
	assert.NotNil(t, findPattern(t, result, domain.PatternHighValue),
		"history-independent detectors still run")
}

func TestEvaluateScoreAlwaysInRange(t *testing.T) {
	subjectID := uuid.New()
	history := &stubHistory{records: []domain.TransactionRecord{
		record(subjectID, 30000, time.Minute),
		record(subjectID, 30000, 2*time.Minute),
		record(subjectID, 30000, 3*time.Minute),
		record(subjectID, 30000, 4*time.Minute),
	}}
	txCtx := daytimeCtx()
	txCtx.ChainDepth = 5
	txCtx.CounterpartyCountry = "KP"
	txCtx.LocalTime = time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)

	result, err := newDetector(history).Evaluate(context.Background(), subjectID, decimal.NewFromInt(200000), txCtx)

	require.NoError(t, err)
	assert.LessOrEqual(t, result.RiskScore, 1.0)
	assert.GreaterOrEqual(t, result.RiskScore, 0.0)
	assert.True(t, result.Blocked)
}
