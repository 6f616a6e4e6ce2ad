package compliance

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cred/internal/admin"
	"cred/internal/aml"
	"cred/internal/domain"
	"cred/internal/enforcement"
	"cred/internal/kyc"
	"cred/internal/limits"
	"cred/internal/risk"
	"cred/internal/watchlist"
	"cred/pkg/clock"
	"cred/pkg/config"
	"cred/pkg/errors"
	"cred/pkg/logger"
	"cred/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecords struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.KYCRecord
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: make(map[uuid.UUID]domain.KYCRecord)}
}

func (m *memoryRecords) Get(ctx context.Context, subjectID uuid.UUID) (*domain.KYCRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[subjectID]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	copied := r
	return &copied, nil
}

func (m *memoryRecords) Create(ctx context.Context, record *domain.KYCRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.SubjectID] = *record
	return nil
}

func (m *memoryRecords) Update(ctx context.Context, record *domain.KYCRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.SubjectID]; !ok {
		return errors.ErrRecordNotFound
	}
	m.records[record.SubjectID] = *record
	return nil
}

func (m *memoryRecords) ListExpired(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for id, r := range m.records {
		if r.Status == domain.KYCStatusVerified && r.ExpiresAt != nil && !before.Before(*r.ExpiresAt) {
			out = append(out, id)
		}
	}
	return out, nil
}

type memoryAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (m *memoryAudit) Create(ctx context.Context, event *domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryAudit) ListBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].SubjectID == subjectID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memoryAudit) actionsFor(subjectID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		if e.SubjectID == subjectID {
			out = append(out, e.Action)
		}
	}
	return out
}

type memoryUsage struct {
	mu    sync.Mutex
	spent map[uuid.UUID]enforcement.Usage
}

func newMemoryUsage() *memoryUsage {
	return &memoryUsage{spent: make(map[uuid.UUID]enforcement.Usage)}
}

func (m *memoryUsage) Usage(ctx context.Context, subjectID uuid.UUID) (enforcement.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.spent[subjectID]
	if !ok {
		return enforcement.Usage{Daily: decimal.Zero, Monthly: decimal.Zero, Total: decimal.Zero}, nil
	}
	return u, nil
}

func (m *memoryUsage) Record(ctx context.Context, subjectID uuid.UUID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.spent[subjectID]
	if !ok {
		u = enforcement.Usage{Daily: decimal.Zero, Monthly: decimal.Zero, Total: decimal.Zero}
	}
	u.Daily = u.Daily.Add(amount)
	u.Monthly = u.Monthly.Add(amount)
	u.Total = u.Total.Add(amount)
	m.spent[subjectID] = u
	return nil
}

type memoryHistory struct {
	mu  sync.Mutex
	txs []domain.TransactionRecord
}

func (m *memoryHistory) Record(ctx context.Context, tx *domain.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *memoryHistory) Window(ctx context.Context, subjectID uuid.UUID, from, to time.Time) ([]domain.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TransactionRecord
	for _, tx := range m.txs {
		if tx.SubjectID == subjectID && !tx.OccurredAt.Before(from) && !tx.OccurredAt.After(to) {
			out = append(out, tx)
		}
	}
	return out, nil
}

type failingSource struct {
	name string
}

func (f *failingSource) Name() string { return f.name }

func (f *failingSource) Query(ctx context.Context, profile *domain.Profile) (*domain.WatchlistQueryResult, error) {
	return nil, fmt.Errorf("source %s unreachable", f.name)
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, subjectID uuid.UUID, eventType string, data map[string]interface{}) error {
	return nil
}

type testHarness struct {
	service *Service
	audit   *memoryAudit
	usage   *memoryUsage
	history *memoryHistory
	clock   *clock.Fake
}

func newHarness(t *testing.T, sources []watchlist.SourceClient) *testHarness {
	t.Helper()

	cfg := config.Load()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	nop := logger.NewNop()

	records := newMemoryRecords()
	audit := &memoryAudit{}
	usage := newMemoryUsage()
	history := &memoryHistory{}

	scorer := risk.NewScorer(cfg.Risk, clk)
	aggregator := watchlist.NewAggregator(sources, cfg.Watchlist, clk, nop)
	detector := aml.NewDetector(cfg.AML, history, clk, nop)
	calc := limits.NewCalculator(cfg.Limits)
	lifecycle := kyc.NewService(records, audit, calc, cfg.KYC, clk, nop)
	gate := enforcement.NewGate(records, usage, clk, nop)
	adminSvc := admin.NewService(lifecycle, scorer, noopNotifier{}, nop)

	service := NewService(validator.New(), scorer, aggregator, detector,
		lifecycle, gate, adminSvc, audit, audit, history, clk, nop)

	return &testHarness{
		service: service,
		audit:   audit,
		usage:   usage,
		history: history,
		clock:   clk,
	}
}

func cleanSources() []watchlist.SourceClient {
	return []watchlist.SourceClient{
		watchlist.NewStaticListClient("ofac", map[string]float64{
			"Listed Person": 0.95,
		}),
	}
}

func cleanProfile() *domain.Profile {
	return &domain.Profile{
		SubjectID:    uuid.New(),
		Nationality:  "KR",
		DateOfBirth:  time.Date(1995, 3, 10, 0, 0, 0, 0, time.UTC),
		DocumentType: "PASSPORT",
		DocumentNo:   "M12345678",
		DocumentHash: "abc123",
		FullName:     "Jin Park",
	}
}

func TestInitiateVerificationCleanProfileVerifies(t *testing.T) {
	h := newHarness(t, cleanSources())
	profile := cleanProfile()

	outcome, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, domain.KYCStatusVerified, outcome.KYCRecord.Status)
	assert.Equal(t, domain.KYCLevelBasic, outcome.KYCRecord.Level)
	assert.Equal(t, 0, outcome.Assessment.Score)
	assert.False(t, outcome.Degraded)
	assert.False(t, outcome.PendingReview)
	assert.True(t, outcome.KYCRecord.Limits.Daily.Equal(decimal.NewFromInt(10000)))

	status, err := h.service.CheckStatus(context.Background(), profile.SubjectID)
	require.NoError(t, err)
	assert.True(t, status.IsVerified)
}

func TestInitiateVerificationWatchlistMatchRejects(t *testing.T) {
	h := newHarness(t, cleanSources())
	profile := cleanProfile()
	profile.FullName = "Listed Person"

	outcome, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, domain.KYCStatusRejected, outcome.KYCRecord.Status)
	assert.Equal(t, "watchlist match", outcome.KYCRecord.RejectionReason)
	assert.True(t, outcome.Watchlist.Sanctioned)
}

func TestInitiateVerificationCriticalScoreRejects(t *testing.T) {
	h := newHarness(t, cleanSources())
	profile := cleanProfile()
	profile.Nationality = "IR"
	profile.IsPEP = true
	profile.IsSanctioned = true

	outcome, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, domain.KYCStatusRejected, outcome.KYCRecord.Status)
	assert.Equal(t, "critical risk score", outcome.KYCRecord.RejectionReason)
	assert.Equal(t, 100, outcome.Assessment.Score)
	assert.Equal(t, domain.RiskLevelCritical, outcome.Assessment.Level)
}

func TestInitiateVerificationNoSourcesParksForReview(t *testing.T) {
	h := newHarness(t, []watchlist.SourceClient{
		&failingSource{name: "ofac"},
		&failingSource{name: "un"},
	})
	profile := cleanProfile()

	outcome, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	assert.True(t, outcome.PendingReview)
	assert.True(t, outcome.Degraded)
	assert.Equal(t, domain.KYCStatusPending, outcome.KYCRecord.Status)

	// A supervisor can approve the parked record with the stored snapshot.
	record, err := h.service.Approve(context.Background(),
		admin.Actor{ID: "admin-1", Role: admin.RoleSupervisor}, profile.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, domain.KYCStatusVerified, record.Status)
	assert.Equal(t, outcome.KYCRecord.Level, record.Level)
}

func TestInitiateVerificationDegradedScreeningIsAudited(t *testing.T) {
	h := newHarness(t, []watchlist.SourceClient{
		&failingSource{name: "ofac"},
		watchlist.NewStaticListClient("un", nil),
	})
	profile := cleanProfile()

	outcome, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	// One source still answered, so the decision is taken from it.
	assert.True(t, outcome.Degraded)
	assert.False(t, outcome.PendingReview)
	assert.Equal(t, domain.KYCStatusVerified, outcome.KYCRecord.Status)

	actions := h.audit.actionsFor(profile.SubjectID)
	assert.Contains(t, actions, domain.AuditActionScreeningDegraded)
}

func TestInitiateVerificationInvalidProfileFails(t *testing.T) {
	h := newHarness(t, cleanSources())
	profile := cleanProfile()
	profile.Nationality = "Korea"

	_, err := h.service.InitiateVerification(context.Background(), profile)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestInitiateVerificationTwiceFails(t *testing.T) {
	h := newHarness(t, cleanSources())
	profile := cleanProfile()

	_, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	_, err = h.service.InitiateVerification(context.Background(), profile)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestValidateTransferAuditsBothOutcomes(t *testing.T) {
	h := newHarness(t, cleanSources())
	profile := cleanProfile()
	_, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	err = h.service.ValidateTransfer(context.Background(), profile.SubjectID, decimal.NewFromInt(500), nil)
	assert.NoError(t, err)

	// BASIC daily limit is 10000 with default configuration.
	err = h.service.ValidateTransfer(context.Background(), profile.SubjectID, decimal.NewFromInt(20000), nil)
	assert.ErrorIs(t, err, errors.ErrDailyLimitExceeded)

	actions := h.audit.actionsFor(profile.SubjectID)
	assert.Contains(t, actions, domain.AuditActionTransferAllowed)
	assert.Contains(t, actions, domain.AuditActionTransferDenied)
}

func TestRecordTransferConsumesDailyLimit(t *testing.T) {
	h := newHarness(t, cleanSources())
	profile := cleanProfile()
	_, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	amount := decimal.NewFromInt(9000)
	require.NoError(t, h.service.ValidateTransfer(context.Background(), profile.SubjectID, amount, nil))
	require.NoError(t, h.service.RecordTransfer(context.Background(), profile.SubjectID, amount, domain.TransactionContext{}))

	err = h.service.ValidateTransfer(context.Background(), profile.SubjectID, amount, nil)
	assert.ErrorIs(t, err, errors.ErrDailyLimitExceeded)

	h.history.mu.Lock()
	defer h.history.mu.Unlock()
	require.Len(t, h.history.txs, 1)
	assert.True(t, h.history.txs[0].Amount.Equal(amount))
}

func TestEvaluateTransactionRejectsNonPositiveAmount(t *testing.T) {
	h := newHarness(t, cleanSources())

	_, err := h.service.EvaluateTransaction(context.Background(), uuid.New(), decimal.Zero, domain.TransactionContext{})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestEvaluateTransactionBlockedVerdictDeniesTransfer(t *testing.T) {
	h := newHarness(t, cleanSources())
	profile := cleanProfile()
	_, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	// High value plus high-risk counterparty pushes the aggregate past
	// the blocking threshold.
	result, err := h.service.EvaluateTransaction(context.Background(), profile.SubjectID,
		decimal.NewFromInt(150000), domain.TransactionContext{
			TransactionID:       uuid.New(),
			CounterpartyCountry: "IR",
			LocalTime:           h.clock.Now(),
		})
	require.NoError(t, err)
	require.True(t, result.Blocked)

	err = h.service.ValidateTransfer(context.Background(), profile.SubjectID, decimal.NewFromInt(150000), result)
	assert.ErrorIs(t, err, errors.ErrTransactionBlocked)
}

func TestAuditTrailReturnsRecentEvents(t *testing.T) {
	h := newHarness(t, cleanSources())
	profile := cleanProfile()
	_, err := h.service.InitiateVerification(context.Background(), profile)
	require.NoError(t, err)

	events, err := h.service.AuditTrail(context.Background(), profile.SubjectID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	// Most recent first: verification follows enrollment.
	assert.Equal(t, domain.AuditActionVerified, events[0].Action)
}
