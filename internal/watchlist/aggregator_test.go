package watchlist

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
	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	name       string
	matched    bool
	confidence float64
	err        error
	delay      time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Query(ctx context.Context, profile *domain.Profile) (*domain.WatchlistQueryResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.WatchlistQueryResult{
		Source:     s.name,
		Matched:    s.matched,
		Confidence: s.confidence,
	}, nil
}

func testConfig() config.WatchlistConfig {
	return config.WatchlistConfig{
		SourceTimeout:          50 * time.Millisecond,
		BatchTimeout:           200 * time.Millisecond,
		FailureConfidenceFloor: 0.5,
	}
}

func newAggregator(cfg config.WatchlistConfig, sources ...SourceClient) *Aggregator {
	return NewAggregator(sources, cfg, clock.Real(), logger.NewNop())
}

func testProfile() *domain.Profile {
	return &domain.Profile{
		SubjectID: uuid.New(),
		FullName:  "Jane Subject",
	}
}

func TestCheckMergesMatches(t *testing.T) {
	agg := newAggregator(testConfig(),
		&stubSource{name: "ofac", matched: true, confidence: 0.7},
		&stubSource{name: "un", matched: true, confidence: 0.9},
		&stubSource{name: "eu", matched: false},
	)

	verdict := agg.Check(context.Background(), testProfile())

	assert.True(t, verdict.Sanctioned)
	assert.Equal(t, 0.9, verdict.Confidence, "confidence is the max among matched sources")
	assert.False(t, verdict.Degraded)
	assert.Equal(t, 3, verdict.SourcesSucceeded)
}

func TestCheckPartialFailureIsDegradedNotError(t *testing.T) {
	agg := newAggregator(testConfig(),
		&stubSource{name: "ofac", err: errors.New("connection refused")},
		&stubSource{name: "un", delay: time.Second}, // exceeds source timeout
		&stubSource{name: "eu", matched: false, confidence: 0},
	)

	verdict := agg.Check(context.Background(), testProfile())

	assert.False(t, verdict.Sanctioned)
	assert.True(t, verdict.Degraded)
	assert.False(t, verdict.InsufficientData)
	assert.Equal(t, 1, verdict.SourcesSucceeded)
	assert.Len(t, verdict.FailedSources, 2)
}

func TestCheckAllSourcesFailed(t *testing.T) {
	agg := newAggregator(testConfig(),
		&stubSource{name: "ofac", err: errors.New("boom")},
		&stubSource{name: "un", err: errors.New("boom")},
	)

	verdict := agg.Check(context.Background(), testProfile())

	assert.False(t, verdict.Sanctioned)
	assert.True(t, verdict.InsufficientData)
	assert.True(t, verdict.Degraded)
	assert.Equal(t, 0.0, verdict.Confidence)
}

func TestCheckNoSourcesConfigured(t *testing.T) {
	agg := newAggregator(testConfig())

	verdict := agg.Check(context.Background(), testProfile())

	assert.True(t, verdict.InsufficientData)
	assert.True(t, verdict.Degraded)
}

func TestCheckConservativeFloorOnFailure(t *testing.T) {
	cfg := testConfig()
	cfg.ConservativeOnFailure = true

	agg := newAggregator(cfg,
		&stubSource{name: "ofac", err: errors.New("boom")},
		&stubSource{name: "eu", matched: false},
	)

	verdict := agg.Check(context.Background(), testProfile())

	assert.True(t, verdict.Degraded)
	assert.Equal(t, 0.5, verdict.Confidence, "failure raises the confidence floor")
}

func TestCheckBoundedByBatchTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.SourceTimeout = time.Second
	cfg.BatchTimeout = 50 * time.Millisecond

	agg := newAggregator(cfg,
		&stubSource{name: "slow", delay: 5 * time.Second, matched: true, confidence: 1},
	)

	start := time.Now()
	verdict := agg.Check(context.Background(), testProfile())

	assert.Less(t, time.Since(start), time.Second, "check must not block past the batch timeout")
	assert.True(t, verdict.InsufficientData)
}

type memoryVerdictCache struct {
	entries map[string]domain.WatchlistVerdict
	sets    int
}

func newMemoryVerdictCache() *memoryVerdictCache {
	return &memoryVerdictCache{entries: make(map[string]domain.WatchlistVerdict)}
}

func (c *memoryVerdictCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := c.entries[key]
	if !ok {
		return errors.New("cache miss")
	}
	*dest.(*domain.WatchlistVerdict) = v
	return nil
}

func (c *memoryVerdictCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.entries[key] = *value.(*domain.WatchlistVerdict)
	c.sets++
	return nil
}

func TestCheckCachesCleanVerdicts(t *testing.T) {
	src := &stubSource{name: "ofac", matched: false}
	cache := newMemoryVerdictCache()
	agg := newAggregator(testConfig(), src).WithCache(cache, time.Hour)
	profile := testProfile()

	first := agg.Check(context.Background(), profile)
	second := agg.Check(context.Background(), profile)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets, "second check is served from the cache")
}

func TestCheckDoesNotCacheDegradedVerdicts(t *testing.T) {
	cache := newMemoryVerdictCache()
	agg := newAggregator(testConfig(),
		&stubSource{name: "ofac", err: errors.New("boom")},
	).WithCache(cache, time.Hour)

	verdict := agg.Check(context.Background(), testProfile())

	assert.True(t, verdict.Degraded)
	assert.Equal(t, 0, cache.sets)
}

func TestStaticListClient(t *testing.T) {
	c := NewStaticListClient("local", map[string]float64{"jane  subject": 0.8})

	result, err := c.Query(context.Background(), testProfile())

	assert.NoError(t, err)
	assert.True(t, result.Matched, "name matching is case and whitespace insensitive")
	assert.Equal(t, 0.8, result.Confidence)
}
