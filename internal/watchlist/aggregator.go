// Package watchlist fans a profile out to the configured sanctions and
// watchlist sources and merges their answers into a single verdict.
package watchlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cred/internal/domain"
	"cred/pkg/clock"
	"cred/pkg/config"
	"cred/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// SourceClient is one pluggable watchlist source.
type SourceClient interface {
	Name() string
	Query(ctx context.Context, profile *domain.Profile) (*domain.WatchlistQueryResult, error)
}

// VerdictCache stores recent clean verdicts so an enrollment retry does
// not re-query every source.
type VerdictCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type Aggregator struct {
	sources  []SourceClient
	cfg      config.WatchlistConfig
	clock    clock.Clock
	logger   logger.Logger
	cache    VerdictCache
	cacheTTL time.Duration
}

func NewAggregator(sources []SourceClient, cfg config.WatchlistConfig, clk clock.Clock, log logger.Logger) *Aggregator {
	return &Aggregator{
		sources: sources,
		cfg:     cfg,
		clock:   clk,
		logger:  log.Named("watchlist"),
	}
}

// WithCache enables verdict caching. Only complete, non-degraded
// verdicts are cached; a degraded answer is always recomputed.
func (a *Aggregator) WithCache(c VerdictCache, ttl time.Duration) *Aggregator {
	a.cache = c
	a.cacheTTL = ttl
	return a
}

func cacheKey(profile *domain.Profile) string {
	return fmt.Sprintf("screening:%s:%s:%s",
		normalizeName(profile.FullName),
		profile.Nationality,
		profile.DateOfBirth.Format("2006-01-02"))
}

// Check queries every source concurrently and joins all outcomes. The join
// is bounded-wait, not fail-fast: a source that errors or times out is
// recorded and excluded from the match computation, and the verdict is
// still produced. Zero successful sources yield a degraded verdict with
// confidence 0 and the insufficient-data marker; Check never returns an
// error and never blocks past the batch timeout.
func (a *Aggregator) Check(ctx context.Context, profile *domain.Profile) *domain.WatchlistVerdict {
	verdict := &domain.WatchlistVerdict{
		SourcesQueried: len(a.sources),
	}
	if len(a.sources) == 0 {
		verdict.Degraded = true
		verdict.InsufficientData = true
		return verdict
	}

	if a.cache != nil {
		var cached domain.WatchlistVerdict
		if err := a.cache.Get(ctx, cacheKey(profile), &cached); err == nil {
			return &cached
		}
	}

	batchCtx, cancel := context.WithTimeout(ctx, a.cfg.BatchTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results []*domain.WatchlistQueryResult
		failed  []string
	)

	// Each task swallows its own failure so one bad source cannot cancel
	// the rest of the batch.
	g, gctx := errgroup.WithContext(batchCtx)
	for _, src := range a.sources {
		src := src
		g.Go(func() error {
			srcCtx, srcCancel := context.WithTimeout(gctx, a.cfg.SourceTimeout)
			defer srcCancel()

			result, err := src.Query(srcCtx, profile)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.logger.Warn("watchlist source failed", map[string]interface{}{
					"source":     src.Name(),
					"subject_id": profile.SubjectID,
					"error":      err.Error(),
				})
				failed = append(failed, src.Name())
				return nil
			}
			result.QueriedAt = a.clock.Now()
			results = append(results, result)
			return nil
		})
	}
	_ = g.Wait()

	verdict.SourcesSucceeded = len(results)
	verdict.FailedSources = failed
	verdict.Degraded = len(failed) > 0

	if len(results) == 0 {
		verdict.InsufficientData = true
		verdict.Degraded = true
		return verdict
	}

	for _, r := range results {
		if !r.Matched {
			continue
		}
		verdict.Sanctioned = true
		if r.Confidence > verdict.Confidence {
			verdict.Confidence = r.Confidence
		}
	}

	// Optional stricter policy: a failed source raises the floor instead
	// of being silently dropped from the aggregate.
	if verdict.Degraded && a.cfg.ConservativeOnFailure && verdict.Confidence < a.cfg.FailureConfidenceFloor {
		verdict.Confidence = a.cfg.FailureConfidenceFloor
	}

	if a.cache != nil && !verdict.Degraded {
		if err := a.cache.Set(ctx, cacheKey(profile), verdict, a.cacheTTL); err != nil {
			a.logger.Warn("failed to cache screening verdict", map[string]interface{}{
				"subject_id": profile.SubjectID,
				"error":      err.Error(),
			})
		}
	}

	return verdict
}
