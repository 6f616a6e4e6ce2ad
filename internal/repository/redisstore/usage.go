// Package redisstore keeps the rolling usage counters the enforcement
// gate reads. Counters are materialized as the transfers commit, so the
// gate's lookup is a plain key read with no recomputation.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"cred/internal/enforcement"
	"cred/pkg/clock"
	"cred/pkg/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	// Counter keys outlive their period slightly so a read near midnight
	// never races the expiry.
	dailyTTL   = 48 * time.Hour
	monthlyTTL = 35 * 24 * time.Hour
)

type UsageStore struct {
	client *redis.Client
	clock  clock.Clock
}

func NewUsageStore(url, password string, db int, clk clock.Clock) (*UsageStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	return &UsageStore{client: client, clock: clk}, nil
}

// NewUsageStoreWithClient wires an existing client, used by tests.
func NewUsageStoreWithClient(client *redis.Client, clk clock.Clock) *UsageStore {
	return &UsageStore{client: client, clock: clk}
}

func (s *UsageStore) dailyKey(subjectID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("usage:%s:daily:%s", subjectID, now.UTC().Format("2006-01-02"))
}

func (s *UsageStore) monthlyKey(subjectID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("usage:%s:monthly:%s", subjectID, now.UTC().Format("2006-01"))
}

func (s *UsageStore) totalKey(subjectID uuid.UUID) string {
	return fmt.Sprintf("usage:%s:total", subjectID)
}

func (s *UsageStore) Usage(ctx context.Context, subjectID uuid.UUID) (enforcement.Usage, error) {
	now := s.clock.Now()

	values, err := s.client.MGet(ctx,
		s.dailyKey(subjectID, now),
		s.monthlyKey(subjectID, now),
		s.totalKey(subjectID),
	).Result()
	if err != nil {
		return enforcement.Usage{}, errors.Wrap(err, "failed to read usage counters")
	}

	usage := enforcement.Usage{
		Daily:   decimal.Zero,
		Monthly: decimal.Zero,
		Total:   decimal.Zero,
	}

	parse := func(v interface{}) (decimal.Decimal, error) {
		if v == nil {
			return decimal.Zero, nil
		}
		str, ok := v.(string)
		if !ok {
			return decimal.Zero, fmt.Errorf("unexpected counter type %T", v)
		}
		return decimal.NewFromString(str)
	}

	if usage.Daily, err = parse(values[0]); err != nil {
		return enforcement.Usage{}, errors.Wrap(err, "failed to decode daily usage")
	}
	if usage.Monthly, err = parse(values[1]); err != nil {
		return enforcement.Usage{}, errors.Wrap(err, "failed to decode monthly usage")
	}
	if usage.Total, err = parse(values[2]); err != nil {
		return enforcement.Usage{}, errors.Wrap(err, "failed to decode total usage")
	}
	return usage, nil
}

func (s *UsageStore) Record(ctx context.Context, subjectID uuid.UUID, amount decimal.Decimal) error {
	now := s.clock.Now()
	value, _ := amount.Float64()

	pipe := s.client.TxPipeline()
	daily := s.dailyKey(subjectID, now)
	monthly := s.monthlyKey(subjectID, now)

	pipe.IncrByFloat(ctx, daily, value)
	pipe.Expire(ctx, daily, dailyTTL)
	pipe.IncrByFloat(ctx, monthly, value)
	pipe.Expire(ctx, monthly, monthlyTTL)
	pipe.IncrByFloat(ctx, s.totalKey(subjectID), value)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to advance usage counters")
	}
	return nil
}

func (s *UsageStore) Close() error {
	return s.client.Close()
}
