package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodesRoundTrip(t *testing.T) {
	statuses := []KYCStatus{
		KYCStatusPending, KYCStatusVerified, KYCStatusRejected,
		KYCStatusExpired, KYCStatusSuspended,
	}
	seen := make(map[int]bool)
	for _, s := range statuses {
		code, err := s.Code()
		require.NoError(t, err)
		assert.False(t, seen[code], "status codes must be unique")
		seen[code] = true

		back, err := KYCStatusFromCode(code)
		require.NoError(t, err)
		assert.Equal(t, s, back)
	}

	_, err := KYCStatus("bogus").Code()
	assert.Error(t, err)
	_, err = KYCStatusFromCode(99)
	assert.Error(t, err)
}

func TestLevelCodesRoundTrip(t *testing.T) {
	for _, l := range []KYCLevel{KYCLevelBasic, KYCLevelEnhanced, KYCLevelPremium} {
		code, err := l.Code()
		require.NoError(t, err)
		back, err := KYCLevelFromCode(code)
		require.NoError(t, err)
		assert.Equal(t, l, back)
	}

	for _, r := range []RiskLevel{RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical} {
		code, err := r.Code()
		require.NoError(t, err)
		back, err := RiskLevelFromCode(code)
		require.NoError(t, err)
		assert.Equal(t, r, back)
	}

	_, err := KYCLevelFromCode(-1)
	assert.Error(t, err)
	_, err = RiskLevelFromCode(42)
	assert.Error(t, err)
}

func TestIsVerifiedComposedInvariant(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	base := func() *KYCRecord {
		r := NewKYCRecord(uuid.New(), now)
		r.Status = KYCStatusVerified
		r.Whitelisted = true
		r.ExpiresAt = &future
		return r
	}

	assert.True(t, base().IsVerified(now))

	r := base()
	r.Status = KYCStatusSuspended
	assert.False(t, r.IsVerified(now), "non-verified status fails")

	r = base()
	r.ExpiresAt = &past
	assert.False(t, r.IsVerified(now), "elapsed expiry fails")

	r = base()
	r.ExpiresAt = nil
	assert.False(t, r.IsVerified(now), "missing expiry fails")

	r = base()
	r.Whitelisted = false
	assert.False(t, r.IsVerified(now), "unlisted subject fails")

	r = base()
	r.Blacklisted = true
	assert.False(t, r.IsVerified(now), "blacklisted subject fails")
}
