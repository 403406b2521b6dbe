package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPrecedence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := DefaultHealthPolicy()

	t.Run("disabled overrides everything", func(t *testing.T) {
		rec := NewAccountRecord(AccountConfig{
			ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c",
			Disabled:  true,
			ExpiresAt: "2020-01-01 00:00:00", // also expired
		})
		rec.ApplyOutcome(OutcomeRateLimited, now) // also in 429 cooldown

		h := rec.Classify(now, policy)
		assert.Equal(t, StateDisabled, h.State)
		assert.False(t, rec.Available())
	})

	t.Run("expired beats cooldown", func(t *testing.T) {
		rec := NewAccountRecord(AccountConfig{
			ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c",
			ExpiresAt: "2020-01-01 00:00:00",
		})
		rec.ApplyOutcome(OutcomeRateLimited, now)

		h := rec.Classify(now, policy)
		assert.Equal(t, StateExpired, h.State)
	})

	t.Run("429 cooldown beats generic cooldown", func(t *testing.T) {
		rec := NewAccountRecord(AccountConfig{ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c"})
		for i := 0; i < policy.ErrorThreshold; i++ {
			rec.ApplyOutcome(OutcomeError, now)
		}
		rec.ApplyOutcome(OutcomeRateLimited, now)

		h := rec.Classify(now.Add(time.Second), policy)
		assert.Equal(t, StateCooldown, h.State)
		assert.Equal(t, CooldownReason429, h.Reason)
	})

	t.Run("clean record is available", func(t *testing.T) {
		rec := NewAccountRecord(AccountConfig{ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c"})
		h := rec.Classify(now, policy)
		assert.Equal(t, StateAvailable, h.State)
		assert.True(t, rec.Available())
	})
}

func TestClassifyCooldownWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := HealthPolicy{
		Cooldown429:    5 * time.Minute,
		ErrorThreshold: 3,
		ErrorCooldown:  2 * time.Minute,
	}

	t.Run("429 cooldown expires with time", func(t *testing.T) {
		rec := NewAccountRecord(AccountConfig{ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c"})
		rec.ApplyOutcome(OutcomeRateLimited, now)

		h := rec.Classify(now.Add(time.Minute), policy)
		assert.Equal(t, StateCooldown, h.State)
		assert.Equal(t, CooldownReason429, h.Reason)
		assert.Equal(t, 4*time.Minute, h.Remaining)

		h = rec.Classify(now.Add(5*time.Minute), policy)
		assert.Equal(t, StateAvailable, h.State)
	})

	t.Run("errors below threshold never cool down", func(t *testing.T) {
		rec := NewAccountRecord(AccountConfig{ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c"})
		rec.ApplyOutcome(OutcomeError, now)
		rec.ApplyOutcome(OutcomeError, now)

		h := rec.Classify(now.Add(time.Second), policy)
		assert.Equal(t, StateAvailable, h.State)
	})

	t.Run("errors at threshold cool down until window passes", func(t *testing.T) {
		rec := NewAccountRecord(AccountConfig{ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c"})
		for i := 0; i < 3; i++ {
			rec.ApplyOutcome(OutcomeError, now)
		}

		h := rec.Classify(now.Add(time.Second), policy)
		assert.Equal(t, StateCooldown, h.State)
		assert.Equal(t, CooldownReasonErrors, h.Reason)

		h = rec.Classify(now.Add(2*time.Minute), policy)
		assert.Equal(t, StateAvailable, h.State)
	})
}

func TestApplyOutcome(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := DefaultHealthPolicy()
	rec := NewAccountRecord(AccountConfig{ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c"})

	// 429 does not count toward the generic error total
	rec.ApplyOutcome(OutcomeRateLimited, now)
	assert.Equal(t, 0, rec.ErrorCount())
	assert.Equal(t, now, rec.Last429Time())

	rec.ApplyOutcome(OutcomeError, now.Add(time.Second))
	assert.Equal(t, 1, rec.ErrorCount())
	assert.Equal(t, now.Add(time.Second), rec.LastErrorTime())

	// success clears both clocks and the counter
	rec.ApplyOutcome(OutcomeSuccess, now.Add(2*time.Second))
	assert.Equal(t, 0, rec.ErrorCount())
	assert.True(t, rec.LastErrorTime().IsZero())
	assert.True(t, rec.Last429Time().IsZero())
	assert.Equal(t, StateAvailable, rec.Classify(now.Add(3*time.Second), policy).State)
}

func TestResetRuntime(t *testing.T) {
	now := time.Now()
	rec := NewAccountRecord(AccountConfig{ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c"})
	for i := 0; i < 5; i++ {
		rec.ApplyOutcome(OutcomeError, now)
	}
	rec.ApplyOutcome(OutcomeRateLimited, now)

	rec.ResetRuntime()
	assert.Equal(t, 0, rec.ErrorCount())
	assert.True(t, rec.Last429Time().IsZero())
	assert.True(t, rec.Available())
}

func TestCarryRuntimeFrom(t *testing.T) {
	now := time.Now()
	old := NewAccountRecord(AccountConfig{ID: "a", SecureCSes: "s", CSesIdx: "x", ConfigID: "c"})
	old.ApplyOutcome(OutcomeError, now)
	old.ApplyOutcome(OutcomeError, now)
	old.ApplyOutcome(OutcomeRateLimited, now)

	fresh := NewAccountRecord(AccountConfig{ID: "a", SecureCSes: "s2", CSesIdx: "x2", ConfigID: "c"})
	fresh.CarryRuntimeFrom(old)

	assert.Equal(t, 2, fresh.ErrorCount())
	assert.Equal(t, old.LastErrorTime(), fresh.LastErrorTime())
	assert.Equal(t, old.Last429Time(), fresh.Last429Time())
}

func TestAccountConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AccountConfig
		missing []string
	}{
		{"complete", AccountConfig{SecureCSes: "s", CSesIdx: "x", ConfigID: "c"}, nil},
		{"no session", AccountConfig{CSesIdx: "x", ConfigID: "c"}, []string{"secure_c_ses"}},
		{"empty", AccountConfig{}, []string{"secure_c_ses", "csesidx", "config_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.missing, verr.Fields)
		})
	}
}

func TestExpiryTime(t *testing.T) {
	cfg := AccountConfig{ExpiresAt: "2026-03-01 20:00:00"}
	exp, ok := cfg.ExpiryTime()
	assert.True(t, ok)
	// 20:00 UTC+8 is 12:00 UTC
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), exp.UTC())

	assert.False(t, cfg.Expired(time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC)))
	assert.True(t, cfg.Expired(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))

	_, ok = AccountConfig{}.ExpiryTime()
	assert.False(t, ok)
	assert.False(t, AccountConfig{}.Expired(time.Now()))

	_, ok = AccountConfig{ExpiresAt: "not-a-date"}.ExpiryTime()
	assert.False(t, ok)
}
