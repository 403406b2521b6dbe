// Package domain contains the account model and health state machine.
package domain

import (
	"sync"
	"time"

	"github.com/soyeahso/chatpool/internal/logging"
)

// UpstreamClock is the fixed zone the upstream expresses cookie expiry in.
// Harvested accounts carry expires_at strings relative to UTC+8 regardless of
// where the proxy itself runs.
var UpstreamClock = time.FixedZone("UTC+8", 8*60*60)

// ExpiresAtLayout is the wire format for account expiry timestamps.
const ExpiresAtLayout = "2006-01-02 15:04:05"

// AccountConfig is the immutable identity and credential set for one
// harvested account. Fields mirror the upstream session cookies.
type AccountConfig struct {
	ID         string `json:"id" yaml:"id"`
	SecureCSes string `json:"secure_c_ses" yaml:"secure_c_ses"`
	HostCOses  string `json:"host_c_oses,omitempty" yaml:"host_c_oses,omitempty"`
	CSesIdx    string `json:"csesidx" yaml:"csesidx"`
	ConfigID   string `json:"config_id" yaml:"config_id"`
	ExpiresAt  string `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Disabled   bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Validate checks that the required identity and credential fields are set.
func (c AccountConfig) Validate() error {
	var missing []string
	if c.SecureCSes == "" {
		missing = append(missing, "secure_c_ses")
	}
	if c.CSesIdx == "" {
		missing = append(missing, "csesidx")
	}
	if c.ConfigID == "" {
		missing = append(missing, "config_id")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// ExpiryTime parses the expires_at field in the upstream's clock.
// The second return is false when the account has no expiry or the
// value does not parse.
func (c AccountConfig) ExpiryTime() (time.Time, bool) {
	if c.ExpiresAt == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(ExpiresAtLayout, c.ExpiresAt, UpstreamClock)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Expired reports whether the account's session cookies have passed their
// expiry at the given instant. Accounts without expiry never expire.
func (c AccountConfig) Expired(now time.Time) bool {
	exp, ok := c.ExpiryTime()
	if !ok {
		return false
	}
	return !exp.After(now)
}

// RedactedSession returns a log-safe form of the session cookie.
func (c AccountConfig) RedactedSession() string {
	return logging.Redact(c.SecureCSes)
}

// AccountRecord pairs an immutable AccountConfig with the mutable runtime
// health state for that account. Health fields are guarded by a per-record
// mutex so outcome reporting for unrelated accounts never serializes.
type AccountRecord struct {
	Config AccountConfig

	mu            sync.Mutex
	errorCount    int
	lastErrorTime time.Time
	last429Time   time.Time
	available     bool
}

// NewAccountRecord creates a record with fresh runtime state.
func NewAccountRecord(cfg AccountConfig) *AccountRecord {
	return &AccountRecord{Config: cfg, available: true}
}

// ID returns the account's identity key.
func (r *AccountRecord) ID() string { return r.Config.ID }

// ErrorCount returns the current consecutive-failure counter.
func (r *AccountRecord) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCount
}

// LastErrorTime returns the timestamp of the most recent generic failure.
func (r *AccountRecord) LastErrorTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErrorTime
}

// Last429Time returns the timestamp of the most recent rate-limit response.
func (r *AccountRecord) Last429Time() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last429Time
}

// Available returns the cached health flag from the last classification.
func (r *AccountRecord) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// ApplyOutcome mutates the runtime counters for a request outcome observed
// at the given instant. A 429 keeps its own cooldown clock and does not
// count toward the generic error total.
func (r *AccountRecord) ApplyOutcome(o Outcome, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch o {
	case OutcomeSuccess:
		r.errorCount = 0
		r.lastErrorTime = time.Time{}
		r.last429Time = time.Time{}
	case OutcomeError:
		r.errorCount++
		r.lastErrorTime = now
	case OutcomeRateLimited:
		r.last429Time = now
	}
}

// ResetRuntime clears all runtime counters and marks the record available.
// Used on operator refresh, which is equivalent to a success outcome plus a
// cooldown clear.
func (r *AccountRecord) ResetRuntime() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorCount = 0
	r.lastErrorTime = time.Time{}
	r.last429Time = time.Time{}
	r.available = true
}

// CarryRuntimeFrom copies the runtime health state from an older record for
// the same account id. Called during reload before the new record is
// published, so only the source needs locking.
func (r *AccountRecord) CarryRuntimeFrom(old *AccountRecord) {
	old.mu.Lock()
	errorCount := old.errorCount
	lastErr := old.lastErrorTime
	last429 := old.last429Time
	available := old.available
	old.mu.Unlock()

	r.mu.Lock()
	r.errorCount = errorCount
	r.lastErrorTime = lastErr
	r.last429Time = last429
	r.available = available
	r.mu.Unlock()
}

// Outcome is the result of one upstream request made with an account.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeError       Outcome = "error"
	OutcomeRateLimited Outcome = "rate_limited"
)
