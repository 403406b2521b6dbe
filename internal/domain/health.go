package domain

import "time"

// State classifies an account at a point in time. Exactly one state applies.
type State int

const (
	StateAvailable State = iota
	StateCooldown
	StateExpired
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateCooldown:
		return "cooldown"
	case StateExpired:
		return "expired"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Cooldown reasons reported by Classify.
const (
	CooldownReason429    = "429"
	CooldownReasonErrors = "errors"
)

// HealthPolicy holds the cooldown windows and thresholds used to classify
// accounts. The upstream's exact values are not published, so these are
// configuration with conservative defaults.
type HealthPolicy struct {
	// Cooldown429 is how long an account rests after a rate-limit response.
	Cooldown429 time.Duration
	// ErrorThreshold is how many generic failures trigger a cooldown.
	ErrorThreshold int
	// ErrorCooldown is how long the generic-failure cooldown lasts.
	ErrorCooldown time.Duration
}

// DefaultHealthPolicy returns the stock policy.
func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{
		Cooldown429:    5 * time.Minute,
		ErrorThreshold: 3,
		ErrorCooldown:  2 * time.Minute,
	}
}

// Health is the result of classifying one account.
type Health struct {
	State  State
	Reason string
	// Remaining is how long the current cooldown still has to run.
	// Zero unless State is StateCooldown.
	Remaining time.Duration
}

// Available is shorthand for State == StateAvailable.
func (h Health) Available() bool { return h.State == StateAvailable }

// Classify evaluates the record against the policy at the given instant and
// caches the resulting availability flag on the record. Counters are never
// mutated here; that is the outcome reporter's job.
func (r *AccountRecord) Classify(now time.Time, p HealthPolicy) Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := classify(r.Config, r.errorCount, r.lastErrorTime, r.last429Time, now, p)
	r.available = h.Available()
	return h
}

func classify(cfg AccountConfig, errorCount int, lastError, last429, now time.Time, p HealthPolicy) Health {
	if cfg.Disabled {
		return Health{State: StateDisabled}
	}
	if cfg.Expired(now) {
		return Health{State: StateExpired}
	}
	if !last429.IsZero() {
		if rest := p.Cooldown429 - now.Sub(last429); rest > 0 {
			return Health{State: StateCooldown, Reason: CooldownReason429, Remaining: rest}
		}
	}
	if errorCount >= p.ErrorThreshold && !lastError.IsZero() {
		if rest := p.ErrorCooldown - now.Sub(lastError); rest > 0 {
			return Health{State: StateCooldown, Reason: CooldownReasonErrors, Remaining: rest}
		}
	}
	return Health{State: StateAvailable}
}
