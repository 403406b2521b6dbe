package routing

import (
	"sync"
	"time"

	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/soyeahso/chatpool/internal/logging"
	"github.com/soyeahso/chatpool/internal/pool"
)

// DefaultBindingIdle is how long an unused binding survives before lazy
// pruning reclaims it.
const DefaultBindingIdle = 30 * time.Minute

// Router keeps best-effort fingerprint→account bindings. Bindings are pure
// affinity state: losing them degrades upstream session reuse but never
// correctness, so the table lives in memory and is pruned lazily.
type Router struct {
	mu       sync.Mutex
	bindings map[string]*binding
	idle     time.Duration
	now      func() time.Time
	log      *logging.Logger
}

type binding struct {
	accountID string
	lastUsed  time.Time
}

// NewRouter creates a router with the given idle-eviction window.
// A zero window takes the default.
func NewRouter(idle time.Duration, log *logging.Logger) *Router {
	if idle <= 0 {
		idle = DefaultBindingIdle
	}
	return &Router{
		bindings: make(map[string]*binding),
		idle:     idle,
		now:      time.Now,
		log:      log.Sub("routing"),
	}
}

// RouteOrBind returns the account serving this conversation.
//
// A live binding to a currently available account wins. A binding to an
// unhealthy or vanished account is evicted and a fresh account selected,
// excluding the one that just failed so the conversation actually moves.
// With no binding, any healthy account is selected and bound.
func (r *Router) RouteOrBind(fingerprint string, p *pool.Pool) (*domain.AccountRecord, error) {
	now := r.now()

	r.mu.Lock()
	r.pruneLocked(now)

	var excluding map[string]bool
	if b, ok := r.bindings[fingerprint]; ok {
		rec, err := p.Get(b.accountID)
		if err == nil && rec.Classify(now, p.Policy()).Available() {
			b.lastUsed = now
			r.mu.Unlock()
			return rec, nil
		}
		// bound account dropped by reload or no longer healthy
		delete(r.bindings, fingerprint)
		if err == nil {
			excluding = map[string]bool{b.accountID: true}
		}
		r.log.Debug().Str("fingerprint", fingerprint).Str("account", b.accountID).
			Msg("evicted stale binding")
	}
	r.mu.Unlock()

	rec, err := p.SelectHealthy(excluding)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.bindings[fingerprint] = &binding{accountID: rec.ID(), lastUsed: now}
	r.mu.Unlock()

	r.log.Debug().Str("fingerprint", fingerprint).Str("account", rec.ID()).
		Msg("conversation bound")
	return rec, nil
}

// Evict drops the binding for a fingerprint, if any.
func (r *Router) Evict(fingerprint string) {
	r.mu.Lock()
	delete(r.bindings, fingerprint)
	r.mu.Unlock()
}

// BoundAccount returns the currently bound account id for a fingerprint.
func (r *Router) BoundAccount(fingerprint string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[fingerprint]
	if !ok {
		return "", false
	}
	return b.accountID, true
}

// Len returns the number of live bindings.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

// pruneLocked removes bindings idle past the window. Eviction only touches
// affinity, never account health.
func (r *Router) pruneLocked(now time.Time) {
	for fp, b := range r.bindings {
		if now.Sub(b.lastUsed) > r.idle {
			delete(r.bindings, fp)
		}
	}
}
