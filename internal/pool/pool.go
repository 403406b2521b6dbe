// Package pool owns the set of account records and selection logic.
//
// A Pool is an immutable snapshot: structural changes (add, refresh, disable,
// reload) always build a new Pool, while only per-record health fields mutate
// in place between reloads. The Manager swaps snapshots atomically so readers
// never observe a partially replaced pool.
package pool

import (
	"fmt"
	"sort"
	"time"

	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/soyeahso/chatpool/internal/logging"
)

// Pool is an immutable set of account records keyed by id.
type Pool struct {
	records []*domain.AccountRecord // sorted by id for deterministic scans
	byID    map[string]*domain.AccountRecord
	policy  domain.HealthPolicy
	log     *logging.Logger
}

// New builds a pool from an account list with fresh runtime state.
// It fails with a ValidationError when required fields are missing and with
// ErrDuplicate when two entries share an id.
func New(list []domain.AccountConfig, policy domain.HealthPolicy, log *logging.Logger) (*Pool, error) {
	p := &Pool{
		records: make([]*domain.AccountRecord, 0, len(list)),
		byID:    make(map[string]*domain.AccountRecord, len(list)),
		policy:  policy,
		log:     log,
	}

	for _, cfg := range list {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("account %q: %w", cfg.ID, err)
		}
		if _, exists := p.byID[cfg.ID]; exists {
			return nil, fmt.Errorf("account %q: %w", cfg.ID, domain.ErrDuplicate)
		}
		rec := domain.NewAccountRecord(cfg)
		p.byID[cfg.ID] = rec
		p.records = append(p.records, rec)
	}

	sort.Slice(p.records, func(i, j int) bool {
		return p.records[i].ID() < p.records[j].ID()
	})
	return p, nil
}

// Len returns the number of accounts in the pool.
func (p *Pool) Len() int { return len(p.records) }

// Policy returns the health policy the pool classifies with.
func (p *Pool) Policy() domain.HealthPolicy { return p.policy }

// Get returns the record for an id, or ErrNotFound.
func (p *Pool) Get(id string) (*domain.AccountRecord, error) {
	rec, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// Records returns the records in id order. The slice is a copy; the records
// are shared.
func (p *Pool) Records() []*domain.AccountRecord {
	out := make([]*domain.AccountRecord, len(p.records))
	copy(out, p.records)
	return out
}

// Configs returns the account configs in id order.
func (p *Pool) Configs() []domain.AccountConfig {
	out := make([]domain.AccountConfig, 0, len(p.records))
	for _, rec := range p.records {
		out = append(out, rec.Config)
	}
	return out
}

// SelectHealthy scans all records and returns an available account not in
// the excluding set. Ties break toward the least recently troubled record:
// oldest lastErrorTime first, then lowest errorCount, then lexicographic id.
// Fails with ErrNoHealthyAccount when nothing qualifies.
func (p *Pool) SelectHealthy(excluding map[string]bool) (*domain.AccountRecord, error) {
	now := time.Now()
	return p.selectHealthyAt(excluding, now)
}

func (p *Pool) selectHealthyAt(excluding map[string]bool, now time.Time) (*domain.AccountRecord, error) {
	var best *domain.AccountRecord
	var bestErrTime time.Time
	var bestErrCount int

	for _, rec := range p.records {
		if excluding != nil && excluding[rec.ID()] {
			continue
		}
		if !rec.Classify(now, p.policy).Available() {
			continue
		}
		errTime := rec.LastErrorTime()
		errCount := rec.ErrorCount()
		if best == nil || lessTroubled(errTime, errCount, bestErrTime, bestErrCount) {
			best = rec
			bestErrTime = errTime
			bestErrCount = errCount
		}
	}

	if best == nil {
		return nil, domain.ErrNoHealthyAccount
	}
	return best, nil
}

// lessTroubled reports whether (aTime, aCount) should be preferred over the
// current best. Records are scanned in id order, so equal keys keep the
// earlier id.
func lessTroubled(aTime time.Time, aCount int, bTime time.Time, bCount int) bool {
	if !aTime.Equal(bTime) {
		return aTime.Before(bTime)
	}
	return aCount < bCount
}

// ReportOutcome applies a request outcome to the named account's counters.
// Outcomes may race with a reload that removed the account; an unknown id is
// logged and dropped rather than surfaced, because the caller can do nothing
// useful with it.
func (p *Pool) ReportOutcome(id string, o domain.Outcome) {
	rec, ok := p.byID[id]
	if !ok {
		p.log.Warn().Str("account", id).Str("outcome", string(o)).
			Msg("outcome for unknown account dropped")
		return
	}
	rec.ApplyOutcome(o, time.Now())
	p.log.Debug().Str("account", id).Str("outcome", string(o)).
		Int("errorCount", rec.ErrorCount()).
		Msg("outcome recorded")
}

// Stats are aggregate health counts for observability.
type Stats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Expired     int `json:"expired"`
	Disabled    int `json:"disabled"`
	RateLimited int `json:"rate_limited"`
	CoolingDown int `json:"cooling_down"`
}

// Snapshot classifies every record at one instant and returns aggregate
// counts. It only holds each record's lock long enough to classify it.
func (p *Pool) Snapshot() Stats {
	now := time.Now()
	return p.snapshotAt(now)
}

func (p *Pool) snapshotAt(now time.Time) Stats {
	s := Stats{Total: len(p.records)}
	for _, rec := range p.records {
		h := rec.Classify(now, p.policy)
		switch h.State {
		case domain.StateDisabled:
			s.Disabled++
		case domain.StateExpired:
			s.Expired++
		case domain.StateCooldown:
			if h.Reason == domain.CooldownReason429 {
				s.RateLimited++
			} else {
				s.CoolingDown++
			}
		default:
			s.Active++
		}
	}
	return s
}
