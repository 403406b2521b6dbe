package pool

import (
	"sync/atomic"

	"github.com/soyeahso/chatpool/internal/logging"
)

// Manager holds the currently installed pool snapshot behind an atomic
// pointer. Readers load the pointer once per request and work against that
// snapshot; Install publishes a replacement without blocking readers.
type Manager struct {
	current atomic.Pointer[Pool]
	log     *logging.Logger
}

// NewManager creates a manager with an initial pool installed.
func NewManager(p *Pool, log *logging.Logger) *Manager {
	m := &Manager{log: log.Sub("pool-manager")}
	m.current.Store(p)
	return m
}

// Current returns the installed snapshot. Callers that make multiple calls
// for one request should hold on to the returned pool so they see a
// consistent view across a concurrent reload.
func (m *Manager) Current() *Pool {
	return m.current.Load()
}

// Install atomically publishes a new pool. In-flight readers keep the
// snapshot they already loaded.
func (m *Manager) Install(p *Pool) {
	old := m.current.Swap(p)
	m.log.Info().
		Int("accounts", p.Len()).
		Int("previous", old.Len()).
		Msg("pool installed")
}
