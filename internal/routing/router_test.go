package routing

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/soyeahso/chatpool/internal/logging"
	"github.com/soyeahso/chatpool/internal/pool"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent", "json")
}

func accountCfg(id string) domain.AccountConfig {
	return domain.AccountConfig{
		ID:         id,
		SecureCSes: "ses-" + id,
		CSesIdx:    "idx-" + id,
		ConfigID:   "cfg-" + id,
	}
}

func testPool(t *testing.T, ids ...string) *pool.Pool {
	t.Helper()
	cfgs := make([]domain.AccountConfig, 0, len(ids))
	for _, id := range ids {
		cfgs = append(cfgs, accountCfg(id))
	}
	p, err := pool.New(cfgs, domain.DefaultHealthPolicy(), testLogger())
	require.NoError(t, err)
	return p
}

func TestRouteOrBindAffinityStable(t *testing.T) {
	p := testPool(t, "a", "b", "c")
	r := NewRouter(0, testLogger())

	first, err := r.RouteOrBind("f1", p)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := r.RouteOrBind("f1", p)
		require.NoError(t, err)
		assert.Equal(t, first.ID(), again.ID())
	}
	assert.Equal(t, 1, r.Len())
}

func TestRouteOrBindSelfHealing(t *testing.T) {
	p := testPool(t, "a", "b")
	r := NewRouter(0, testLogger())

	first, err := r.RouteOrBind("f1", p)
	require.NoError(t, err)
	assert.Equal(t, "a", first.ID())

	// bound account gets rate limited; next call must move and rebind
	p.ReportOutcome("a", domain.OutcomeRateLimited)

	second, err := r.RouteOrBind("f1", p)
	require.NoError(t, err)
	assert.Equal(t, "b", second.ID())

	bound, ok := r.BoundAccount("f1")
	require.True(t, ok)
	assert.Equal(t, "b", bound)
}

func TestRouteOrBindExcludesUnhealthyBound(t *testing.T) {
	// with only the bound account left, rebinding must fail rather than
	// return the account that just proved unhealthy
	p := testPool(t, "a")
	r := NewRouter(0, testLogger())

	_, err := r.RouteOrBind("f1", p)
	require.NoError(t, err)

	p.ReportOutcome("a", domain.OutcomeRateLimited)
	_, err = r.RouteOrBind("f1", p)
	assert.ErrorIs(t, err, domain.ErrNoHealthyAccount)
}

func TestRouteOrBindDanglingBinding(t *testing.T) {
	p1 := testPool(t, "a", "b")
	r := NewRouter(0, testLogger())

	rec, err := r.RouteOrBind("f1", p1)
	require.NoError(t, err)
	assert.Equal(t, "a", rec.ID())

	// reload drops account a; the stale binding must trigger re-selection,
	// not a failure
	p2, err := pool.Reload([]domain.AccountConfig{accountCfg("b")}, p1)
	require.NoError(t, err)

	rec, err = r.RouteOrBind("f1", p2)
	require.NoError(t, err)
	assert.Equal(t, "b", rec.ID())
}

func TestRouteOrBindNoHealthyAccount(t *testing.T) {
	p := testPool(t, "a")
	p.ReportOutcome("a", domain.OutcomeRateLimited)
	r := NewRouter(0, testLogger())

	_, err := r.RouteOrBind("f1", p)
	assert.ErrorIs(t, err, domain.ErrNoHealthyAccount)
	assert.Equal(t, 0, r.Len(), "failed selection leaves no binding")
}

func TestIdleEviction(t *testing.T) {
	p := testPool(t, "a", "b")
	r := NewRouter(10*time.Minute, testLogger())

	now := time.Now()
	r.now = func() time.Time { return now }

	_, err := r.RouteOrBind("f1", p)
	require.NoError(t, err)
	_, err = r.RouteOrBind("f2", p)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	// f1 stays warm, f2 goes idle
	now = now.Add(6 * time.Minute)
	_, err = r.RouteOrBind("f1", p)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	_, err = r.RouteOrBind("f3", p)
	require.NoError(t, err)

	_, f1Alive := r.BoundAccount("f1")
	_, f2Alive := r.BoundAccount("f2")
	assert.True(t, f1Alive)
	assert.False(t, f2Alive, "idle bindings are pruned lazily on lookup")
}

func TestEvict(t *testing.T) {
	p := testPool(t, "a")
	r := NewRouter(0, testLogger())

	_, err := r.RouteOrBind("f1", p)
	require.NoError(t, err)
	r.Evict("f1")
	_, ok := r.BoundAccount("f1")
	assert.False(t, ok)

	// evicting a missing fingerprint is a no-op
	r.Evict("never-bound")
}
