package pool

import "github.com/soyeahso/chatpool/internal/domain"

// Reload builds a new pool from an account list, carrying forward the
// runtime health state of accounts whose id survives from the old pool.
// Accounts absent from the new list are dropped; brand-new ids start with
// fresh state. Validation failures return an error and leave the old pool
// untouched. Reload is all-or-nothing, the caller only calls
// Manager.Install on success.
func Reload(list []domain.AccountConfig, old *Pool) (*Pool, error) {
	next, err := New(list, old.policy, old.log)
	if err != nil {
		return nil, err
	}

	for _, rec := range next.records {
		if prev, ok := old.byID[rec.ID()]; ok {
			rec.CarryRuntimeFrom(prev)
		}
	}
	return next, nil
}
