// Package lock serializes ledger rebuilds over overlapping date ranges.
//
// Two ranges conflict when they share at least one calendar day. Locks never
// wait: a conflicting request fails immediately with shared.ErrRangeLocked so
// the caller can report it and retry later.
package lock

import (
	"context"
	"sync"

	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/shared"
)

// Release frees a held range lock. Calling it more than once is harmless.
type Release func(ctx context.Context) error

// RangeLocker grants exclusive access to a date range.
type RangeLocker interface {
	Lock(ctx context.Context, r ledger.DateRange) (Release, error)
}

// LocalRangeLocker tracks held ranges in process memory. It is only correct
// when a single instance rebuilds the ledger.
type LocalRangeLocker struct {
	mu     sync.Mutex
	nextID uint64
	held   map[uint64]ledger.DateRange
}

// NewLocalRangeLocker creates an in-process range locker
func NewLocalRangeLocker() *LocalRangeLocker {
	return &LocalRangeLocker{held: make(map[uint64]ledger.DateRange)}
}

// Lock takes r unless a held range overlaps it.
func (l *LocalRangeLocker) Lock(_ context.Context, r ledger.DateRange) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, h := range l.held {
		if h.Overlaps(r) {
			return nil, lockedError(r, h)
		}
	}
	l.nextID++
	id := l.nextID
	l.held[id] = r

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, id)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

// Held returns the number of ranges currently locked.
func (l *LocalRangeLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

func lockedError(want, held ledger.DateRange) error {
	return shared.NewDomainError(shared.CodeRangeLocked,
		"rebuild of "+want.String()+" overlaps running rebuild of "+held.String())
}
