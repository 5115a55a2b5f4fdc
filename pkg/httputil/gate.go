package httputil

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultQuota is the number of requests allowed in flight at once across
// the whole process.
const DefaultQuota = 50

// Gate is a counting admission gate shared by every outbound request.
// Acquire blocks until a permit is free or ctx is done.
type Gate struct {
	sem   *semaphore.Weighted
	quota int64
}

// NewGate creates a Gate admitting at most quota concurrent holders.
// A quota below one is raised to one.
func NewGate(quota int) *Gate {
	q := int64(max(quota, 1))
	return &Gate{sem: semaphore.NewWeighted(q), quota: q}
}

// Quota returns the maximum number of concurrent holders.
func (g *Gate) Quota() int { return int(g.quota) }

// Acquire takes one permit. The returned release func must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { g.sem.Release(1) }, nil
}

// Do runs fn while holding one permit.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

var defaultGate = NewGate(DefaultQuota)

// DefaultGate returns the process-wide gate used by clients that are not
// given one explicitly.
func DefaultGate() *Gate { return defaultGate }
