package workflow

import (
	"context"
	"sync"
)

// ProjectLocks serializes transitions per project. Two concurrent runs for
// the same project id would otherwise both pass the precondition probe and
// both execute, losing one update. Runs for different projects never contend.
//
// Lock entries are reference-counted and removed once the last holder or
// waiter releases, so the map does not grow with the number of projects ever
// seen.
type ProjectLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// NewProjectLocks creates an empty lock table.
func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{locks: make(map[string]*lockEntry)}
}

// Acquire blocks until the project lock is held or the context is done. On
// success the caller must call Release exactly once.
func (p *ProjectLocks) Acquire(ctx context.Context, projectID string) error {
	p.mu.Lock()
	entry, ok := p.locks[projectID]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		entry.ch <- struct{}{}
		p.locks[projectID] = entry
	}
	entry.refs++
	p.mu.Unlock()

	select {
	case <-entry.ch:
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(p.locks, projectID)
		}
		p.mu.Unlock()
		return ctx.Err()
	}
}

// Release frees the project lock acquired by Acquire.
func (p *ProjectLocks) Release(projectID string) {
	p.mu.Lock()
	entry, ok := p.locks[projectID]
	if !ok {
		p.mu.Unlock()
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(p.locks, projectID)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	entry.ch <- struct{}{}
}
