// Package limiter provides named-domain concurrency budgets. Each domain
// admits at most budget tasks at a time; excess tasks queue in arrival
// order. Domains are created on first use with the default budget unless a
// budget was configured through Initialize or SetBudget.
package limiter

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gregpriday/copytree/pkg/errors"
	"github.com/gregpriday/copytree/pkg/logging"
)

// Well-known domains used by the pipeline
const (
	DomainDiscovery = "discovery"
	DomainGlob      = "glob"
	DomainIO        = "io"
	DomainTransform = "transform"
)

// DefaultBudget applies to domains created without explicit configuration
const DefaultBudget = 8

// Stats reports a domain's current load
type Stats struct {
	Active  int
	Pending int
	Budget  int
}

// waiter is a queued admission request
type waiter struct {
	ready   chan struct{}
	cleared chan struct{}
}

type domain struct {
	budget int
	active int
	queue  []*waiter
}

// Manager tracks all domains. The zero value is not usable; create one
// with NewManager.
type Manager struct {
	mu          sync.Mutex
	idle        *sync.Cond
	domains     map[string]*domain
	budgets     map[string]int
	initialized bool
	logger      zerolog.Logger
}

// NewManager creates a Manager with no configured budgets
func NewManager() *Manager {
	m := &Manager{
		domains: make(map[string]*domain),
		budgets: make(map[string]int),
		logger:  logging.GetLogger("limiter"),
	}
	m.idle = sync.NewCond(&m.mu)
	return m
}

// Initialize sets domain budgets once. Subsequent calls are no-ops: the
// first writer wins. Returns true when the budgets were applied.
func (m *Manager) Initialize(budgets map[string]int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		m.logger.Debug().Msg("Limiter already initialized, ignoring budgets")
		return false
	}
	m.initialized = true
	for name, budget := range budgets {
		if budget < 1 {
			continue
		}
		m.budgets[name] = budget
	}
	return true
}

func (m *Manager) getOrCreate(name string) *domain {
	d, ok := m.domains[name]
	if !ok {
		budget, configured := m.budgets[name]
		if !configured {
			budget = DefaultBudget
		}
		d = &domain{budget: budget}
		m.domains[name] = d
	}
	return d
}

// Do runs fn under the domain's budget. Tasks beyond the budget wait in
// FIFO order. Waiting is abandoned when ctx is canceled or the queue is
// cleared; fn's error is returned verbatim once it runs.
func (m *Manager) Do(ctx context.Context, name string, fn func() error) error {
	m.mu.Lock()
	d := m.getOrCreate(name)

	if d.active < d.budget && len(d.queue) == 0 {
		d.active++
		m.mu.Unlock()
		return m.run(name, d, fn)
	}

	w := &waiter{ready: make(chan struct{}), cleared: make(chan struct{})}
	d.queue = append(d.queue, w)
	m.mu.Unlock()

	select {
	case <-w.ready:
		return m.run(name, d, fn)
	case <-w.cleared:
		return errors.Newf(errors.ErrLimiterCleared, "queued work in domain %q dropped", name)
	case <-ctx.Done():
		m.abandon(d, w)
		return ctx.Err()
	}
}

// run executes fn while holding an admission slot
func (m *Manager) run(name string, d *domain, fn func() error) error {
	defer func() {
		m.mu.Lock()
		d.active--
		m.admitLocked(d)
		m.idle.Broadcast()
		m.mu.Unlock()
	}()
	return fn()
}

// admitLocked promotes queue heads into freed slots; callers hold m.mu
func (m *Manager) admitLocked(d *domain) {
	for d.active < d.budget && len(d.queue) > 0 {
		w := d.queue[0]
		d.queue = d.queue[1:]
		d.active++
		close(w.ready)
	}
}

// abandon removes a waiter whose context was canceled. The waiter may have
// been admitted concurrently; if so the slot is handed to the next in line.
func (m *Manager) abandon(d *domain, w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, queued := range d.queue {
		if queued == w {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			m.idle.Broadcast()
			return
		}
	}
	// Already admitted: release the unused slot
	select {
	case <-w.ready:
		d.active--
		m.admitLocked(d)
		m.idle.Broadcast()
	default:
	}
}

// Wait blocks until the domain has no active and no pending work.
// An unknown domain is already idle.
func (m *Manager) Wait(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		d, ok := m.domains[name]
		if !ok || (d.active == 0 && len(d.queue) == 0) {
			return
		}
		m.idle.Wait()
	}
}

// WaitAll blocks until every domain is idle
func (m *Manager) WaitAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		busy := false
		for _, d := range m.domains {
			if d.active > 0 || len(d.queue) > 0 {
				busy = true
				break
			}
		}
		if !busy {
			return
		}
		m.idle.Wait()
	}
}

// Clear drops all queued-not-started work across every domain. Running
// tasks are left to finish.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for _, d := range m.domains {
		for _, w := range d.queue {
			close(w.cleared)
			dropped++
		}
		d.queue = nil
	}
	if dropped > 0 {
		m.logger.Debug().Int("dropped", dropped).Msg("Cleared queued work")
	}
	m.idle.Broadcast()
}

// SetBudget changes a domain's budget, creating the domain if needed.
// Budgets below 1 are rejected.
func (m *Manager) SetBudget(name string, budget int) error {
	if budget < 1 {
		return errors.Newf(errors.ErrLimiterBudget, "budget for domain %q must be at least 1, got %d", name, budget)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.budgets[name] = budget
	d := m.getOrCreate(name)
	d.budget = budget
	m.admitLocked(d)
	return nil
}

// Stats returns the domain's current load; unknown domains report zeros
func (m *Manager) Stats(name string) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.domains[name]
	if !ok {
		return Stats{}
	}
	return Stats{Active: d.active, Pending: len(d.queue), Budget: d.budget}
}
