package confirmation

import (
	"sync"
	"time"

	internal_errors "github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/logger"
	"github.com/treechat-dev/treechat/internal/scheduler"
)

// pendingContinuation is "what to do if the user successfully confirms":
// a side effect run exactly once, plus the origin to redirect to afterwards.
type pendingContinuation struct {
	expiresAt time.Time
	origin    string
	run       func()
}

// Registry holds success continuations keyed by subject. Entries are
// consumed on successful confirmation or silently discarded by the periodic
// sweep once they expire. This coarse TTL is deliberately independent from
// the Store's lazy per-subject expiry check.
type Registry struct {
	now func() time.Time
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]pendingContinuation
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{
		now:     time.Now,
		ttl:     ttl,
		entries: make(map[string]pendingContinuation),
	}
}

// Put stores the continuation for a subject, replacing any previous one.
func (r *Registry) Put(subject string, continuation func(), origin string) {
	r.mu.Lock()
	r.entries[subject] = pendingContinuation{
		expiresAt: r.now().Add(r.ttl),
		origin:    origin,
		run:       continuation,
	}
	r.mu.Unlock()
}

// Consume atomically removes and returns the subject's continuation.
func (r *Registry) Consume(subject string) (func(), string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[subject]
	if !ok {
		return nil, "", internal_errors.NotFound("no pending continuation for subject: %s", subject)
	}
	delete(r.entries, subject)
	return entry.run, entry.origin, nil
}

// Remove drops the subject's continuation. Used by rollback tasks.
func (r *Registry) Remove(subject string) {
	r.mu.Lock()
	delete(r.entries, subject)
	r.mu.Unlock()
}

// Sweep evicts every expired continuation.
func (r *Registry) Sweep() {
	now := r.now()
	evicted := 0
	r.mu.Lock()
	for subject, entry := range r.entries {
		if entry.expiresAt.Before(now) {
			delete(r.entries, subject)
			evicted++
		}
	}
	r.mu.Unlock()
	if evicted > 0 {
		logger.Log.Info("evicted expired continuations", "count", evicted)
	}
}

// StartSweep schedules the periodic eviction task.
func (r *Registry) StartSweep(s *scheduler.Scheduler, interval time.Duration) error {
	_, err := s.SchedulePeriodic(r.Sweep, interval, interval, scheduler.FixedRate)
	return err
}

// Len reports the number of pending continuations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
