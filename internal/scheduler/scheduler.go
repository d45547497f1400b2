// Package scheduler provides the process-wide delayed and periodic execution
// primitive. All task bodies run on a bounded worker pool; callers only ever
// hold opaque handles. Scheduled state is in-memory and does not survive a
// restart.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	internal_errors "github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/logger"
)

// Task is a unit of deferred work. Bodies handle and log their own failures;
// the scheduler never inspects task outcomes.
type Task func()

// PeriodicMode selects the re-fire semantics of a periodic task.
type PeriodicMode int

const (
	// FixedDelay starts the next run one period after the previous run
	// completed. Runs never overlap.
	FixedDelay PeriodicMode = iota
	// FixedRate starts the next run one period after the previous run
	// started, regardless of how long the body takes. Runs may overlap.
	FixedRate
)

const janitorInterval = time.Minute

var (
	tasksExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_tasks_executed_total",
		Help: "Total number of task bodies executed by the worker pool",
	})
	activeHandles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_active_handles",
		Help: "Number of task handles currently tracked by the scheduler",
	})
)

// Handle is an opaque reference to a scheduled unit of work. Callers can
// cancel through it; they never see the work item itself.
type Handle struct {
	id        string
	stop      chan struct{}
	stopOnce  sync.Once
	cancelled atomic.Bool
	completed atomic.Bool
}

func newHandle() *Handle {
	return &Handle{id: uuid.NewString(), stop: make(chan struct{})}
}

func (h *Handle) Id() string { return h.id }

// Cancelled reports whether Cancel was called on this handle.
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

// Completed reports whether a one-shot task finished its single run.
// Periodic tasks never complete; they only get cancelled.
func (h *Handle) Completed() bool { return h.completed.Load() }

func (h *Handle) finished() bool {
	return h.cancelled.Load() || h.completed.Load()
}

type job struct {
	run  Task
	done chan struct{} // closed after run; nil for fire-and-forget
}

type Scheduler struct {
	mu      sync.Mutex
	handles map[string]*Handle

	jobs         chan job
	shutdown     chan struct{}
	shutdownOnce sync.Once
	workers      sync.WaitGroup
}

// New creates a scheduler backed by the given number of pool workers and
// starts the janitor that periodically discards finished handles.
func New(workers int) *Scheduler {
	if workers <= 0 {
		workers = 8
	}
	s := &Scheduler{
		handles:  make(map[string]*Handle),
		jobs:     make(chan job, 64),
		shutdown: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		s.workers.Add(1)
		go s.worker()
	}
	// The janitor is itself a scheduled periodic task, so the handle
	// registry cannot grow unbounded.
	if _, err := s.SchedulePeriodic(s.removeFinishedHandles, janitorInterval, janitorInterval, FixedRate); err != nil {
		logger.Log.Error("failed to schedule handle janitor", "error", err)
	}
	return s
}

func (s *Scheduler) worker() {
	defer s.workers.Done()
	for {
		select {
		case j := <-s.jobs:
			j.run()
			tasksExecuted.Inc()
			if j.done != nil {
				close(j.done)
			}
		case <-s.shutdown:
			return
		}
	}
}

// submit hands a task body to the pool. Called from timing goroutines only,
// so a saturated pool never blocks the scheduling caller.
func (s *Scheduler) submit(t Task, done chan struct{}) {
	select {
	case s.jobs <- job{run: t, done: done}:
	case <-s.shutdown:
		if done != nil {
			close(done)
		}
	}
}

func (s *Scheduler) register(h *Handle) {
	s.mu.Lock()
	s.handles[h.id] = h
	activeHandles.Set(float64(len(s.handles)))
	s.mu.Unlock()
}

// ScheduleOnce runs task exactly once after delay.
func (s *Scheduler) ScheduleOnce(task Task, delay time.Duration) (*Handle, error) {
	if task == nil || delay < 0 {
		return nil, internal_errors.InvalidInput("task is nil or delay is negative: %v", delay)
	}
	h := newHandle()
	s.register(h)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			done := make(chan struct{})
			s.submit(task, done)
			// A body still sitting in the queue when the pool stops is
			// dropped; don't wait for a worker that already exited.
			select {
			case <-done:
				h.completed.Store(true)
			case <-s.shutdown:
			}
		case <-h.stop:
		case <-s.shutdown:
		}
	}()
	return h, nil
}

// SchedulePeriodic runs task repeatedly, first after initialDelay, then per
// the given mode.
func (s *Scheduler) SchedulePeriodic(task Task, initialDelay, period time.Duration, mode PeriodicMode) (*Handle, error) {
	if task == nil || initialDelay < 0 || period <= 0 {
		return nil, internal_errors.InvalidInput("task is nil, delay %v is negative or period %v is not positive", initialDelay, period)
	}
	h := newHandle()
	s.register(h)

	switch mode {
	case FixedDelay:
		go s.runFixedDelay(h, task, initialDelay, period)
	case FixedRate:
		go s.runFixedRate(h, task, initialDelay, period)
	default:
		return nil, internal_errors.InvalidInput("unknown periodic mode: %d", mode)
	}
	return h, nil
}

func (s *Scheduler) runFixedDelay(h *Handle, task Task, initialDelay, period time.Duration) {
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
		case <-h.stop:
			return
		case <-s.shutdown:
			return
		}
		done := make(chan struct{})
		s.submit(task, done)
		select {
		case <-done:
		case <-s.shutdown:
			return
		}
		timer.Reset(period)
	}
}

func (s *Scheduler) runFixedRate(h *Handle, task Task, initialDelay, period time.Duration) {
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		s.submit(task, nil)
	case <-h.stop:
		return
	case <-s.shutdown:
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.submit(task, nil)
		case <-h.stop:
			return
		case <-s.shutdown:
			return
		}
	}
}

// SchedulePeriodicUntil schedules a periodic task plus a one-shot
// cancellation task that fires at the given time. It returns the periodic
// task's handle.
func (s *Scheduler) SchedulePeriodicUntil(task Task, initialDelay, period time.Duration, mode PeriodicMode, until time.Time) (*Handle, error) {
	h, err := s.SchedulePeriodic(task, initialDelay, period, mode)
	if err != nil {
		return nil, err
	}
	cancelDelay := time.Until(until)
	if cancelDelay < 0 {
		cancelDelay = 0
	}
	if _, err := s.ScheduleOnce(func() { s.Cancel(h) }, cancelDelay); err != nil {
		s.Cancel(h)
		return nil, err
	}
	return h, nil
}

// Cancel stops the handle's future runs. Cancellation is best-effort: a body
// already executing on the pool is not preempted.
func (s *Scheduler) Cancel(h *Handle) error {
	if h == nil {
		return internal_errors.InvalidInput("handle is nil")
	}
	h.cancelled.Store(true)
	h.stopOnce.Do(func() { close(h.stop) })
	return nil
}

func (s *Scheduler) removeFinishedHandles() {
	s.mu.Lock()
	for id, h := range s.handles {
		if h.finished() {
			delete(s.handles, id)
		}
	}
	activeHandles.Set(float64(len(s.handles)))
	s.mu.Unlock()
}

// HandleCount reports how many handles are currently tracked.
func (s *Scheduler) HandleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Shutdown cancels every tracked handle and stops the worker pool. Queued
// bodies that have not started are dropped.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		for _, h := range s.handles {
			h.cancelled.Store(true)
			h.stopOnce.Do(func() { close(h.stop) })
		}
		s.mu.Unlock()
		close(s.shutdown)
		s.workers.Wait()
	})
}
