package confirmation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/treechat-dev/treechat/internal/domain"
	internal_errors "github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/logger"
	"github.com/treechat-dev/treechat/internal/scheduler"
)

// RollbackBuilder returns the compensating business action to run for a
// subject whose confirmation window lapses. The orchestrator always purges
// confirmation state afterwards; builders only add the kind-specific part
// (e.g. deleting an unconfirmed account). Builders log their own failures.
type RollbackBuilder func(subject string) scheduler.Task

// DeferredAction describes one begin request. The send callback receives the
// freshly generated code; returning an error invalidates the confirmation
// immediately instead of waiting for expiry.
type DeferredAction struct {
	Subject   string
	Kind      domain.ActionKind
	Send      func(code string) error
	OnSuccess func()
	Origin    string
}

// Result is the outcome of a successful confirmation. ContinuationRun is
// false when the continuation was already evicted by the sweep: the code
// matched, but there was nothing left to run.
type Result struct {
	Redirect        string
	ContinuationRun bool
}

// Orchestrator wires scheduler, store and registry together and exposes the
// single confirm entry point used by the HTTP boundary.
type Orchestrator struct {
	sched         *scheduler.Scheduler
	store         *Store
	registry      *Registry
	ttl           time.Duration
	defaultOrigin string
	rollbacks     map[domain.ActionKind]RollbackBuilder

	mu      sync.Mutex
	pending map[string]*scheduler.Handle // subject -> scheduled rollback
}

func NewOrchestrator(sched *scheduler.Scheduler, store *Store, registry *Registry, ttl time.Duration, defaultOrigin string) *Orchestrator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Orchestrator{
		sched:         sched,
		store:         store,
		registry:      registry,
		ttl:           ttl,
		defaultOrigin: defaultOrigin,
		rollbacks:     make(map[domain.ActionKind]RollbackBuilder),
		pending:       make(map[string]*scheduler.Handle),
	}
}

// OnRollback registers the compensating action for a kind. Called once at
// construction time; kinds without a builder get state cleanup only.
func (o *Orchestrator) OnRollback(kind domain.ActionKind, build RollbackBuilder) *Orchestrator {
	o.rollbacks[kind] = build
	return o
}

// Begin starts a deferred action: generates a fresh code, schedules the
// immediate side effect (the confirmation mail), registers the success
// continuation and schedules the rollback that fires if confirmation never
// arrives.
func (o *Orchestrator) Begin(a DeferredAction) error {
	if a.Subject == "" || a.Send == nil {
		return internal_errors.InvalidInput("subject is empty or send callback is nil")
	}
	if !a.Kind.RequiresConfirmation() {
		return internal_errors.InvalidInput("action %q does not use confirmation", a.Kind.Key())
	}

	code := uuid.NewString()
	if err := o.store.PutCode(a.Subject, code, a.Kind); err != nil {
		return err
	}

	subject := a.Subject
	send := a.Send
	sendTask := func() {
		if err := send(code); err != nil {
			// Unreachable mail transport: the user can never receive the
			// code, so invalidate it right away instead of letting the
			// window run out.
			logger.Log.Error("confirmation send failed, invalidating code", "subject", subject, "error", err)
			o.store.RemoveCode(subject)
			o.store.RemoveTask(subject)
		}
	}
	handle, err := o.sched.ScheduleOnce(sendTask, 0)
	if err != nil {
		o.store.RemoveCode(a.Subject)
		return err
	}
	if err := o.store.PutConfirmationTask(a.Subject, handle, o.ttl); err != nil {
		o.store.RemoveCode(a.Subject)
		return err
	}

	if a.OnSuccess != nil {
		o.registry.Put(a.Subject, a.OnSuccess, a.Origin)
	}

	rollback, err := o.sched.ScheduleOnce(o.rollbackTask(a.Subject, a.Kind), o.ttl)
	if err != nil {
		o.store.RemoveCode(a.Subject)
		o.store.RemoveTask(a.Subject)
		o.registry.Remove(a.Subject)
		return err
	}
	o.trackRollback(a.Subject, rollback)

	logger.Log.Info("deferred action started", "subject", a.Subject, "action", a.Kind.Key(), "ttl", o.ttl)
	return nil
}

// Confirm validates the code for the subject and, on success, cancels the
// pending rollback and runs the stored continuation synchronously.
func (o *Orchestrator) Confirm(subject, code, actionKey string) (Result, error) {
	kind, ok := domain.ActionKindFromKey(actionKey)
	if !ok {
		return Result{}, internal_errors.InvalidInput("unknown action key: %s", actionKey)
	}

	verified, err := o.store.MarkCompleted(subject, code, kind)
	if err != nil {
		return Result{}, err
	}
	if !verified {
		return Result{}, internal_errors.NotFound("no pending confirmation for subject: %s", subject)
	}

	o.cancelRollback(subject)

	continuation, origin, err := o.registry.Consume(subject)
	if err != nil {
		// The sweep got there first. The confirmation itself succeeded,
		// there is just nothing left to run and nowhere to redirect.
		logger.Log.Warn("confirmed but continuation already evicted", "subject", subject, "action", kind.Key())
		return Result{}, nil
	}

	continuation()
	if origin == "" {
		origin = o.defaultOrigin
	}
	logger.Log.Info("deferred action confirmed", "subject", subject, "action", kind.Key())
	return Result{Redirect: origin, ContinuationRun: true}, nil
}

// rollbackTask builds the task that fires at expiry: the kind-specific
// compensation (if any) plus eviction of the continuation. The store's code
// and task entries are left in place; the lazy expiry check in MarkCompleted
// purges them on the next confirm attempt, so a late confirm is reported as
// expired rather than not found.
func (o *Orchestrator) rollbackTask(subject string, kind domain.ActionKind) scheduler.Task {
	var compensate scheduler.Task
	if build, ok := o.rollbacks[kind]; ok {
		compensate = build(subject)
	}
	return func() {
		logger.Log.Info("rolling back unconfirmed action", "subject", subject, "action", kind.Key())
		if compensate != nil {
			compensate()
		}
		o.registry.Remove(subject)
		o.clearRollback(subject)
	}
}

// trackRollback remembers the scheduled rollback, cancelling any previous
// one for the same subject (last-writer-wins, like the code itself).
func (o *Orchestrator) trackRollback(subject string, h *scheduler.Handle) {
	o.mu.Lock()
	prev := o.pending[subject]
	o.pending[subject] = h
	o.mu.Unlock()
	if prev != nil {
		o.sched.Cancel(prev)
	}
}

func (o *Orchestrator) cancelRollback(subject string) {
	o.mu.Lock()
	h := o.pending[subject]
	delete(o.pending, subject)
	o.mu.Unlock()
	if h != nil {
		o.sched.Cancel(h)
	}
}

func (o *Orchestrator) clearRollback(subject string) {
	o.mu.Lock()
	delete(o.pending, subject)
	o.mu.Unlock()
}
