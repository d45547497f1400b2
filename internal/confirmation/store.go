// Package confirmation implements the deferred action and confirmation
// engine: single-use codes tied to an action and expiry, success
// continuations, and automatic rollback of unconfirmed actions.
package confirmation

import (
	"time"

	"sync"

	"github.com/treechat-dev/treechat/internal/domain"
	internal_errors "github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/logger"
	"github.com/treechat-dev/treechat/internal/scheduler"
)

// codeRecord is the live confirmation code for a subject. One per subject;
// a new put replaces the previous one.
type codeRecord struct {
	code      string
	action    domain.ActionKind
	createdAt time.Time
}

// taskEntry pairs the scheduled rollback trigger with its expiry. Stored
// independently from the code record; a subject whose two halves disagree is
// treated as "not found".
type taskEntry struct {
	handle    *scheduler.Handle
	expiresAt time.Time
}

// Store tracks pending confirmations. Codes and task entries live in two
// maps, each guarded by its own lock; MarkCompleted takes both in a fixed
// order so its read-then-mutate transition stays atomic.
type Store struct {
	now func() time.Time

	codesMu sync.Mutex
	codes   map[string]codeRecord

	tasksMu sync.Mutex
	tasks   map[string]taskEntry
}

func NewStore() *Store {
	return &Store{
		now:   time.Now,
		codes: make(map[string]codeRecord),
		tasks: make(map[string]taskEntry),
	}
}

// PutCode stores the confirmation code for a subject, replacing and thereby
// invalidating any previous one.
func (s *Store) PutCode(subject, code string, action domain.ActionKind) error {
	if subject == "" || code == "" {
		return internal_errors.InvalidInput("subject %q or code %q is empty", subject, code)
	}
	s.codesMu.Lock()
	s.codes[subject] = codeRecord{code: code, action: action, createdAt: s.now()}
	s.codesMu.Unlock()
	logger.Log.Debug("stored confirmation code", "subject", subject, "action", action.Key())
	return nil
}

// PutConfirmationTask stores the rollback trigger handle for a subject with
// the given expiring delay, replacing any previous entry.
func (s *Store) PutConfirmationTask(subject string, handle *scheduler.Handle, expiringDelay time.Duration) error {
	if subject == "" || handle == nil {
		return internal_errors.InvalidInput("subject %q is empty or handle is nil", subject)
	}
	s.tasksMu.Lock()
	s.tasks[subject] = taskEntry{handle: handle, expiresAt: s.now().Add(expiringDelay)}
	s.tasksMu.Unlock()
	logger.Log.Debug("stored confirmation task", "subject", subject)
	return nil
}

// RemoveCode removes the subject's code. Idempotent.
func (s *Store) RemoveCode(subject string) error {
	if subject == "" {
		return internal_errors.InvalidInput("subject is empty")
	}
	s.codesMu.Lock()
	delete(s.codes, subject)
	s.codesMu.Unlock()
	return nil
}

// RemoveTask removes the subject's task entry. Idempotent.
func (s *Store) RemoveTask(subject string) error {
	if subject == "" {
		return internal_errors.InvalidInput("subject is empty")
	}
	s.tasksMu.Lock()
	delete(s.tasks, subject)
	s.tasksMu.Unlock()
	return nil
}

// MarkCompleted is the core state transition. It returns true and purges all
// confirmation state when the code and action match an unexpired pending
// confirmation. Missing state yields (false, nil); a lapsed expiry purges
// both halves and yields ConfirmationExpiredError; a wrong code or action
// yields ConfirmationMismatchError and keeps state so the user can retry
// with the mailed code.
func (s *Store) MarkCompleted(subject, code string, action domain.ActionKind) (bool, error) {
	if subject == "" || code == "" || action == "" {
		return false, internal_errors.InvalidInput("subject %q, code %q or action %q is empty", subject, code, action)
	}
	// Lock order: codes then tasks, everywhere.
	s.codesMu.Lock()
	defer s.codesMu.Unlock()
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()

	rec, ok := s.codes[subject]
	if !ok {
		return false, nil
	}
	entry, ok := s.tasks[subject]
	if !ok {
		return false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.codes, subject)
		delete(s.tasks, subject)
		return false, internal_errors.ConfirmationExpired("confirmation code is expired: %s", code)
	}
	if rec.code == code && rec.action == action {
		delete(s.codes, subject)
		delete(s.tasks, subject)
		logger.Log.Debug("confirmation completed", "subject", subject, "action", action.Key())
		return true, nil
	}
	return false, internal_errors.ConfirmationMismatch("confirmation codes do not match: %s", code)
}
