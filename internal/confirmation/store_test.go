package confirmation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treechat-dev/treechat/internal/domain"
	internal_errors "github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/scheduler"
)

func testHandle(t *testing.T, s *scheduler.Scheduler) *scheduler.Handle {
	t.Helper()
	h, err := s.ScheduleOnce(func() {}, time.Hour)
	require.NoError(t, err)
	return h
}

func TestPutCodeValidation(t *testing.T) {
	store := NewStore()

	err := store.PutCode("", "code", domain.SignUp)
	assert.True(t, internal_errors.Is[*internal_errors.InvalidInputError](err))

	err = store.PutCode("user@example.com", "", domain.SignUp)
	assert.True(t, internal_errors.Is[*internal_errors.InvalidInputError](err))

	assert.NoError(t, store.PutCode("user@example.com", "code", domain.SignUp))
}

func TestPutConfirmationTaskValidation(t *testing.T) {
	sched := scheduler.New(1)
	defer sched.Shutdown()
	store := NewStore()

	err := store.PutConfirmationTask("user@example.com", nil, time.Minute)
	assert.True(t, internal_errors.Is[*internal_errors.InvalidInputError](err))

	err = store.PutConfirmationTask("", testHandle(t, sched), time.Minute)
	assert.True(t, internal_errors.Is[*internal_errors.InvalidInputError](err))

	assert.NoError(t, store.PutConfirmationTask("user@example.com", testHandle(t, sched), time.Minute))
}

func TestMarkCompletedWithoutRecord(t *testing.T) {
	store := NewStore()

	ok, err := store.MarkCompleted("user@example.com", "code", domain.SignUp)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkCompletedWithoutTaskEntry(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.PutCode("user@example.com", "code", domain.SignUp))

	// A record without its task entry is an inconsistent state and reads
	// as "not found".
	ok, err := store.MarkCompleted("user@example.com", "code", domain.SignUp)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkCompletedSuccessIsExactlyOnce(t *testing.T) {
	sched := scheduler.New(1)
	defer sched.Shutdown()
	store := NewStore()

	require.NoError(t, store.PutCode("user@example.com", "code", domain.SignUp))
	require.NoError(t, store.PutConfirmationTask("user@example.com", testHandle(t, sched), time.Minute))

	ok, err := store.MarkCompleted("user@example.com", "code", domain.SignUp)
	require.NoError(t, err)
	assert.True(t, ok)

	// Both halves are purged; the same code can never complete twice.
	ok, err = store.MarkCompleted("user@example.com", "code", domain.SignUp)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkCompletedMismatchKeepsState(t *testing.T) {
	sched := scheduler.New(1)
	defer sched.Shutdown()
	store := NewStore()

	require.NoError(t, store.PutCode("user@example.com", "code", domain.SignUp))
	require.NoError(t, store.PutConfirmationTask("user@example.com", testHandle(t, sched), time.Minute))

	ok, err := store.MarkCompleted("user@example.com", "wrong", domain.SignUp)
	assert.False(t, ok)
	assert.True(t, internal_errors.Is[*internal_errors.ConfirmationMismatchError](err))

	// Wrong action kind with the right code is a mismatch too.
	ok, err = store.MarkCompleted("user@example.com", "code", domain.RestorePassword)
	assert.False(t, ok)
	assert.True(t, internal_errors.Is[*internal_errors.ConfirmationMismatchError](err))

	// State survived, the mailed code still works.
	ok, err = store.MarkCompleted("user@example.com", "code", domain.SignUp)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkCompletedExpiredPurgesState(t *testing.T) {
	sched := scheduler.New(1)
	defer sched.Shutdown()
	store := NewStore()

	require.NoError(t, store.PutCode("user@example.com", "code", domain.SignUp))
	require.NoError(t, store.PutConfirmationTask("user@example.com", testHandle(t, sched), time.Minute))

	// Move the clock past the expiry instead of sleeping.
	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	ok, err := store.MarkCompleted("user@example.com", "code", domain.SignUp)
	assert.False(t, ok)
	assert.True(t, internal_errors.Is[*internal_errors.ConfirmationExpiredError](err))

	// First late attempt purged both halves; retries read as not found.
	ok, err = store.MarkCompleted("user@example.com", "code", domain.SignUp)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPutCodeReplacesPrevious(t *testing.T) {
	sched := scheduler.New(1)
	defer sched.Shutdown()
	store := NewStore()

	require.NoError(t, store.PutCode("user@example.com", "old", domain.SignUp))
	require.NoError(t, store.PutCode("user@example.com", "new", domain.SignUp))
	require.NoError(t, store.PutConfirmationTask("user@example.com", testHandle(t, sched), time.Minute))

	ok, err := store.MarkCompleted("user@example.com", "old", domain.SignUp)
	assert.False(t, ok)
	assert.True(t, internal_errors.Is[*internal_errors.ConfirmationMismatchError](err))

	ok, err = store.MarkCompleted("user@example.com", "new", domain.SignUp)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.PutCode("user@example.com", "code", domain.SignUp))

	assert.NoError(t, store.RemoveCode("user@example.com"))
	assert.NoError(t, store.RemoveCode("user@example.com"))
	assert.NoError(t, store.RemoveTask("user@example.com"))

	err := store.RemoveCode("")
	assert.True(t, internal_errors.Is[*internal_errors.InvalidInputError](err))
}
