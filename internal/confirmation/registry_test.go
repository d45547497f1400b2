package confirmation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_errors "github.com/treechat-dev/treechat/internal/errors"
)

func TestRegistryConsumeIsExactlyOnce(t *testing.T) {
	reg := NewRegistry(time.Minute)

	ran := 0
	reg.Put("user@example.com", func() { ran++ }, "http://localhost:9000")

	run, origin, err := reg.Consume("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", origin)
	run()
	assert.Equal(t, 1, ran)

	_, _, err = reg.Consume("user@example.com")
	assert.True(t, internal_errors.Is[*internal_errors.NotFoundError](err))
}

func TestRegistryPutReplaces(t *testing.T) {
	reg := NewRegistry(time.Minute)

	var got string
	reg.Put("user@example.com", func() { got = "first" }, "a")
	reg.Put("user@example.com", func() { got = "second" }, "b")

	run, origin, err := reg.Consume("user@example.com")
	require.NoError(t, err)
	run()
	assert.Equal(t, "second", got)
	assert.Equal(t, "b", origin)
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry(time.Minute)
	reg.Put("user@example.com", func() {}, "")

	reg.Remove("user@example.com")

	_, _, err := reg.Consume("user@example.com")
	assert.True(t, internal_errors.Is[*internal_errors.NotFoundError](err))
}

func TestRegistrySweepEvictsOnlyExpired(t *testing.T) {
	reg := NewRegistry(time.Hour)
	reg.Put("fresh@example.com", func() {}, "")

	// Backdate the second entry by replacing the clock before putting it.
	reg.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	reg.Put("stale@example.com", func() {}, "")
	reg.now = time.Now

	require.Equal(t, 2, reg.Len())
	reg.Sweep()
	assert.Equal(t, 1, reg.Len())

	_, _, err := reg.Consume("fresh@example.com")
	assert.NoError(t, err)
	_, _, err = reg.Consume("stale@example.com")
	assert.True(t, internal_errors.Is[*internal_errors.NotFoundError](err))
}
