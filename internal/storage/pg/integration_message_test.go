package pg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treechat-dev/treechat/internal/domain"
)

func mustSaveAuthor(t *testing.T, email string) domain.UserId {
	t.Helper()
	id, err := storage.SaveUser(domain.User{Email: email, PassHash: "password"})
	require.NoError(t, err)
	return id
}

func TestSaveScheduledAndFetch(t *testing.T) {
	authorId := mustSaveAuthor(t, "msgauthor@example.com")

	id, err := storage.SaveScheduled(domain.Message{ChatId: 1, AuthorId: authorId, Text: "hello later"})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	msg, err := storage.Message(id)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageScheduled, msg.Status)
	assert.Equal(t, "hello later", msg.Text)
	assert.Equal(t, authorId, msg.AuthorId)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestMarkMessageSent(t *testing.T) {
	authorId := mustSaveAuthor(t, "sendauthor@example.com")

	id, err := storage.SaveScheduled(domain.Message{ChatId: 1, AuthorId: authorId, Text: "deliver me"})
	require.NoError(t, err)

	require.NoError(t, storage.MarkMessageSent(id))

	msg, err := storage.Message(id)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageSent, msg.Status)

	// Already sent: the scheduled->sent transition cannot repeat.
	assert.Error(t, storage.MarkMessageSent(id))
	assert.Error(t, storage.MarkMessageSent(999999))
}

func TestDeleteScheduledMessage(t *testing.T) {
	authorId := mustSaveAuthor(t, "cancelauthor@example.com")

	id, err := storage.SaveScheduled(domain.Message{ChatId: 1, AuthorId: authorId, Text: "never mind"})
	require.NoError(t, err)

	require.NoError(t, storage.DeleteScheduledMessage(id))

	_, err = storage.Message(id)
	assert.Error(t, err)

	// Sent messages are out of reach for cancellation.
	sentId, err := storage.SaveScheduled(domain.Message{ChatId: 1, AuthorId: authorId, Text: "already out"})
	require.NoError(t, err)
	require.NoError(t, storage.MarkMessageSent(sentId))

	assert.Error(t, storage.DeleteScheduledMessage(sentId))
}
