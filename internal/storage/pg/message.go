package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/treechat-dev/treechat/internal/domain"
	internal_errors "github.com/treechat-dev/treechat/internal/errors"
)

// SaveScheduled persists a message draft waiting for its delivery time.
// The draft survives nothing but the running process's scheduler handle, so
// a restart leaves it in the scheduled state until cancelled.
func (s *Storage) SaveScheduled(msg domain.Message) (domain.MessageId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id domain.MessageId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.saveMessage(tx, msg, domain.MessageScheduled)
		return err
	})
	return id, err
}

// SaveSent persists an immediately delivered message.
func (s *Storage) SaveSent(msg domain.Message) (domain.MessageId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id domain.MessageId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.saveMessage(tx, msg, domain.MessageSent)
		return err
	})
	return id, err
}

// MarkMessageSent transitions a scheduled draft to sent at delivery time.
func (s *Storage) MarkMessageSent(id domain.MessageId) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.markMessageSent(tx, id)
	})
}

// DeleteScheduledMessage removes a draft whose delivery was cancelled.
// Sent messages are not deletable through this path.
func (s *Storage) DeleteScheduledMessage(id domain.MessageId) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deleteScheduledMessage(tx, id)
	})
}

// Message fetches one message by id. Read-only, runs on the connection pool.
func (s *Storage) Message(id domain.MessageId) (domain.Message, error) {
	return s.message(s.db, id)
}

func (s *Storage) saveMessage(q Querier, msg domain.Message, status domain.MessageStatus) (domain.MessageId, error) {
	var id int64
	err := q.QueryRow(`
        INSERT INTO messages(chat_id, author_id, text, status)
        VALUES($1, $2, $3, $4) RETURNING id`,
		msg.ChatId, msg.AuthorId, msg.Text, status,
	).Scan(&id)
	if err != nil {
		return -1, fmt.Errorf("failed to insert message: %w", err)
	}
	return id, nil
}

func (s *Storage) markMessageSent(q Querier, id domain.MessageId) error {
	result, err := q.Exec("UPDATE messages SET status = $1 WHERE id = $2 AND status = $3",
		domain.MessageSent, id, domain.MessageScheduled)
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for message send: %w", err)
	}
	if rowsAffected == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "Scheduled message not found", StatusCode: http.StatusNotFound}
	}
	return nil
}

func (s *Storage) deleteScheduledMessage(q Querier, id domain.MessageId) error {
	result, err := q.Exec("DELETE FROM messages WHERE id = $1 AND status = $2", id, domain.MessageScheduled)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled message: %w", err)
	}
	rowsDeleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for message deletion: %w", err)
	}
	if rowsDeleted == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "Scheduled message not found for deletion", StatusCode: http.StatusNotFound}
	}
	return nil
}

func (s *Storage) message(q Querier, id domain.MessageId) (domain.Message, error) {
	var msg domain.Message
	err := q.QueryRow(`
        SELECT id, chat_id, author_id, text, status, (created_at at time zone 'utc')
        FROM messages WHERE id = $1`, id,
	).Scan(&msg.Id, &msg.ChatId, &msg.AuthorId, &msg.Text, &msg.Status, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, &internal_errors.ErrorWithStatusCode{Message: "Message not found", StatusCode: http.StatusNotFound}
		}
		return domain.Message{}, fmt.Errorf("failed to query message: %w", err)
	}
	return msg, nil
}
