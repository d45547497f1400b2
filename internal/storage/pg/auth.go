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

// =========================================================================
// Public Methods (satisfy the service.AuthStorage interface)
// =========================================================================

// SaveUser inserts a new account in the disabled state. The account stays
// disabled until the sign-up confirmation enables it.
func (s *Storage) SaveUser(user domain.User) (domain.UserId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id domain.UserId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.saveUser(tx, user)
		return err
	})
	return id, err
}

// User fetches a user by email. Read-only, runs on the connection pool.
func (s *Storage) User(email domain.Email) (domain.User, error) {
	return s.user(s.db, email)
}

// EnableAccount flips the enabled flag after a confirmed sign-up.
func (s *Storage) EnableAccount(email domain.Email) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.enableAccount(tx, email)
	})
}

// UpdatePassword stores the new password hash for a user.
func (s *Storage) UpdatePassword(creds domain.Credentials) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updatePassword(tx, creds)
	})
}

// UpdateEmail rebinds an account to a new address after a confirmed
// email change.
func (s *Storage) UpdateEmail(oldEmail, newEmail domain.Email) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateEmail(tx, oldEmail, newEmail)
	})
}

// DeleteUnconfirmedAccount removes an account that never confirmed its
// sign-up. Enabled accounts are left untouched, so a rollback racing a
// just-confirmed sign-up cannot destroy a live user.
func (s *Storage) DeleteUnconfirmedAccount(email domain.Email) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deleteUnconfirmedAccount(tx, email)
	})
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

func (s *Storage) saveUser(q Querier, user domain.User) (domain.UserId, error) {
	var id int64
	err := q.QueryRow("INSERT INTO users(email, password_hash, enabled, is_admin) VALUES($1, $2, $3, $4) RETURNING id",
		user.Email, user.PassHash, user.Enabled, user.Admin).Scan(&id)
	if err != nil {
		return -1, fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

func (s *Storage) user(q Querier, email domain.Email) (domain.User, error) {
	var user domain.User
	err := q.QueryRow("SELECT id, email, password_hash, enabled, is_admin FROM users WHERE email = $1", email).
		Scan(&user.Id, &user.Email, &user.PassHash, &user.Enabled, &user.Admin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, &internal_errors.ErrorWithStatusCode{Message: "User not found", StatusCode: http.StatusNotFound}
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *Storage) enableAccount(q Querier, email domain.Email) error {
	result, err := q.Exec("UPDATE users SET enabled = TRUE WHERE email = $1", email)
	if err != nil {
		return fmt.Errorf("failed to enable account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for account enable: %w", err)
	}
	if rowsAffected == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "User not found for account enable", StatusCode: http.StatusNotFound}
	}
	return nil
}

func (s *Storage) updatePassword(q Querier, creds domain.Credentials) error {
	result, err := q.Exec("UPDATE users SET password_hash = $1 WHERE email = $2", creds.Password, creds.Email)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for password update: %w", err)
	}
	if rowsAffected == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "User not found for password update", StatusCode: http.StatusNotFound}
	}
	return nil
}

func (s *Storage) updateEmail(q Querier, oldEmail, newEmail domain.Email) error {
	result, err := q.Exec("UPDATE users SET email = $1 WHERE email = $2", newEmail, oldEmail)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for email update: %w", err)
	}
	if rowsAffected == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "User not found for email update", StatusCode: http.StatusNotFound}
	}
	return nil
}

func (s *Storage) deleteUnconfirmedAccount(q Querier, email domain.Email) error {
	result, err := q.Exec("DELETE FROM users WHERE email = $1 AND enabled = FALSE", email)
	if err != nil {
		return fmt.Errorf("failed to delete unconfirmed account: %w", err)
	}
	rowsDeleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for account deletion: %w", err)
	}
	if rowsDeleted == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "Unconfirmed account not found for deletion", StatusCode: http.StatusNotFound}
	}
	return nil
}
