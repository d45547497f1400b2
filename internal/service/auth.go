package service

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/treechat-dev/treechat/internal/confirmation"
	"github.com/treechat-dev/treechat/internal/domain"
	"github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/logger"
	"github.com/treechat-dev/treechat/internal/mail"
)

type AuthService interface {
	Register(creds domain.Credentials, origin string) error
	Login(creds domain.Credentials) (string, error)
	RestorePassword(email domain.Email, newPassword, origin string) error
	ChangePassword(email domain.Email, oldPassword, newPassword, origin string) error
	ChangeEmail(email, newEmail domain.Email, origin string) error
}

type AuthStorage interface {
	SaveUser(user domain.User) (domain.UserId, error)
	User(email domain.Email) (domain.User, error)
	EnableAccount(email domain.Email) error
	UpdatePassword(creds domain.Credentials) error
	UpdateEmail(oldEmail, newEmail domain.Email) error
	DeleteUnconfirmedAccount(email domain.Email) error
}

type Mailer interface {
	Send(recipient, subject, body string, html bool) error
	IsCorrect(email string) error
}

// Confirmations is the orchestrator surface the auth service needs.
type Confirmations interface {
	Begin(a confirmation.DeferredAction) error
}

type Jwt interface {
	NewToken(user domain.User) (string, error)
}

type Auth struct {
	storage       AuthStorage
	mailer        Mailer
	confirmations Confirmations
	jwt           Jwt
	links         *mail.LinkBuilder
	ttl           time.Duration
}

func NewAuth(storage AuthStorage, mailer Mailer, confirmations Confirmations, jwt Jwt, links *mail.LinkBuilder, ttl time.Duration) *Auth {
	return &Auth{
		storage:       storage,
		mailer:        mailer,
		confirmations: confirmations,
		jwt:           jwt,
		links:         links,
		ttl:           ttl,
	}
}

// sendConfirmation builds the send callback handed to the orchestrator: the
// code arrives when the scheduler runs the mail task.
func (a *Auth) sendConfirmation(recipient domain.Email, kind domain.ActionKind) func(code string) error {
	return func(code string) error {
		subject := a.links.ConfirmationSubject(kind)
		body := a.links.ConfirmationBodyHTML(code, recipient, kind, a.ttl)
		return a.mailer.Send(recipient, subject, body, true)
	}
}

// Register creates a disabled account and starts the sign-up confirmation.
// The account is enabled by the confirmation continuation; if the window
// lapses, the rollback deletes the unconfirmed account.
func (a *Auth) Register(creds domain.Credentials, origin string) error {
	email := strings.ToLower(creds.Email)

	if err := a.mailer.IsCorrect(email); err != nil {
		return err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}

	if _, err := a.storage.SaveUser(domain.User{Email: email, PassHash: string(passHash)}); err != nil {
		return err
	}

	return a.confirmations.Begin(confirmation.DeferredAction{
		Subject:   email,
		Kind:      domain.SignUp,
		Send:      a.sendConfirmation(email, domain.SignUp),
		OnSuccess: a.enableAccount(email),
		Origin:    origin,
	})
}

func (a *Auth) enableAccount(email domain.Email) func() {
	return func() {
		if err := a.storage.EnableAccount(email); err != nil {
			logger.Log.Error("failed to enable account after confirmation", "email", email, "error", err)
		}
	}
}

// Login checks credentials and returns an access token. Accounts that never
// confirmed their sign-up cannot log in.
func (a *Auth) Login(creds domain.Credentials) (string, error) {
	email := strings.ToLower(creds.Email)
	password := creds.Password

	if err := a.mailer.IsCorrect(email); err != nil {
		return "", err
	}

	user, err := a.storage.User(email)
	if err != nil {
		// to not leak existing users
		e, ok := err.(*errors.ErrorWithStatusCode)
		if ok && e.StatusCode == http.StatusNotFound {
			return "", &errors.ErrorWithStatusCode{Message: "Invalid credentials", StatusCode: http.StatusUnauthorized}
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PassHash), []byte(password)); err != nil {
		logger.Log.Error("password verification failed", "error", err)
		return "", &errors.ErrorWithStatusCode{Message: "Invalid credentials", StatusCode: http.StatusUnauthorized}
	}

	if !user.Enabled {
		return "", &errors.ErrorWithStatusCode{Message: "Account not confirmed", StatusCode: http.StatusForbidden}
	}

	token, err := a.jwt.NewToken(user)
	if err != nil {
		logger.Log.Error("failed to create jwt token", "user_id", user.Id, "error", err)
		return "", err
	}

	return token, nil
}

// RestorePassword starts a confirmation that, once the link is clicked,
// replaces the user's password with the pre-hashed candidate.
func (a *Auth) RestorePassword(email domain.Email, newPassword, origin string) error {
	email = strings.ToLower(email)

	if err := a.mailer.IsCorrect(email); err != nil {
		return err
	}
	if _, err := a.storage.User(email); err != nil {
		return err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}

	return a.confirmations.Begin(confirmation.DeferredAction{
		Subject:   email,
		Kind:      domain.RestorePassword,
		Send:      a.sendConfirmation(email, domain.RestorePassword),
		OnSuccess: a.applyPassword(email, string(passHash)),
		Origin:    origin,
	})
}

// ChangePassword verifies the current password, then runs the same deferred
// password swap as restore under its own action kind.
func (a *Auth) ChangePassword(email domain.Email, oldPassword, newPassword, origin string) error {
	email = strings.ToLower(email)

	user, err := a.storage.User(email)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PassHash), []byte(oldPassword)); err != nil {
		return &errors.ErrorWithStatusCode{Message: "Invalid credentials", StatusCode: http.StatusUnauthorized}
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}

	return a.confirmations.Begin(confirmation.DeferredAction{
		Subject:   email,
		Kind:      domain.ChangePassword,
		Send:      a.sendConfirmation(email, domain.ChangePassword),
		OnSuccess: a.applyPassword(email, string(passHash)),
		Origin:    origin,
	})
}

func (a *Auth) applyPassword(email domain.Email, passHash string) func() {
	return func() {
		if err := a.storage.UpdatePassword(domain.Credentials{Email: email, Password: passHash}); err != nil {
			logger.Log.Error("failed to apply password after confirmation", "email", email, "error", err)
		}
	}
}

// ChangeEmail mails the confirmation link to the NEW address: proof of
// ownership of the mailbox the account is moving to. The confirm link is
// therefore keyed by the new address.
func (a *Auth) ChangeEmail(email, newEmail domain.Email, origin string) error {
	email = strings.ToLower(email)
	newEmail = strings.ToLower(newEmail)

	if err := a.mailer.IsCorrect(newEmail); err != nil {
		return err
	}
	if _, err := a.storage.User(email); err != nil {
		return err
	}

	oldEmail := email
	return a.confirmations.Begin(confirmation.DeferredAction{
		Subject: newEmail,
		Kind:    domain.ChangeEmail,
		Send:    a.sendConfirmation(newEmail, domain.ChangeEmail),
		OnSuccess: func() {
			if err := a.storage.UpdateEmail(oldEmail, newEmail); err != nil {
				logger.Log.Error("failed to apply email change after confirmation", "email", oldEmail, "error", err)
			}
		},
		Origin: origin,
	})
}
