package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treechat-dev/treechat/internal/config"
	"github.com/treechat-dev/treechat/internal/confirmation"
	"github.com/treechat-dev/treechat/internal/domain"
	internal_errors "github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/middleware"
)

// --- Mocks ---

type MockAuthService struct {
	RegisterFunc        func(creds domain.Credentials, origin string) error
	LoginFunc           func(creds domain.Credentials) (string, error)
	RestorePasswordFunc func(email domain.Email, newPassword, origin string) error
	ChangePasswordFunc  func(email domain.Email, oldPassword, newPassword, origin string) error
	ChangeEmailFunc     func(email, newEmail domain.Email, origin string) error
}

func (m *MockAuthService) Register(creds domain.Credentials, origin string) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(creds, origin)
	}
	return nil
}

func (m *MockAuthService) Login(creds domain.Credentials) (string, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(creds)
	}
	return "token", nil
}

func (m *MockAuthService) RestorePassword(email domain.Email, newPassword, origin string) error {
	if m.RestorePasswordFunc != nil {
		return m.RestorePasswordFunc(email, newPassword, origin)
	}
	return nil
}

func (m *MockAuthService) ChangePassword(email domain.Email, oldPassword, newPassword, origin string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(email, oldPassword, newPassword, origin)
	}
	return nil
}

func (m *MockAuthService) ChangeEmail(email, newEmail domain.Email, origin string) error {
	if m.ChangeEmailFunc != nil {
		return m.ChangeEmailFunc(email, newEmail, origin)
	}
	return nil
}

type MockMessageService struct {
	SendFunc            func(msg domain.Message) (domain.MessageId, error)
	ScheduleMessageFunc func(msg domain.Message, fireAt, tz string) (domain.MessageId, error)
	CancelFunc          func(author domain.UserId, id domain.MessageId) error
}

func (m *MockMessageService) Send(msg domain.Message) (domain.MessageId, error) {
	if m.SendFunc != nil {
		return m.SendFunc(msg)
	}
	return 1, nil
}

func (m *MockMessageService) ScheduleMessage(msg domain.Message, fireAt, tz string) (domain.MessageId, error) {
	if m.ScheduleMessageFunc != nil {
		return m.ScheduleMessageFunc(msg, fireAt, tz)
	}
	return 1, nil
}

func (m *MockMessageService) CancelScheduledMessage(author domain.UserId, id domain.MessageId) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(author, id)
	}
	return nil
}

type MockConfirmationService struct {
	ConfirmFunc func(subject, code, actionKey string) (confirmation.Result, error)
}

func (m *MockConfirmationService) Confirm(subject, code, actionKey string) (confirmation.Result, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(subject, code, actionKey)
	}
	return confirmation.Result{Redirect: "http://localhost:9000", ContinuationRun: true}, nil
}

type MockPinger struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func newTestHandler(auth *MockAuthService, message *MockMessageService, conf *MockConfirmationService) *Handler {
	if auth == nil {
		auth = &MockAuthService{}
	}
	if message == nil {
		message = &MockMessageService{}
	}
	if conf == nil {
		conf = &MockConfirmationService{}
	}
	return New(auth, message, conf, &MockPinger{}, &config.Config{})
}

func withUser(r *http.Request, user *domain.User) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserClaimsKey, user)
	return r.WithContext(ctx)
}

// confirmRequest routes a GET through chi so URL params are populated.
func confirmRequest(t *testing.T, h *Handler, code, email, action string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/utility/task/confirm/{code}/{email}/{action}", h.Confirm)

	req := httptest.NewRequest(http.MethodGet, "/api/utility/task/confirm/"+code+"/"+email+"/"+action, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestConfirmRedirectsOnSuccess(t *testing.T) {
	conf := &MockConfirmationService{
		ConfirmFunc: func(subject, code, actionKey string) (confirmation.Result, error) {
			assert.Equal(t, "user@example.com", subject)
			assert.Equal(t, "abc", code)
			assert.Equal(t, "sign_up", actionKey)
			return confirmation.Result{Redirect: "http://origin.example/done", ContinuationRun: true}, nil
		},
	}
	h := newTestHandler(nil, nil, conf)

	rec := confirmRequest(t, h, "abc", "user@example.com", "sign_up")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://origin.example/done", rec.Header().Get("Location"))
}

func TestConfirmStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		res  confirmation.Result
		err  error
		want int
	}{
		{"no pending confirmation", confirmation.Result{}, internal_errors.NotFound("no pending confirmation"), http.StatusNotFound},
		{"continuation evicted", confirmation.Result{}, nil, http.StatusNotFound},
		{"mismatch", confirmation.Result{}, internal_errors.ConfirmationMismatch("wrong code"), http.StatusNotAcceptable},
		{"expired", confirmation.Result{}, internal_errors.ConfirmationExpired("too late"), http.StatusGone},
		{"bad action key", confirmation.Result{}, internal_errors.InvalidInput("unknown action key"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conf := &MockConfirmationService{
				ConfirmFunc: func(subject, code, actionKey string) (confirmation.Result, error) {
					return tc.res, tc.err
				},
			}
			h := newTestHandler(nil, nil, conf)

			rec := confirmRequest(t, h, "abc", "user@example.com", "sign_up")
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRegisterHandler(t *testing.T) {
	var gotOrigin string
	auth := &MockAuthService{
		RegisterFunc: func(creds domain.Credentials, origin string) error {
			assert.Equal(t, "user@example.com", creds.Email)
			gotOrigin = origin
			return nil
		},
	}
	h := newTestHandler(auth, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(`{"email":"user@example.com","password":"secret"}`))
	req.Header.Set("Origin", "http://front.example")
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "http://front.example", gotOrigin)
}

func TestRegisterHandlerBadBody(t *testing.T) {
	h := newTestHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(`{"email":"user@example.com"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginHandlerSetsCookie(t *testing.T) {
	h := newTestHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"user@example.com","password":"secret"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "accessToken", cookies[0].Name)
	assert.Equal(t, "token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginHandlerBadCredentials(t *testing.T) {
	auth := &MockAuthService{
		LoginFunc: func(creds domain.Credentials) (string, error) {
			return "", &internal_errors.ErrorWithStatusCode{Message: "Invalid credentials", StatusCode: http.StatusUnauthorized}
		},
	}
	h := newTestHandler(auth, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"user@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestChangePasswordRequiresAuth(t *testing.T) {
	h := newTestHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/change_password", strings.NewReader(`{"old_password":"a","new_password":"b"}`))
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/change_password", strings.NewReader(`{"old_password":"a","new_password":"b"}`))
	rec = httptest.NewRecorder()
	h.ChangePassword(rec, withUser(req, &domain.User{Id: 1, Email: "user@example.com"}))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestScheduleMessageHandler(t *testing.T) {
	message := &MockMessageService{
		ScheduleMessageFunc: func(msg domain.Message, fireAt, tz string) (domain.MessageId, error) {
			assert.Equal(t, int64(42), msg.AuthorId)
			assert.Equal(t, "2030-01-02T15:04:05", fireAt)
			assert.Equal(t, "Europe/Berlin", tz)
			return 7, nil
		},
	}
	h := newTestHandler(nil, message, nil)

	body := `{"chat_id":1,"text":"later","fire_at":"2030-01-02T15:04:05","tz":"Europe/Berlin"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/schedule", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ScheduleMessage(rec, withUser(req, &domain.User{Id: 42}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":7`)
}

func TestScheduleMessageHandlerInvalidInput(t *testing.T) {
	message := &MockMessageService{
		ScheduleMessageFunc: func(msg domain.Message, fireAt, tz string) (domain.MessageId, error) {
			return -1, internal_errors.InvalidInput("fire_at must be in the future")
		},
	}
	h := newTestHandler(nil, message, nil)

	body := `{"chat_id":1,"text":"later","fire_at":"2000-01-02T15:04:05","tz":"UTC"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/schedule", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ScheduleMessage(rec, withUser(req, &domain.User{Id: 42}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelScheduledMessageHandler(t *testing.T) {
	var gotAuthor domain.UserId
	var gotId domain.MessageId
	message := &MockMessageService{
		CancelFunc: func(author domain.UserId, id domain.MessageId) error {
			gotAuthor, gotId = author, id
			return nil
		},
	}
	h := newTestHandler(nil, message, nil)

	r := chi.NewRouter()
	r.Delete("/v1/messages/scheduled/{id}", h.CancelScheduledMessage)

	req := httptest.NewRequest(http.MethodDelete, "/v1/messages/scheduled/7", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, withUser(req, &domain.User{Id: 42}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), gotAuthor)
	assert.Equal(t, int64(7), gotId)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
