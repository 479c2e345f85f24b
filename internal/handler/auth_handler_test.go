package handler

import (
	"context"
	"fmt"
	"io"
	"markwiki/internal/data"
	"markwiki/internal/logger"
	"markwiki/internal/service"
	"markwiki/internal/session"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSessionManager is a mock implementation of the session.Manager interface.
type mockSessionManager struct {
	destroyCalled bool
	renewCalled   bool
	putKey        string
	putValue      interface{}
}

// Ensure mockSessionManager implements the session.Manager interface.
var _ session.Manager = (*mockSessionManager)(nil)

func (m *mockSessionManager) LoadAndSave(next http.Handler) http.Handler { return next }
func (m *mockSessionManager) Put(ctx context.Context, key string, val interface{}) {
	m.putKey = key
	m.putValue = val
}
func (m *mockSessionManager) GetString(ctx context.Context, key string) string { return "" }
func (m *mockSessionManager) PopString(ctx context.Context, key string) string { return "" }
func (m *mockSessionManager) Remove(ctx context.Context, key string)           {}
func (m *mockSessionManager) RenewToken(ctx context.Context) error {
	m.renewCalled = true
	return nil
}
func (m *mockSessionManager) Destroy(ctx context.Context) error {
	m.destroyCalled = true
	return nil
}

// mockAuthService accepts one fixed username and password.
type mockAuthService struct {
	registered map[string]string
}

func (m *mockAuthService) RegisterUser(ctx context.Context, username, password string) error {
	if _, ok := m.registered[strings.ToLower(username)]; ok {
		return fmt.Errorf("username '%s': %w", username, service.ErrConflict)
	}
	m.registered[strings.ToLower(username)] = password
	return nil
}

func (m *mockAuthService) AuthenticateUser(ctx context.Context, username, password string) (*data.User, error) {
	if p, ok := m.registered[strings.ToLower(username)]; ok && p == password {
		return &data.User{ID: 1, Username: username}, nil
	}
	return nil, service.ErrAuth
}

// recordingView writes the template name and remembers the data.
type recordingView struct {
	name string
	data map[string]interface{}
}

func (v *recordingView) Render(w io.Writer, name string, data map[string]interface{}) error {
	v.name, v.data = name, data
	_, err := io.WriteString(w, name)
	return err
}

func newTestAuthHandler() (*AuthHandler, *mockSessionManager, *recordingView) {
	sm := &mockSessionManager{}
	v := &recordingView{}
	svc := &mockAuthService{registered: map[string]string{"alice": "password1"}}
	return NewAuthHandler(svc, sm, v, logger.Nop()), sm, v
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLogoutHandler(t *testing.T) {
	authHandler, mockSession, _ := newTestAuthHandler()

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rr := httptest.NewRecorder()

	require.Nil(t, authHandler.logoutHandler(rr, req))

	assert.True(t, mockSession.destroyCalled, "expected session.Destroy to be called")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestLoginHandler(t *testing.T) {
	t.Run("success starts a session", func(t *testing.T) {
		h, sm, _ := newTestAuthHandler()
		rr := httptest.NewRecorder()

		require.Nil(t, h.loginHandler(rr, postForm("/login", url.Values{"username": {"alice"}, "password": {"password1"}})))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.True(t, sm.renewCalled)
		assert.Equal(t, session.UsernameKey, sm.putKey)
		assert.Equal(t, "alice", sm.putValue)
	})

	t.Run("wrong password", func(t *testing.T) {
		h, sm, v := newTestAuthHandler()
		rr := httptest.NewRecorder()

		require.Nil(t, h.loginHandler(rr, postForm("/login", url.Values{"username": {"alice"}, "password": {"nope"}})))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Wrong Username or Password", v.data["Error"])
		assert.Empty(t, sm.putKey)
	})

	t.Run("unknown user looks the same", func(t *testing.T) {
		h, _, v := newTestAuthHandler()
		rr := httptest.NewRecorder()

		require.Nil(t, h.loginHandler(rr, postForm("/login", url.Values{"username": {"mallory"}, "password": {"password1"}})))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Wrong Username or Password", v.data["Error"])
	})

	t.Run("missing fields", func(t *testing.T) {
		h, _, v := newTestAuthHandler()
		rr := httptest.NewRecorder()

		require.Nil(t, h.loginHandler(rr, postForm("/login", url.Values{"username": {"alice"}})))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Please fill all fields", v.data["Error"])
	})
}

func TestRegisterHandler(t *testing.T) {
	h, _, v := newTestAuthHandler()

	rr := httptest.NewRecorder()
	require.Nil(t, h.registerHandler(rr, postForm("/register", url.Values{"username": {"bob"}, "password": {"password1"}})))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, v.data["Message"], "Registration successful")

	rr = httptest.NewRecorder()
	require.Nil(t, h.registerHandler(rr, postForm("/register", url.Values{"username": {"BOB"}, "password": {"password2"}})))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Username is already taken", v.data["Error"])
}
