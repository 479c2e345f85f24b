package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"markwiki/internal/auth"
	"markwiki/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(t *testing.T) (*AuthService, *mockUserRepository) {
	t.Helper()
	users := newMockUserRepository()
	return NewAuthService(users, auth.NewHasher(bcrypt.MinCost), logger.Nop()), users
}

func TestAuthService_RegisterAndAuthenticate(t *testing.T) {
	svc, users := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.RegisterUser(ctx, "alice", "correct horse"))

	stored, err := users.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", stored.PasswordHash, "password is stored hashed")
	assert.NotContains(t, stored.PasswordHash, "correct horse")

	user, err := svc.AuthenticateUser(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	user, err = svc.AuthenticateUser(ctx, "ALICE", "correct horse")
	require.NoError(t, err, "usernames are case-insensitive")
	assert.Equal(t, "alice", user.Username)
}

func TestAuthService_RegisterUser_Conflict(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.RegisterUser(ctx, "bob", "password1"))
	err := svc.RegisterUser(ctx, "bob", "password2")
	assert.ErrorIs(t, err, ErrConflict)

	err = svc.RegisterUser(ctx, "BOB", "password3")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthService_RegisterUser_Validation(t *testing.T) {
	svc, users := newTestAuthService(t)

	tests := []struct {
		name     string
		username string
		password string
		field    string
	}{
		{"empty username", "", "password1", "username"},
		{"short username", "ab", "password1", "username"},
		{"bad characters", "bad name!", "password1", "username"},
		{"empty password", "carol", "", "password"},
		{"short password", "carol", "short", "password"},
		{"long password", "carol", strings.Repeat("x", 73), "password"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.RegisterUser(context.Background(), tc.username, tc.password)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
	assert.Empty(t, users.users)
}

func TestAuthService_AuthenticateUser_FailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()
	require.NoError(t, svc.RegisterUser(ctx, "dave", "password1"))

	user, errWrong := svc.AuthenticateUser(ctx, "dave", "wrong-password")
	assert.Nil(t, user)
	require.ErrorIs(t, errWrong, ErrAuth)

	user, errUnknown := svc.AuthenticateUser(ctx, "nobody", "password1")
	assert.Nil(t, user)
	require.ErrorIs(t, errUnknown, ErrAuth)

	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestAuthService_StoreFailure(t *testing.T) {
	svc, users := newTestAuthService(t)
	users.err = errDisk

	err := svc.RegisterUser(context.Background(), "erin", "password1")
	assert.ErrorIs(t, err, ErrStore)

	_, err = svc.AuthenticateUser(context.Background(), "erin", "password1")
	assert.ErrorIs(t, err, ErrStore)
	assert.NotErrorIs(t, err, ErrAuth)
}
