package service

import (
	"context"
	"errors"
	"fmt"
	"markwiki/internal/data"
	"markwiki/internal/logger"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// UserRepository defines the interface for database operations on users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *data.User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*data.User, error)
}

// PasswordHasher hashes and verifies passwords. *auth.Hasher satisfies it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encodedHash string) (bool, error)
}

// AuthServicer defines the interface for registration and sign-in.
type AuthServicer interface {
	RegisterUser(ctx context.Context, username, password string) error
	AuthenticateUser(ctx context.Context, username, password string) (*data.User, error)
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Credentials is a submitted username and password pair.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the registration rules for a new account.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username,
			validation.Required.Error("Username is required"),
			validation.Length(3, 64),
			validation.Match(usernamePattern).Error("Username may only contain letters, digits, '.', '_' and '-'"),
		),
		validation.Field(&c.Password,
			validation.Required.Error("Password is required"),
			validation.Length(8, 72),
		),
	)
}

// AuthService registers users and verifies their credentials. Usernames
// are unique without regard to case.
type AuthService struct {
	users  UserRepository
	hasher PasswordHasher
	log    logger.Logger
	now    func() time.Time

	// dummyHash is compared against when the user does not exist so both
	// failure paths cost one hash verification.
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserRepository, hasher PasswordHasher, log logger.Logger) *AuthService {
	s := &AuthService{users: users, hasher: hasher, log: log, now: time.Now}
	if h, err := hasher.Hash("markwiki-dummy-password"); err == nil {
		s.dummyHash = h
	}
	return s
}

// RegisterUser creates an account. The password is stored hashed only.
func (s *AuthService) RegisterUser(ctx context.Context, username, password string) error {
	creds := Credentials{Username: strings.TrimSpace(username), Password: password}
	if err := fromValidation(creds.Validate()); err != nil {
		return err
	}

	_, err := s.users.GetUserByUsername(ctx, creds.Username)
	switch {
	case err == nil:
		return fmt.Errorf("username '%s': %w", creds.Username, ErrConflict)
	case !errors.Is(err, data.ErrNotFound):
		s.log.Error(err, fmt.Sprintf("There is an exception in trying to register user '%s'", creds.Username))
		return storeError("register user", err)
	}

	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		s.log.Error(err, "Failed to hash password")
		return fmt.Errorf("register user: %w", err)
	}

	user := &data.User{Username: creds.Username, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if _, err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			return fmt.Errorf("username '%s': %w", creds.Username, ErrConflict)
		}
		s.log.Error(err, fmt.Sprintf("There is an exception in trying to register user '%s'", creds.Username))
		return storeError("register user", err)
	}
	return nil
}

// AuthenticateUser returns the user when the password matches. Unknown
// users and wrong passwords both yield ErrAuth.
func (s *AuthService) AuthenticateUser(ctx context.Context, username, password string) (*data.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			if s.dummyHash != "" {
				_, _ = s.hasher.Verify(password, s.dummyHash)
			}
			return nil, ErrAuth
		}
		s.log.Error(err, fmt.Sprintf("There is an exception in trying to authenticate user '%s'", username))
		return nil, storeError("authenticate user", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.Error(err, fmt.Sprintf("Stored password hash for user '%s' is unreadable", user.Username))
		return nil, ErrAuth
	}
	if !ok {
		return nil, ErrAuth
	}
	return user, nil
}
