package middleware

import (
	"context"
	"markwiki/internal/auth"
)

// contextKey defines a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey = contextKey("user")

// UserInfo describes the requester as seen by handlers and templates.
type UserInfo struct {
	Username string
	Subject  string
}

// LoggedIn reports whether the requester has signed in.
func (u *UserInfo) LoggedIn() bool {
	return u != nil && u.Username != ""
}

// GetUserInfo retrieves the user information from the request context.
func GetUserInfo(ctx context.Context) *UserInfo {
	if userInfo, ok := ctx.Value(userContextKey).(*UserInfo); ok {
		return userInfo
	}
	// Return an anonymous user if no user info is found in the context.
	return &UserInfo{Subject: auth.RoleAnonymous}
}

// SetUserInfo adds the user information to the request context.
func SetUserInfo(ctx context.Context, userInfo *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, userInfo)
}
