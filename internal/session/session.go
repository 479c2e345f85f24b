package session

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
)

// UsernameKey is the session key holding the signed-in username.
const UsernameKey = "username"

// Manager is an interface that abstracts the session management implementation.
// This allows for easier testing and dependency injection.
type Manager interface {
	LoadAndSave(next http.Handler) http.Handler
	Put(ctx context.Context, key string, val interface{})
	GetString(ctx context.Context, key string) string
	PopString(ctx context.Context, key string) string
	RenewToken(ctx context.Context) error
	Destroy(ctx context.Context) error
	Remove(ctx context.Context, key string)
}

var _ Manager = (*scs.SessionManager)(nil)

// Options controls the session cookie.
type Options struct {
	Lifetime time.Duration
	Secure   bool
}

// New returns a session manager whose sessions are stored in the wiki
// database, in the sessions table created by the migrations.
func New(db *sqlx.DB, opts Options) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db.DB)
	if opts.Lifetime > 0 {
		sm.Lifetime = opts.Lifetime
	}
	sm.Cookie.Name = "markwiki_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = opts.Secure
	return sm
}
