package middleware

import (
	"markwiki/internal/auth"
	"markwiki/internal/logger"
	"markwiki/internal/session"
	"net/http"

	"github.com/casbin/casbin/v2"
)

// Identify loads the signed-in username from the session and stores the
// resulting UserInfo in the request context. It must run inside the
// session manager's LoadAndSave.
func Identify(sm session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := &UserInfo{Subject: auth.RoleAnonymous}
			if username := sm.GetString(r.Context(), session.UsernameKey); username != "" {
				info = &UserInfo{Username: username, Subject: auth.RoleEditor}
			}
			next.ServeHTTP(w, r.WithContext(SetUserInfo(r.Context(), info)))
		})
	}
}

// Authorizer creates a new middleware for authorization.
// It checks the requester's subject against the Casbin policies for the
// request path and method.
func Authorizer(e casbin.IEnforcer, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetUserInfo(r.Context()).Subject

			allowed, err := e.Enforce(subject, r.URL.Path, r.Method)
			if err != nil {
				log.Error(err, "Authorization check failed")
				http.Error(w, "Authorization error", http.StatusInternalServerError)
				return
			}

			if !allowed {
				log.Warn("Forbidden: " + subject + " " + r.Method + " " + r.URL.Path)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
