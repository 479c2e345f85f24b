package handler

import (
	"errors"
	"fmt"
	"markwiki/internal/logger"
	"markwiki/internal/middleware"
	"markwiki/internal/service"
	"markwiki/internal/session"
	"net/http"
	"strings"
)

// AuthHandler holds the dependencies for the authentication handlers.
type AuthHandler struct {
	auth     service.AuthServicer
	sessions session.Manager
	view     middleware.Renderer
	log      logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(a service.AuthServicer, sm session.Manager, v middleware.Renderer, log logger.Logger) *AuthHandler {
	return &AuthHandler{auth: a, sessions: sm, view: v, log: log}
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data map[string]interface{}) *middleware.AppError {
	data["UserInfo"] = middleware.GetUserInfo(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.view.Render(w, "login.html", data); err != nil {
		h.log.Error(err, "Failed to render login page")
	}
	return nil
}

// loginFormHandler shows the login and registration forms.
func (h *AuthHandler) loginFormHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	return h.renderLogin(w, r, http.StatusOK, map[string]interface{}{})
}

// loginHandler verifies the submitted credentials and starts a session.
func (h *AuthHandler) loginHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || strings.TrimSpace(password) == "" {
		return h.renderLogin(w, r, http.StatusBadRequest, map[string]interface{}{
			"Error":    "Please fill all fields",
			"Username": username,
		})
	}

	user, err := h.auth.AuthenticateUser(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, service.ErrAuth) {
			h.log.Warn(fmt.Sprintf("Failed login for '%s'", username))
			return h.renderLogin(w, r, http.StatusUnauthorized, map[string]interface{}{
				"Error":    "Wrong Username or Password",
				"Username": username,
			})
		}
		return middleware.NewAppError(err, "Login failed")
	}

	// Renew the token whenever the privilege level changes.
	if err := h.sessions.RenewToken(r.Context()); err != nil {
		return &middleware.AppError{Error: err, Message: "Login failed", Code: http.StatusInternalServerError}
	}
	h.sessions.Put(r.Context(), session.UsernameKey, user.Username)
	h.log.Info(fmt.Sprintf("User '%s' logged in", user.Username))

	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil
}

// registerHandler creates an account and reports the outcome on the login page.
func (h *AuthHandler) registerHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || strings.TrimSpace(password) == "" {
		return h.renderLogin(w, r, http.StatusBadRequest, map[string]interface{}{"Error": "Please fill all fields"})
	}

	err := h.auth.RegisterUser(r.Context(), username, password)
	var verr *service.ValidationError
	switch {
	case err == nil:
		h.log.Info(fmt.Sprintf("User '%s' registered", username))
		return h.renderLogin(w, r, http.StatusOK, map[string]interface{}{
			"Message":  "Registration successful. You can log in now.",
			"Username": username,
		})
	case errors.As(err, &verr):
		return h.renderLogin(w, r, http.StatusBadRequest, map[string]interface{}{"Error": verr.Error()})
	case errors.Is(err, service.ErrConflict):
		return h.renderLogin(w, r, http.StatusConflict, map[string]interface{}{"Error": "Username is already taken"})
	default:
		return middleware.NewAppError(err, "An error occurred while registering the user.")
	}
}

// logoutHandler ends the session.
func (h *AuthHandler) logoutHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if err := h.sessions.Destroy(r.Context()); err != nil {
		return &middleware.AppError{Error: err, Message: "Logout failed", Code: http.StatusInternalServerError}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil
}
