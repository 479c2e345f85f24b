package middleware

import (
	"errors"
	"fmt"
	"io"
	"markwiki/internal/logger"
	"markwiki/internal/service"
	"net/http"
)

// AppError represents a custom error type for the application.
type AppError struct {
	Error   error
	Message string
	Code    int
}

// AppHandler is a custom handler function type that returns an AppError.
type AppHandler func(http.ResponseWriter, *http.Request) *AppError

// Renderer renders a named template.
type Renderer interface {
	Render(w io.Writer, name string, data map[string]interface{}) error
}

// NewAppError wraps err with the status code matching its service error
// kind. Unclassified errors become 500.
func NewAppError(err error, message string) *AppError {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, service.ErrAuth):
		code = http.StatusUnauthorized
	}
	return &AppError{Error: err, Message: message, Code: code}
}

// Error is a middleware that converts handler errors into user-friendly error pages.
func Error(log logger.Logger, view Renderer) func(AppHandler) http.Handler {
	return func(next AppHandler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("%v", rec)
					}
					log.Error(err, "Panic recovered")
					renderError(w, r, view, log, http.StatusInternalServerError, "Internal Server Error")
				}
			}()

			if appErr := next(w, r); appErr != nil {
				if appErr.Code >= http.StatusInternalServerError {
					log.Error(appErr.Error, appErr.Message)
				} else {
					log.Warn(fmt.Sprintf("%s: %v", appErr.Message, appErr.Error))
				}
				renderError(w, r, view, log, appErr.Code, appErr.Message)
			}
		})
	}
}

func renderError(w http.ResponseWriter, r *http.Request, view Renderer, log logger.Logger, code int, message string) {
	data := map[string]interface{}{
		"StatusCode": code,
		"StatusText": message,
		"UserInfo":   GetUserInfo(r.Context()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := view.Render(w, "error.html", data); err != nil {
		log.Error(err, "Failed to render error page")
	}
}
