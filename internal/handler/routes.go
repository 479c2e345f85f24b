package handler

import (
	"io/fs"
	"markwiki/internal/middleware"
	"markwiki/internal/session"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and configures a new chi router. Reading pages and
// signing in are open to everyone; the editing routes sit behind authz.
func NewRouter(
	pageHandler *PageHandler,
	authHandler *AuthHandler,
	seoHandler *SeoHandler,
	sessionManager session.Manager,
	authzMiddleware func(http.Handler) http.Handler,
	errorMiddleware func(middleware.AppHandler) http.Handler,
	staticFS fs.FS,
) *chi.Mux {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/robots.txt", seoHandler.robotsHandler)
	r.Get("/sitemap.xml", seoHandler.sitemapHandler)
	if staticFS != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(middleware.Identify(sessionManager))

		// Public routes
		r.Method(http.MethodGet, "/", errorMiddleware(pageHandler.homeHandler))
		r.Method(http.MethodGet, "/attachment", errorMiddleware(pageHandler.attachmentHandler))
		r.Method(http.MethodGet, "/login", errorMiddleware(authHandler.loginFormHandler))
		r.Method(http.MethodPost, "/login", errorMiddleware(authHandler.loginHandler))
		r.Method(http.MethodPost, "/register", errorMiddleware(authHandler.registerHandler))

		// Editor routes
		r.Group(func(r chi.Router) {
			r.Use(authzMiddleware)

			r.Method(http.MethodGet, "/new-page", errorMiddleware(pageHandler.newPageHandler))
			r.Method(http.MethodGet, "/edit", errorMiddleware(pageHandler.editHandler))
			r.Method(http.MethodPost, "/add-page", errorMiddleware(pageHandler.saveHandler))
			r.Method(http.MethodPost, "/delete-page", errorMiddleware(pageHandler.deletePageHandler))
			r.Method(http.MethodPost, "/delete-attachment", errorMiddleware(pageHandler.deleteAttachmentHandler))
			r.Method(http.MethodPost, "/logout", errorMiddleware(authHandler.logoutHandler))
		})

		r.Method(http.MethodGet, "/{pageName}", errorMiddleware(pageHandler.viewHandler))
	})

	return r
}
