package main

import (
	"context"
	"errors"
	"fmt"
	"markwiki/internal/auth"
	"markwiki/internal/cache"
	"markwiki/internal/data"
	"markwiki/internal/handler"
	"markwiki/internal/middleware"
	"markwiki/internal/render"
	"markwiki/internal/service"
	"markwiki/internal/session"
	"markwiki/internal/view"
	"markwiki/web"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the wiki web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (overrides server.port)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	// --- Database Initialization and Migration ---
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("Database ready.")

	// --- Cache Initialization ---
	listCache, err := cache.New(cfg.Cache)
	if err != nil {
		return err
	}
	defer listCache.Close()
	go purgeExpired(ctx, listCache, cfg.Cache.TTL, log)

	// --- Authorization Setup ---
	enforcer, err := auth.NewEnforcer(data.DriverName, data.DSN(cfg.DB.Path))
	if err != nil {
		return err
	}
	if err := auth.SeedDefaultPolicies(enforcer, log); err != nil {
		return err
	}

	// --- View Template Initialization ---
	viewService, err := view.New(web.TemplateFS)
	if err != nil {
		return fmt.Errorf("failed to initialize view templates: %w", err)
	}

	// --- Dependency Injection and Handler Initialization ---
	renderer := render.New()
	pageService := service.NewPageService(
		data.NewSQLPageRepository(db),
		data.NewSQLBlobRepository(db),
		listCache,
		renderer,
		log,
		service.WithHomePage(cfg.Wiki.HomePage),
		service.WithListTTL(cfg.Cache.TTL),
	)
	authService := service.NewAuthService(data.NewSQLUserRepository(db), auth.NewHasher(cfg.Wiki.BcryptCost), log)

	sessionManager := session.New(db, session.Options{
		Lifetime: time.Duration(cfg.Session.Lifetime) * time.Minute,
		Secure:   cfg.Server.TLS.Enabled,
	})

	router := handler.NewRouter(
		handler.NewPageHandler(pageService, viewService, log, cfg.Wiki.MaxUploadBytes),
		handler.NewAuthHandler(authService, sessionManager, viewService, log),
		handler.NewSeoHandler(pageService, cfg.Server.BaseURL, log),
		sessionManager,
		middleware.Authorizer(enforcer, log),
		middleware.Error(log, viewService),
		web.StaticFS,
	)

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS.Enabled {
			log.Info(fmt.Sprintf("Starting HTTPS server on %s", server.Addr))
			err = server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Warn("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exiting")
	return nil
}
