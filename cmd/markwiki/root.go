package main

import (
	"fmt"
	"markwiki/internal/config"
	"markwiki/internal/data"
	"markwiki/internal/logger"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs after configuration is loaded.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "markwiki",
		Short: "A minimal self-hosted Markdown wiki",
		Long: `markwiki serves a small wiki backed by a single SQLite file.

Pages are written in Markdown and rendered to sanitised HTML. Anyone can
read; registered users can create, edit and delete pages and attachments.

Configuration is read from config.yml (or --config) and WIKI_* environment
variables, for example WIKI_SERVER_PORT or WIKI_DB_PATH.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(a.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg
			a.log = logger.New(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./config.yml)")

	root.AddCommand(newServeCmd(a), newMigrateCmd(a), newUserCmd(a))
	return root
}

// openDB connects to the wiki database and brings its schema up to date.
func (a *app) openDB() (*sqlx.DB, error) {
	a.log.Info(fmt.Sprintf("Opening database %s", a.cfg.DB.Path))
	db, err := data.NewDB(a.cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := data.ApplyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			a.log.Info("Migrations applied successfully.")
			return nil
		},
	}
}
