package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/DukeRupert/notebook/internal"
	"github.com/DukeRupert/notebook/internal/repository"
	"github.com/DukeRupert/notebook/internal/service"
)

// backend is what the commands operate on. Tests substitute a fake.
type backend interface {
	Users() service.UserService
	Sessions() service.SessionService
	Migrate() error
	MigrationStatus() error
	Close() error
}

// backendFactory opens a backend; it is called lazily by the commands that
// need the database.
type backendFactory func(ctx context.Context, logOut io.Writer) (backend, error)

type dbBackend struct {
	db       *sql.DB
	users    service.UserService
	sessions service.SessionService
}

// openBackend connects to DATABASE_URL using the server's configuration.
func openBackend(ctx context.Context, logOut io.Writer) (backend, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(logOut, cfg.Env, cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	repo := repository.New(db)
	return &dbBackend{
		db:    db,
		users: service.NewUserService(repo, service.NewBCryptPasswordEncoder(cfg.BcryptCost), logger),
		sessions: service.NewSessionService(repo, service.SessionServiceConfig{
			Duration: cfg.SessionDuration,
		}, logger),
	}, nil
}

func (b *dbBackend) Users() service.UserService       { return b.users }
func (b *dbBackend) Sessions() service.SessionService { return b.sessions }
func (b *dbBackend) Migrate() error                   { return internal.RunMigrations(b.db) }
func (b *dbBackend) MigrationStatus() error           { return internal.MigrationStatus(b.db) }
func (b *dbBackend) Close() error                     { return b.db.Close() }

// newRootCmd builds the command tree.
func newRootCmd(open backendFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "notebookctl",
		Short: "Operate a notebook deployment",
		Long: `notebookctl applies database migrations, manages local accounts
and prunes expired sessions. It reads the same environment (DATABASE_URL,
BCRYPT_COST, ...) as the server.`,
		// Errors are reported by the commands themselves; usage on every
		// failure is noise.
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(open),
		newUserCmd(open),
		newSessionsCmd(open),
	)
	return root
}

// withBackend opens a backend for the duration of fn.
func withBackend(cmd *cobra.Command, open backendFactory, fn func(b backend) error) error {
	b, err := open(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}
