// cmd/migrator/main.go
//
// Tenant-aware migration CLI.
//
//	migrator migrate                    apply pending migrations everywhere
//	migrator rollback [migration-id]    step back one, or move to an ID
//	migrator status                     print each database's version
//
// The main database always runs first; a failure there stops the run.
// Tenant failures are logged and the remaining tenants still run.  The
// process exits 1 when anything failed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanizio/tenantpoc/internal/app"
	"github.com/yanizio/tenantpoc/internal/database"
	"github.com/yanizio/tenantpoc/internal/migrations"
	"github.com/yanizio/tenantpoc/internal/migrator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

var errNoCommand = errors.New("please provide a valid command: migrate, rollback, or status")

type flags struct {
	tenants  []string
	skipMain bool
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "migrator",
		Short:         "Apply or revert schema migrations on the main and every tenant database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errNoCommand
		},
	}
	root.PersistentFlags().StringSliceVar(&f.tenants, "tenant", nil,
		"limit the run to these tenant IDs (repeatable)")
	root.PersistentFlags().BoolVar(&f.skipMain, "skip-main", false,
		"leave the main database untouched")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, f, migrateAll)
			},
		},
		&cobra.Command{
			Use:   "rollback [migration-id]",
			Short: "Revert to the previous migration, or to migration-id (0 reverts everything)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				target := ""
				if len(args) == 1 {
					target = args[0]
				}
				return run(cmd, f, rollbackTo(target))
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied version of every database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, f, status)
			},
		},
	)
	return root
}

type runFunc func(context.Context, *migrator.Service, migrator.Options) (*migrator.Report, error)

func migrateAll(ctx context.Context, s *migrator.Service, o migrator.Options) (*migrator.Report, error) {
	return s.Migrate(ctx, o)
}

func rollbackTo(target string) runFunc {
	return func(ctx context.Context, s *migrator.Service, o migrator.Options) (*migrator.Report, error) {
		return s.Rollback(ctx, target, o)
	}
}

func status(ctx context.Context, s *migrator.Service, o migrator.Options) (*migrator.Report, error) {
	return s.Status(ctx, o)
}

func run(cmd *cobra.Command, f flags, fn runFunc) error {
	ctx := cmd.Context()
	env, err := app.Boot(ctx, "migrator")
	if err != nil {
		return err
	}
	defer func() { _ = zap.L().Sync() }()

	svc, err := newService(env)
	if err != nil {
		return err
	}

	return report(ctx, cmd.OutOrStdout(), svc, migrator.Options{Tenants: f.tenants, SkipMain: f.skipMain}, fn)
}

// report runs fn, prints the table for whatever ran, and returns the run
// error, or else the aggregate of tenant failures.  A nil return means
// exit status 0.
func report(ctx context.Context, w io.Writer, svc *migrator.Service, opts migrator.Options, fn runFunc) error {
	rep, runErr := fn(ctx, svc, opts)
	if rep != nil {
		if err := rep.WriteTable(w, svc.Catalog().Label); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	return rep.Err()
}

// newService picks the catalog for the main database's dialect.  Every
// dialect directory carries the same versions, so labels agree across
// providers.
func newService(env *app.Env) (*migrator.Service, error) {
	p, err := database.ParseProvider(env.Registry.Main().Provider)
	if err != nil {
		return nil, err
	}
	cat, err := migrations.Embedded(p.Dialect())
	if err != nil {
		return nil, err
	}
	return migrator.New(env.Registry, migrator.DefaultOpener(env.Factory), cat, env.Log), nil
}
