package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/pthm/safeplan/internal/cli"
	"github.com/pthm/safeplan/pkg/migrator"
)

var (
	migrateDB     string
	migrateDryRun bool
	migrateForce  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Install support functions",
	Long: `Install the aggregates and helper functions that generated SQL calls
(ior, prod_double and the iunion family) into a PostgreSQL database.`,
	Example: `  # Install support functions
  safeplan migrate --db postgres://localhost/probdb

  # Preview migration without applying
  safeplan migrate --db postgres://localhost/probdb --dry-run

  # Force re-apply even if the functions are unchanged
  safeplan migrate --db postgres://localhost/probdb --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(migrateDB)
		if err != nil && !migrateDryRun {
			return err
		}
		return runMigrate(cmd.Context(), dsn, migrateDryRun, migrateForce)
	},
}

func init() {
	f := migrateCmd.Flags()
	f.StringVar(&migrateDB, "db", "", "database URL")
	f.BoolVar(&migrateDryRun, "dry-run", false, "output migration SQL without applying")
	f.BoolVar(&migrateForce, "force", false, "force migration even if functions unchanged")
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}

func runMigrate(ctx context.Context, dsn string, dryRun, force bool) error {
	opts := migrator.MigrateOptions{Force: force}

	if dryRun {
		// Dry-run never touches the database.
		opts.DryRun = os.Stdout
		if !quiet {
			fmt.Fprintln(os.Stderr, "-- Dry-run mode: SQL will be output but not applied")
			fmt.Fprintln(os.Stderr, "")
		}
		_, err := migrator.MigrateWithOptions(ctx, nil, opts, migrator.WithLogger(logger))
		if err != nil {
			return cli.GeneralError("dry-run failed", err)
		}
		return nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return cli.DBConnectError("connecting to database", err)
	}

	if !quiet {
		fmt.Println("Installing safeplan support functions...")
	}

	skipped, err := migrator.MigrateWithOptions(ctx, db, opts, migrator.WithLogger(logger))
	if err != nil {
		return cli.GeneralError("migration failed", err)
	}

	if !quiet {
		if skipped {
			fmt.Println("Support functions unchanged, migration skipped.")
			fmt.Println("Use --force to re-apply.")
		} else {
			fmt.Println("Support functions installed successfully.")
		}
	}

	// Universal mode enumerates the active domain
	s, err := migrator.NewMigrator(db).GetStatus(ctx)
	if err == nil && !s.ActiveDomainExists && !quiet {
		fmt.Println()
		fmt.Println("WARNING: active domain relation A does not exist.")
		fmt.Println("         Universal-mode queries will fail until you create it.")
	}

	return nil
}
