package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/pthm/safeplan/internal/cli"
	"github.com/pthm/safeplan/pkg/migrator"
)

var statusDB string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show support function status",
	Long:  `Show which support functions are installed and the last migration.`,
	Example: `  # Check status
  safeplan status --db postgres://localhost/probdb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(statusDB)
		if err != nil {
			return err
		}
		return runStatus(cmd.Context(), dsn)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDB, "db", "", "database URL")
}

func runStatus(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer func() { _ = db.Close() }()

	m := migrator.NewMigrator(db)
	s, err := m.GetStatus(ctx)
	if err != nil {
		return cli.GeneralError("getting status", err)
	}

	total := len(s.Installed) + len(s.Missing)
	fmt.Printf("Support functions: %d/%d installed\n", len(s.Installed), total)
	if s.ActiveDomainExists {
		fmt.Println("Active domain:     present")
	} else {
		fmt.Println("Active domain:     missing")
	}
	if s.LastMigration != nil {
		fmt.Printf("Last migration:    %s (checksum %s, codegen v%s)\n",
			s.LastMigration.AppliedAt.Format("2006-01-02 15:04:05"),
			prefix(s.LastMigration.Checksum, 12),
			s.LastMigration.CodegenVersion)
		if !s.UpToDate(m.Checksum()) {
			fmt.Println("\nInstalled functions are outdated. Run safeplan migrate.")
		}
	} else {
		fmt.Println("Last migration:    none")
	}

	if len(s.Missing) > 0 && verbose > 0 {
		fmt.Println("\nMissing:")
		for _, name := range s.Missing {
			fmt.Printf("  %s\n", name)
		}
	}

	return nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
