package main

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/appointly/libs/config"
	"github.com/md-rashed-zaman/appointly/libs/db"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/migrations"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: withMigrator(func(ctx context.Context, cmd *cobra.Command, m *db.Migrator) error {
				if err := m.Up(ctx); err != nil {
					return err
				}
				v, err := m.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			RunE: withMigrator(func(ctx context.Context, _ *cobra.Command, m *db.Migrator) error {
				return m.Status(ctx)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: withMigrator(func(ctx context.Context, cmd *cobra.Command, m *db.Migrator) error {
				v, err := m.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}),
		},
	)
	return cmd
}

func withMigrator(fn func(context.Context, *cobra.Command, *db.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: 2})
		if err != nil {
			return fmt.Errorf("db connection failed: %w", err)
		}
		defer pool.Close()

		m, err := db.NewMigrator(pool, migrations.FS, migrations.Dir)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(ctx, cmd, m)
	}
}
