package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/thermalsim/internal/db"
)

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the capture store",
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database to the latest schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB(store, cmd.ErrOrStderr())
			v, _, err := store.MigrateVersion(db.MigrationsFS())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the schema version without migrating",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := db.OpenDB(a.storePath())
			if err != nil {
				return err
			}
			defer closeDB(store, cmd.ErrOrStderr())
			v, dirty, err := store.MigrateVersion(db.MigrationsFS())
			if err != nil {
				return err
			}
			latest, err := db.GetLatestMigrationVersion(db.MigrationsFS())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current=%d latest=%d dirty=%t\n", v, latest, dirty)
			return nil
		},
	}

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := db.OpenDB(a.storePath())
			if err != nil {
				return err
			}
			defer closeDB(store, cmd.ErrOrStderr())
			if err := store.MigrateDown(db.MigrationsFS()); err != nil {
				return err
			}
			v, _, err := store.MigrateVersion(db.MigrationsFS())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	}

	var limit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded tracking runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB(store, cmd.ErrOrStderr())
			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "RUN\tTARGET\tCAMERA\tFRAMES\tSTARTED\tREASON")
			fmt.Fprintln(w, "---\t------\t------\t------\t-------\t------")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.RunID, r.Target, r.Camera, r.Frames, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.StopReason)
			}
			return w.Flush()
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")

	cmd.AddCommand(migrateCmd, versionCmd, rollbackCmd, runsCmd)
	return cmd
}
