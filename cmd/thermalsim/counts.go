package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/banshee-data/thermalsim/internal/charts"
	"github.com/banshee-data/thermalsim/internal/security"
	"github.com/banshee-data/thermalsim/internal/units"
)

func newCountsCmd(a *app) *cobra.Command {
	var (
		chartPath string
		record    bool
	)
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Compute digital counts for the configured thermal table",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, table, err := a.counts()
			if err != nil {
				return err
			}

			unit := a.cfg.GetTemperatureUnit()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintf(w, "LABEL\tTEMP (%s)\tEMISSIVITY\tRADIANCE (W/m²/sr)\tCOUNT\n", unit)
			fmt.Fprintln(w, "-----\t--------\t----------\t------------------\t-----")
			for i, e := range table {
				fmt.Fprintf(w, "%s\t%.2f\t%.3f\t%.4f\t%d\n",
					e.Label, units.FromKelvin(entries[i].TemperatureK, unit), entries[i].Emissivity, e.Radiance, e.Count)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if chartPath != "" {
				if err := security.ValidateOutputPath(chartPath); err != nil {
					return err
				}
				bar := charts.CountsChart(table, fmt.Sprintf("season=%s step=%gµm", a.cfg.GetSeason(), a.cfg.GetStepMicrons()))
				if err := charts.WriteHTML(a.fsys, chartPath, bar); err != nil {
					return fmt.Errorf("write chart: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "chart written to %s\n", chartPath)
			}

			if record {
				store, err := a.openDB()
				if err != nil {
					return err
				}
				defer closeDB(store, cmd.ErrOrStderr())
				batch := uuid.NewString()
				if err := store.RecordCounts(batch, entries, table, a.clock.Now().UTC().Truncate(time.Millisecond)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recorded batch %s\n", batch)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chartPath, "chart", "", "write an HTML bar chart of the counts to this path")
	cmd.Flags().BoolVar(&record, "record", false, "store the batch in the database")
	return cmd
}
