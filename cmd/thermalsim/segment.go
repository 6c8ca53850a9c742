package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/banshee-data/thermalsim/internal/segmentation"
	"github.com/banshee-data/thermalsim/internal/sim"
	"github.com/banshee-data/thermalsim/internal/sim/synthetic"
	"github.com/banshee-data/thermalsim/internal/thermal"
	"github.com/banshee-data/thermalsim/internal/timeutil"
)

func newSegmentCmd(a *app) *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Write digital counts into the synthetic scene's segmentation IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, table, err := a.counts()
			if err != nil {
				return err
			}
			scene := sim.WithTimeout(synthetic.Savanna(a.clock), a.cfg.GetCallTimeout())
			report, err := a.segment(cmd.Context(), scene, a.clock, table)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)

			if record {
				store, err := a.openDB()
				if err != nil {
					return err
				}
				defer closeDB(store, cmd.ErrOrStderr())
				batch := uuid.NewString()
				if err := store.RecordAssignments(batch, report); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recorded batch %s\n", batch)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&record, "record", false, "store the assignment report in the database")
	return cmd
}

// segment applies the configured scene-name map to scene.
func (a *app) segment(ctx context.Context, scene sim.Collaborator, clock timeutil.Clock, table thermal.CountTable) (segmentation.Report, error) {
	assigner := &segmentation.Assigner{
		Scene:       scene,
		Clock:       clock,
		SettleDelay: a.cfg.GetSettleDelay(),
	}
	return assigner.Apply(ctx, segmentation.MappingsFromNames(a.cfg.GetSegmentationMap()), table)
}

func printReport(out io.Writer, report segmentation.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PATTERN\tLABEL\tID\tSTATUS")
	fmt.Fprintln(w, "-------\t-----\t--\t------")
	for _, o := range report.Outcomes {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", o.Pattern, o.Label, o.ObjectID, o.Status)
	}
	w.Flush()
	fmt.Fprintf(out, "%d of %d mappings assigned, %d warnings\n", report.Assigned(), len(report.Outcomes), len(report.Warnings))
}
