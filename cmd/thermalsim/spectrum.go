package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/thermalsim/internal/charts"
	"github.com/banshee-data/thermalsim/internal/security"
	"github.com/banshee-data/thermalsim/internal/thermal"
)

func newSpectrumCmd(a *app) *cobra.Command {
	var (
		out    string
		labels []string
	)
	cmd := &cobra.Command{
		Use:   "spectrum",
		Short: "Plot spectral radiance curves of the thermal table to a PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := security.ValidateOutputPath(out); err != nil {
				return err
			}
			m, err := a.model()
			if err != nil {
				return err
			}
			entries, err := a.cfg.ThermalEntries()
			if err != nil {
				return err
			}
			if len(labels) > 0 {
				entries, err = selectEntries(entries, labels)
				if err != nil {
					return err
				}
			}
			if err := charts.WriteSpectrumPNG(a.fsys, out, m, entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "spectrum of %d materials written to %s\n", len(entries), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "spectrum.png", "output PNG path")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "only plot these labels (repeatable)")
	return cmd
}

// selectEntries keeps the entries named in labels, in the order given.
func selectEntries(entries []thermal.ThermalEntry, labels []string) ([]thermal.ThermalEntry, error) {
	byLabel := make(map[string]thermal.ThermalEntry, len(entries))
	for _, e := range entries {
		byLabel[e.Label] = e
	}
	out := make([]thermal.ThermalEntry, 0, len(labels))
	for _, l := range labels {
		e, ok := byLabel[l]
		if !ok {
			return nil, fmt.Errorf("%w: %q", thermal.ErrInvalidLabel, l)
		}
		out = append(out, e)
	}
	return out, nil
}
