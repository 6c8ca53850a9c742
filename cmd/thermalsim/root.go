package main

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/banshee-data/thermalsim/internal/config"
	"github.com/banshee-data/thermalsim/internal/db"
	"github.com/banshee-data/thermalsim/internal/fsutil"
	"github.com/banshee-data/thermalsim/internal/monitoring"
	"github.com/banshee-data/thermalsim/internal/thermal"
	"github.com/banshee-data/thermalsim/internal/timeutil"
	"github.com/banshee-data/thermalsim/internal/version"
)

// app holds state shared by subcommands.
type app struct {
	configPath string
	dbPath     string
	season     string
	quiet      bool

	cfg   *config.SimConfig
	fsys  fsutil.FileSystem
	clock timeutil.Clock
}

func newRootCmd() *cobra.Command {
	a := &app{fsys: fsutil.OSFileSystem{}, clock: timeutil.RealClock{}}

	root := &cobra.Command{
		Use:           "thermalsim",
		Short:         "Synthetic thermal-infrared sensor model",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "JSON config file (default: "+config.DefaultConfigPath+" if present, else built-in defaults)")
	pf.StringVar(&a.dbPath, "db", "", "sqlite database path (default from config)")
	pf.StringVar(&a.season, "season", "", "material table preset: winter or summer (overrides config)")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress diagnostic logging")

	root.AddCommand(
		newCountsCmd(a),
		newSpectrumCmd(a),
		newSegmentCmd(a),
		newTrackCmd(a),
		newDBCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if a.quiet {
		monitoring.SetLogger(nil)
	} else {
		l := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
		monitoring.SetLogger(l.Printf)
	}

	path := a.configPath
	if path == "" && a.fsys.Exists(config.DefaultConfigPath) {
		path = config.DefaultConfigPath
	}
	if path == "" {
		a.cfg = config.EmptyConfig()
	} else {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.season != "" {
		s := a.season
		a.cfg.Season = &s
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// model builds the radiance model from the configured step and response.
func (a *app) model() (*thermal.Model, error) {
	var response []float64
	if path := a.cfg.GetResponsePath(); path != "" {
		r, err := thermal.LoadResponse(a.fsys, path)
		if err != nil {
			return nil, err
		}
		response = r
	}
	return thermal.NewModel(a.cfg.GetStepMicrons(), response)
}

// counts evaluates the configured thermal table.
func (a *app) counts() ([]thermal.ThermalEntry, thermal.CountTable, error) {
	m, err := a.model()
	if err != nil {
		return nil, nil, err
	}
	entries, err := a.cfg.ThermalEntries()
	if err != nil {
		return nil, nil, err
	}
	table, err := m.DigitalCounts(entries)
	if err != nil {
		return nil, nil, err
	}
	return entries, table, nil
}

func (a *app) storePath() string {
	if a.dbPath != "" {
		return a.dbPath
	}
	return a.cfg.GetDBPath()
}

// openDB opens the capture store, migrating it first.
func (a *app) openDB() (*db.DB, error) {
	return db.NewDB(a.storePath())
}

func closeDB(d *db.DB, w io.Writer) {
	if err := d.Close(); err != nil {
		fmt.Fprintf(w, "warning: closing database: %v\n", err)
	}
}
