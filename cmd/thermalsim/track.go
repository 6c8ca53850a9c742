package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/banshee-data/thermalsim/internal/charts"
	"github.com/banshee-data/thermalsim/internal/db"
	"github.com/banshee-data/thermalsim/internal/geom"
	"github.com/banshee-data/thermalsim/internal/monitoring"
	"github.com/banshee-data/thermalsim/internal/security"
	"github.com/banshee-data/thermalsim/internal/sim"
	"github.com/banshee-data/thermalsim/internal/sim/synthetic"
	"github.com/banshee-data/thermalsim/internal/timeutil"
	"github.com/banshee-data/thermalsim/internal/tracking"
)

type trackOptions struct {
	target       string
	camera       string
	duration     time.Duration
	interval     time.Duration
	all          bool
	captureScene bool
	noPlacement  bool
	realtime     bool
	noProgress   bool
	chartPath    string
	record       bool
}

func newTrackCmd(a *app) *cobra.Command {
	var o trackOptions
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Follow a target through the synthetic scene and capture infrared frames",
		Long: `Track segments the synthetic scene with the configured digital counts, then
captures an infrared frame of the target every interval until the duration
elapses, projecting the target into the image each time.

By default time is simulated, so a 30s run finishes immediately. Pass
--realtime to run against the wall clock.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.track(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.target, "target", "t", "", "scene object to track (default from config)")
	f.StringVar(&o.camera, "camera", "", "camera name (default from config)")
	f.DurationVarP(&o.duration, "duration", "d", 0, "how long to track (default from config)")
	f.DurationVarP(&o.interval, "interval", "i", 0, "time between captures (default from config)")
	f.BoolVar(&o.all, "all", false, "track every object whose name contains the target, one run each")
	f.BoolVar(&o.captureScene, "capture-scene", false, "also capture a scene image each frame")
	f.BoolVar(&o.noPlacement, "no-placement", false, "leave the vehicle where it is instead of hovering over the target")
	f.BoolVar(&o.realtime, "realtime", false, "run against the wall clock")
	f.BoolVar(&o.noProgress, "no-progress", false, "hide the progress bar")
	f.StringVar(&o.chartPath, "chart", "", "write an HTML chart of each target's pixel track; with --all the target name is appended")
	f.BoolVar(&o.record, "record", false, "store runs and frames in the database")
	return cmd
}

// fill replaces options not given on the command line with config values.
func (o *trackOptions) fill(a *app, flags *pflag.FlagSet) {
	if o.target == "" {
		o.target = a.cfg.GetTrackTarget()
	}
	if o.camera == "" {
		o.camera = a.cfg.GetCameraName()
	}
	if !flags.Changed("duration") {
		o.duration = a.cfg.GetDuration()
	}
	if !flags.Changed("interval") {
		o.interval = a.cfg.GetTickInterval()
	}
	if !flags.Changed("capture-scene") {
		o.captureScene = a.cfg.GetCaptureScene()
	}
}

func (a *app) placement(disabled bool) *tracking.Placement {
	alt, pitch, roll, yaw, enabled := a.cfg.GetPlacement()
	if disabled || !enabled {
		return nil
	}
	return &tracking.Placement{
		Altitude: alt,
		Pitch:    geom.Radians(pitch),
		Roll:     geom.Radians(roll),
		Yaw:      geom.Radians(yaw),
	}
}

func (a *app) track(cmd *cobra.Command, o trackOptions) error {
	o.fill(a, cmd.Flags())
	if o.interval <= 0 {
		return fmt.Errorf("%w, got %v", tracking.ErrInvalidInterval, o.interval)
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var clock timeutil.Clock = a.clock
	var mock *timeutil.MockClock
	if !o.realtime {
		mock = timeutil.NewMockClock(a.clock.Now())
		clock = mock
	}

	_, table, err := a.counts()
	if err != nil {
		return err
	}
	scene := synthetic.Savanna(clock)
	bounded := sim.WithTimeout(scene, a.cfg.GetCallTimeout())
	report, err := a.segment(ctx, bounded, clock, table)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "segmentation: %d of %d mappings assigned\n", report.Assigned(), len(report.Outcomes))

	targets := []string{o.target}
	if o.all {
		targets, err = bounded.ListSceneObjects(ctx, sim.ContainsPattern(o.target))
		if err != nil {
			return fmt.Errorf("list scene objects: %w", err)
		}
		if len(targets) == 0 {
			return fmt.Errorf("no scene objects match %q", o.target)
		}
	}

	var store *db.DB
	if o.record {
		store, err = a.openDB()
		if err != nil {
			return err
		}
		defer closeDB(store, cmd.ErrOrStderr())
	}

	if o.chartPath != "" {
		if err := security.ValidateOutputPath(o.chartPath); err != nil {
			return err
		}
	}

	var summaries []tracking.Summary
	var runErr error
	for _, target := range targets {
		loop := tracking.NewLoop(scene, tracking.Options{
			Clock:        clock,
			CallTimeout:  a.cfg.GetCallTimeout(),
			CaptureScene: o.captureScene,
			Placement:    a.placement(o.noPlacement),
			SettleDelay:  a.cfg.GetSettleDelay(),
		})
		frames, s, err := runTrack(ctx, loop, store, target, o, mock, cmd.ErrOrStderr())
		summaries = append(summaries, s)
		if o.chartPath != "" && len(frames) > 0 {
			path := chartPathFor(o.chartPath, target, len(targets) > 1)
			chart := charts.TrackChart(frames, scene.Width, scene.Height, s.RunID)
			if werr := charts.WriteHTML(a.fsys, path, chart); werr != nil {
				return fmt.Errorf("write chart: %w", werr)
			}
			fmt.Fprintf(out, "chart written to %s\n", path)
		}
		if err != nil {
			runErr = err
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	printSummaries(out, summaries)
	return runErr
}

// runTrack runs one loop to completion, recording to store when non-nil.
// Frames come back without their imagery.
func runTrack(ctx context.Context, loop *tracking.Loop, store *db.DB, target string, o trackOptions, mock *timeutil.MockClock, progress io.Writer) ([]db.CaptureFrame, tracking.Summary, error) {
	if err := loop.Start(target, o.camera, o.duration); err != nil {
		return nil, loop.Summary(), err
	}
	if store != nil {
		if err := store.CreateRun(loop.Summary()); err != nil {
			loop.Cancel()
			return nil, loop.Summary(), err
		}
	}

	expected := max(1, int(o.duration/o.interval))
	var bar *progressbar.ProgressBar
	if !o.noProgress {
		bar = progressbar.NewOptions(expected,
			progressbar.OptionSetDescription(fmt.Sprintf("tracking %s", target)),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionShowCount(),
		)
	}

	var frames []db.CaptureFrame
	summary, err := loop.Run(ctx, o.interval, func(f tracking.Frame) {
		frames = append(frames, db.FrameRecord(f))
		if store != nil {
			if err := store.RecordFrame(f); err != nil {
				monitoring.Logf("run %s: recording frame %d: %v", f.RunID, f.Index, err)
			}
		}
		if bar != nil && len(frames) <= expected {
			bar.Add(1)
		}
		if mock != nil {
			mock.Advance(o.interval)
		}
	})
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(progress)
	}

	if store != nil {
		if ferr := store.FinishRun(summary); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	return frames, summary, err
}

// chartPathFor names one chart per target when several are tracked:
// track.html becomes track_Poacher_1.html.
func chartPathFor(base, target string, multi bool) string {
	if !multi {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + security.SanitizeFilename(target) + ext
}

func printSummaries(out io.Writer, summaries []tracking.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RUN\tTARGET\tFRAMES\tREASON\tERROR")
	fmt.Fprintln(w, "---\t------\t------\t------\t-----")
	for _, s := range summaries {
		errText := "-"
		if s.Err != nil {
			errText = s.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.RunID, s.Target, s.Frames, s.Reason, errText)
	}
	w.Flush()
}
