// Package segmentation writes digital counts into the simulator's
// per-object segmentation IDs so the segmentation pass renders as an
// infrared image.
package segmentation

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/thermalsim/internal/monitoring"
	"github.com/banshee-data/thermalsim/internal/sim"
	"github.com/banshee-data/thermalsim/internal/thermal"
	"github.com/banshee-data/thermalsim/internal/timeutil"
)

// SettleDelay is how long Apply waits after the last assignment. Captures
// taken sooner may still show the previous segmentation colours.
const SettleDelay = 100 * time.Millisecond

// Mapping assigns one material label to the scene objects matching Pattern.
type Mapping struct {
	Pattern string
	Label   string
	IsRegex bool
}

// MappingsFromNames converts a scene-name to label map into regex mappings
// that match any object whose name contains the scene name. Mappings are
// sorted by scene name so the scene sees a stable call order.
func MappingsFromNames(names map[string]string) []Mapping {
	keys := thermal.SortedSceneNames(names)
	out := make([]Mapping, 0, len(keys))
	for _, k := range keys {
		out = append(out, Mapping{Pattern: sim.ContainsPattern(k), Label: names[k], IsRegex: true})
	}
	return out
}

// Status is the outcome of one mapping.
type Status string

const (
	StatusAssigned     Status = "assigned"
	StatusMissingLabel Status = "missing_label"
	StatusNoMatch      Status = "no_match"
	StatusFailed       Status = "failed"
)

// Outcome records what happened to one mapping. ObjectID is the count the
// mapping resolved to, or -1 when the label had no count.
type Outcome struct {
	Pattern  string
	Label    string
	ObjectID int
	Status   Status
}

// Report is the result of Apply.
type Report struct {
	Outcomes  []Outcome
	Warnings  []Warning
	SettledAt time.Time
}

// Assigned returns how many mappings were applied to at least one object.
func (r Report) Assigned() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusAssigned {
			n++
		}
	}
	return n
}

// Assigner applies mappings against one scene.
type Assigner struct {
	Scene       sim.Collaborator
	Clock       timeutil.Clock
	SettleDelay time.Duration
}

// NewAssigner returns an Assigner using the real clock and SettleDelay.
func NewAssigner(scene sim.Collaborator) *Assigner {
	return &Assigner{Scene: scene, Clock: timeutil.RealClock{}, SettleDelay: SettleDelay}
}

var logf = monitoring.Tagged("segmentation")

// Apply resets every object to ID 0, then sets the objects matching each
// mapping to the digital count of its label, then waits the settle delay.
// Per-mapping problems are recorded in the report. A failed reset or a
// cancelled context aborts with an error.
func (a *Assigner) Apply(ctx context.Context, mappings []Mapping, counts thermal.CountTable) (Report, error) {
	var report Report

	ok, err := a.Scene.SetSegmentationID(ctx, sim.AnyObjectPattern, 0, true)
	if err != nil || !ok {
		return report, &ResetFailedError{Err: err}
	}

	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		out := Outcome{Pattern: m.Pattern, Label: m.Label, ObjectID: -1}

		id, found := counts.Lookup(m.Label)
		if !found {
			out.Status = StatusMissingLabel
			report.add(out, nil)
			continue
		}
		out.ObjectID = id

		matched, err := a.Scene.SetSegmentationID(ctx, m.Pattern, id, m.IsRegex)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return report, fmt.Errorf("set segmentation id for %q: %w", m.Pattern, ctx.Err())
			}
			out.Status = StatusFailed
			report.add(out, err)
		case !matched:
			out.Status = StatusNoMatch
			report.add(out, nil)
		default:
			out.Status = StatusAssigned
			report.add(out, nil)
		}
	}

	clock := a.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	delay := a.SettleDelay
	if delay <= 0 {
		delay = SettleDelay
	}
	clock.Sleep(delay)
	report.SettledAt = clock.Now()
	return report, nil
}

func (r *Report) add(o Outcome, err error) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Status == StatusAssigned {
		return
	}
	w := Warning{Pattern: o.Pattern, Label: o.Label, Status: o.Status, Err: err}
	r.Warnings = append(r.Warnings, w)
	logf("%v", w)
}

// Apply is shorthand for NewAssigner(scene).Apply.
func Apply(ctx context.Context, scene sim.Collaborator, mappings []Mapping, counts thermal.CountTable) (Report, error) {
	return NewAssigner(scene).Apply(ctx, mappings, counts)
}
