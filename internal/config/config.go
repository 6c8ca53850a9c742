package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/thermalsim/internal/thermal"
	"github.com/banshee-data/thermalsim/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/thermalsim.defaults.json"

// Material is one row of a configured thermal table. Temperature is in the
// config's temperature_unit.
type Material struct {
	Label       string  `json:"label"`
	Temperature float64 `json:"temperature"`
	Emissivity  float64 `json:"emissivity"`
}

// PlacementConfig positions the vehicle above the tracked target. Angles
// are degrees; altitude is the NED z coordinate in metres.
type PlacementConfig struct {
	Enabled  *bool    `json:"enabled,omitempty"`
	Altitude *float64 `json:"altitude,omitempty"`
	Pitch    *float64 `json:"pitch,omitempty"`
	Roll     *float64 `json:"roll,omitempty"`
	Yaw      *float64 `json:"yaw,omitempty"`
}

// SimConfig is the root configuration. Every field is optional; the Get*
// methods supply defaults for anything the file leaves out.
type SimConfig struct {
	// Radiance model
	StepMicrons  *float64 `json:"step_microns,omitempty"`
	ResponsePath *string  `json:"response_path,omitempty"`

	// Materials
	Season          *string           `json:"season,omitempty"`
	TemperatureUnit *string           `json:"temperature_unit,omitempty"`
	ThermalTable    []Material        `json:"thermal_table,omitempty"`
	SegmentationMap map[string]string `json:"segmentation_map,omitempty"`

	// Collaborator timing
	SettleDelay *string `json:"settle_delay,omitempty"` // duration string like "100ms"
	CallTimeout *string `json:"call_timeout,omitempty"`

	// Tracking
	TrackTarget  *string          `json:"track_target,omitempty"`
	CameraName   *string          `json:"camera_name,omitempty"`
	Duration     *string          `json:"duration,omitempty"`
	TickInterval *string          `json:"tick_interval,omitempty"`
	CaptureScene *bool            `json:"capture_scene,omitempty"`
	Placement    *PlacementConfig `json:"placement,omitempty"`

	// Storage
	DBPath *string `json:"db_path,omitempty"`
}

// EmptyConfig returns a SimConfig with all fields unset.
func EmptyConfig() *SimConfig {
	return &SimConfig{}
}

// LoadConfig loads a SimConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to their defaults, so partial configs are safe.
func LoadConfig(path string) (*SimConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *SimConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/sim/synthetic/
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SimConfig) Validate() error {
	if c.StepMicrons != nil {
		if s := *c.StepMicrons; !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("step_microns must be positive, got %v", s)
		}
	}

	if c.Season != nil {
		if _, err := thermal.PresetTable(thermal.Season(*c.Season)); err != nil {
			return err
		}
	}

	if c.TemperatureUnit != nil && !units.IsValid(*c.TemperatureUnit) {
		return fmt.Errorf("invalid temperature_unit %q (want %s)", *c.TemperatureUnit, units.GetValidUnitsString())
	}

	durations := []struct {
		name string
		v    *string
	}{
		{"settle_delay", c.SettleDelay},
		{"call_timeout", c.CallTimeout},
		{"duration", c.Duration},
		{"tick_interval", c.TickInterval},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		v, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.v)
		}
	}
	if c.TickInterval != nil && *c.TickInterval != "" && c.GetTickInterval() == 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if c.SettleDelay != nil && *c.SettleDelay != "" && c.GetSettleDelay() == 0 {
		return fmt.Errorf("settle_delay must be positive")
	}

	if _, err := c.ThermalEntries(); err != nil {
		return err
	}

	return nil
}

func parseDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetStepMicrons returns the wavelength step or thermal.DefaultStep.
func (c *SimConfig) GetStepMicrons() float64 {
	if c.StepMicrons == nil {
		return thermal.DefaultStep
	}
	return *c.StepMicrons
}

// GetResponsePath returns the camera response file, or "" for a flat
// response.
func (c *SimConfig) GetResponsePath() string {
	if c.ResponsePath == nil {
		return ""
	}
	return *c.ResponsePath
}

// GetSeason returns the preset season, default winter.
func (c *SimConfig) GetSeason() thermal.Season {
	if c.Season == nil {
		return thermal.Winter
	}
	return thermal.Season(*c.Season)
}

// GetTemperatureUnit returns the unit of thermal_table temperatures.
func (c *SimConfig) GetTemperatureUnit() string {
	if c.TemperatureUnit == nil {
		return units.Kelvin
	}
	u, _ := units.Normalize(*c.TemperatureUnit)
	return u
}

// ThermalEntries returns thermal_table converted to Kelvin, or the season's
// preset table when thermal_table is empty.
func (c *SimConfig) ThermalEntries() ([]thermal.ThermalEntry, error) {
	if len(c.ThermalTable) == 0 {
		return thermal.PresetTable(c.GetSeason())
	}
	unit := units.Kelvin
	if c.TemperatureUnit != nil {
		unit = *c.TemperatureUnit
	}
	out := make([]thermal.ThermalEntry, 0, len(c.ThermalTable))
	for i, m := range c.ThermalTable {
		k, err := units.ToKelvin(m.Temperature, unit)
		if err != nil {
			return nil, fmt.Errorf("thermal_table[%d]: %w", i, err)
		}
		out = append(out, thermal.ThermalEntry{Label: m.Label, TemperatureK: k, Emissivity: m.Emissivity})
	}
	return out, nil
}

// GetSegmentationMap returns the scene-name to label map, defaulting to
// thermal.DefaultSceneLabels.
func (c *SimConfig) GetSegmentationMap() map[string]string {
	src := c.SegmentationMap
	if len(src) == 0 {
		src = thermal.DefaultSceneLabels
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// SegmentationLabels returns the distinct labels the segmentation map uses.
func (c *SimConfig) SegmentationLabels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, v := range c.GetSegmentationMap() {
		if !seen[v] {
			seen[v] = true
			labels = append(labels, v)
		}
	}
	sort.Strings(labels)
	return labels
}

// GetSettleDelay returns the wait after segmentation or placement changes.
func (c *SimConfig) GetSettleDelay() time.Duration {
	return parseDuration(c.SettleDelay, 100*time.Millisecond)
}

// GetCallTimeout returns the per-call collaborator timeout.
func (c *SimConfig) GetCallTimeout() time.Duration {
	return parseDuration(c.CallTimeout, 5*time.Second)
}

// GetTrackTarget returns the scene object the tracking loop follows.
func (c *SimConfig) GetTrackTarget() string {
	if c.TrackTarget == nil {
		return "Poacher_1"
	}
	return *c.TrackTarget
}

// GetCameraName returns the capturing camera.
func (c *SimConfig) GetCameraName() string {
	if c.CameraName == nil {
		return "0"
	}
	return *c.CameraName
}

// GetDuration returns how long the tracking loop runs.
func (c *SimConfig) GetDuration() time.Duration {
	return parseDuration(c.Duration, 30*time.Second)
}

// GetTickInterval returns the time between tracking ticks.
func (c *SimConfig) GetTickInterval() time.Duration {
	return parseDuration(c.TickInterval, time.Second)
}

// GetCaptureScene reports whether a scene image accompanies each IR capture.
func (c *SimConfig) GetCaptureScene() bool {
	if c.CaptureScene == nil {
		return false
	}
	return *c.CaptureScene
}

// GetPlacement returns the follow placement with defaults filled in, and
// whether placement is enabled.
func (c *SimConfig) GetPlacement() (altitude, pitch, roll, yaw float64, enabled bool) {
	altitude, pitch = -122, 270
	p := c.Placement
	if p == nil {
		return altitude, pitch, 0, 0, false
	}
	enabled = true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	if p.Altitude != nil {
		altitude = *p.Altitude
	}
	if p.Pitch != nil {
		pitch = *p.Pitch
	}
	if p.Roll != nil {
		roll = *p.Roll
	}
	if p.Yaw != nil {
		yaw = *p.Yaw
	}
	return altitude, pitch, roll, yaw, enabled
}

// GetDBPath returns the sqlite database path.
func (c *SimConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "thermalsim.db"
	}
	return *c.DBPath
}
