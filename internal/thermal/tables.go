package thermal

import (
	"fmt"
	"sort"
	"strings"
)

// Season selects one of the built-in material tables.
type Season string

const (
	Winter Season = "winter"
	Summer Season = "summer"
)

// Built-in material tables for a savanna scene, in Kelvin.
var presets = map[Season][]ThermalEntry{
	Winter: {
		{Label: "elephant", TemperatureK: 290, Emissivity: 0.96},
		{Label: "zebra", TemperatureK: 298, Emissivity: 0.98},
		{Label: "rhinoceros", TemperatureK: 291, Emissivity: 0.96},
		{Label: "hippopotamus", TemperatureK: 290, Emissivity: 0.96},
		{Label: "crocodile", TemperatureK: 295, Emissivity: 0.96},
		{Label: "human", TemperatureK: 292, Emissivity: 0.985},
		{Label: "tree", TemperatureK: 273, Emissivity: 0.952},
		{Label: "grass", TemperatureK: 273, Emissivity: 0.958},
		{Label: "soil", TemperatureK: 278, Emissivity: 0.914},
		{Label: "shrub", TemperatureK: 273, Emissivity: 0.986},
		{Label: "truck", TemperatureK: 273, Emissivity: 0.8},
		{Label: "water", TemperatureK: 273, Emissivity: 0.96},
	},
	Summer: {
		{Label: "elephant", TemperatureK: 298, Emissivity: 0.96},
		{Label: "zebra", TemperatureK: 307, Emissivity: 0.98},
		{Label: "rhinoceros", TemperatureK: 299, Emissivity: 0.96},
		{Label: "hippopotamus", TemperatureK: 298, Emissivity: 0.96},
		{Label: "crocodile", TemperatureK: 303, Emissivity: 0.96},
		{Label: "human", TemperatureK: 301, Emissivity: 0.985},
		{Label: "tree", TemperatureK: 293, Emissivity: 0.952},
		{Label: "grass", TemperatureK: 293, Emissivity: 0.958},
		{Label: "soil", TemperatureK: 288, Emissivity: 0.914},
		{Label: "shrub", TemperatureK: 293, Emissivity: 0.986},
		{Label: "truck", TemperatureK: 293, Emissivity: 0.8},
		{Label: "water", TemperatureK: 293, Emissivity: 0.96},
	},
}

// DefaultSceneLabels maps scene object name fragments to table labels for
// the savanna scene.
var DefaultSceneLabels = map[string]string{
	"Base_Terrain":          "soil",
	"elephant":              "elephant",
	"zebra":                 "zebra",
	"Crocodile":             "crocodile",
	"Rhinoceros":            "rhinoceros",
	"Hippo":                 "hippopotamus",
	"Poacher":               "human",
	"InstancedFoliageActor": "tree",
	"Water_Plane":           "water",
	"truck":                 "truck",
}

// PresetTable returns a copy of the built-in table for season.
func PresetTable(season Season) ([]ThermalEntry, error) {
	table, ok := presets[Season(strings.ToLower(string(season)))]
	if !ok {
		return nil, fmt.Errorf("unknown season %q (want %s or %s)", season, Winter, Summer)
	}
	return append([]ThermalEntry(nil), table...), nil
}

// SortedSceneNames returns the keys of a scene-label map in a stable order.
func SortedSceneNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
