package thermal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MaxCount is the digital count assigned to the brightest entry in a batch.
const MaxCount = 255

// ThermalEntry is one material or object class with its ground-truth
// temperature and emissivity.
type ThermalEntry struct {
	Label        string  `json:"label"`
	TemperatureK float64 `json:"temperature_k"`
	Emissivity   float64 `json:"emissivity"`
}

// DigitalCountEntry is the simulated 8-bit sensor output for one label.
// Radiance is the band-integrated value the count was normalised from.
type DigitalCountEntry struct {
	Label    string  `json:"label"`
	Count    int     `json:"count"`
	Radiance float64 `json:"radiance"`
}

// CountTable is an ordered set of digital counts with unique labels.
type CountTable []DigitalCountEntry

// Lookup returns the count for label.
func (t CountTable) Lookup(label string) (int, bool) {
	for _, e := range t {
		if e.Label == label {
			return e.Count, true
		}
	}
	return 0, false
}

// DigitalCounts converts a batch of thermal entries into digital counts.
//
// All entries are evaluated in one batched radiance call, then normalised
// against the batch maximum: count = round(255 * L / max(L)). Output order
// matches input order; the maximum (and any tie) receives 255 and no other
// entry does.
func (m *Model) DigitalCounts(entries []ThermalEntry) (CountTable, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyInput
	}

	seen := make(map[string]struct{}, len(entries))
	temps := make([]float64, len(entries))
	emiss := make([]float64, len(entries))
	for i, e := range entries {
		if e.Label == "" {
			return nil, fmt.Errorf("%w: entry %d", ErrInvalidLabel, i)
		}
		if _, dup := seen[e.Label]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, e.Label)
		}
		seen[e.Label] = struct{}{}
		temps[i] = e.TemperatureK
		emiss[i] = e.Emissivity
	}

	_, radiance, err := m.ComputeBatch(temps, emiss)
	if err != nil {
		return nil, fmt.Errorf("computing radiance: %w", err)
	}

	// Normalise over the whole batch, never per row.
	peak := floats.Max(radiance)
	if !(peak > 0) {
		return nil, ErrZeroRadiance
	}

	out := make(CountTable, len(entries))
	for i, e := range entries {
		count := int(math.Round(MaxCount * radiance[i] / peak))
		// 255 is reserved for the batch maximum; near-peak rows that would
		// round up stay one below it.
		if radiance[i] < peak && count == MaxCount {
			count = MaxCount - 1
		}
		out[i] = DigitalCountEntry{
			Label:    e.Label,
			Count:    count,
			Radiance: radiance[i],
		}
	}
	return out, nil
}

// ToDigitalCounts is the one-shot form of Model.DigitalCounts.
func ToDigitalCounts(entries []ThermalEntry, step float64, response []float64) (CountTable, error) {
	m, err := NewModel(step, response)
	if err != nil {
		return nil, err
	}
	return m.DigitalCounts(entries)
}
