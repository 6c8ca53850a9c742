// Package thermal models a long-wave infrared sensor: Planck's-law radiance
// over the 8-14 micron band and its normalisation into 8-bit digital counts.
package thermal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Band limits in microns. The upper limit is exclusive.
const (
	BandStartMicrons = 8.0
	BandEndMicrons   = 14.0
)

// DefaultStep is the default wavelength sampling interval in microns.
const DefaultStep = 0.01

// maxSamples bounds the wavelength axis so a tiny step cannot exhaust memory.
const maxSamples = 1_000_000

// Planck constants pre-combined for microns and Kelvin.
const (
	// C1 is 2hc² scaled so radiance comes out in W/(m²·sr·µm).
	C1 = 1.19104e8
	// C2 is hc/k in µm·K.
	C2 = 1.43879e4
)

// Spectrum is a discretised radiance spectrum.
type Spectrum struct {
	Wavelengths []float64 `json:"wavelengths"` // microns, strictly increasing
	Values      []float64 `json:"values"`
}

// Model evaluates band radiance for a fixed sampling step and optional
// sensor response. A Model is immutable after construction and safe for
// concurrent use.
type Model struct {
	step        float64
	wavelengths []float64
	w5          []float64 // wavelength^5, precomputed
	response    []float64 // nil means a flat response of 1
}

// WavelengthBand returns 8, 8+step, ... up to but excluding 14 microns.
func WavelengthBand(step float64) ([]float64, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidStep, step)
	}
	n := int(math.Ceil((BandEndMicrons - BandStartMicrons) / step))
	if n > maxSamples {
		return nil, fmt.Errorf("%w: step %g yields %d samples (max %d)", ErrInvalidStep, step, n, maxSamples)
	}
	w := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := BandStartMicrons + float64(i)*step
		if v >= BandEndMicrons {
			break
		}
		w = append(w, v)
	}
	return w, nil
}

// NewModel builds a radiance model. response may be nil; otherwise it must
// have one finite, non-negative value per wavelength sample.
func NewModel(step float64, response []float64) (*Model, error) {
	w, err := WavelengthBand(step)
	if err != nil {
		return nil, err
	}
	m := &Model{
		step:        step,
		wavelengths: w,
		w5:          make([]float64, len(w)),
	}
	for i, v := range w {
		m.w5[i] = math.Pow(v, 5)
	}
	if response != nil {
		if len(response) != len(w) {
			return nil, fmt.Errorf("%w: %d values for %d wavelengths", ErrInvalidResponse, len(response), len(w))
		}
		for i, r := range response {
			if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
				return nil, fmt.Errorf("%w: value %g at index %d", ErrInvalidResponse, r, i)
			}
		}
		m.response = append([]float64(nil), response...)
	}
	return m, nil
}

// Step returns the sampling interval in microns.
func (m *Model) Step() float64 { return m.step }

// Wavelengths returns a copy of the wavelength axis.
func (m *Model) Wavelengths() []float64 {
	return append([]float64(nil), m.wavelengths...)
}

// Compute returns the spectrum and band-integrated radiance for one
// temperature (Kelvin) and emissivity.
func (m *Model) Compute(temperature, emissivity float64) (Spectrum, float64, error) {
	if err := validate(temperature, emissivity); err != nil {
		return Spectrum{}, 0, err
	}
	values := make([]float64, len(m.wavelengths))
	m.fill(values, temperature, emissivity)
	return Spectrum{Wavelengths: m.Wavelengths(), Values: values}, m.integrate(values), nil
}

// ComputeBatch evaluates N rows at once. Either slice may have length 1, in
// which case it is broadcast against the other. The returned matrix has one
// spectrum per row; integrated values are taken along each row.
func (m *Model) ComputeBatch(temperatures, emissivities []float64) (*mat.Dense, []float64, error) {
	n, err := broadcastLen(len(temperatures), len(emissivities))
	if err != nil {
		return nil, nil, err
	}
	at := func(s []float64, i int) float64 {
		if len(s) == 1 {
			return s[0]
		}
		return s[i]
	}

	spectra := mat.NewDense(n, len(m.wavelengths), nil)
	integrated := make([]float64, n)
	for i := 0; i < n; i++ {
		t, e := at(temperatures, i), at(emissivities, i)
		if err := validate(t, e); err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}
		row := spectra.RawRowView(i)
		m.fill(row, t, e)
		integrated[i] = m.integrate(row)
	}
	return spectra, integrated, nil
}

// ComputeRadiance is the one-shot form of Model.Compute.
func ComputeRadiance(temperature, emissivity, step float64, response []float64) (Spectrum, float64, error) {
	m, err := NewModel(step, response)
	if err != nil {
		return Spectrum{}, 0, err
	}
	return m.Compute(temperature, emissivity)
}

func (m *Model) fill(dst []float64, t, e float64) {
	for i, w := range m.wavelengths {
		l := e * C1 / (m.w5[i] * math.Expm1(C2/(w*t)))
		if m.response != nil {
			l *= m.response[i]
		}
		dst[i] = l
	}
}

// integrate applies the trapezoidal rule with uniform spacing step.
func (m *Model) integrate(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	return m.step * (floats.Sum(values) - (values[0]+values[n-1])/2)
}

func validate(t, e float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
		return &DomainError{Param: "temperature", Value: t, Reason: "must be a finite value above 0 K"}
	}
	if math.IsNaN(e) || e <= 0 || e > 1 {
		return &DomainError{Param: "emissivity", Value: e, Reason: "must be in (0, 1]"}
	}
	return nil
}

func broadcastLen(nt, ne int) (int, error) {
	switch {
	case nt == 0 || ne == 0:
		return 0, ErrEmptyInput
	case nt == ne:
		return nt, nil
	case nt == 1:
		return ne, nil
	case ne == 1:
		return nt, nil
	}
	return 0, fmt.Errorf("%w: %d temperatures, %d emissivities", ErrShapeMismatch, nt, ne)
}
