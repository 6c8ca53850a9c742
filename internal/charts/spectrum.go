// Package charts renders radiance spectra as PNG line plots and digital
// counts and tracking runs as go-echarts HTML pages.
package charts

import (
	"bytes"
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/thermalsim/internal/fsutil"
	"github.com/banshee-data/thermalsim/internal/thermal"
)

// SpectrumPlot draws one spectral radiance curve per entry over the
// model's wavelength band.
func SpectrumPlot(m *thermal.Model, entries []thermal.ThermalEntry) (*plot.Plot, error) {
	if len(entries) == 0 {
		return nil, thermal.ErrEmptyInput
	}

	p := plot.New()
	p.Title.Text = "Spectral radiance, 8-14 µm"
	p.X.Label.Text = "Wavelength (µm)"
	p.Y.Label.Text = "Radiance (W m⁻² sr⁻¹ µm⁻¹)"

	colors := generateColors(len(entries))
	for i, e := range entries {
		sp, total, err := m.Compute(e.TemperatureK, e.Emissivity)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Label, err)
		}
		pts := make(plotter.XYs, len(sp.Wavelengths))
		for j, w := range sp.Wavelengths {
			pts[j] = plotter.XY{X: w, Y: sp.Values[j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Label, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (%.0f K, L=%.2f)", e.Label, e.TemperatureK, total), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.Add(plotter.NewGrid())
	return p, nil
}

// WriteSpectrumPNG renders SpectrumPlot to path on fsys.
func WriteSpectrumPNG(fsys fsutil.FileSystem, path string, m *thermal.Model, entries []thermal.ThermalEntry) error {
	p, err := SpectrumPlot(m, entries)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to render spectrum: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	return fsys.WriteFile(path, buf.Bytes(), 0644)
}

// generateColors creates a palette of distinct colors for spectrum lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
