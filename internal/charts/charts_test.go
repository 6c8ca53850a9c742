package charts

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/thermalsim/internal/db"
	"github.com/banshee-data/thermalsim/internal/fsutil"
	"github.com/banshee-data/thermalsim/internal/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEntries = []thermal.ThermalEntry{
	{Label: "soil", TemperatureK: 278, Emissivity: 0.914},
	{Label: "human", TemperatureK: 292, Emissivity: 0.985},
}

func TestWriteSpectrumPNG(t *testing.T) {
	m, err := thermal.NewModel(0.05, nil)
	require.NoError(t, err)
	fsys := fsutil.NewMemoryFileSystem()

	require.NoError(t, WriteSpectrumPNG(fsys, "out/spectrum.png", m, testEntries))

	data, err := fsys.ReadFile("out/spectrum.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "not a PNG")
}

func TestSpectrumPlotErrors(t *testing.T) {
	m, err := thermal.NewModel(0.05, nil)
	require.NoError(t, err)

	_, err = SpectrumPlot(m, nil)
	assert.ErrorIs(t, err, thermal.ErrEmptyInput)

	_, err = SpectrumPlot(m, []thermal.ThermalEntry{{Label: "bad", TemperatureK: -1, Emissivity: 1}})
	var de *thermal.DomainError
	assert.ErrorAs(t, err, &de)
}

func TestCountsChart(t *testing.T) {
	table, err := thermal.ToDigitalCounts(testEntries, thermal.DefaultStep, nil)
	require.NoError(t, err)
	fsys := fsutil.NewMemoryFileSystem()

	require.NoError(t, WriteHTML(fsys, "counts.html", CountsChart(table, "winter")))
	data, err := fsys.ReadFile("counts.html")
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "Simulated digital counts")
	assert.Contains(t, html, "human")
}

func TestTrackChart(t *testing.T) {
	frames := []db.CaptureFrame{
		{Index: 0, PixelCol: 320, PixelRow: 240, InFrame: true},
		{Index: 1, PixelCol: math.NaN(), PixelRow: math.NaN()},
		{Index: 2, PixelCol: 330, PixelRow: 250, InFrame: true},
	}
	var buf bytes.Buffer
	require.NoError(t, TrackChart(frames, 640, 480, "run-1").Render(&buf))
	assert.Contains(t, buf.String(), "frames=3 visible=2")
	assert.False(t, strings.Contains(buf.String(), "NaN"))
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	c := generateColors(3)
	require.Len(t, c, 3)
	assert.NotEqual(t, c[0], c[1])
}
