package charts

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/thermalsim/internal/db"
	"github.com/banshee-data/thermalsim/internal/fsutil"
	"github.com/banshee-data/thermalsim/internal/thermal"
)

// AssetsHost serves the echarts javascript. Override for offline use.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// CountsChart is a bar chart of digital counts by label.
func CountsChart(table thermal.CountTable, subtitle string) *charts.Bar {
	x := make([]string, len(table))
	y := make([]opts.BarData, len(table))
	for i, e := range table {
		x[i] = e.Label
		y[i] = opts.BarData{Name: e.Label, Value: e.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Digital counts", Width: "100%", Height: "600px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Simulated digital counts", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: thermal.MaxCount, Name: "count"}),
	)
	bar.SetXAxis(x).
		AddSeries("count", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// TrackChart plots the target's pixel position over a run. Image rows grow
// downwards, so rows are plotted as height-row to keep the picture upright.
func TrackChart(frames []db.CaptureFrame, width, height int, runID string) *charts.Scatter {
	pts := make([]opts.ScatterData, 0, len(frames))
	for _, f := range frames {
		if !f.InFrame || math.IsNaN(f.PixelCol) || math.IsNaN(f.PixelRow) {
			continue
		}
		pts = append(pts, opts.ScatterData{Value: []interface{}{f.PixelCol, float64(height) - f.PixelRow, f.Index}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Target track", Theme: "dark", Width: "900px", Height: "700px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Target pixel track", Subtitle: fmt.Sprintf("run=%s frames=%d visible=%d", runID, len(frames), len(pts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: width, Name: "column", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: height, Name: "rows from bottom", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Dimension:  "2",
			Min:        0,
			Max:        float32(max(len(frames)-1, 1)),
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("target", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	return scatter
}

// Renderer is any go-echarts chart or page.
type Renderer interface {
	Render(w io.Writer) error
}

// WriteHTML renders r to path on fsys.
func WriteHTML(fsys fsutil.FileSystem, path string, r Renderer) error {
	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return fsys.WriteFile(path, buf.Bytes(), 0644)
}
