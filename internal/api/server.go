// Package api serves the capture store and the current digital-count table
// over HTTP as JSON and as echarts pages.
package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/thermalsim/internal/charts"
	"github.com/banshee-data/thermalsim/internal/db"
	"github.com/banshee-data/thermalsim/internal/httputil"
	"github.com/banshee-data/thermalsim/internal/monitoring"
	"github.com/banshee-data/thermalsim/internal/thermal"
	"github.com/banshee-data/thermalsim/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// CountsFunc evaluates the active thermal table.
type CountsFunc func() ([]thermal.ThermalEntry, thermal.CountTable, error)

type Server struct {
	db     *db.DB
	counts CountsFunc
	units  string

	// Image size used to scale track charts.
	ImageWidth  int
	ImageHeight int
}

func NewServer(store *db.DB, counts CountsFunc, units string) *Server {
	return &Server{
		db:          store,
		counts:      counts,
		units:       units,
		ImageWidth:  640,
		ImageHeight: 480,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/counts", s.showCounts)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.showRun)
	mux.HandleFunc("/api/runs/{id}/frames", s.listFrames)
	mux.HandleFunc("/charts/counts", s.countsChart)
	mux.HandleFunc("/charts/track/{id}", s.trackChart)
	return mux
}

// CountAPI is one row of the digital-count table as served.
type CountAPI struct {
	Label       string  `json:"label"`
	Temperature float64 `json:"temperature"`
	Unit        string  `json:"unit"`
	Emissivity  float64 `json:"emissivity"`
	Radiance    float64 `json:"radiance"`
	Count       int     `json:"count"`
}

// FrameAPI is a stored frame with NaN fields turned into nulls.
type FrameAPI struct {
	Index      int       `json:"index"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	CapturedAt time.Time `json:"captured_at"`
	TargetX    *float64  `json:"target_x"`
	TargetY    *float64  `json:"target_y"`
	TargetZ    *float64  `json:"target_z"`
	CameraX    float64   `json:"camera_x"`
	CameraY    float64   `json:"camera_y"`
	CameraZ    float64   `json:"camera_z"`
	PixelCol   *float64  `json:"pixel_col"`
	PixelRow   *float64  `json:"pixel_row"`
	InFrame    bool      `json:"in_frame"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FrameToAPI converts a stored frame for JSON encoding.
func FrameToAPI(f db.CaptureFrame) FrameAPI {
	return FrameAPI{
		Index:      f.Index,
		ElapsedMS:  f.Elapsed.Milliseconds(),
		CapturedAt: f.CapturedAt,
		TargetX:    finite(f.TargetX),
		TargetY:    finite(f.TargetY),
		TargetZ:    finite(f.TargetZ),
		CameraX:    f.CameraX,
		CameraY:    f.CameraY,
		CameraZ:    f.CameraZ,
		PixelCol:   finite(f.PixelCol),
		PixelRow:   finite(f.PixelRow),
		InFrame:    f.InFrame,
	}
}

func (s *Server) showCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	unit := s.units
	if u := r.URL.Query().Get("unit"); u != "" {
		norm, ok := units.Normalize(u)
		if !ok {
			httputil.BadRequest(w, fmt.Sprintf("Invalid 'unit' parameter, expected one of %s", units.GetValidUnitsString()))
			return
		}
		unit = norm
	}

	entries, table, err := s.counts()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to compute counts: %v", err))
		return
	}
	out := make([]CountAPI, len(table))
	for i, e := range table {
		out[i] = CountAPI{
			Label:       e.Label,
			Temperature: units.FromKelvin(entries[i].TemperatureK, unit),
			Unit:        unit,
			Emissivity:  entries[i].Emissivity,
			Radiance:    e.Radiance,
			Count:       e.Count,
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.CaptureRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, ok := s.lookupRun(w, r.PathValue("id"))
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) listFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, ok := s.lookupRun(w, r.PathValue("id"))
	if !ok {
		return
	}
	frames, err := s.db.Frames(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve frames: %v", err))
		return
	}
	out := make([]FrameAPI, len(frames))
	for i, f := range frames {
		out[i] = FrameToAPI(f)
	}
	httputil.WriteJSONOK(w, out)
}

// lookupRun writes the error response itself when ok is false.
func (s *Server) lookupRun(w http.ResponseWriter, id string) (run *db.CaptureRun, ok bool) {
	run, err := s.db.GetRun(id)
	switch {
	case errors.Is(err, db.ErrRunNotFound):
		httputil.NotFound(w, fmt.Sprintf("run %q not found", id))
		return nil, false
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve run: %v", err))
		return nil, false
	}
	return run, true
}

func (s *Server) countsChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	_, table, err := s.counts()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to compute counts: %v", err))
		return
	}
	httputil.WriteHTML(w, charts.CountsChart(table, ""))
}

func (s *Server) trackChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, ok := s.lookupRun(w, r.PathValue("id"))
	if !ok {
		return
	}
	frames, err := s.db.Frames(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve frames: %v", err))
		return
	}
	httputil.WriteHTML(w, charts.TrackChart(frames, s.ImageWidth, s.ImageHeight, run.RunID))
}
