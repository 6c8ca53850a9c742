package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/thermalsim/internal/db"
	"github.com/banshee-data/thermalsim/internal/geom"
	"github.com/banshee-data/thermalsim/internal/monitoring"
	"github.com/banshee-data/thermalsim/internal/projection"
	"github.com/banshee-data/thermalsim/internal/testutil"
	"github.com/banshee-data/thermalsim/internal/thermal"
	"github.com/banshee-data/thermalsim/internal/tracking"
	"github.com/banshee-data/thermalsim/internal/units"
)

var testEntries = []thermal.ThermalEntry{
	{Label: "soil", TemperatureK: 288, Emissivity: 0.914},
	{Label: "human", TemperatureK: 292, Emissivity: 0.985},
}

func presetCounts() ([]thermal.ThermalEntry, thermal.CountTable, error) {
	table, err := thermal.ToDigitalCounts(testEntries, thermal.DefaultStep, nil)
	return testEntries, table, err
}

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	testutil.CaptureLogs(t)
	store, err := db.NewDB(testutil.TempDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewServer(store, presetCounts, units.Kelvin), store
}

func seedRun(t *testing.T, store *db.DB) {
	t.Helper()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateRun(tracking.Summary{
		RunID: "run-1", Target: "Poacher_1", Camera: "0", Duration: 2 * time.Second, StartedAt: start,
	}))
	require.NoError(t, store.RecordFrame(tracking.Frame{
		RunID:      "run-1",
		CapturedAt: start,
		Target:     geom.Pose{Position: geom.Vector3{X: 1, Y: 2}},
		Pixel:      projection.Pixel{Col: 320, Row: 240},
		Visible:    true,
	}))
	require.NoError(t, store.RecordFrame(tracking.Frame{
		RunID:      "run-1",
		Index:      1,
		Elapsed:    time.Second,
		CapturedAt: start.Add(time.Second),
		Target:     geom.NaNPose(),
	}))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestShowCounts(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	rec := get(t, mux, "/api/counts")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var rows []CountAPI
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "soil", rows[0].Label)
	assert.Equal(t, 288.0, rows[0].Temperature)
	assert.Equal(t, units.Kelvin, rows[0].Unit)
	assert.Equal(t, thermal.MaxCount, rows[1].Count)
	assert.Less(t, rows[0].Count, rows[1].Count)

	rec = get(t, mux, "/api/counts?unit=c")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	testutil.AssertClose(t, rows[0].Temperature, 14.85, 1e-9)
	assert.Equal(t, units.Celsius, rows[0].Unit)

	rec = get(t, mux, "/api/counts?unit=rankine")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/counts", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestShowCounts_ModelError(t *testing.T) {
	server, _ := setupTestServer(t)
	server.counts = func() ([]thermal.ThermalEntry, thermal.CountTable, error) {
		return nil, nil, errors.New("bad response curve")
	}
	rec := get(t, server.ServeMux(), "/api/counts")
	testutil.AssertStatusCode(t, rec.Code, http.StatusInternalServerError)
	assert.Contains(t, rec.Body.String(), "bad response curve")
}

func TestRuns(t *testing.T) {
	server, store := setupTestServer(t)
	mux := server.ServeMux()

	rec := get(t, mux, "/api/runs")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `[]`, rec.Body.String())

	seedRun(t, store)

	rec = get(t, mux, "/api/runs?limit=5")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var runs []db.CaptureRun
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "Poacher_1", runs[0].Target)

	rec = get(t, mux, "/api/runs?limit=0")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = get(t, mux, "/api/runs/run-1")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)

	rec = get(t, mux, "/api/runs/ghost")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestListFrames_NaNBecomesNull(t *testing.T) {
	server, store := setupTestServer(t)
	seedRun(t, store)

	rec := get(t, server.ServeMux(), "/api/runs/run-1/frames")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var frames []FrameAPI
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&frames))
	require.Len(t, frames, 2)

	require.NotNil(t, frames[0].PixelCol)
	assert.Equal(t, 320.0, *frames[0].PixelCol)
	assert.True(t, frames[0].InFrame)

	assert.Nil(t, frames[1].TargetX)
	assert.Nil(t, frames[1].PixelCol)
	assert.Equal(t, int64(1000), frames[1].ElapsedMS)
}

func TestCharts(t *testing.T) {
	server, store := setupTestServer(t)
	seedRun(t, store)
	mux := server.ServeMux()

	rec := get(t, mux, "/charts/counts")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "soil")

	rec = get(t, mux, "/charts/track/run-1")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "run-1")

	rec = get(t, mux, "/charts/track/ghost")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestLoggingMiddleware(t *testing.T) {
	var logs strings.Builder
	monitoring.SetLogger(func(format string, v ...interface{}) {
		fmt.Fprintf(&logs, format+"\n", v...)
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := get(t, h, "/api/runs?limit=1")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, logs.String(), "/api/runs?limit=1")
	assert.Contains(t, logs.String(), "418")
}
