package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/thermalsim/internal/tracking"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("capture run not found")

// CaptureRun is a stored tracking run.
type CaptureRun struct {
	RunID      string        `json:"run_id"`
	Target     string        `json:"target"`
	Camera     string        `json:"camera"`
	Duration   time.Duration `json:"duration_ns"`
	StartedAt  time.Time     `json:"started_at"`
	StoppedAt  *time.Time    `json:"stopped_at,omitempty"`
	Frames     int           `json:"frames"`
	StopReason string        `json:"stop_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// CaptureFrame is one stored tracking frame. Target fields are NaN when
// the target was not found; pixel fields are NaN when it was not in frame.
type CaptureFrame struct {
	RunID      string
	Index      int
	Elapsed    time.Duration
	CapturedAt time.Time
	TargetX    float64
	TargetY    float64
	TargetZ    float64
	CameraX    float64
	CameraY    float64
	CameraZ    float64
	PixelCol   float64
	PixelRow   float64
	InFrame    bool
}

// CreateRun stores a newly started run.
func (db *DB) CreateRun(s tracking.Summary) error {
	if s.RunID == "" {
		return fmt.Errorf("create run: empty run id")
	}
	_, err := db.Exec(`INSERT INTO capture_runs (run_id, target, camera, duration_ns, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.RunID, s.Target, s.Camera, int64(s.Duration), s.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records how a run ended.
func (db *DB) FinishRun(s tracking.Summary) error {
	var errText sql.NullString
	if s.Err != nil {
		errText = sql.NullString{String: s.Err.Error(), Valid: true}
	}
	res, err := db.Exec(`UPDATE capture_runs
		SET stopped_at = ?, frames = ?, stop_reason = ?, error = ?
		WHERE run_id = ?`,
		s.StoppedAt.UnixNano(), s.Frames, string(s.Reason), errText, s.RunID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", s.RunID, ErrRunNotFound)
	}
	return nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// FrameRecord converts a tracking frame into its stored form.
func FrameRecord(f tracking.Frame) CaptureFrame {
	col, row := math.NaN(), math.NaN()
	if f.Visible {
		col, row = f.Pixel.Col, f.Pixel.Row
	}
	return CaptureFrame{
		RunID:      f.RunID,
		Index:      f.Index,
		Elapsed:    f.Elapsed,
		CapturedAt: f.CapturedAt,
		TargetX:    f.Target.Position.X,
		TargetY:    f.Target.Position.Y,
		TargetZ:    f.Target.Position.Z,
		CameraX:    f.Camera.Position.X,
		CameraY:    f.Camera.Position.Y,
		CameraZ:    f.Camera.Position.Z,
		PixelCol:   col,
		PixelRow:   row,
		InFrame:    f.Visible,
	}
}

// RecordFrame stores one tracking frame.
func (db *DB) RecordFrame(f tracking.Frame) error {
	r := FrameRecord(f)
	_, err := db.Exec(`INSERT INTO capture_frames
		(run_id, frame_index, elapsed_ns, captured_at,
		 target_x, target_y, target_z, camera_x, camera_y, camera_z,
		 pixel_col, pixel_row, in_frame)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Index, int64(r.Elapsed), r.CapturedAt.UnixNano(),
		nullable(r.TargetX), nullable(r.TargetY), nullable(r.TargetZ),
		r.CameraX, r.CameraY, r.CameraZ,
		nullable(r.PixelCol), nullable(r.PixelRow), r.InFrame)
	if err != nil {
		return fmt.Errorf("record frame %d of %s: %w", r.Index, r.RunID, err)
	}
	return nil
}

const runColumns = `run_id, target, camera, duration_ns, started_at, stopped_at, frames, stop_reason, error`

func scanRun(scan func(...any) error) (CaptureRun, error) {
	var r CaptureRun
	var duration, started int64
	var stopped sql.NullInt64
	var reason, errText sql.NullString
	if err := scan(&r.RunID, &r.Target, &r.Camera, &duration, &started, &stopped, &r.Frames, &reason, &errText); err != nil {
		return r, err
	}
	r.Duration = time.Duration(duration)
	r.StartedAt = time.Unix(0, started).UTC()
	if stopped.Valid {
		t := time.Unix(0, stopped.Int64).UTC()
		r.StoppedAt = &t
	}
	r.StopReason = reason.String
	r.Error = errText.String
	return r, nil
}

// GetRun returns one run.
func (db *DB) GetRun(runID string) (*CaptureRun, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM capture_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (db *DB) ListRuns(limit int) ([]CaptureRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM capture_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaptureRun
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Frames returns the stored frames of a run in capture order.
func (db *DB) Frames(runID string) ([]CaptureFrame, error) {
	rows, err := db.Query(`SELECT run_id, frame_index, elapsed_ns, captured_at,
		target_x, target_y, target_z, camera_x, camera_y, camera_z,
		pixel_col, pixel_row, in_frame
		FROM capture_frames WHERE run_id = ? ORDER BY frame_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaptureFrame
	for rows.Next() {
		var f CaptureFrame
		var elapsed, captured int64
		var tx, ty, tz, col, row sql.NullFloat64
		if err := rows.Scan(&f.RunID, &f.Index, &elapsed, &captured,
			&tx, &ty, &tz, &f.CameraX, &f.CameraY, &f.CameraZ,
			&col, &row, &f.InFrame); err != nil {
			return nil, err
		}
		f.Elapsed = time.Duration(elapsed)
		f.CapturedAt = time.Unix(0, captured).UTC()
		f.TargetX, f.TargetY, f.TargetZ = orNaN(tx), orNaN(ty), orNaN(tz)
		f.PixelCol, f.PixelRow = orNaN(col), orNaN(row)
		out = append(out, f)
	}
	return out, rows.Err()
}
