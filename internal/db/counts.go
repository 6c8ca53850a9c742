package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/thermalsim/internal/segmentation"
	"github.com/banshee-data/thermalsim/internal/thermal"
)

// CountRecord is one stored digital count.
type CountRecord struct {
	BatchID      string
	Label        string
	TemperatureK float64
	Emissivity   float64
	Radiance     float64
	Count        int
	CreatedAt    time.Time
}

// RecordCounts stores one digital-count batch. entries and table must be
// parallel, as returned by thermal.Model.DigitalCounts.
func (db *DB) RecordCounts(batchID string, entries []thermal.ThermalEntry, table thermal.CountTable, at time.Time) error {
	if len(entries) != len(table) {
		return fmt.Errorf("record counts: %d entries for %d counts", len(entries), len(table))
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO digital_counts
		(batch_id, position, label, temperature_k, emissivity, radiance, count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range table {
		e := entries[i]
		if e.Label != c.Label {
			return fmt.Errorf("record counts: row %d label %q does not match %q", i, c.Label, e.Label)
		}
		if _, err := stmt.Exec(batchID, i, c.Label, e.TemperatureK, e.Emissivity, c.Radiance, c.Count, at.UnixNano()); err != nil {
			return fmt.Errorf("record counts: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logf("recorded %d digital counts in batch %s", len(table), batchID)
	return nil
}

// Counts returns a stored batch in its original order.
func (db *DB) Counts(batchID string) ([]CountRecord, error) {
	rows, err := db.Query(`SELECT batch_id, label, temperature_k, emissivity, radiance, count, created_at
		FROM digital_counts WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CountRecord
	for rows.Next() {
		var r CountRecord
		var created int64
		if err := rows.Scan(&r.BatchID, &r.Label, &r.TemperatureK, &r.Emissivity, &r.Radiance, &r.Count, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// AssignmentRecord is one stored segmentation outcome.
type AssignmentRecord struct {
	BatchID  string
	Pattern  string
	Label    string
	ObjectID int
	Status   string
	Warning  string
}

// RecordAssignments stores a segmentation report under batchID.
func (db *DB) RecordAssignments(batchID string, report segmentation.Report) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	warnings := make(map[string]string, len(report.Warnings))
	for _, w := range report.Warnings {
		warnings[w.Pattern] = w.Error()
	}

	for i, o := range report.Outcomes {
		var warning sql.NullString
		if msg, ok := warnings[o.Pattern]; ok && o.Status != segmentation.StatusAssigned {
			warning = sql.NullString{String: msg, Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO segmentation_assignments
			(batch_id, position, pattern, label, object_id, status, warning)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			batchID, i, o.Pattern, o.Label, o.ObjectID, string(o.Status), warning); err != nil {
			return fmt.Errorf("record assignments: %w", err)
		}
	}
	return tx.Commit()
}

// Assignments returns a stored segmentation report in its original order.
func (db *DB) Assignments(batchID string) ([]AssignmentRecord, error) {
	rows, err := db.Query(`SELECT batch_id, pattern, label, object_id, status, warning
		FROM segmentation_assignments WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssignmentRecord
	for rows.Next() {
		var r AssignmentRecord
		var warning sql.NullString
		if err := rows.Scan(&r.BatchID, &r.Pattern, &r.Label, &r.ObjectID, &r.Status, &warning); err != nil {
			return nil, err
		}
		r.Warning = warning.String
		out = append(out, r)
	}
	return out, rows.Err()
}
