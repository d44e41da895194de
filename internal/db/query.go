package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Run is one autonomous activation.
type Run struct {
	RunID     string     `json:"run_id"`
	Name      string     `json:"name"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Delivered int        `json:"delivered"`
}

type Transition struct {
	At    time.Time `json:"at"`
	State string    `json:"state"`
}

type HomeSample struct {
	At      time.Time `json:"at"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Samples int       `json:"samples"`
}

type TrailPoint struct {
	At       time.Time `json:"at"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Heading  float64   `json:"heading"`
	GoalX    float64   `json:"goal_x"`
	GoalY    float64   `json:"goal_y"`
	State    string    `json:"state"`
	Protocol string    `json:"protocol"`
	Carrying bool      `json:"carrying"`
}

// Runs lists the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, name, started_at, ended_at, delivered
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&r.RunID, &r.Name, &started, &ended, &r.Delivered); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			r.EndedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Transitions returns a run's state changes in order.
func (db *DB) Transitions(runID string) ([]Transition, error) {
	rows, err := db.Query(`SELECT at, state FROM state_transitions WHERE run_id = ? ORDER BY at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			t  Transition
			at int64
		)
		if err := rows.Scan(&at, &t.State); err != nil {
			return nil, err
		}
		t.At = time.Unix(0, at).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// InfoLog returns a run's operator messages in order.
func (db *DB) InfoLog(runID string) ([]string, error) {
	rows, err := db.Query(`SELECT msg FROM info_log WHERE run_id = ? ORDER BY at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query info log: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// HomeSamples returns the home estimate each time the sample count changed.
func (db *DB) HomeSamples(runID string) ([]HomeSample, error) {
	rows, err := db.Query(`SELECT at, x, y, samples FROM home_samples WHERE run_id = ? ORDER BY at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query home samples: %w", err)
	}
	defer rows.Close()

	var out []HomeSample
	for rows.Next() {
		var (
			h  HomeSample
			at int64
		)
		if err := rows.Scan(&at, &h.X, &h.Y, &h.Samples); err != nil {
			return nil, err
		}
		h.At = time.Unix(0, at).UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// Trail returns a run's sampled poses in order.
func (db *DB) Trail(runID string) ([]TrailPoint, error) {
	rows, err := db.Query(`SELECT at, x, y, heading, goal_x, goal_y, state, protocol, carrying
		FROM trail WHERE run_id = ? ORDER BY at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trail: %w", err)
	}
	defer rows.Close()

	var out []TrailPoint
	for rows.Next() {
		var (
			p  TrailPoint
			at int64
		)
		if err := rows.Scan(&at, &p.X, &p.Y, &p.Heading, &p.GoalX, &p.GoalY, &p.State, &p.Protocol, &p.Carrying); err != nil {
			return nil, err
		}
		p.At = time.Unix(0, at).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
