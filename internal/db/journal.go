package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/forager/internal/msgs"
	"github.com/banshee-data/forager/internal/rover"
	"github.com/banshee-data/forager/internal/timeutil"
)

// DefaultJournalBuffer is the number of pending records the journal holds
// before it starts dropping.
const DefaultJournalBuffer = 1024

// stateWaiting matches the name the controller publishes while the operator
// holds the drive train; it closes the current run.
const stateWaiting = "WAITING"

type recordKind int

const (
	recRunStart recordKind = iota
	recRunEnd
	recTransition
	recInfo
	recHomeSample
	recTrail
	recDelivered
)

type record struct {
	kind  recordKind
	runID string
	at    time.Time
	text  string
	pose  rover.Snapshot
	count int
}

// JournalStats counts journal activity.
type JournalStats struct {
	Written uint64
	Dropped uint64
	Failed  uint64
}

// Journal records runs into the database. It implements rover.Outputs
// (state and info lines) and rover.Observer (pose trail, home samples and
// deliveries). Records are queued and written by Run; a full queue drops
// records instead of blocking the control loop.
type Journal struct {
	db         *DB
	name       string
	clock      timeutil.Clock
	trailEvery time.Duration
	records    chan record

	mu          sync.Mutex
	runID       string
	lastTrail   time.Time
	homeSamples int
	delivered   int

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewJournal creates a journal for the robot called name. trailEvery
// throttles pose trail rows; zero records every observed tick.
func NewJournal(db *DB, name string, clock timeutil.Clock, trailEvery time.Duration, buffer int) *Journal {
	if buffer < 1 {
		buffer = DefaultJournalBuffer
	}
	return &Journal{
		db:         db,
		name:       name,
		clock:      clock,
		trailEvery: trailEvery,
		records:    make(chan record, buffer),
	}
}

// RunID is the current run, empty between runs.
func (j *Journal) RunID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runID
}

func (j *Journal) Stats() JournalStats {
	return JournalStats{
		Written: j.written.Load(),
		Dropped: j.dropped.Load(),
		Failed:  j.failed.Load(),
	}
}

func (j *Journal) enqueue(r record) {
	select {
	case j.records <- r:
	default:
		if n := j.dropped.Add(1); n == 1 || n%100 == 0 {
			logf("record queue full, %d records dropped", n)
		}
	}
}

// beginRun must be called with j.mu held.
func (j *Journal) beginRun(now time.Time) {
	j.runID = uuid.NewString()
	j.lastTrail = time.Time{}
	j.homeSamples = 0
	j.delivered = 0
	j.enqueue(record{kind: recRunStart, runID: j.runID, at: now, text: j.name})
	logf("run %s started", j.runID)
}

// endRun must be called with j.mu held.
func (j *Journal) endRun(now time.Time) {
	if j.runID == "" {
		return
	}
	j.enqueue(record{kind: recRunEnd, runID: j.runID, at: now, count: j.delivered})
	logf("run %s ended, %d delivered", j.runID, j.delivered)
	j.runID = ""
}

func (j *Journal) Drive(msgs.DriveCommand) {}
func (j *Journal) FingerAngle(float64)     {}
func (j *Journal) WristAngle(float64)      {}

// State records a transition. The first non-waiting state opens a run and
// WAITING closes it.
func (j *Journal) State(name string) {
	now := j.clock.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	if name == stateWaiting {
		j.endRun(now)
		return
	}
	if j.runID == "" {
		j.beginRun(now)
	}
	j.enqueue(record{kind: recTransition, runID: j.runID, at: now, text: name})
}

// Info records an operator message against the current run. Messages
// outside a run are not journalled.
func (j *Journal) Info(msg string) {
	now := j.clock.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.runID == "" {
		return
	}
	j.enqueue(record{kind: recInfo, runID: j.runID, at: now, text: msg})
}

// Observe samples the snapshot into the trail and notes home estimate and
// delivery changes.
func (j *Journal) Observe(s rover.Snapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.runID == "" {
		return
	}
	if s.HomeSamples != j.homeSamples {
		j.homeSamples = s.HomeSamples
		j.enqueue(record{kind: recHomeSample, runID: j.runID, at: s.Time, pose: s, count: s.HomeSamples})
	}
	if s.Delivered != j.delivered {
		j.delivered = s.Delivered
		j.enqueue(record{kind: recDelivered, runID: j.runID, at: s.Time, count: s.Delivered})
	}
	if !j.lastTrail.IsZero() && s.Time.Sub(j.lastTrail) < j.trailEvery {
		return
	}
	j.lastTrail = s.Time
	j.enqueue(record{kind: recTrail, runID: j.runID, at: s.Time, pose: s})
}

// maxBatch bounds the records written per transaction.
const maxBatch = 256

// Run writes queued records until ctx is done, then drains the queue and
// closes any open run.
func (j *Journal) Run(ctx context.Context) error {
	logf("journal writing to %s", j.db.Path())
	batch := make([]record, 0, maxBatch)
	for {
		select {
		case <-ctx.Done():
			j.mu.Lock()
			j.endRun(j.clock.Now())
			j.mu.Unlock()
			return j.drain(batch[:0])
		case r := <-j.records:
			batch = append(batch[:0], r)
			batch = j.collect(batch)
			j.write(batch)
		}
	}
}

// Flush writes everything queued so far. It is intended for callers that do
// not run the writer goroutine.
func (j *Journal) Flush() error {
	return j.drain(make([]record, 0, maxBatch))
}

func (j *Journal) drain(batch []record) error {
	for {
		batch = j.collect(batch[:0])
		if len(batch) == 0 {
			return nil
		}
		if err := j.write(batch); err != nil {
			return err
		}
	}
}

func (j *Journal) collect(batch []record) []record {
	for len(batch) < maxBatch {
		select {
		case r := <-j.records:
			batch = append(batch, r)
		default:
			return batch
		}
	}
	return batch
}

func (j *Journal) write(batch []record) error {
	if err := j.writeTx(batch); err != nil {
		j.failed.Add(uint64(len(batch)))
		logf("failed to write %d records: %v", len(batch), err)
		return err
	}
	j.written.Add(uint64(len(batch)))
	return nil
}

func (j *Journal) writeTx(batch []record) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, r := range batch {
		if err := insertRecord(tx, r); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRecord(tx *sql.Tx, r record) error {
	at := r.at.UnixNano()
	var err error
	switch r.kind {
	case recRunStart:
		_, err = tx.Exec(`INSERT INTO runs (run_id, name, started_at) VALUES (?, ?, ?)`, r.runID, r.text, at)
	case recRunEnd:
		_, err = tx.Exec(`UPDATE runs SET ended_at = ?, delivered = ? WHERE run_id = ?`, at, r.count, r.runID)
	case recDelivered:
		_, err = tx.Exec(`UPDATE runs SET delivered = ? WHERE run_id = ?`, r.count, r.runID)
	case recTransition:
		_, err = tx.Exec(`INSERT INTO state_transitions (run_id, at, state) VALUES (?, ?, ?)`, r.runID, at, r.text)
	case recInfo:
		_, err = tx.Exec(`INSERT INTO info_log (run_id, at, msg) VALUES (?, ?, ?)`, r.runID, at, r.text)
	case recHomeSample:
		_, err = tx.Exec(`INSERT INTO home_samples (run_id, at, x, y, samples) VALUES (?, ?, ?, ?, ?)`,
			r.runID, at, r.pose.Home.X, r.pose.Home.Y, r.count)
	case recTrail:
		s := r.pose
		_, err = tx.Exec(`INSERT INTO trail (run_id, at, x, y, heading, goal_x, goal_y, state, protocol, carrying)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.runID, at, s.Pose.X, s.Pose.Y, s.Pose.Heading, s.Goal.X, s.Goal.Y, s.State, s.Protocol, s.Carrying)
	default:
		return fmt.Errorf("unknown record kind %d", r.kind)
	}
	if err != nil {
		return fmt.Errorf("record %d for run %s: %w", r.kind, r.runID, err)
	}
	return nil
}
