package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/forager/internal/db"
	"github.com/banshee-data/forager/internal/monitoring"
	"github.com/banshee-data/forager/internal/rover"
	"github.com/banshee-data/forager/internal/serialmux"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestLoadParams(t *testing.T) {
	p, err := loadParams("")
	require.NoError(t, err)
	assert.Equal(t, rover.DefaultParams().TickInterval, p.TickInterval)

	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tick_interval":"50ms","search_velocity":0.3}`), 0644))
	p, err = loadParams(path)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, p.TickInterval)
	assert.InDelta(t, 0.3, p.SearchVelocity, 1e-12)

	_, err = loadParams(filepath.Join(t.TempDir(), "tuning.yaml"))
	assert.Error(t, err)
}

func TestAppEndToEnd(t *testing.T) {
	dir := t.TempDir()
	port := serialmux.NewTestableSerialPort()
	port.BlockReads = true
	mux := serialmux.NewSerialMux(port)

	a, err := newApp(options{
		dbPath:  filepath.Join(dir, "journal.db"),
		plotDir: filepath.Join(dir, "plots"),
		name:    "rover-1",
		queue:   16,
	}, mux)
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	// Manual mode first: the controller reports WAITING.
	require.Eventually(t, func() bool {
		return strings.Contains(port.WrittenData(), `{"t":"state","name":"WAITING"}`)
	}, 5*time.Second, 20*time.Millisecond)

	port.AddReadData([]byte("{\"t\":\"odom\",\"x\":0,\"y\":0,\"theta\":0}\n"))
	port.AddReadData([]byte("garbage\n"))
	port.AddReadData([]byte("{\"t\":\"mode\",\"mode\":2}\n"))

	// After the start delay the state machine runs and reports SEEK_GOAL.
	require.Eventually(t, func() bool {
		return strings.Contains(port.WrittenData(), `{"t":"state","name":"SEEK_GOAL"}`)
	}, 5*time.Second, 20*time.Millisecond)

	assert.Greater(t, a.loop.Stats().Events, uint64(0))
	stats := a.stats()
	assert.Contains(t, stats, "serial")
	assert.Contains(t, stats, "journal")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	database, err := db.OpenDB(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	defer database.Close()
	runs, err := database.Runs(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "rover-1", runs[0].Name)
	assert.NotNil(t, runs[0].EndedAt)

	transitions, err := database.Transitions(runs[0].RunID)
	require.NoError(t, err)
	require.NotEmpty(t, transitions)
	assert.Equal(t, "SEEK_GOAL", transitions[0].State)

	plots, err := filepath.Glob(filepath.Join(dir, "plots", "rover-1-*.png"))
	require.NoError(t, err)
	assert.Len(t, plots, 1)
}
