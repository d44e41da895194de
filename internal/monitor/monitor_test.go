package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/monitoring"
	"github.com/banshee-data/forager/internal/rover"
)

func init() {
	monitoring.SetLogger(nil)
}

func snap(x, y float64, carrying bool, samples int) rover.Snapshot {
	return rover.Snapshot{
		Time:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		State:       "DRIVE_TO_GOAL",
		Protocol:    "none",
		Pose:        geom.Pose2D{X: x, Y: y},
		Goal:        geom.Pose2D{X: 2, Y: 2},
		Home:        geom.Pose2D{X: 0.1 * float64(samples)},
		HomeFound:   samples > 0,
		HomeSamples: samples,
		Carrying:    carrying,
	}
}

func TestTrackerMinStep(t *testing.T) {
	tr := NewTracker(0, 0.1)
	tr.Observe(snap(0, 0, false, 0))
	tr.Observe(snap(0.05, 0, false, 0))
	tr.Observe(snap(0.1, 0, false, 0))
	tr.Observe(snap(0.15, 0, false, 0))

	path := tr.Path()
	require.Len(t, path, 2)
	assert.InDelta(t, 0.1, path[1].X, 1e-12)
	assert.Equal(t, uint64(4), tr.Observed())

	latest, ok := tr.Latest()
	require.True(t, ok)
	assert.InDelta(t, 0.15, latest.Pose.X, 1e-12)
}

func TestTrackerDecimatesWhenFull(t *testing.T) {
	tr := NewTracker(4, 0.01)
	for i := 0; i < 5; i++ {
		tr.Observe(snap(float64(i), 0, false, 0))
	}
	// Points 0..3 fill the tracker; the fifth keeps 0 and 2 then appends.
	xs := []float64{}
	for _, p := range tr.Path() {
		xs = append(xs, p.X)
	}
	assert.Equal(t, []float64{0, 2, 4}, xs)
}

func TestTrackerHomes(t *testing.T) {
	tr := NewTracker(0, 0)
	tr.Observe(snap(0, 0, false, 0))
	tr.Observe(snap(0, 0, false, 1))
	tr.Observe(snap(0, 0, false, 1))
	tr.Observe(snap(0, 0, false, 2))

	homes := tr.Homes()
	require.Len(t, homes, 2)
	assert.InDelta(t, 0.2, homes[1].X, 1e-12)
}

func TestStatusEndpoints(t *testing.T) {
	tr := NewTracker(0, 0)
	ws := NewWebServer(WebServerConfig{
		Tracker: tr,
		Name:    "rover-1",
		Stats:   func() map[string]interface{} { return map[string]interface{}{"ticks": 7} },
	})

	w := httptest.NewRecorder()
	ws.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	tr.Observe(snap(0.5, 0.25, false, 1))

	w = httptest.NewRecorder()
	ws.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Name     string                 `json:"name"`
		Snapshot rover.Snapshot         `json:"snapshot"`
		Stats    map[string]interface{} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "rover-1", status.Name)
	assert.Equal(t, "DRIVE_TO_GOAL", status.Snapshot.State)
	assert.InDelta(t, 0.5, status.Snapshot.Pose.X, 1e-12)
	assert.Equal(t, float64(7), status.Stats["ticks"])

	w = httptest.NewRecorder()
	ws.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPathAndHealthEndpoints(t *testing.T) {
	tr := NewTracker(0, 0)
	ws := NewWebServer(WebServerConfig{Tracker: tr})

	w := httptest.NewRecorder()
	ws.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	ws.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/path", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"path":[]`)

	tr.Observe(snap(1, 1, true, 0))
	w = httptest.NewRecorder()
	ws.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/path", nil))
	var body struct {
		Path []PathPoint `json:"path"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Path, 1)
	assert.True(t, body.Path[0].Carrying)
}

func TestTrajectoryChart(t *testing.T) {
	tr := NewTracker(0, 0)
	ws := NewWebServer(WebServerConfig{Tracker: tr, Name: "rover-1"})

	w := httptest.NewRecorder()
	ws.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/charts/trajectory", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	tr.Observe(snap(0, 0, false, 0))
	tr.Observe(snap(1, 0, false, 1))
	tr.Observe(snap(1, 1, true, 1))

	w = httptest.NewRecorder()
	ws.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/charts/trajectory", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, w.Body.String(), "rover-1 trajectory")
}

func TestPathPlotterSave(t *testing.T) {
	tr := NewTracker(0, 0)
	dir := filepath.Join(t.TempDir(), "plots")

	out, err := NewPathPlotter(tr, "empty").Save(dir, "path.png")
	require.NoError(t, err)
	assert.Empty(t, out)

	tr.Observe(snap(0, 0, false, 0))
	tr.Observe(snap(1, 0, false, 1))
	tr.Observe(snap(1, 1, true, 2))
	tr.Observe(snap(0, 1, true, 2))
	tr.Observe(snap(0, 0.5, false, 3))

	out, err = NewPathPlotter(tr, "rover-1").Save(dir, "path.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "path.png"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "\x89PNG", string(data[:4]))

	// Names are reduced to a plain file inside dir.
	out, err = NewPathPlotter(tr, "rover-1").Save(dir, "../escape.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.png"), out)
}
