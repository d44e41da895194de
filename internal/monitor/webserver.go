package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/banshee-data/forager/internal/httputil"
	"github.com/banshee-data/forager/internal/version"
)

// StatsFunc reports component counters for the status page.
type StatsFunc func() map[string]interface{}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Tracker *Tracker
	Stats   StatsFunc
	Name    string
}

// WebServer serves the status API and trajectory chart.
type WebServer struct {
	address string
	tracker *Tracker
	stats   StatsFunc
	name    string
	mux     *http.ServeMux
	server  *http.Server
}

func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		tracker: config.Tracker,
		stats:   config.Stats,
		name:    config.Name,
	}
	if ws.tracker == nil {
		ws.tracker = NewTracker(0, 0)
	}
	ws.mux = ws.setupRoutes()
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Mux exposes the route table so other components can attach their debug
// routes to the same server.
func (ws *WebServer) Mux() *http.ServeMux { return ws.mux }

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/path", ws.handlePath)
	mux.HandleFunc("/charts/trajectory", ws.handleTrajectory)
	return mux
}

// Start serves until ctx is done, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		logf("HTTP server listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			logf("HTTP server force close error: %v", err)
		}
	}
	logf("HTTP server stopped")
	return nil
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap, ok := ws.tracker.Latest()
	if !ok {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	resp := map[string]interface{}{
		"name":     ws.name,
		"snapshot": snap,
		"observed": ws.tracker.Observed(),
	}
	if ws.stats != nil {
		resp["stats"] = ws.stats()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (ws *WebServer) handlePath(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	path := ws.tracker.Path()
	if path == nil {
		path = []PathPoint{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"path":  path,
		"homes": ws.tracker.Homes(),
	})
}
