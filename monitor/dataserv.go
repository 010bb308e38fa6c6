package respiro

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

var Version = "dev"

// SetupMux handles all monitor-side data serving:
// - Prometheus metric endpoint
// - Version for programmatic use
// - Current breath snapshot for UI feedback
func (c *Controller) SetupMux() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", c.Stats.Handler())

	api := r.PathPrefix("/api").Subrouter()
	api.Use(c.StatsMiddleware)
	api.HandleFunc("/version", c.VersionHandler)
	api.HandleFunc("/state", c.StateHandler)

	return r
}

func (c *Controller) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

// StateHandler serves the last completed tick's Snapshot.
func (c *Controller) StateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c.Snapshot())
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func (c *Controller) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)
		c.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}

// ServeStats runs the stats endpoint in the background.
func (c *Controller) ServeStats(addr string) *http.Server {
	server := &http.Server{
		Addr:    addr,
		Handler: c.SetupMux(),
	}
	go func() {
		slog.Info("Starting respiro stats endpoint...", slog.String("Port", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start stats endpoint", slog.Any("Error", err))
		}
	}()
	return server
}
