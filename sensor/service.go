package respiro

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	Rt "github.com/maroda/respiro/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Service owns the sensor Device and answers the wire protocol.
// It performs no work between requests: every scan is demanded
// by the controlling side, which is the backpressure.
type Service struct {
	MU      sync.Mutex
	Device  Device
	Ready   chan struct{} // closed once the listener is up
	Done    chan struct{} // closed after STOP or server shutdown
	server  *http.Server
	stopped bool
}

// NewService configures the device once, fatally on error.
// Hardware misconfiguration is not recoverable at this layer.
func NewService(dev Device, profile Rt.Profile, arena Rt.Arena) (*Service, error) {
	if err := dev.Configure(profile, arena); err != nil {
		slog.Error("Could not configure sensor device", slog.Any("Error", err))
		return nil, err
	}

	return &Service{
		Device: dev,
		Ready:  make(chan struct{}),
		Done:   make(chan struct{}),
	}, nil
}

// SetupMux routes the sensing side:
// - /ws carries the request-response protocol
// - /healthz for liveness
// Recovery wrapping keeps a panicking scan from killing the process
// with the device handle still held.
func (s *Service) SetupMux() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.HandleWS)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
}

// HandleWS serves one controller connection.
// Requests are answered strictly in the order received.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Could not upgrade connection", slog.Any("Error", err))
		return
	}
	defer conn.Close()

	for {
		var req Rt.Request
		if err := conn.ReadJSON(&req); err != nil {
			// Controller went away, wait for the next one
			slog.Info("Controller connection closed", slog.Any("Error", err))
			return
		}

		switch req.Cmd {
		case Rt.CmdTriggerRead:
			value, err := s.Device.TriggerRead()
			rep := Rt.Reply{Seq: req.Seq, Value: value}
			if err != nil {
				// A single failed scan is the controller's tick to skip
				slog.Error("Scan failed", slog.Any("Error", err))
				rep = Rt.Reply{Seq: req.Seq, Error: err.Error()}
			}
			if err := conn.WriteJSON(rep); err != nil {
				slog.Error("Could not send reply", slog.Any("Error", err))
				return
			}

		case Rt.CmdStop:
			if err := conn.WriteJSON(Rt.Reply{Seq: req.Seq, Ack: Rt.AckStopped}); err != nil {
				slog.Error("Could not acknowledge STOP", slog.Any("Error", err))
			}
			s.Stop()
			return

		default:
			// The contract has two commands, anything else is a fault
			slog.Error("Unknown command", slog.String("cmd", req.Cmd))
			if err := conn.WriteJSON(Rt.Reply{Seq: req.Seq, Error: "unknown command"}); err != nil {
				return
			}
		}
	}
}

// Start runs the sensing side until STOP arrives or Shutdown is called.
// The device handle is released on every exit path.
func (s *Service) Start(addr string) error {
	defer func() {
		if err := s.Device.Close(); err != nil {
			slog.Error("Could not release device handle", slog.Any("Error", err))
		}
	}()

	s.MU.Lock()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.SetupMux(),
	}
	s.MU.Unlock()

	slog.Info("Starting sensor service", slog.String("Addr", addr))
	close(s.Ready)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Could not start sensor service", slog.Any("Error", err))
		return err
	}
	return nil
}

// Stop shuts the HTTP server down and signals Done. Idempotent.
func (s *Service) Stop() {
	s.MU.Lock()
	defer s.MU.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	if s.server != nil {
		server := s.server
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				slog.Error("Sensor service shutdown", slog.Any("Error", err))
			}
		}()
	}
	close(s.Done)
	slog.Info("Sensor service stopped")
}

// RunSensor is the sensing-side entrypoint used by main.
// A fatal device error aborts the process before serving.
func RunSensor(dev Device, addr string, profile Rt.Profile, arena Rt.Arena) {
	svc, err := NewService(dev, profile, arena)
	if err != nil {
		os.Exit(1)
	}
	if err := svc.Start(addr); err != nil {
		os.Exit(1)
	}
}
