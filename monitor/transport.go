package respiro

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"
	Rt "github.com/maroda/respiro/types"
)

const (
	// How long a reply may take before the tick is written off
	defaultReplyTimeout = 2 * time.Second
)

// ErrTimeout means no reply arrived within the bound.
// The affected tick is skipped, never retried.
var ErrTimeout = errors.New("transport: reply timed out")

// ErrDevice wraps a failed-scan reply from the sensing side.
var ErrDevice = errors.New("transport: device reported failure")

// Transport is the controller's half of the request-response channel.
// It is used from a single goroutine only: one request in flight,
// block until the matching reply or the deadline.
type Transport interface {
	TriggerRead() (float64, error)
	Stop() error
	Close() error
}

// WSTransport speaks the wire contract over one websocket connection.
// A timed-out read leaves the websocket unusable, so the connection is
// dropped and redialed on the next request; the sequence number
// survives redials so a stale reply can never be matched.
type WSTransport struct {
	Addr    string
	Timeout time.Duration
	conn    *websocket.Conn
	seq     uint64
}

// Dial connects to the sensing side at addr (host:port).
func Dial(addr string) (*WSTransport, error) {
	t := &WSTransport{
		Addr:    addr,
		Timeout: defaultReplyTimeout,
	}
	if err := t.connect(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *WSTransport) connect() error {
	url := fmt.Sprintf("ws://%s/ws", t.Addr)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		slog.Error("Could not dial sensor service", slog.String("URL", url), slog.Any("Error", err))
		return err
	}
	slog.Info("Connected to sensor service", slog.String("URL", url))
	t.conn = conn
	return nil
}

// drop closes a connection that can no longer be trusted.
func (t *WSTransport) drop() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

// roundTrip sends one request and blocks for its reply.
// Replies with an older sequence number are leftovers and discarded,
// preserving the one-in-one-out ordering guarantee.
func (t *WSTransport) roundTrip(cmd string) (Rt.Reply, error) {
	if t.conn == nil {
		if err := t.connect(); err != nil {
			return Rt.Reply{}, fmt.Errorf("transport redial: %w", err)
		}
	}

	t.seq++
	req := Rt.Request{Seq: t.seq, Cmd: cmd}

	if err := t.conn.WriteJSON(req); err != nil {
		t.drop()
		return Rt.Reply{}, fmt.Errorf("transport send: %w", err)
	}

	deadline := time.Now().Add(t.Timeout)
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return Rt.Reply{}, err
	}

	for {
		var rep Rt.Reply
		if err := t.conn.ReadJSON(&rep); err != nil {
			t.drop()
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return Rt.Reply{}, ErrTimeout
			}
			return Rt.Reply{}, fmt.Errorf("transport recv: %w", err)
		}
		if rep.Seq < t.seq {
			// Late reply to a request already written off
			slog.Debug("Discarding stale reply", slog.Uint64("seq", rep.Seq))
			continue
		}
		return rep, nil
	}
}

// TriggerRead requests one scan and returns its energy value.
func (t *WSTransport) TriggerRead() (float64, error) {
	rep, err := t.roundTrip(Rt.CmdTriggerRead)
	if err != nil {
		return 0, err
	}
	if rep.Error != "" {
		return 0, fmt.Errorf("%w: %s", ErrDevice, rep.Error)
	}
	return rep.Value, nil
}

// Stop tells the sensing side to release its device and end its loop.
func (t *WSTransport) Stop() error {
	rep, err := t.roundTrip(Rt.CmdStop)
	if err != nil {
		return err
	}
	if rep.Ack != Rt.AckStopped {
		return fmt.Errorf("transport: unexpected STOP ack %q", rep.Ack)
	}
	return nil
}

// Close drops the connection without the STOP exchange.
func (t *WSTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
