package respiro_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	Rm "github.com/maroda/respiro/monitor"
	Rt "github.com/maroda/respiro/types"
)

var upgrader = websocket.Upgrader{}

// wsTestServer runs handler for each websocket connection at /ws.
func wsTestServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("could not upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(svr.Close)
	return svr
}

// echoValues replies in order with the given values,
// echoing each request's sequence number.
func echoValues(values ...float64) func(conn *websocket.Conn) {
	return func(conn *websocket.Conn) {
		for _, v := range values {
			var req Rt.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			conn.WriteJSON(Rt.Reply{Seq: req.Seq, Value: v})
		}
	}
}

func hostOf(svr *httptest.Server) string {
	return strings.TrimPrefix(svr.URL, "http://")
}

func TestDial(t *testing.T) {
	t.Run("Connects to a live sensor service", func(t *testing.T) {
		svr := wsTestServer(t, echoValues())
		tr, err := Rm.Dial(hostOf(svr))
		assertError(t, err, nil)
		tr.Close()
	})

	t.Run("Fails when nothing is listening", func(t *testing.T) {
		_, err := Rm.Dial("127.0.0.1:1")
		assertGotError(t, err)
	})
}

func TestTriggerRead(t *testing.T) {
	t.Run("Readings come back in request order", func(t *testing.T) {
		svr := wsTestServer(t, echoValues(1.5, 2.5, 3.5))
		tr, err := Rm.Dial(hostOf(svr))
		assertError(t, err, nil)
		defer tr.Close()

		for _, want := range []float64{1.5, 2.5, 3.5} {
			got, err := tr.TriggerRead()
			assertError(t, err, nil)
			assertFloat(t, got, want)
		}
	})

	t.Run("A failed-scan reply surfaces as a device error", func(t *testing.T) {
		svr := wsTestServer(t, func(conn *websocket.Conn) {
			var req Rt.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			conn.WriteJSON(Rt.Reply{Seq: req.Seq, Error: "scan aborted"})
		})
		tr, err := Rm.Dial(hostOf(svr))
		assertError(t, err, nil)
		defer tr.Close()

		_, err = tr.TriggerRead()
		assertError(t, err, Rm.ErrDevice)
	})

	t.Run("Stale replies are discarded, the matching one returned", func(t *testing.T) {
		svr := wsTestServer(t, func(conn *websocket.Conn) {
			var req Rt.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			// A leftover from a request already written off
			conn.WriteJSON(Rt.Reply{Seq: req.Seq - 1, Value: 99})
			conn.WriteJSON(Rt.Reply{Seq: req.Seq, Value: 7})
		})
		tr, err := Rm.Dial(hostOf(svr))
		assertError(t, err, nil)
		defer tr.Close()

		got, err := tr.TriggerRead()
		assertError(t, err, nil)
		assertFloat(t, got, 7)
	})

	t.Run("A silent sensor times out, then the next read redials", func(t *testing.T) {
		var conns atomic.Int32
		svr := wsTestServer(t, func(conn *websocket.Conn) {
			if conns.Add(1) == 1 {
				// First connection never answers
				var req Rt.Request
				conn.ReadJSON(&req)
				time.Sleep(2 * time.Second)
				return
			}
			echoValues(4.2)(conn)
		})
		tr, err := Rm.Dial(hostOf(svr))
		assertError(t, err, nil)
		defer tr.Close()
		tr.Timeout = 100 * time.Millisecond

		_, err = tr.TriggerRead()
		assertError(t, err, Rm.ErrTimeout)

		got, err := tr.TriggerRead()
		assertError(t, err, nil)
		assertFloat(t, got, 4.2)
	})
}

func TestTransportStop(t *testing.T) {
	t.Run("Acknowledged STOP is clean", func(t *testing.T) {
		svr := wsTestServer(t, func(conn *websocket.Conn) {
			var req Rt.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Cmd != Rt.CmdStop {
				conn.WriteJSON(Rt.Reply{Seq: req.Seq, Error: "expected STOP"})
				return
			}
			conn.WriteJSON(Rt.Reply{Seq: req.Seq, Ack: Rt.AckStopped})
		})
		tr, err := Rm.Dial(hostOf(svr))
		assertError(t, err, nil)
		defer tr.Close()

		assertError(t, tr.Stop(), nil)
	})

	t.Run("A wrong ack is an error", func(t *testing.T) {
		svr := wsTestServer(t, func(conn *websocket.Conn) {
			var req Rt.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			conn.WriteJSON(Rt.Reply{Seq: req.Seq, Ack: "confused"})
		})
		tr, err := Rm.Dial(hostOf(svr))
		assertError(t, err, nil)
		defer tr.Close()

		assertGotError(t, tr.Stop())
	})
}
