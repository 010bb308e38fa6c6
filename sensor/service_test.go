package respiro_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	Rs "github.com/maroda/respiro/sensor"
	Rt "github.com/maroda/respiro/types"
)

// stubDevice scripts scan results for protocol tests.
type stubDevice struct {
	values  []float64
	errs    []error
	cursor  int
	badInit bool
	closed  bool
}

func (d *stubDevice) Configure(profile Rt.Profile, arena Rt.Arena) error {
	if d.badInit {
		return &Rs.DeviceError{Op: "configure", Err: errors.New("no sensor attached")}
	}
	return nil
}

func (d *stubDevice) TriggerRead() (float64, error) {
	if d.cursor >= len(d.values) {
		return 0, &Rs.DeviceError{Op: "trigger", Err: errors.New("script exhausted")}
	}
	v := d.values[d.cursor]
	var err error
	if d.cursor < len(d.errs) {
		err = d.errs[d.cursor]
	}
	d.cursor++
	return v, err
}

func (d *stubDevice) Close() error { d.closed = true; return nil }

// dialService stands a Service up on an httptest listener
// and opens a websocket to it.
func dialService(t *testing.T, dev Rs.Device) (*Rs.Service, *websocket.Conn) {
	t.Helper()

	svc, err := Rs.NewService(dev, Rt.NarrowEnergy, Rs.DefaultArena())
	assertError(t, err, nil)

	svr := httptest.NewServer(svc.SetupMux())
	t.Cleanup(svr.Close)

	url := "ws://" + strings.TrimPrefix(svr.URL, "http://") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assertError(t, err, nil)
	t.Cleanup(func() { conn.Close() })

	return svc, conn
}

func TestNewService(t *testing.T) {
	t.Run("Configures the device up front", func(t *testing.T) {
		dev := Rs.NewSimDevice(1)
		_, err := Rs.NewService(dev, Rt.NarrowEnergy, Rs.DefaultArena())
		assertError(t, err, nil)

		// Already armed, so a second configure is refused
		assertGotError(t, dev.Configure(Rt.NarrowEnergy, Rs.DefaultArena()))
	})

	t.Run("A device that will not configure is fatal", func(t *testing.T) {
		_, err := Rs.NewService(&stubDevice{badInit: true}, Rt.NarrowEnergy, Rs.DefaultArena())
		assertGotError(t, err)
	})
}

func TestHandleWS(t *testing.T) {
	t.Run("Scans are served in request order", func(t *testing.T) {
		_, conn := dialService(t, &stubDevice{values: []float64{1.1, 2.2, 3.3}})

		for i, want := range []float64{1.1, 2.2, 3.3} {
			seq := uint64(i + 1)
			assertError(t, conn.WriteJSON(Rt.Request{Seq: seq, Cmd: Rt.CmdTriggerRead}), nil)

			var rep Rt.Reply
			assertError(t, conn.ReadJSON(&rep), nil)
			if rep.Seq != seq {
				t.Errorf("reply out of order: got seq %d, want %d", rep.Seq, seq)
			}
			assertFloat(t, rep.Value, want)
			assertString(t, rep.Error, "")
		}
	})

	t.Run("A failed scan becomes an error reply, not a dead connection", func(t *testing.T) {
		dev := &stubDevice{
			values: []float64{0, 5},
			errs:   []error{&Rs.DeviceError{Op: "trigger", Err: errors.New("scan aborted")}, nil},
		}
		_, conn := dialService(t, dev)

		assertError(t, conn.WriteJSON(Rt.Request{Seq: 1, Cmd: Rt.CmdTriggerRead}), nil)
		var rep Rt.Reply
		assertError(t, conn.ReadJSON(&rep), nil)
		if rep.Error == "" {
			t.Error("expected an error reply for the failed scan")
		}

		// Next request is served normally
		assertError(t, conn.WriteJSON(Rt.Request{Seq: 2, Cmd: Rt.CmdTriggerRead}), nil)
		assertError(t, conn.ReadJSON(&rep), nil)
		assertFloat(t, rep.Value, 5)
	})

	t.Run("Unknown commands get an error reply", func(t *testing.T) {
		_, conn := dialService(t, &stubDevice{})

		assertError(t, conn.WriteJSON(Rt.Request{Seq: 1, Cmd: "DANCE"}), nil)
		var rep Rt.Reply
		assertError(t, conn.ReadJSON(&rep), nil)
		assertString(t, rep.Error, "unknown command")
	})

	t.Run("STOP is acknowledged and ends the service", func(t *testing.T) {
		svc, conn := dialService(t, &stubDevice{})

		assertError(t, conn.WriteJSON(Rt.Request{Seq: 1, Cmd: Rt.CmdStop}), nil)
		var rep Rt.Reply
		assertError(t, conn.ReadJSON(&rep), nil)
		assertString(t, rep.Ack, Rt.AckStopped)

		select {
		case <-svc.Done:
		case <-time.After(time.Second):
			t.Error("Done never closed after STOP")
		}
	})
}

func TestHealthz(t *testing.T) {
	svc, err := Rs.NewService(&stubDevice{}, Rt.NarrowEnergy, Rs.DefaultArena())
	assertError(t, err, nil)

	svr := httptest.NewServer(svc.SetupMux())
	defer svr.Close()

	resp, err := http.Get(svr.URL + "/healthz")
	assertError(t, err, nil)
	defer resp.Body.Close()
	assertInt(t, resp.StatusCode, http.StatusOK)
}

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %q want %q", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected an error but got %q", got)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %d, want %d", got, want)
	}
}

func assertFloat(t *testing.T, got, want float64) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %f, want %f", got, want)
	}
}

func assertString(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
