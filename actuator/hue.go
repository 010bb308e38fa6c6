package actuator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	bridgeTimeout = 5 * time.Second

	// The devicetype the bridge shows in its whitelist
	pairDeviceType = "respiro#monitor"
)

// ErrLinkButton means the bridge has not been paired yet:
// the operator must press the physical button, then retry.
var ErrLinkButton = errors.New("hue: press the bridge link button and retry")

// ErrUnreachable covers network or auth failure talking to the bridge.
// Non-fatal per tick; the next tick pushes fresh values.
var ErrUnreachable = errors.New("hue: bridge unreachable")

// HTTPDoer is the client surface the bridge needs,
// injectable for testing against httptest servers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Shared HTTP Client
var sharedHTTPClient = &http.Client{
	Timeout: bridgeTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	},
}

// HueBridge drives one lamp on a Philips Hue bridge over its REST API.
type HueBridge struct {
	Addr  string // bridge host or host:port
	User  string // whitelisted username from pairing
	Light string // numeric light id, resolved from the lamp name
	HTTP  HTTPDoer
}

// apiResult is one element of the bridge's response arrays.
type apiResult struct {
	Success map[string]any `json:"success,omitempty"`
	Error   *apiError      `json:"error,omitempty"`
}

type apiError struct {
	Type        int    `json:"type"`
	Description string `json:"description"`
}

// The bridge's link-button error type
const errTypeLinkButton = 101

// Pair registers a new user on the bridge.
// Until the operator presses the link button this returns
// ErrLinkButton; startup treats that as fatal with instructions.
func Pair(addr string) (string, error) {
	return PairWithClient(addr, sharedHTTPClient)
}

// PairWithClient handles the messy business of the pairing call
// and is testable with dependency injection, called by Pair.
func PairWithClient(addr string, c HTTPDoer) (string, error) {
	body, err := json.Marshal(map[string]string{"devicetype": pairDeviceType})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://%s/api", addr)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	results, err := doBridge(c, req)
	if err != nil {
		return "", err
	}

	for _, r := range results {
		if r.Error != nil && r.Error.Type == errTypeLinkButton {
			return "", ErrLinkButton
		}
		if r.Success != nil {
			if user, ok := r.Success["username"].(string); ok {
				slog.Info("Paired with Hue bridge", slog.String("Addr", addr))
				return user, nil
			}
		}
	}
	return "", fmt.Errorf("hue: pairing failed: %+v", results)
}

// Connect resolves the lamp by name and returns a ready bridge handle.
func Connect(addr, user, lampName string) (*HueBridge, error) {
	return ConnectWithClient(addr, user, lampName, sharedHTTPClient)
}

// ConnectWithClient is the injectable form of Connect.
func ConnectWithClient(addr, user, lampName string, c HTTPDoer) (*HueBridge, error) {
	url := fmt.Sprintf("http://%s/api/%s/lights", addr, user)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		slog.Error("Could not reach Hue bridge", slog.Any("Error", err))
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	// map of light id -> attributes, we only need the name
	var lights map[string]struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lights); err != nil {
		return nil, fmt.Errorf("hue: decoding lights: %w", err)
	}

	for id, l := range lights {
		if l.Name == lampName {
			slog.Info("Found lamp", slog.String("Name", lampName), slog.String("ID", id))
			return &HueBridge{Addr: addr, User: user, Light: id, HTTP: c}, nil
		}
	}
	return nil, fmt.Errorf("hue: no lamp named %q on bridge %s", lampName, addr)
}

// setState PUTs a partial state document to the lamp.
func (h *HueBridge) setState(state map[string]any) error {
	body, err := json.Marshal(state)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/api/%s/lights/%s/state", h.Addr, h.User, h.Light)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	results, err := doBridge(h.HTTP, req)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("%w: %s", ErrUnreachable, r.Error.Description)
		}
	}
	return nil
}

func doBridge(c HTTPDoer, req *http.Request) ([]apiResult, error) {
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		slog.Error("Could not reach Hue bridge", slog.Any("Error", err))
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	var results []apiResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("hue: unexpected bridge response %q: %w", raw, err)
	}
	return results, nil
}

// TurnOn lights the lamp before the loop starts.
func (h *HueBridge) TurnOn() error {
	return h.setState(map[string]any{"on": true})
}

// SetBrightness pushes a 0..254 brightness level.
func (h *HueBridge) SetBrightness(bri uint8) error {
	return h.setState(map[string]any{"bri": bri})
}

// SetHue pushes a 0..65535 hue value.
func (h *HueBridge) SetHue(hue uint16) error {
	return h.setState(map[string]any{"hue": hue})
}

// SetSat pushes a 0..254 saturation level.
func (h *HueBridge) SetSat(sat uint8) error {
	return h.setState(map[string]any{"sat": sat})
}

// Close is a no-op for the REST bridge, kept for the adapter contract.
func (h *HueBridge) Close() error { return nil }

func (h *HueBridge) Type() string { return "HUE" }
