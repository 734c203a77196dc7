// Package homekit implements the door actuator boundary: either a local
// HomeKit bridge exposing the lock as a virtual switch, or a client for an
// existing hub's HTTP API. Switch on means locked in both modes.
package homekit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"doggydoor/internal/config"
	"doggydoor/internal/door"
)

// switchPayload is the hub API's switch representation.
type switchPayload struct {
	On bool `json:"on"`
}

// APIClient drives the door through an existing accessory hub's HTTP API.
type APIClient struct {
	baseURL  string
	token    string
	switchID string
	client   *http.Client
	log      *slog.Logger
}

// NewAPIClient creates a hub API actuator. timeout bounds each request on
// top of any per-call context deadline.
func NewAPIClient(cfg config.APIConfig, timeout time.Duration, log *slog.Logger) *APIClient {
	return &APIClient{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
		switchID: cfg.SwitchID,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
				MaxIdleConns:          2,
				IdleConnTimeout:       120 * time.Second,
			},
			Timeout: timeout,
		},
		log: log,
	}
}

// Ping probes the hub so a bad URL or token fails at startup, not at the
// first lock command.
func (c *APIClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("hub unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hub status probe: unexpected status %s", resp.Status)
	}
	return nil
}

// SetLockState implements door.Actuator.
func (c *APIClient) SetLockState(ctx context.Context, state door.LockState) error {
	body, err := json.Marshal(switchPayload{On: state == door.Locked})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/switches/%s", c.baseURL, c.switchID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("set switch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("set switch: unexpected status %s", resp.Status)
	}
	c.log.Debug("hub switch set", "switch", c.switchID, "state", state)
	return nil
}

// LockState implements door.Actuator.
func (c *APIClient) LockState(ctx context.Context) (door.LockState, error) {
	url := fmt.Sprintf("%s/switches/%s", c.baseURL, c.switchID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return door.Locked, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return door.Locked, fmt.Errorf("%w: %v", door.ErrStateUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return door.Locked, fmt.Errorf("%w: unexpected status %s", door.ErrStateUnknown, resp.Status)
	}

	var payload switchPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return door.Locked, fmt.Errorf("%w: decode: %v", door.ErrStateUnknown, err)
	}
	if payload.On {
		return door.Locked, nil
	}
	return door.Unlocked, nil
}

func (c *APIClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

var _ door.Actuator = (*APIClient)(nil)
