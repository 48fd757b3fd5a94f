// Package agent implements a thin HTTP/JSON client against the per-VM
// agent ("ctl") at http://<vm-ip>:31888. Payload shapes mirror the
// original oct-ctl service exactly; no retry is performed here — retry
// policy belongs to callers.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/pylon/pkg/metrics"
)

// DefaultPort is the agent's fixed listening port. Client takes it as a
// constructor argument rather than hardcoding it, since deployments may
// need to override it.
const DefaultPort = 31888

const healthCheckTimeout = 5 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client pointed at http://<publicIP>:<port>.
func New(publicIP string, port int) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", publicIP, port),
		httpClient: &http.Client{},
	}
}

// Host returns the "host:port" this client dials, so callers can run a
// cheaper pre-check (e.g. a bare TCP dial) against the same address.
func (c *Client) Host() string {
	return strings.TrimPrefix(c.baseURL, "http://")
}

// RunContainerRequest is the exact wire shape the agent expects at
// POST /run-container.
type RunContainerRequest struct {
	Name          string            `json:"name"`
	Image         string            `json:"image"`
	Command       *string           `json:"command,omitempty"`
	ExternalPort  *int              `json:"external_port,omitempty"`
	InternalPort  *int              `json:"internal_port,omitempty"`
	Cpus          int               `json:"cpus"`
	Memory        int64             `json:"memory"`
	Envs          map[string]string `json:"envs"`
}

type removeContainerRequest struct {
	Name string `json:"name"`
}

// RunContainer issues POST /run-container. A non-2xx response is an error;
// the caller decides whether it's retryable.
func (c *Client) RunContainer(ctx context.Context, req RunContainerRequest) error {
	return c.post(ctx, "run-container", req)
}

// RemoveContainer issues POST /remove-container.
func (c *Client) RemoveContainer(ctx context.Context, name string) error {
	return c.post(ctx, "remove-container", removeContainerRequest{Name: name})
}

// HealthCheck issues GET /health-check with a 5-second client-side
// timeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	timer := metrics.NewTimer()
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health-check", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	timer.ObserveDurationVec(metrics.AgentRequestDuration, "health-check")
	if err != nil {
		metrics.AgentRequestsTotal.WithLabelValues("health-check", "error").Inc()
		return fmt.Errorf("agent %s: health-check: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.AgentRequestsTotal.WithLabelValues("health-check", "rejected").Inc()
		return fmt.Errorf("agent %s: health-check: unexpected status %d", c.baseURL, resp.StatusCode)
	}
	metrics.AgentRequestsTotal.WithLabelValues("health-check", "ok").Inc()
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	timer := metrics.NewTimer()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("agent %s: marshal %s request: %w", c.baseURL, path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	timer.ObserveDurationVec(metrics.AgentRequestDuration, path)
	if err != nil {
		metrics.AgentRequestsTotal.WithLabelValues(path, "error").Inc()
		return fmt.Errorf("agent %s: %s: %w", c.baseURL, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.AgentRequestsTotal.WithLabelValues(path, "rejected").Inc()
		return fmt.Errorf("agent %s: %s: status %d: %s", c.baseURL, path, resp.StatusCode, string(respBody))
	}

	metrics.AgentRequestsTotal.WithLabelValues(path, "ok").Inc()
	return nil
}
