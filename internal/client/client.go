// Copyright 2026 The Steward Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package client talks to the stewardd control API for the steward
// CLI.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/steward-sh/steward/internal/api"
	"github.com/steward-sh/steward/internal/journal"
	"github.com/steward-sh/steward/internal/supervisor"
)

// Client is a client for the stewardd control API.
type Client struct {
	httpClient *http.Client
	// baseURL carries a placeholder host; the transport dials the
	// socket regardless.
	baseURL string
}

// New returns a client for the daemon listening on socketPath.
func New(socketPath string) *Client {
	return &Client{
		httpClient: &http.Client{Transport: NewUnixTransport(socketPath)},
		baseURL:    "http://stewardd",
	}
}

// NewWithHTTPClient returns a client using the given http.Client.
func NewWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient, baseURL: "http://stewardd"}
}

// Status returns the supervised service's status.
func (c *Client) Status(ctx context.Context) (supervisor.Status, error) {
	var status supervisor.Status
	err := c.get(ctx, "/v1/status", &status)
	return status, err
}

// Events returns the journal tail, oldest first. A limit of zero asks
// for the daemon's default.
func (c *Client) Events(ctx context.Context, limit int) ([]journal.Event, error) {
	path := "/v1/events"
	if limit > 0 {
		path = fmt.Sprintf("/v1/events?limit=%d", limit)
	}

	var resp api.EventsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// SmokeTest asks the daemon to run the service's smoke_test hook.
func (c *Client) SmokeTest(ctx context.Context) (api.SmokeTestResponse, error) {
	var resp api.SmokeTestResponse
	err := c.post(ctx, "/v1/hooks/smoke_test", &resp)
	return resp, err
}

// Reload asks the daemon to load the next configuration incarnation.
func (c *Client) Reload(ctx context.Context) (api.ReloadResponse, error) {
	var resp api.ReloadResponse
	err := c.post(ctx, "/v1/reload", &resp)
	return resp, err
}

// Version returns the daemon's build information.
func (c *Client) Version(ctx context.Context) (api.VersionResponse, error) {
	var resp api.VersionResponse
	err := c.get(ctx, "/v1/version", &resp)
	return resp, err
}

// Ping checks that the daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var resp map[string]string
	return c.get(ctx, "/healthz", &resp)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiError turns an error response into a readable error, preferring
// the daemon's error envelope over the raw body.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return fmt.Errorf("stewardd returned error %d: %s", resp.StatusCode, envelope.Error)
	}
	return fmt.Errorf("stewardd returned error %d: %s", resp.StatusCode, string(body))
}
