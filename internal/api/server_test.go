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

package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steward-sh/steward/internal/health"
	"github.com/steward-sh/steward/internal/journal"
	"github.com/steward-sh/steward/internal/supervisor"
)

type fakeService struct {
	mu        sync.Mutex
	status    supervisor.Status
	smoke     health.SmokeResult
	smokeErr  error
	reloadErr error
}

func (f *fakeService) Status() supervisor.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeService) SmokeTest(ctx context.Context) (health.SmokeResult, error) {
	return f.smoke, f.smokeErr
}

func (f *fakeService) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reloadErr != nil {
		return f.reloadErr
	}
	f.status.Incarnation++
	return nil
}

// startServer serves the API on a socket under a temp dir and returns
// an http.Client dialing it.
func startServer(t *testing.T, svc Service, events EventSource) *http.Client {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "stewardd.sock")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(socket, svc, events, logger)
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		},
	}
}

func testJournal(t *testing.T) *journal.Journal {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jnl, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { jnl.Close() })
	return jnl
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStatusEndpoint(t *testing.T) {
	svc := &fakeService{status: supervisor.Status{
		Service:     "web.default",
		State:       supervisor.StateRunning,
		Health:      health.Warning,
		Incarnation: 3,
		Hooks:       []string{"health_check", "run"},
		Restarts:    2,
		PID:         os.Getpid(),
	}}
	client := startServer(t, svc, testJournal(t))

	resp, err := client.Get("http://stewardd/v1/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got supervisor.Status
	decodeBody(t, resp, &got)
	assert.Equal(t, svc.Status(), got)
}

func TestEventsEndpoint(t *testing.T) {
	jnl := testJournal(t)
	ctx := context.Background()
	require.NoError(t, jnl.Append(ctx, journal.Event{
		Service: "web.default", Type: journal.TypeServiceStarting,
	}))
	require.NoError(t, jnl.Append(ctx, journal.Event{
		Service: "web.default", Type: journal.TypeServiceStarted,
	}))
	client := startServer(t, &fakeService{}, jnl)

	resp, err := client.Get("http://stewardd/v1/events")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got EventsResponse
	decodeBody(t, resp, &got)
	require.Len(t, got.Events, 2)
	assert.Equal(t, journal.TypeServiceStarting, got.Events[0].Type)

	resp, err = client.Get("http://stewardd/v1/events?limit=1")
	require.NoError(t, err)
	decodeBody(t, resp, &got)
	require.Len(t, got.Events, 1)
	assert.Equal(t, journal.TypeServiceStarted, got.Events[0].Type)
}

func TestEventsRejectsBadLimit(t *testing.T) {
	client := startServer(t, &fakeService{}, testJournal(t))

	for _, limit := range []string{"abc", "0", "-5"} {
		resp, err := client.Get("http://stewardd/v1/events?limit=" + limit)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit %q", limit)
		resp.Body.Close()
	}
}

func TestEventsWithoutJournal(t *testing.T) {
	var jnl *journal.Journal
	client := startServer(t, &fakeService{}, jnl)

	resp, err := client.Get("http://stewardd/v1/events")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"events":[]`)
}

func TestSmokeTestEndpoint(t *testing.T) {
	svc := &fakeService{smoke: health.SmokeResult{Code: 3}}
	client := startServer(t, svc, testJournal(t))

	resp, err := client.Post("http://stewardd/v1/hooks/smoke_test", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got SmokeTestResponse
	decodeBody(t, resp, &got)
	assert.Equal(t, 3, got.Code)
	assert.False(t, got.Passed)
}

func TestSmokeTestWithoutHook(t *testing.T) {
	svc := &fakeService{smokeErr: supervisor.ErrNoHook}
	client := startServer(t, svc, testJournal(t))

	resp, err := client.Post("http://stewardd/v1/hooks/smoke_test", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSmokeTestWhileStopped(t *testing.T) {
	svc := &fakeService{smokeErr: supervisor.ErrStopped}
	client := startServer(t, svc, testJournal(t))

	resp, err := client.Post("http://stewardd/v1/hooks/smoke_test", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestReloadEndpoint(t *testing.T) {
	svc := &fakeService{status: supervisor.Status{Incarnation: 3}}
	client := startServer(t, svc, testJournal(t))

	resp, err := client.Post("http://stewardd/v1/reload", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got ReloadResponse
	decodeBody(t, resp, &got)
	assert.Equal(t, "reloaded", got.Status)
	assert.Equal(t, uint64(4), got.Incarnation)
}

func TestVersionEndpoint(t *testing.T) {
	client := startServer(t, &fakeService{}, testJournal(t))

	resp, err := client.Get("http://stewardd/v1/version")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got VersionResponse
	decodeBody(t, resp, &got)
	assert.Equal(t, "dev", got.Version)
	assert.Equal(t, runtime.Version(), got.GoVersion)
}

func TestHealthzEndpoint(t *testing.T) {
	client := startServer(t, &fakeService{}, testJournal(t))

	resp, err := client.Get("http://stewardd/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]string
	decodeBody(t, resp, &got)
	assert.Equal(t, "ok", got["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	client := startServer(t, &fakeService{}, testJournal(t))

	resp, err := client.Get("http://stewardd/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestListenReplacesStaleSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "stewardd.sock")
	require.NoError(t, os.WriteFile(socket, nil, 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(socket, &fakeService{}, testJournal(t), logger)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoFileExists(t, socket)
}

func TestServeRequiresListen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(filepath.Join(t.TempDir(), "stewardd.sock"), &fakeService{}, testJournal(t), logger)

	err := srv.Serve()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Listen"))
}
