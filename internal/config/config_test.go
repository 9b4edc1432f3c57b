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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stewardd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "service:\n  name: redis\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.Group != "default" {
		t.Errorf("group = %q, want default", cfg.Service.Group)
	}
	if cfg.ServiceGroup() != "redis.default" {
		t.Errorf("ServiceGroup() = %q", cfg.ServiceGroup())
	}
	if cfg.Health.Interval != 30*time.Second {
		t.Errorf("health interval = %v", cfg.Health.Interval)
	}
	if cfg.Health.Splay != cfg.Health.Interval {
		t.Errorf("splay should default to interval, got %v", cfg.Health.Splay)
	}
	if cfg.Restart.InitialBackoff != time.Second || cfg.Restart.MaxBackoff != 30*time.Second {
		t.Errorf("restart backoff defaults wrong: %+v", cfg.Restart)
	}
	if !cfg.WatchEnabled() || !cfg.JournalEnabled() {
		t.Error("watch and journal should default to enabled")
	}
	if len(cfg.Watch.Patterns) != 1 || cfg.Watch.Patterns[0] != "**" {
		t.Errorf("patterns default = %v", cfg.Watch.Patterns)
	}

	if want := filepath.Join(cfg.DataDir, "svc", "redis", "hooks"); cfg.HooksDir() != want {
		t.Errorf("HooksDir() = %q, want %q", cfg.HooksDir(), want)
	}
	if want := filepath.Join(cfg.DataDir, "pkg", "redis", "hooks"); cfg.Service.TemplateDir != want {
		t.Errorf("TemplateDir = %q, want %q", cfg.Service.TemplateDir, want)
	}
	if want := filepath.Join(cfg.DataDir, "svc", "redis", "user.toml"); cfg.UserConfigPath() != want {
		t.Errorf("UserConfigPath() = %q, want %q", cfg.UserConfigPath(), want)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
data_dir: /tmp/steward-test
service:
  name: web
  group: edge
  user: www
  user_group: www
health:
  interval: 10s
  timeout: 5s
restart:
  initial_backoff: 2s
  max_backoff: 60s
  stop_grace: 15s
watch:
  enabled: false
  debounce: 250ms
  patterns: ["*.conf", "certs/**"]
journal:
  enabled: false
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServiceGroup() != "web.edge" {
		t.Errorf("ServiceGroup() = %q", cfg.ServiceGroup())
	}
	if cfg.Health.Interval != 10*time.Second || cfg.Health.Timeout != 5*time.Second {
		t.Errorf("health = %+v", cfg.Health)
	}
	if cfg.Restart.StopGrace != 15*time.Second {
		t.Errorf("stop grace = %v", cfg.Restart.StopGrace)
	}
	if cfg.WatchEnabled() {
		t.Error("watch should be disabled")
	}
	if cfg.JournalEnabled() {
		t.Error("journal should be disabled")
	}
	if cfg.Control.SocketPath != "/tmp/steward-test/stewardd.sock" {
		t.Errorf("socket = %q", cfg.Control.SocketPath)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	// Defaults alone fail validation: no service name.
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "service: [not a mapping")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("Load = %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STEWARD_DATA_DIR", "/tmp/steward-env")
	t.Setenv("STEWARD_SOCKET", "/tmp/steward-env/other.sock")

	cfg, err := Load(writeConfig(t, "service:\n  name: redis\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "/tmp/steward-env" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Control.SocketPath != "/tmp/steward-env/other.sock" {
		t.Errorf("SocketPath = %q", cfg.Control.SocketPath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(c *Config) { c.Service.Name = "" },
			wantErr: "service.name is required",
		},
		{
			name:    "name with slash",
			mutate:  func(c *Config) { c.Service.Name = "a/b" },
			wantErr: "may not contain",
		},
		{
			name:    "group with dot",
			mutate:  func(c *Config) { c.Service.Group = "a.b" },
			wantErr: "may not contain",
		},
		{
			name:    "bad watch pattern",
			mutate:  func(c *Config) { c.Watch.Patterns = []string{"[unclosed"} },
			wantErr: "invalid watch pattern",
		},
		{
			name: "backoff inversion",
			mutate: func(c *Config) {
				c.Restart.InitialBackoff = time.Minute
				c.Restart.MaxBackoff = time.Second
			},
			wantErr: "initial_backoff exceeds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Service.Name = "redis"
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v should wrap ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Default()
	cfg.Service.Name = "redis"
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
