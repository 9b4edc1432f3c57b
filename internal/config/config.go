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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete stewardd configuration.
type Config struct {
	// DataDir is the root directory for steward state: service
	// directories, the control socket, journal and pid file.
	// Environment: STEWARD_DATA_DIR
	// Default: /var/lib/steward when running as root, ~/.steward otherwise
	DataDir string `yaml:"data_dir,omitempty"`

	Service ServiceConfig `yaml:"service"`
	Health  HealthConfig  `yaml:"health,omitempty"`
	Restart RestartConfig `yaml:"restart,omitempty"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`
	Control ControlConfig `yaml:"control,omitempty"`
	Journal JournalConfig `yaml:"journal,omitempty"`
	Log     LogConfig     `yaml:"log,omitempty"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`
}

// ServiceConfig describes the one service this supervisor tends.
type ServiceConfig struct {
	// Name is the service name. Required.
	Name string `yaml:"name"`

	// Group qualifies the service into a service group, rendered as
	// "<name>.<group>" in output and status.
	// Default: default
	Group string `yaml:"group,omitempty"`

	// User is the unix user hooks are owned by and run as. Dropping to
	// another user requires running stewardd as root.
	// Default: the user stewardd runs as
	User string `yaml:"user,omitempty"`

	// UserGroup is the unix group paired with User.
	// Default: the primary group of User
	UserGroup string `yaml:"user_group,omitempty"`

	// TemplateDir is where the service's hook templates live.
	// Default: <data_dir>/pkg/<name>/hooks
	TemplateDir string `yaml:"template_dir,omitempty"`

	// DefaultConfig is the TOML file of configuration defaults shipped
	// with the service.
	// Default: <data_dir>/pkg/<name>/default.toml
	DefaultConfig string `yaml:"default_config,omitempty"`
}

// HealthConfig controls periodic health checking.
type HealthConfig struct {
	// Interval is how often the health_check hook runs while the
	// service is up.
	// Default: 30s
	Interval time.Duration `yaml:"interval,omitempty"`

	// Splay delays the first check by a random fraction of this
	// duration so many supervisors do not probe in lockstep.
	// Default: equal to Interval
	Splay time.Duration `yaml:"splay,omitempty"`

	// Timeout bounds one health_check execution.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// RestartConfig controls how the run hook is restarted after it exits.
type RestartConfig struct {
	// InitialBackoff is the delay before the first restart attempt.
	// Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff,omitempty"`

	// MaxBackoff caps the exponential restart delay.
	// Default: 30s
	MaxBackoff time.Duration `yaml:"max_backoff,omitempty"`

	// StopGrace is how long a hook process gets between SIGTERM and
	// SIGKILL when it must be torn down.
	// Default: 8s
	StopGrace time.Duration `yaml:"stop_grace,omitempty"`
}

// WatchConfig controls the file watchers that drive reconfiguration
// and the file_updated hook.
type WatchConfig struct {
	// Enabled turns the watchers on.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Debounce coalesces bursts of file events.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce,omitempty"`

	// MaxTriggersPerMinute rate-limits hook executions caused by file
	// events.
	// Default: 60
	MaxTriggersPerMinute int `yaml:"max_triggers_per_minute,omitempty"`

	// Patterns selects which changed files count, using doublestar
	// globs relative to the files directory.
	// Default: ["**"]
	Patterns []string `yaml:"patterns,omitempty"`

	// Exclude removes matches from Patterns.
	Exclude []string `yaml:"exclude,omitempty"`
}

// ControlConfig configures the local control API.
type ControlConfig struct {
	// SocketPath is the unix socket the control API listens on.
	// Environment: STEWARD_SOCKET
	// Default: <data_dir>/stewardd.sock
	SocketPath string `yaml:"socket_path,omitempty"`
}

// JournalConfig configures the on-disk event journal.
type JournalConfig struct {
	// Enabled turns journalling on.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Path is the sqlite database file.
	// Default: <data_dir>/journal.db
	Path string `yaml:"path,omitempty"`
}

// LogConfig configures supervisor logging.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Default: info
	Level string `yaml:"level,omitempty"`

	// Format sets the output format (json, text).
	// Default: json
	Format string `yaml:"format,omitempty"`

	// File, when set, sends logs to a rotating file instead of stderr.
	File string `yaml:"file,omitempty"`
}

// DaemonConfig configures daemon-process behavior.
type DaemonConfig struct {
	// PIDFile is the path of the daemon pid file.
	// Default: <data_dir>/stewardd.pid
	PIDFile string `yaml:"pid_file,omitempty"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// Default returns a Config with every default applied, for a service
// that still needs its name filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultSocketPath returns the control socket path the CLI tries when
// no flag overrides it: STEWARD_SOCKET when set, otherwise the socket
// under the default data dir.
func DefaultSocketPath() string {
	if v := os.Getenv("STEWARD_SOCKET"); v != "" {
		return v
	}
	return filepath.Join(defaultDataDir(), "stewardd.sock")
}

// DefaultPath returns the config file path the daemon reads when no
// flag overrides it: STEWARD_CONFIG when set, otherwise stewardd.yaml
// under the default data dir.
func DefaultPath() string {
	if v := os.Getenv("STEWARD_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(defaultDataDir(), "stewardd.yaml")
}

// Load reads the YAML config at path, applies environment overrides
// and defaults, and validates the result. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("STEWARD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("STEWARD_SOCKET"); v != "" {
		c.Control.SocketPath = v
	}
}

// applyDefaults fills every unset field.
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}

	if c.Service.Group == "" {
		c.Service.Group = "default"
	}
	if c.Service.TemplateDir == "" && c.Service.Name != "" {
		c.Service.TemplateDir = filepath.Join(c.DataDir, "pkg", c.Service.Name, "hooks")
	}
	if c.Service.DefaultConfig == "" && c.Service.Name != "" {
		c.Service.DefaultConfig = filepath.Join(c.DataDir, "pkg", c.Service.Name, "default.toml")
	}

	if c.Health.Interval <= 0 {
		c.Health.Interval = 30 * time.Second
	}
	if c.Health.Splay <= 0 {
		c.Health.Splay = c.Health.Interval
	}
	if c.Health.Timeout <= 0 {
		c.Health.Timeout = 30 * time.Second
	}

	if c.Restart.InitialBackoff <= 0 {
		c.Restart.InitialBackoff = time.Second
	}
	if c.Restart.MaxBackoff <= 0 {
		c.Restart.MaxBackoff = 30 * time.Second
	}
	if c.Restart.StopGrace <= 0 {
		c.Restart.StopGrace = 8 * time.Second
	}

	if c.Watch.Enabled == nil {
		enabled := true
		c.Watch.Enabled = &enabled
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
	if c.Watch.MaxTriggersPerMinute <= 0 {
		c.Watch.MaxTriggersPerMinute = 60
	}
	if len(c.Watch.Patterns) == 0 {
		c.Watch.Patterns = []string{"**"}
	}

	if c.Control.SocketPath == "" {
		c.Control.SocketPath = filepath.Join(c.DataDir, "stewardd.sock")
	}

	if c.Journal.Enabled == nil {
		enabled := true
		c.Journal.Enabled = &enabled
	}
	if c.Journal.Path == "" {
		c.Journal.Path = filepath.Join(c.DataDir, "journal.db")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Daemon.PIDFile == "" {
		c.Daemon.PIDFile = filepath.Join(c.DataDir, "stewardd.pid")
	}
	if c.Daemon.ShutdownTimeout <= 0 {
		c.Daemon.ShutdownTimeout = 30 * time.Second
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("%w: service.name is required", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.Service.Name, "/ ") {
		return fmt.Errorf("%w: service.name %q may not contain slashes or spaces", ErrInvalidConfig, c.Service.Name)
	}
	if strings.ContainsAny(c.Service.Group, "/ .") {
		return fmt.Errorf("%w: service.group %q may not contain slashes, dots or spaces", ErrInvalidConfig, c.Service.Group)
	}

	for _, pattern := range append(append([]string{}, c.Watch.Patterns...), c.Watch.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: invalid watch pattern %q", ErrInvalidConfig, pattern)
		}
	}

	if c.Health.Splay > 0 && c.Health.Splay > time.Hour {
		return fmt.Errorf("%w: health.splay %s is implausibly large", ErrInvalidConfig, c.Health.Splay)
	}
	if c.Restart.InitialBackoff > c.Restart.MaxBackoff {
		return fmt.Errorf("%w: restart.initial_backoff exceeds restart.max_backoff", ErrInvalidConfig)
	}
	return nil
}

// ServiceGroup returns the qualified "<name>.<group>" label.
func (c *Config) ServiceGroup() string {
	return c.Service.Name + "." + c.Service.Group
}

// ServiceDir is the mutable per-service state directory.
func (c *Config) ServiceDir() string {
	return filepath.Join(c.DataDir, "svc", c.Service.Name)
}

// HooksDir is where compiled hook scripts are installed.
func (c *Config) HooksDir() string {
	return filepath.Join(c.ServiceDir(), "hooks")
}

// FilesDir is the watched service files directory that feeds the
// file_updated hook.
func (c *Config) FilesDir() string {
	return filepath.Join(c.ServiceDir(), "files")
}

// UserConfigPath is the operator's TOML override file.
func (c *Config) UserConfigPath() string {
	return filepath.Join(c.ServiceDir(), "user.toml")
}

// WatchEnabled reports whether the file watchers should run.
func (c *Config) WatchEnabled() bool {
	return c.Watch.Enabled == nil || *c.Watch.Enabled
}

// JournalEnabled reports whether the event journal should be kept.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled == nil || *c.Journal.Enabled
}

// defaultDataDir picks the state root for the current user.
func defaultDataDir() string {
	if os.Geteuid() == 0 {
		return "/var/lib/steward"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".steward"
	}
	return filepath.Join(home, ".steward")
}
