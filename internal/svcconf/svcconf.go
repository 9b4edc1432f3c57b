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

// Package svcconf loads and snapshots a service's configuration. A
// snapshot is one incarnation: an immutable merge of the service's
// default configuration with operator overrides, tagged with a
// monotonically increasing incarnation number. Hook templates are
// rendered against a snapshot, never against live mutable state.
package svcconf

import (
	"fmt"
	"os"
	"os/user"

	"github.com/BurntSushi/toml"

	"github.com/steward-sh/steward/internal/version"
)

// Identity is the unix user and group a service's hooks are owned by
// and executed as.
type Identity struct {
	User  string
	Group string
}

// CurrentIdentity returns the identity of the running process.
func CurrentIdentity() (Identity, error) {
	u, err := user.Current()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve current user: %w", err)
	}
	g, err := user.LookupGroupId(u.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve current group: %w", err)
	}
	return Identity{User: u.Username, Group: g.Name}, nil
}

// ResolveIdentity returns the identity for a configured user and
// group. An empty user resolves to the current process identity; an
// empty group resolves to the user's primary group.
func ResolveIdentity(userName, groupName string) (Identity, error) {
	if userName == "" {
		return CurrentIdentity()
	}
	if groupName == "" {
		u, err := user.Lookup(userName)
		if err != nil {
			return Identity{}, fmt.Errorf("failed to resolve user %q: %w", userName, err)
		}
		g, err := user.LookupGroupId(u.Gid)
		if err != nil {
			return Identity{}, fmt.Errorf("failed to resolve primary group of %q: %w", userName, err)
		}
		groupName = g.Name
	}
	return Identity{User: userName, Group: groupName}, nil
}

// Config is one incarnation of a service's configuration.
type Config struct {
	// Incarnation is the monotonic version of this snapshot. It starts
	// at 1 when the supervisor first loads the service and increases by
	// one each time operator configuration changes are picked up.
	Incarnation uint64

	// Service is the qualified service group, e.g. "redis.default".
	Service string

	// Identity is the user/group hooks run as.
	Identity Identity

	cfg map[string]any
}

// Source names the configuration layers a snapshot is built from. The
// default layer ships with the service; the user layer holds operator
// overrides and wins on conflict. Either file may be absent.
type Source struct {
	DefaultPath string
	UserPath    string
}

// Load reads the configuration layers and returns a snapshot at the
// given incarnation.
func (s Source) Load(service string, id Identity, incarnation uint64) (*Config, error) {
	base, err := loadLayer(s.DefaultPath)
	if err != nil {
		return nil, err
	}
	override, err := loadLayer(s.UserPath)
	if err != nil {
		return nil, err
	}

	return &Config{
		Incarnation: incarnation,
		Service:     service,
		Identity:    id,
		cfg:         merge(base, override),
	}, nil
}

// loadLayer decodes one TOML file into a nested map. A missing file is
// an empty layer, not an error.
func loadLayer(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}

	layer := map[string]any{}
	if _, err := toml.DecodeFile(path, &layer); err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to load config layer %s: %w", path, err)
	}
	return layer, nil
}

// merge overlays override onto base. Nested tables merge recursively;
// any other conflicting value is replaced by the override.
func merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := out[k].(map[string]any); ok {
				out[k] = merge(existing, sub)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// RenderContext returns the data hook templates are rendered against.
// Templates address the merged configuration as .cfg, service identity
// as .svc, and host facts as .sys.
func (c *Config) RenderContext() map[string]any {
	hostname, _ := os.Hostname()

	return map[string]any{
		"cfg": c.cfg,
		"svc": map[string]any{
			"service":     c.Service,
			"incarnation": c.Incarnation,
			"user":        c.Identity.User,
			"group":       c.Identity.Group,
		},
		"sys": map[string]any{
			"hostname": hostname,
			"version":  version.Version,
			"pid":      os.Getpid(),
		},
	}
}
