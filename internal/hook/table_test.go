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

package hook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/steward-sh/steward/internal/health"
	"github.com/steward-sh/steward/internal/svcconf"
)

func TestLoadTableDiscovery(t *testing.T) {
	dirs := newHookDirs(t)
	dirs.writeTemplate(t, KindInit, "#!/bin/sh\nexit 0\n")
	dirs.writeTemplate(t, KindRun, "#!/bin/sh\nexec sleep 1\n")
	dirs.writeTemplate(t, KindHealthCheck, "#!/bin/sh\nexit 0\n")
	sink, _ := captureSink()

	table := LoadTable(sink, dirs.dest, dirs.templates)

	got := table.Present()
	want := []Kind{KindHealthCheck, KindInit, KindRun}
	if len(got) != len(want) {
		t.Fatalf("Present() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Present()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if table.FileUpdated != nil || table.Reconfigure != nil || table.SmokeTest != nil {
		t.Error("absent templates must leave nil hooks")
	}
}

func TestLoadTableNoTemplateDir(t *testing.T) {
	sink, buf := captureSink()

	table := LoadTable(sink, t.TempDir(), filepath.Join(t.TempDir(), "missing"))

	if len(table.Present()) != 0 {
		t.Errorf("expected empty table, got %v", table.Present())
	}
	if buf.Len() != 0 {
		t.Errorf("missing template dir must not be reported to the sink, got %q", buf.String())
	}
}

func TestTableCompileAllHooks(t *testing.T) {
	dirs := newHookDirs(t)
	for _, kind := range Kinds() {
		dirs.writeTemplate(t, kind, "#!/bin/sh\n# {{.svc.service}} "+kind.FileName()+"\nexit 0\n")
	}
	sink, _ := captureSink()

	table := LoadTable(sink, dirs.dest, dirs.templates)
	table.Compile(sink, testConfig(t, 1, ""))

	for _, kind := range Kinds() {
		path := filepath.Join(dirs.dest, kind.FileName())
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("%s not installed: %v", kind, err)
		}
		if !strings.Contains(string(content), "foo.default "+kind.FileName()) {
			t.Errorf("%s not rendered: %q", kind, content)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("%s mode = %o, want 755", kind, info.Mode().Perm())
		}
	}

	if table.LastCompiled() != 1 {
		t.Errorf("LastCompiled() = %d, want 1", table.LastCompiled())
	}
}

// A second compile at the same incarnation must perform no filesystem
// writes at all.
func TestTableCompileIdempotent(t *testing.T) {
	dirs := newHookDirs(t)
	dirs.writeTemplate(t, KindInit, "#!/bin/sh\nexit 0\n")
	sink, _ := captureSink()

	table := LoadTable(sink, dirs.dest, dirs.templates)
	table.Compile(sink, testConfig(t, 1, ""))

	installed := filepath.Join(dirs.dest, "init")
	if err := os.Remove(installed); err != nil {
		t.Fatal(err)
	}

	table.Compile(sink, testConfig(t, 1, ""))

	if _, err := os.Stat(installed); !os.IsNotExist(err) {
		t.Error("compile at an already-compiled incarnation must not write")
	}
}

func TestTableCompileMonotonic(t *testing.T) {
	dirs := newHookDirs(t)
	dirs.writeTemplate(t, KindInit, "#!/bin/sh\n# incarnation {{.svc.incarnation}}\n")
	sink, _ := captureSink()

	table := LoadTable(sink, dirs.dest, dirs.templates)
	installed := filepath.Join(dirs.dest, "init")

	table.Compile(sink, testConfig(t, 3, ""))

	readInstalled := func() string {
		t.Helper()
		content, err := os.ReadFile(installed)
		if err != nil {
			t.Fatal(err)
		}
		return string(content)
	}

	if got := readInstalled(); !strings.Contains(got, "incarnation 3") {
		t.Fatalf("initial compile missing: %q", got)
	}

	// Older snapshot must be ignored.
	table.Compile(sink, testConfig(t, 2, ""))
	if got := readInstalled(); !strings.Contains(got, "incarnation 3") {
		t.Errorf("stale incarnation overwrote hooks: %q", got)
	}

	// Newer snapshot recompiles.
	table.Compile(sink, testConfig(t, 4, ""))
	if got := readInstalled(); !strings.Contains(got, "incarnation 4") {
		t.Errorf("newer incarnation did not recompile: %q", got)
	}
}

// The compile guard only engages once a nonzero incarnation has been
// seen; snapshots at incarnation zero always compile.
func TestTableCompileZeroIncarnation(t *testing.T) {
	dirs := newHookDirs(t)
	dirs.writeTemplate(t, KindInit, "#!/bin/sh\nexit 0\n")
	sink, _ := captureSink()

	table := LoadTable(sink, dirs.dest, dirs.templates)
	installed := filepath.Join(dirs.dest, "init")

	table.Compile(sink, testConfig(t, 0, ""))
	if _, err := os.Stat(installed); err != nil {
		t.Fatalf("zero incarnation did not compile: %v", err)
	}

	if err := os.Remove(installed); err != nil {
		t.Fatal(err)
	}
	table.Compile(sink, testConfig(t, 0, ""))
	if _, err := os.Stat(installed); err != nil {
		t.Error("repeat zero-incarnation compile should not be suppressed")
	}
}

// One hook failing to compile must not stop the others.
func TestTableCompileFailureIsolation(t *testing.T) {
	dirs := newHookDirs(t)
	dirs.writeTemplate(t, KindInit, `{{template "absent"}}`)
	dirs.writeTemplate(t, KindRun, "#!/bin/sh\nexec sleep 1\n")
	sink, buf := captureSink()

	table := LoadTable(sink, dirs.dest, dirs.templates)
	table.Compile(sink, testConfig(t, 1, ""))

	if !strings.Contains(buf.String(), "Failed to compile init hook:") {
		t.Errorf("missing compile failure report:\n%s", buf.String())
	}

	if _, err := os.Stat(filepath.Join(dirs.dest, "run")); err != nil {
		t.Errorf("run hook should compile despite init failure: %v", err)
	}
}

// Full lifecycle for one service: discover, compile against live
// configuration, execute, decode.
func TestTableEndToEnd(t *testing.T) {
	dirs := newHookDirs(t)
	dirs.writeTemplate(t, KindInit, "#!/bin/sh\necho initializing {{.svc.service}} with {{.cfg.workers}} workers\nexit 0\n")
	dirs.writeTemplate(t, KindHealthCheck, "#!/bin/sh\necho probe failed >&2\nexit 2\n")
	dirs.writeTemplate(t, KindSmokeTest, "#!/bin/sh\nexit 0\n")
	sink, buf := captureSink()

	table := LoadTable(sink, dirs.dest, dirs.templates)
	table.Compile(sink, testConfig(t, 1, "workers = 4\n"))

	id := svcconf.Identity{}

	if got := table.Init.Run(sink, id); got != 0 {
		t.Errorf("init outcome = %d, want 0", got)
	}
	if got := table.HealthCheck.Run(sink, id); got != health.Critical {
		t.Errorf("health outcome = %v, want critical", got)
	}
	if got := table.SmokeTest.Run(sink, id); !got.Ok() {
		t.Errorf("smoke outcome = %+v, want ok", got)
	}

	out := buf.String()
	if !strings.Contains(out, "foo.default hook[init]: initializing foo.default with 4 workers\n") {
		t.Errorf("rendered init output missing:\n%s", out)
	}
	if !strings.Contains(out, "foo.default hook[health_check]: probe failed\n") {
		t.Errorf("health stderr missing:\n%s", out)
	}
}
