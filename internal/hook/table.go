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
	"log/slog"
	"os"
	"time"

	"github.com/steward-sh/steward/internal/health"
	"github.com/steward-sh/steward/internal/log"
	"github.com/steward-sh/steward/internal/output"
	"github.com/steward-sh/steward/internal/svcconf"
)

// Table holds the hooks a service actually provides. A nil field means
// the service ships no template for that kind. The table is owned by a
// single service supervisor and is not safe for concurrent mutation.
type Table struct {
	FileUpdated *Hook[bool]
	HealthCheck *Hook[health.Status]
	Init        *Hook[ExitCode]
	Reconfigure *Hook[ExitCode]
	Run         *Hook[ExitCode]
	SmokeTest   *Hook[health.SmokeResult]

	// cfgIncarnation is the incarnation the hooks were last compiled
	// against. Zero means never compiled.
	cfgIncarnation uint64
}

// hookRef erases the outcome type so the table can walk its hooks in a
// fixed order.
type hookRef interface {
	refKind() Kind
	compileTo(cfg *svcconf.Config) error
	setStopGrace(d time.Duration)
}

func (h *Hook[T]) refKind() Kind                       { return h.kind }
func (h *Hook[T]) compileTo(cfg *svcconf.Config) error { return h.Compile(cfg) }
func (h *Hook[T]) setStopGrace(d time.Duration)        { h.stopGrace = d }

// LoadTable discovers which hooks the service provides by probing
// templateDir for each kind's template. Installed scripts will be
// written to destDir at compile time. A service with no template
// directory gets an empty table.
func LoadTable(sink *output.Sink, destDir, templateDir string) *Table {
	t := &Table{}

	if info, err := os.Stat(templateDir); err != nil || !info.IsDir() {
		slog.Debug("hook template directory not present",
			log.ServiceKey, sink.Service(), "path", templateDir)
		return t
	}

	t.FileUpdated = loadHook(sink, destDir, templateDir, KindFileUpdated, false, decodeFileUpdated)
	t.HealthCheck = loadHook(sink, destDir, templateDir, KindHealthCheck, health.Unknown, decodeHealth)
	t.Init = loadHook(sink, destDir, templateDir, KindInit, NoExitCode, decodeExitCode)
	t.Reconfigure = loadHook(sink, destDir, templateDir, KindReconfigure, NoExitCode, decodeExitCode)
	t.Run = loadHook(sink, destDir, templateDir, KindRun, NoExitCode, decodeExitCode)
	t.SmokeTest = loadHook(sink, destDir, templateDir, KindSmokeTest, health.SmokeResult{Code: -1}, decodeSmoke)

	return t
}

// each returns the loaded hooks in kind order.
func (t *Table) each() []hookRef {
	refs := make([]hookRef, 0, 6)
	if t.FileUpdated != nil {
		refs = append(refs, t.FileUpdated)
	}
	if t.HealthCheck != nil {
		refs = append(refs, t.HealthCheck)
	}
	if t.Init != nil {
		refs = append(refs, t.Init)
	}
	if t.Reconfigure != nil {
		refs = append(refs, t.Reconfigure)
	}
	if t.Run != nil {
		refs = append(refs, t.Run)
	}
	if t.SmokeTest != nil {
		refs = append(refs, t.SmokeTest)
	}
	return refs
}

// Compile renders and installs every loaded hook against cfg. A table
// already compiled at cfg's incarnation (or newer) is left untouched,
// so repeated compiles against the same snapshot do no filesystem
// writes. A hook that fails to compile is reported to the sink and does
// not stop the others.
func (t *Table) Compile(sink *output.Sink, cfg *svcconf.Config) {
	if t.cfgIncarnation != 0 && cfg.Incarnation <= t.cfgIncarnation {
		slog.Debug("hooks already compiled for this incarnation, skipping",
			log.ServiceKey, sink.Service(), log.IncarnationKey, cfg.Incarnation)
		return
	}
	t.cfgIncarnation = cfg.Incarnation

	for _, h := range t.each() {
		name := h.refKind().FileName()
		if err := h.compileTo(cfg); err != nil {
			sink.Announcef("Failed to compile %s hook: %v", name, err)
			recordCompile(h.refKind(), false)
			continue
		}
		recordCompile(h.refKind(), true)
	}

	slog.Debug("hooks compiled",
		log.ServiceKey, sink.Service(), log.IncarnationKey, cfg.Incarnation)
}

// LastCompiled returns the incarnation the table was last compiled
// against, zero if never.
func (t *Table) LastCompiled() uint64 {
	return t.cfgIncarnation
}

// Present returns the kinds this service provides, in kind order.
func (t *Table) Present() []Kind {
	refs := t.each()
	kinds := make([]Kind, 0, len(refs))
	for _, h := range refs {
		kinds = append(kinds, h.refKind())
	}
	return kinds
}

// SetStopGrace sets how long each hook's child gets between SIGTERM
// and SIGKILL when cancelled.
func (t *Table) SetStopGrace(d time.Duration) {
	if d <= 0 {
		return
	}
	for _, h := range t.each() {
		h.setStopGrace(d)
	}
}
