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

// Package hook implements the lifecycle hooks of a supervised service:
// discovery of the hook templates a service provides, compilation of
// those templates against a configuration incarnation into installed
// executable scripts, and execution of the scripts with their output
// drained into the service's log sink.
//
// Each hook kind produces a typed outcome. One generic Hook type covers
// all six kinds; the kinds differ only in the decoder that maps the
// child's exit status to the outcome type and in the sentinel returned
// when the child cannot be run.
package hook

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/steward-sh/steward/internal/output"
	"github.com/steward-sh/steward/internal/perm"
	"github.com/steward-sh/steward/internal/svcconf"
	"github.com/steward-sh/steward/internal/templating"
)

// Permissions are the mode bits applied to every installed hook script.
const Permissions os.FileMode = 0o755

// defaultStopGrace is how long a cancelled hook gets between SIGTERM
// and SIGKILL.
const defaultStopGrace = 5 * time.Second

// renderPair binds a registered template to the installed script path
// its rendered output is written to.
type renderPair struct {
	path string
	tmpl *templating.Template
}

func newRenderPair(destDir, templateDir string, kind Kind) (renderPair, error) {
	name := kind.FileName()
	tmpl, err := templating.Register(name, filepath.Join(templateDir, name))
	if err != nil {
		return renderPair{}, err
	}
	return renderPair{path: filepath.Join(destDir, name), tmpl: tmpl}, nil
}

// Hook is one lifecycle hook of a service. T is the kind's outcome
// type: an ExitCode for init, run and reconfigure, a health.Status for
// health_check, a health.SmokeResult for smoke_test and a bool for
// file_updated.
type Hook[T any] struct {
	kind      Kind
	pair      renderPair
	decode    decodeFunc[T]
	sentinel  T
	stopGrace time.Duration
}

// loadHook builds the hook of the given kind if its template exists
// under templateDir. An absent template means the service does not
// provide the hook; a template that fails to register is reported to
// the sink. Both cases yield nil.
func loadHook[T any](sink *output.Sink, destDir, templateDir string, kind Kind, sentinel T, decode decodeFunc[T]) *Hook[T] {
	templatePath := filepath.Join(templateDir, kind.FileName())
	if _, err := os.Stat(templatePath); err != nil {
		slog.Debug("hook template not found, not loading",
			"hook", kind.FileName(), "path", templatePath)
		return nil
	}

	pair, err := newRenderPair(destDir, templateDir, kind)
	if err != nil {
		sink.Announcef("Failed to load hook: %v", err)
		return nil
	}

	return &Hook[T]{
		kind:      kind,
		pair:      pair,
		decode:    decode,
		sentinel:  sentinel,
		stopGrace: defaultStopGrace,
	}
}

// Kind returns the hook's kind.
func (h *Hook[T]) Kind() Kind {
	return h.kind
}

// Path returns the installed script path.
func (h *Hook[T]) Path() string {
	return h.pair.path
}

// Compile renders the hook's template against the given configuration
// incarnation and installs the result as an executable script owned by
// the service identity.
func (h *Hook[T]) Compile(cfg *svcconf.Config) error {
	rendered, err := h.pair.tmpl.Render(cfg.RenderContext())
	if err != nil {
		return err
	}

	if err := h.install([]byte(rendered), cfg.Identity); err != nil {
		return err
	}

	slog.Debug("hook compiled",
		"hook", h.kind.FileName(), "path", h.pair.path, "incarnation", cfg.Incarnation)
	return nil
}

// install stages the script next to its final path and renames it into
// place. The running copy of a long-lived hook keeps its old inode, so
// installing over it cannot fail with ETXTBSY or leave a half-written
// script.
func (h *Hook[T]) install(script []byte, id svcconf.Identity) error {
	name := h.kind.FileName()

	staged, err := os.CreateTemp(filepath.Dir(h.pair.path), "."+name+"-")
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", name, err)
	}
	defer os.Remove(staged.Name())

	if _, err := staged.Write(script); err != nil {
		staged.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := staged.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if id.User != "" {
		if err := perm.SetOwner(staged.Name(), id.User, id.Group); err != nil {
			return err
		}
	}
	if err := perm.SetPermissions(staged.Name(), Permissions); err != nil {
		return err
	}

	if err := os.Rename(staged.Name(), h.pair.path); err != nil {
		return fmt.Errorf("failed to install %s: %w", name, err)
	}
	return nil
}
