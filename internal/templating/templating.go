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

// Package templating renders hook templates against a service's live
// configuration. Templates use text/template syntax; the render context
// is supplied by the caller at render time, so one registered template
// can be rendered against successive configuration incarnations.
package templating

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

// Template is a parsed hook template ready to be rendered.
type Template struct {
	name string
	tmpl *template.Template
}

// Register reads and parses the template file at sourcePath. It fails
// if the file cannot be read or does not parse.
func Register(name, sourcePath string) (*Template, error) {
	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %q: %w", name, err)
	}

	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", name, err)
	}

	return &Template{name: name, tmpl: tmpl}, nil
}

// Name returns the name the template was registered under.
func (t *Template) Name() string {
	return t.name
}

// Render executes the template against the given context and returns
// the rendered text.
func (t *Template) Render(ctx any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", t.name, err)
	}
	return buf.String(), nil
}
