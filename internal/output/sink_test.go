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

package output

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestEmitFormat(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink("foo.default", &buf)

	sink.Emit(sink.HookPreamble("init"), "starting up")

	want := "foo.default hook[init]: starting up\n"
	if got := buf.String(); got != want {
		t.Errorf("Emit wrote %q, want %q", got, want)
	}
}

func TestAnnounce(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink("foo.default", &buf)

	sink.Announcef("Failed to compile %s hook: %v", "init", "boom")

	want := "foo.default: Failed to compile init hook: boom\n"
	if got := buf.String(); got != want {
		t.Errorf("Announcef wrote %q, want %q", got, want)
	}
}

func TestHookPreamble(t *testing.T) {
	sink := NewSink("redis.cache", &bytes.Buffer{})

	if got := sink.HookPreamble("health_check"); got != "redis.cache hook[health_check]:" {
		t.Errorf("HookPreamble = %q", got)
	}
}

// Concurrent emitters must never interleave within a line.
func TestEmitConcurrent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink("foo.default", &buf)

	const workers = 8
	const lines = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			preamble := sink.HookPreamble(fmt.Sprintf("run%d", w))
			for i := 0; i < lines; i++ {
				sink.Emit(preamble, fmt.Sprintf("line %d", i))
			}
		}(w)
	}
	wg.Wait()

	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(got) != workers*lines {
		t.Fatalf("expected %d lines, got %d", workers*lines, len(got))
	}
	for _, line := range got {
		if !strings.HasPrefix(line, "foo.default hook[run") {
			t.Fatalf("malformed line %q", line)
		}
		if strings.Count(line, "hook[") != 1 {
			t.Fatalf("interleaved line %q", line)
		}
	}
}

func TestNoColorOnNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink("foo.default", &buf)

	sink.Emit(sink.HookPreamble("run"), "plain")

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected no ANSI escapes writing to a buffer, got %q", buf.String())
	}
}
