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
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/steward-sh/steward/internal/log"
	"github.com/steward-sh/steward/internal/output"
	"github.com/steward-sh/steward/internal/perm"
	"github.com/steward-sh/steward/internal/svcconf"
)

// drainBufSize is the read size used on each child stream.
const drainBufSize = 4 * 1024

// Run executes the installed hook script and returns its decoded
// outcome. The child's stdout and stderr are drained concurrently into
// the sink, one emitted line per line of output, under the hook's
// preamble. Run blocks until the child has terminated and both streams
// are fully drained.
//
// Failures to spawn or reap the child are reported to the sink and
// yield the kind's sentinel outcome.
func (h *Hook[T]) Run(sink *output.Sink, id svcconf.Identity) T {
	return h.RunContext(context.Background(), sink, id)
}

// RunContext is Run with a deadline. When ctx is cancelled the child's
// process group is signalled with SIGTERM, then SIGKILL after a grace
// period, and the sentinel outcome is returned.
func (h *Hook[T]) RunContext(ctx context.Context, sink *output.Sink, id svcconf.Identity) T {
	name := h.kind.FileName()

	cmd := exec.Command(h.pair.path)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := applyIdentity(cmd, id); err != nil {
		sink.Announcef("Hook failed to run, %s, %v", name, err)
		recordRun(h.kind, resultSpawnFailed, 0)
		return h.sentinel
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		sink.Announcef("Hook failed to run, %s, %v", name, err)
		recordRun(h.kind, resultSpawnFailed, 0)
		return h.sentinel
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		sink.Announcef("Hook failed to run, %s, %v", name, err)
		recordRun(h.kind, resultSpawnFailed, 0)
		return h.sentinel
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		sink.Announcef("Hook failed to run, %s, %v", name, err)
		recordRun(h.kind, resultSpawnFailed, 0)
		return h.sentinel
	}

	preamble := sink.HookPreamble(name)
	var wg sync.WaitGroup
	wg.Add(2)
	go drain(&wg, sink, preamble, stdout)
	go drain(&wg, sink, preamble, stderr)

	done := make(chan struct{})
	go h.reaper(ctx, cmd, done)

	// Both streams hit EOF once the child's side of the pipes is gone.
	// Draining before reaping guarantees no output line is lost.
	wg.Wait()
	err = cmd.Wait()
	close(done)

	elapsed := time.Since(start)

	if ctx.Err() != nil {
		sink.Announcef("Hook killed before completing, %s, %v", name, ctx.Err())
		recordRun(h.kind, resultKilled, elapsed)
		return h.sentinel
	}

	var status ExitStatus
	switch werr := err.(type) {
	case nil:
		status = statusOf(cmd.ProcessState)
	case *exec.ExitError:
		status = statusOf(werr.ProcessState)
	default:
		sink.Announcef("Hook failed to run, %s, %v", name, err)
		recordRun(h.kind, resultWaitFailed, elapsed)
		return h.sentinel
	}

	slog.Debug("hook finished",
		log.HookKey, name, "status", status.String(), log.DurationKey, elapsed.Milliseconds())
	recordRun(h.kind, resultCompleted, elapsed)

	return h.decode(name, status, sink)
}

// reaper tears the child down if ctx is cancelled before it exits. The
// whole process group is signalled so pipeline children die with the
// script.
func (h *Hook[T]) reaper(ctx context.Context, cmd *exec.Cmd, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		pgid := -cmd.Process.Pid
		syscall.Kill(pgid, syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(h.stopGrace):
			syscall.Kill(pgid, syscall.SIGKILL)
		}
	}
}

// applyIdentity makes the child run as the service identity. Dropping
// privileges needs root; otherwise the hook runs as the supervisor's
// own user.
func applyIdentity(cmd *exec.Cmd, id svcconf.Identity) error {
	if id.User == "" {
		return nil
	}
	if os.Geteuid() != 0 {
		slog.Debug("not running as root, hook runs as the supervisor's user",
			"user", id.User)
		return nil
	}

	uid, gid, err := perm.LookupIDs(id.User, id.Group)
	if err != nil {
		return err
	}
	cmd.SysProcAttr.Credential = &syscall.Credential{
		Uid: uint32(uid),
		Gid: uint32(gid),
	}
	return nil
}

// drain forwards each line read from r to the sink under preamble.
// Reads use a fixed buffer so a chatty stream cannot stall its sibling;
// a partial line at EOF is flushed as its own line.
func drain(wg *sync.WaitGroup, sink *output.Sink, preamble string, r io.Reader) {
	defer wg.Done()

	buf := make([]byte, drainBufSize)
	var pending []byte

	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)

			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx == -1 {
					break
				}
				sink.Emit(preamble, string(dropCR(pending[:idx])))
				pending = pending[idx+1:]
			}
		}

		if err != nil {
			if len(pending) > 0 {
				sink.Emit(preamble, string(dropCR(pending)))
			}
			return
		}
	}
}

// dropCR strips a trailing carriage return so CRLF output renders
// cleanly.
func dropCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}
