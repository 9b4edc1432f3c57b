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

// Package pidfile enforces single-instance daemon startup through a
// locked pid file. Creation is atomic (O_EXCL) and the file is held
// under an exclusive flock for the daemon's lifetime, so a crashed
// daemon leaves a detectably stale file rather than a lie.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrRunning is returned when another live daemon holds the pid file.
	ErrRunning = errors.New("daemon already running")

	// ErrInvalid is returned when the pid file contains non-numeric data.
	ErrInvalid = errors.New("invalid pid in file")

	// ErrUnsafeDirectory is returned when the pid file parent is
	// world-writable.
	ErrUnsafeDirectory = errors.New("pid file directory is world-writable")
)

// File is a pid file at a fixed path.
type File struct {
	path string
	lock *os.File
}

// New returns a pid file handle for the given path.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the pid file location.
func (f *File) Path() string {
	return f.path
}

// Acquire records pid in the file and locks it. A leftover file from a
// dead process is removed and taken over; a file held by a live
// process yields ErrRunning.
func (f *File) Acquire(pid int) error {
	err := f.create(pid)
	if !errors.Is(err, os.ErrExist) {
		return err
	}

	stale, readErr := f.isStale()
	if readErr != nil || !stale {
		return fmt.Errorf("%w (pid file %s)", ErrRunning, f.path)
	}

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale pid file: %w", err)
	}
	return f.create(pid)
}

// create makes the pid file exclusively and locks it.
func (f *File) create(pid int) error {
	dir := filepath.Dir(f.path)
	if err := verifyDirectory(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create pid file directory: %w", err)
	}

	// O_EXCL defeats symlink swaps; O_RDWR is needed for flock.
	file, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return err
		}
		return fmt.Errorf("failed to create pid file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		os.Remove(f.path)
		if err == syscall.EWOULDBLOCK {
			return fmt.Errorf("%w (pid file %s)", ErrRunning, f.path)
		}
		return fmt.Errorf("failed to lock pid file: %w", err)
	}

	if _, err := fmt.Fprintf(file, "%d\n", pid); err != nil {
		file.Close()
		os.Remove(f.path)
		return fmt.Errorf("failed to write pid: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(f.path)
		return fmt.Errorf("failed to sync pid file: %w", err)
	}

	// Held open for the daemon's lifetime to keep the lock.
	f.lock = file
	return nil
}

// isStale reports whether the recorded process no longer exists.
func (f *File) isStale() (bool, error) {
	pid, err := f.Read()
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			// Garbage contents, treat as stale.
			return true, nil
		}
		return false, err
	}

	// Signal 0 probes for existence without delivering anything.
	err = syscall.Kill(pid, 0)
	if err == nil {
		return false, nil
	}
	return errors.Is(err, syscall.ESRCH), nil
}

// Read returns the pid recorded in the file.
func (f *File) Read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, strings.TrimSpace(string(data)))
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalid, pid)
	}
	return pid, nil
}

// Release unlocks and removes the pid file.
func (f *File) Release() error {
	if f.lock != nil {
		syscall.Flock(int(f.lock.Fd()), syscall.LOCK_UN)
		f.lock.Close()
		f.lock = nil
	}

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	return nil
}

// verifyDirectory rejects world-writable parents, which would let any
// user plant a symlink where the pid file goes.
func verifyDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat pid file directory: %w", err)
	}

	if info.Mode()&0o002 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, info.Mode()&os.ModePerm)
	}
	return nil
}
