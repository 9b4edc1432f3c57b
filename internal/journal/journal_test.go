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

package journal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", testLogger())
	require.Error(t, err)
}

func TestAppendAndTail(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, Event{
		Service: "redis.default",
		Type:    TypeServiceStarting,
	}))
	require.NoError(t, j.Append(ctx, Event{
		Service:    "redis.default",
		Type:       TypeHookRan,
		Hook:       "health_check",
		Outcome:    "critical",
		DurationMS: 42,
		Detail:     "exit status 2",
	}))
	require.NoError(t, j.Append(ctx, Event{
		Service: "redis.default",
		Type:    TypeServiceStopped,
	}))

	events, err := j.Tail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Oldest first.
	assert.Equal(t, TypeServiceStarting, events[0].Type)
	assert.Equal(t, TypeHookRan, events[1].Type)
	assert.Equal(t, TypeServiceStopped, events[2].Type)

	assert.Equal(t, "redis.default", events[1].Service)
	assert.Equal(t, "health_check", events[1].Hook)
	assert.Equal(t, "critical", events[1].Outcome)
	assert.Equal(t, int64(42), events[1].DurationMS)
	assert.Equal(t, "exit status 2", events[1].Detail)
}

func TestAppendFillsIDAndTime(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, Event{
		Service: "redis.default",
		Type:    TypeServiceStarted,
	}))

	events, err := j.Tail(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, uuid.Validate(events[0].ID))
	assert.WithinDuration(t, time.Now(), events[0].Time, time.Minute)
}

func TestTailLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, j.Append(ctx, Event{
			Service: "redis.default",
			Type:    TypeHookRan,
			Detail:  fmt.Sprintf("event %d", i),
		}))
	}

	events, err := j.Tail(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// The newest three, oldest first.
	assert.Equal(t, "event 7", events[0].Detail)
	assert.Equal(t, "event 8", events[1].Detail)
	assert.Equal(t, "event 9", events[2].Detail)
}

func TestTailDefaultLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, Event{Service: "redis.default", Type: TypeServiceStarted}))
	require.NoError(t, j.Append(ctx, Event{Service: "redis.default", Type: TypeServiceStopped}))

	events, err := j.Tail(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, Event{
		Service: "redis.default",
		Type:    TypeConfigReloaded,
		Outcome: "incarnation 2",
	}))
	require.NoError(t, j.Close())

	j, err = Open(path, testLogger())
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Tail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TypeConfigReloaded, events[0].Type)
	assert.Equal(t, "incarnation 2", events[0].Outcome)
}

func TestRecordSwallowsErrors(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Close())

	// The database is closed, so the write fails; Record must not
	// propagate that to the caller.
	j.Record(context.Background(), Event{Service: "redis.default", Type: TypeServiceExited})
}

func TestNilJournal(t *testing.T) {
	var j *Journal

	j.Record(context.Background(), Event{Type: TypeServiceStarted})

	events, err := j.Tail(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, j.Close())
}
