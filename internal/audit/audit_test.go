// SPDX-License-Identifier: MIT

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/threadwarden/internal/log"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	l := newLogger(zerolog.New(buf))
	l.now = func() time.Time { return time.Date(2026, 10, 15, 0, 1, 0, 0, time.UTC) }
	return l
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger(t *testing.T) {
	assert.NotNil(t, NewLogger())
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).Log(Event{
		Type:     EventMemberAdd,
		Actor:    "alice",
		Action:   "added member to private thread",
		Resource: "thread-1",
		Result:   ResultSuccess,
		Details:  map[string]string{"member_id": "u2"},
	})

	entry := decode(t, &buf)
	assert.Equal(t, "audit", entry["log_type"])
	assert.Equal(t, "audit.member.add", entry["event"])
	assert.Equal(t, "alice", entry["actor"])
	assert.Equal(t, "thread-1", entry["resource"])
	assert.Equal(t, "u2", entry["member_id"])
	assert.Equal(t, "2026-10-15T00:01:00Z", entry["timestamp"])
}

func TestLogger_MemberChangeFailure(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).MemberChange(context.Background(), EventMemberRemove, "alice", "thread-1", "u2", errors.New("missing access"))

	entry := decode(t, &buf)
	assert.Equal(t, "member.remove", entry["event_type"])
	assert.Equal(t, "removed member from private thread", entry["action"])
	assert.Equal(t, ResultFailure, entry["result"])
	assert.Equal(t, "missing access", entry["error"])
}

func TestLogger_ReconcileTriggeredTakesRunIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.ContextWithRunID(context.Background(), "run-7")
	newTestLogger(&buf).ReconcileTriggered(ctx, "alice", "command", "", nil)

	entry := decode(t, &buf)
	assert.Equal(t, "run-7", entry["run_id"])
	assert.Equal(t, "command", entry["trigger"])
	assert.Equal(t, ResultSuccess, entry["result"])
}

func TestLogger_CommandDenied(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).CommandDenied(context.Background(), "mallory", "addmember", "general")

	entry := decode(t, &buf)
	assert.Equal(t, ResultDenied, entry["result"])
	assert.Equal(t, "invoked addmember without permission", entry["action"])
}
