// SPDX-License-Identifier: MIT

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/threadwarden/internal/clock"
	"github.com/ManuGH/threadwarden/internal/reconcile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

type recordingRunner struct {
	calls   chan string
	release chan struct{}
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{calls: make(chan string, 8)}
}

func (r *recordingRunner) Run(ctx context.Context) (*reconcile.Run, error) {
	r.calls <- reconcile.TriggerFromContext(ctx)
	if r.release != nil {
		<-r.release
	}
	return &reconcile.Run{}, nil
}

func waitCall(t *testing.T, r *recordingRunner) string {
	t.Helper()
	select {
	case trigger := <-r.calls:
		return trigger
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not invoked")
		return ""
	}
}

func waitTimer(t *testing.T, fake *clock.Fake) {
	t.Helper()
	select {
	case <-fake.Created():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not arm its timer")
	}
}

func TestParseSpec(t *testing.T) {
	_, err := ParseSpec("1 0 * * *")
	assert.NoError(t, err)

	_, err = ParseSpec("not a schedule")
	assert.Error(t, err)

	_, err = ParseSpec("61 0 * * *")
	assert.Error(t, err)
}

func TestNext_OneMinutePastMidnight(t *testing.T) {
	la := losAngeles(t)
	d, err := NewDaily(Config{Spec: DefaultSpec, Location: la}, newRecordingRunner(), nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "before fire time",
			from: time.Date(2026, time.October, 15, 0, 0, 30, 0, la),
			want: time.Date(2026, time.October, 15, 0, 1, 0, 0, la),
		},
		{
			name: "exactly at fire time moves to tomorrow",
			from: time.Date(2026, time.October, 15, 0, 1, 0, 0, la),
			want: time.Date(2026, time.October, 16, 0, 1, 0, 0, la),
		},
		{
			name: "evaluated in configured zone",
			from: time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC), // 05:00 in LA
			want: time.Date(2026, time.October, 16, 0, 1, 0, 0, la),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(d.Next(tt.from)), "got %s want %s", d.Next(tt.from), tt.want)
		})
	}
}

func TestNext_AcrossDaylightSavingEnd(t *testing.T) {
	la := losAngeles(t)
	d, err := NewDaily(Config{Location: la}, newRecordingRunner(), nil)
	require.NoError(t, err)

	// Clocks fall back on 2026-11-01; the wall-clock fire time is kept.
	fire := time.Date(2026, time.November, 1, 0, 1, 0, 0, la)
	next := d.Next(fire)

	want := time.Date(2026, time.November, 2, 0, 1, 0, 0, la)
	assert.True(t, want.Equal(next), "got %s want %s", next, want)
	assert.Equal(t, 25*time.Hour, next.Sub(fire))
}

func TestDaily_FiresEveryDay(t *testing.T) {
	la := losAngeles(t)
	fake := clock.NewFake(time.Date(2026, time.October, 15, 0, 0, 0, 0, la))
	runner := newRecordingRunner()

	d, err := NewDaily(Config{Spec: DefaultSpec, Location: la}, runner, fake)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	waitTimer(t, fake)
	assert.True(t, d.LastFire().IsZero())

	fake.Advance(time.Minute)
	assert.Equal(t, reconcile.TriggerSchedule, waitCall(t, runner))
	waitTimer(t, fake)
	assert.True(t, time.Date(2026, time.October, 15, 0, 1, 0, 0, la).Equal(d.LastFire()))

	fake.Advance(24*time.Hour - time.Second)
	select {
	case <-runner.calls:
		t.Fatal("fired before the next day")
	default:
	}

	fake.Advance(time.Second)
	assert.Equal(t, reconcile.TriggerSchedule, waitCall(t, runner))
	waitTimer(t, fake)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestTrigger_RejectsOverlappingRun(t *testing.T) {
	runner := newRecordingRunner()
	runner.release = make(chan struct{})

	d, err := NewDaily(Config{Location: time.UTC}, runner, clock.NewFake(time.Now()))
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := d.Trigger(reconcile.WithTrigger(context.Background(), reconcile.TriggerSchedule))
		first <- err
	}()
	waitCall(t, runner)

	_, err = d.Trigger(reconcile.WithTrigger(context.Background(), reconcile.TriggerCommand))
	assert.ErrorIs(t, err, ErrRunInFlight)

	close(runner.release)
	require.NoError(t, <-first)

	// The lease is released once the run finishes.
	_, err = d.Trigger(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "manual", waitCall(t, runner))
}

func TestNewDaily_RejectsBadSpec(t *testing.T) {
	_, err := NewDaily(Config{Spec: "every day", Location: time.UTC}, newRecordingRunner(), nil)
	assert.Error(t, err)
}
