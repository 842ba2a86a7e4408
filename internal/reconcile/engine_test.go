// SPDX-License-Identifier: MIT

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/threadwarden/internal/changelist"
	"github.com/ManuGH/threadwarden/internal/clock"
	"github.com/ManuGH/threadwarden/internal/directive"
)

const (
	testGroup     = "thread-1"
	testCommunity = "guild-1"
)

type staticSource struct {
	rows []changelist.Row
	err  error
}

func (s staticSource) Load(context.Context) ([]changelist.Row, error) {
	return s.rows, s.err
}

// fakeDirectory is an idempotent in-memory group that records every call.
type fakeDirectory struct {
	mu           sync.Mutex
	community    map[string]bool
	group        map[string]bool
	calls        []string
	groupErr     error
	communityErr error
	applyErr     map[string]error
	panicOn      map[string]bool
	blockApply   bool
}

func newFakeDirectory(members ...string) *fakeDirectory {
	d := &fakeDirectory{
		community: map[string]bool{},
		group:     map[string]bool{},
		applyErr:  map[string]error{},
		panicOn:   map[string]bool{},
	}
	for _, m := range members {
		d.community[m] = true
	}
	return d
}

func (d *fakeDirectory) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *fakeDirectory) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDirectory) ResolveGroup(_ context.Context, groupID string) error {
	d.record("resolve_group " + groupID)
	return d.groupErr
}

func (d *fakeDirectory) ResolveCommunity(_ context.Context, communityID string) error {
	d.record("resolve_community " + communityID)
	return d.communityErr
}

func (d *fakeDirectory) ResolveMember(_ context.Context, _ string, memberID string) (Member, error) {
	d.record("resolve_member " + memberID)
	if !d.community[memberID] {
		return Member{}, fmt.Errorf("%s: %w", memberID, ErrMemberNotFound)
	}
	return Member{ID: memberID}, nil
}

func (d *fakeDirectory) mutate(ctx context.Context, verb, memberID string, present bool) error {
	d.record(verb + " " + memberID)
	if d.panicOn[memberID] {
		panic("directory exploded")
	}
	if d.blockApply {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := d.applyErr[memberID]; err != nil {
		return err
	}
	d.mu.Lock()
	d.group[memberID] = present
	d.mu.Unlock()
	return nil
}

func (d *fakeDirectory) AddToGroup(ctx context.Context, _ string, memberID string) error {
	return d.mutate(ctx, "add", memberID, true)
}

func (d *fakeDirectory) RemoveFromGroup(ctx context.Context, _ string, memberID string) error {
	return d.mutate(ctx, "remove", memberID, false)
}

type outcomeView struct {
	Member string
	Status Status
}

func view(run *Run) []outcomeView {
	out := make([]outcomeView, 0, len(run.Outcomes))
	for _, o := range run.Outcomes {
		out = append(out, outcomeView{Member: o.Row.MemberID, Status: o.Status})
	}
	return out
}

func mutations(calls []string) []string {
	var out []string
	for _, c := range calls {
		if strings.HasPrefix(c, "add ") || strings.HasPrefix(c, "remove ") {
			out = append(out, c)
		}
	}
	return out
}

var today = directive.Date{Year: 2026, Month: time.October, Day: 15}

func newTestEngine(src changelist.Source, dir Directory, opts ...Option) *Engine {
	cfg := Config{
		GroupID:     testGroup,
		CommunityID: testCommunity,
		Location:    time.UTC,
	}
	opts = append([]Option{WithIDGenerator(func() string { return "run-test" })}, opts...)
	return NewEngine(cfg, src, dir, opts...)
}

func TestEngine_ThreeRowScenario(t *testing.T) {
	dir := newFakeDirectory("U1", "U2", "U3")
	src := staticSource{rows: []changelist.Row{
		{Line: 2, MemberID: "U1", Date: "2026-10-15", Action: "Add"},
		{Line: 3, MemberID: "U2", Date: "2026-10-15", Action: "remove"},
		{Line: 4, MemberID: "U3", Date: "2026-10-14", Action: "Add"},
	}}

	run, err := newTestEngine(src, dir).RunOn(context.Background(), today)
	require.NoError(t, err)

	want := []outcomeView{
		{Member: "U1", Status: StatusApplied},
		{Member: "U2", Status: StatusApplied},
		{Member: "U3", Status: StatusSkippedNotToday},
	}
	if diff := cmp.Diff(want, view(run)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, directive.ActionAdd, run.Outcomes[0].Record.Action)
	assert.Equal(t, directive.ActionRemove, run.Outcomes[1].Record.Action)
	assert.Equal(t, []string{"add U1", "remove U2"}, mutations(dir.Calls()))
	assert.Equal(t, "run-test", run.ID)
	assert.Equal(t, today, run.RunDate)
}

func TestEngine_InvalidRowsNeverReachDirectory(t *testing.T) {
	dir := newFakeDirectory("U1", "U2", "U3")
	src := staticSource{rows: []changelist.Row{
		{Line: 2, MemberID: "U1", Date: "10/15/2026", Action: "add"},
		{Line: 3, MemberID: "U2", Date: "2026-10-15", Action: "kick"},
		{Line: 4, MemberID: "U3", Date: "2026-10-15", Action: ""},
		{Line: 5, MemberID: "", Date: "2026-10-15", Action: "add"},
	}}

	run, err := newTestEngine(src, dir).RunOn(context.Background(), today)
	require.NoError(t, err)

	require.Len(t, run.Outcomes, 4)
	for _, o := range run.Outcomes {
		assert.Equal(t, StatusSkippedInvalid, o.Status, "line %d", o.Row.Line)
		assert.Nil(t, o.Record)
		assert.NotEmpty(t, o.Reason)
	}
	assert.Equal(t, []string{
		"resolve_group " + testGroup,
		"resolve_community " + testCommunity,
	}, dir.Calls())
}

func TestEngine_NotTodayIgnoresTimeOfDay(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	dir := newFakeDirectory("U1", "U2")
	src := staticSource{rows: []changelist.Row{
		{Line: 2, MemberID: "U1", Date: "2026-10-15 23:59", Action: "add"},
		{Line: 3, MemberID: "U2", Date: "2026-10-16 00:00", Action: "add"},
	}}

	// 00:01 on the 15th in Los Angeles.
	fake := clock.NewFake(time.Date(2026, time.October, 15, 7, 1, 0, 0, time.UTC))
	e := NewEngine(Config{
		GroupID:     testGroup,
		CommunityID: testCommunity,
		DateLayout:  "2006-01-02 15:04",
		Location:    la,
	}, src, dir, WithClock(fake))

	run, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, today, run.RunDate)
	assert.Equal(t, []outcomeView{
		{Member: "U1", Status: StatusApplied},
		{Member: "U2", Status: StatusSkippedNotToday},
	}, view(run))
}

func TestEngine_AddAndRemoveAreIdempotent(t *testing.T) {
	dir := newFakeDirectory("U1", "U2")
	dir.group["U1"] = true
	src := staticSource{rows: []changelist.Row{
		{Line: 2, MemberID: "U1", Date: "2026-10-15", Action: "add"},
		{Line: 3, MemberID: "U2", Date: "2026-10-15", Action: "remove"},
	}}
	e := newTestEngine(src, dir)

	for i := 0; i < 2; i++ {
		run, err := e.RunOn(context.Background(), today)
		require.NoError(t, err)
		assert.Equal(t, Counts{Applied: 2}, run.Counts(), "pass %d", i)
	}
	assert.True(t, dir.group["U1"])
	assert.False(t, dir.group["U2"])
}

func TestEngine_FaultIsolation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *fakeDirectory)
	}{
		{name: "apply error", setup: func(d *fakeDirectory) { d.applyErr["U3"] = errors.New("503 service unavailable") }},
		{name: "apply panic", setup: func(d *fakeDirectory) { d.panicOn["U3"] = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newFakeDirectory("U1", "U2", "U3", "U4", "U5")
			tt.setup(dir)

			var rows []changelist.Row
			for i, id := range []string{"U1", "U2", "U3", "U4", "U5"} {
				rows = append(rows, changelist.Row{Line: i + 2, MemberID: id, Date: "2026-10-15", Action: "add"})
			}

			run, err := newTestEngine(staticSource{rows: rows}, dir).RunOn(context.Background(), today)
			require.NoError(t, err)
			require.Len(t, run.Outcomes, 5)

			for i, o := range run.Outcomes {
				if i == 2 {
					assert.Equal(t, StatusFailed, o.Status)
					assert.NotEmpty(t, o.Reason)
					continue
				}
				assert.Equal(t, StatusApplied, o.Status, "row %d", i)
			}
			assert.Equal(t, Counts{Applied: 4, Failed: 1}, run.Counts())
		})
	}
}

func TestEngine_MemberNotFound(t *testing.T) {
	dir := newFakeDirectory("U1")
	src := staticSource{rows: []changelist.Row{
		{Line: 2, MemberID: "ghost", Date: "2026-10-15", Action: "add"},
		{Line: 3, MemberID: "U1", Date: "2026-10-15", Action: "add"},
	}}

	run, err := newTestEngine(src, dir).RunOn(context.Background(), today)
	require.NoError(t, err)

	assert.Equal(t, []outcomeView{
		{Member: "ghost", Status: StatusSkippedNotFound},
		{Member: "U1", Status: StatusApplied},
	}, view(run))
	assert.Equal(t, []string{"add U1"}, mutations(dir.Calls()))
}

func TestEngine_SourceUnavailableAbortsRun(t *testing.T) {
	dir := newFakeDirectory()
	src := staticSource{err: fmt.Errorf("%w: open members.csv: no such file", changelist.ErrSourceUnavailable)}

	e := newTestEngine(src, dir)
	run, err := e.RunOn(context.Background(), today)

	require.ErrorIs(t, err, changelist.ErrSourceUnavailable)
	assert.Empty(t, run.Outcomes)
	assert.Empty(t, dir.Calls())

	last, ok := e.Last()
	require.True(t, ok)
	assert.ErrorIs(t, last.Err, changelist.ErrSourceUnavailable)
}

func TestEngine_PreconditionUnresolved(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *fakeDirectory)
	}{
		{name: "group", setup: func(d *fakeDirectory) { d.groupErr = errors.New("unknown channel") }},
		{name: "community", setup: func(d *fakeDirectory) { d.communityErr = errors.New("unknown guild") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newFakeDirectory("U1")
			tt.setup(dir)
			src := staticSource{rows: []changelist.Row{{Line: 2, MemberID: "U1", Date: "2026-10-15", Action: "add"}}}

			run, err := newTestEngine(src, dir).RunOn(context.Background(), today)
			require.ErrorIs(t, err, ErrPreconditionUnresolved)
			assert.Empty(t, run.Outcomes)
			assert.Empty(t, mutations(dir.Calls()))
		})
	}
}

func TestEngine_CallTimeoutFailsOnlyThatRow(t *testing.T) {
	dir := newFakeDirectory("U1")
	dir.blockApply = true
	src := staticSource{rows: []changelist.Row{{Line: 2, MemberID: "U1", Date: "2026-10-15", Action: "add"}}}

	e := NewEngine(Config{
		GroupID:     testGroup,
		CommunityID: testCommunity,
		CallTimeout: 20 * time.Millisecond,
	}, src, dir)

	run, err := e.RunOn(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, StatusFailed, run.Outcomes[0].Status)
	assert.Contains(t, run.Outcomes[0].Reason, context.DeadlineExceeded.Error())
}

func TestEngine_LastSummaryAndTrigger(t *testing.T) {
	dir := newFakeDirectory("U1")
	src := staticSource{rows: []changelist.Row{
		{Line: 2, MemberID: "U1", Date: "2026-10-15", Action: "add"},
		{Line: 3, MemberID: "U1", Date: "bogus", Action: "add"},
	}}
	e := newTestEngine(src, dir)

	_, ok := e.Last()
	assert.False(t, ok)

	ctx := WithTrigger(context.Background(), TriggerCommand)
	run, err := e.RunOn(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, TriggerCommand, run.Trigger)

	last, ok := e.Last()
	require.True(t, ok)
	assert.Equal(t, "run-test", last.RunID)
	assert.Equal(t, TriggerCommand, last.Trigger)
	assert.Equal(t, Counts{Applied: 1, Invalid: 1}, last.Counts)
	assert.NoError(t, last.Err)
}

func TestTriggerFromContext_Default(t *testing.T) {
	assert.Equal(t, "manual", TriggerFromContext(context.Background()))
}
