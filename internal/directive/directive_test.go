// SPDX-License-Identifier: MIT

package directive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/threadwarden/internal/changelist"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		raw     string
		want    Action
		wantErr bool
	}{
		{raw: "add", want: ActionAdd},
		{raw: "Add", want: ActionAdd},
		{raw: " ADD ", want: ActionAdd},
		{raw: "remove", want: ActionRemove},
		{raw: "REMOVE", want: ActionRemove},
		{raw: "", wantErr: true},
		{raw: "delete", wantErr: true},
		{raw: "add!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAction(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParser_Parse(t *testing.T) {
	p := NewParser("", time.UTC)

	rec, err := p.Parse(changelist.Row{MemberID: " U1 ", Date: "2026-10-15", Action: "Add"})
	require.NoError(t, err)
	assert.Equal(t, Record{
		MemberID:      "U1",
		EffectiveDate: Date{Year: 2026, Month: time.October, Day: 15},
		Action:        ActionAdd,
	}, rec)
}

func TestParser_ParseInvalid(t *testing.T) {
	p := NewParser(DefaultLayout, time.UTC)

	tests := []struct {
		name string
		row  changelist.Row
	}{
		{name: "empty member", row: changelist.Row{Date: "2026-10-15", Action: "add"}},
		{name: "empty date", row: changelist.Row{MemberID: "U1", Action: "add"}},
		{name: "locale style date", row: changelist.Row{MemberID: "U1", Date: "10/15/2026", Action: "add"}},
		{name: "impossible date", row: changelist.Row{MemberID: "U1", Date: "2026-02-30", Action: "add"}},
		{name: "unknown action", row: changelist.Row{MemberID: "U1", Date: "2026-10-15", Action: "kick"}},
		{name: "empty action", row: changelist.Row{MemberID: "U1", Date: "2026-10-15"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.row)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestIsEffectiveOn_IgnoresTimeOfDay(t *testing.T) {
	la := mustLocation(t, "America/Los_Angeles")
	p := NewParser("2006-01-02 15:04", la)

	rec, err := p.Parse(changelist.Row{MemberID: "U1", Date: "2026-10-15 23:59", Action: "add"})
	require.NoError(t, err)

	earlyMorning := time.Date(2026, time.October, 15, 0, 1, 0, 0, la)
	lateEvening := time.Date(2026, time.October, 15, 23, 59, 59, 0, la)
	nextDay := time.Date(2026, time.October, 16, 0, 0, 0, 0, la)

	assert.True(t, IsEffectiveOn(rec, DateOf(earlyMorning, la)))
	assert.True(t, IsEffectiveOn(rec, DateOf(lateEvening, la)))
	assert.False(t, IsEffectiveOn(rec, DateOf(nextDay, la)))
}

func TestDateOf_UsesConfiguredZone(t *testing.T) {
	la := mustLocation(t, "America/Los_Angeles")

	// 06:30 UTC on the 16th is still the evening of the 15th in Los Angeles.
	instant := time.Date(2026, time.October, 16, 6, 30, 0, 0, time.UTC)

	assert.Equal(t, Date{Year: 2026, Month: time.October, Day: 15}, DateOf(instant, la))
	assert.Equal(t, Date{Year: 2026, Month: time.October, Day: 16}, DateOf(instant, time.UTC))
	assert.Equal(t, "2026-10-15", DateOf(instant, la).String())
}

func TestValidateLayout(t *testing.T) {
	assert.NoError(t, ValidateLayout("2006-01-02"))
	assert.NoError(t, ValidateLayout("01/02/2006"))
	assert.NoError(t, ValidateLayout("02.01.2006 15:04"))
	assert.Error(t, ValidateLayout("01/02"), "no year")
	assert.Error(t, ValidateLayout("2006-01"), "no day")
}

func TestPlanAndSummarize(t *testing.T) {
	p := NewParser(DefaultLayout, time.UTC)
	today := Date{Year: 2026, Month: time.October, Day: 15}

	plan := p.Plan([]changelist.Row{
		{Line: 2, MemberID: "U1", Date: "2026-10-15", Action: "Add"},
		{Line: 3, MemberID: "U2", Date: "2026-10-15", Action: "remove"},
		{Line: 4, MemberID: "U3", Date: "2026-10-14", Action: "Add"},
		{Line: 5, MemberID: "U4", Date: "not a date", Action: "add"},
	}, today)

	require.Len(t, plan, 4)
	assert.True(t, plan[0].Due)
	assert.True(t, plan[1].Due)
	assert.False(t, plan[2].Due)
	assert.ErrorIs(t, plan[3].Err, ErrInvalidRecord)

	assert.Equal(t, PlanSummary{Total: 4, Invalid: 1, Due: 2, Adds: 1, Removes: 1}, Summarize(plan))
}
