// SPDX-License-Identifier: MIT

package reconcile

import (
	"time"

	"github.com/ManuGH/threadwarden/internal/changelist"
	"github.com/ManuGH/threadwarden/internal/directive"
)

// Status classifies what happened to a single change-list row.
type Status string

const (
	StatusApplied         Status = "applied"
	StatusSkippedNotToday Status = "skipped_not_today"
	StatusSkippedInvalid  Status = "skipped_invalid"
	StatusSkippedNotFound Status = "skipped_member_not_found"
	StatusFailed          Status = "failed"
)

// Outcome is the result for one input row. Record is nil when the row could
// not be parsed.
type Outcome struct {
	Row    changelist.Row
	Record *directive.Record
	Status Status
	Reason string
}

// Run is the in-memory result of a single reconciliation pass.
type Run struct {
	ID         string
	Trigger    string
	RunDate    directive.Date
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// Counts tallies outcomes by status.
type Counts struct {
	Applied        int
	NotToday       int
	Invalid        int
	MemberNotFound int
	Failed         int
}

// Total is the number of outcomes counted.
func (c Counts) Total() int {
	return c.Applied + c.NotToday + c.Invalid + c.MemberNotFound + c.Failed
}

// Counts tallies the run's outcomes.
func (r *Run) Counts() Counts {
	var c Counts
	if r == nil {
		return c
	}
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusApplied:
			c.Applied++
		case StatusSkippedNotToday:
			c.NotToday++
		case StatusSkippedInvalid:
			c.Invalid++
		case StatusSkippedNotFound:
			c.MemberNotFound++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Duration is the wall-clock time the run took.
func (r *Run) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary is what the engine remembers about its most recent run.
type Summary struct {
	RunID      string
	Trigger    string
	RunDate    directive.Date
	FinishedAt time.Time
	Counts     Counts
	Err        error
}
