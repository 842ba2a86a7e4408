// SPDX-License-Identifier: MIT

package directive

import "github.com/ManuGH/threadwarden/internal/changelist"

// Planned is the offline classification of one row: what a run on a given
// day would do with it, without touching the directory.
type Planned struct {
	Row    changelist.Row
	Record *Record
	Err    error
	Due    bool
}

// Plan classifies rows for today in input order.
func (p Parser) Plan(rows []changelist.Row, today Date) []Planned {
	out := make([]Planned, 0, len(rows))
	for _, row := range rows {
		rec, err := p.Parse(row)
		if err != nil {
			out = append(out, Planned{Row: row, Err: err})
			continue
		}
		out = append(out, Planned{Row: row, Record: &rec, Due: IsEffectiveOn(rec, today)})
	}
	return out
}

// PlanSummary aggregates a plan.
type PlanSummary struct {
	Total   int
	Invalid int
	Due     int
	Adds    int
	Removes int
}

// Summarize counts the plan entries.
func Summarize(plan []Planned) PlanSummary {
	s := PlanSummary{Total: len(plan)}
	for _, p := range plan {
		switch {
		case p.Err != nil:
			s.Invalid++
		case p.Due:
			s.Due++
			if p.Record.Action == ActionAdd {
				s.Adds++
			} else {
				s.Removes++
			}
		}
	}
	return s
}
