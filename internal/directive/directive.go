// SPDX-License-Identifier: MIT

// Package directive turns raw change-list rows into validated membership
// directives and decides which of them are due on a given calendar day.
package directive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/threadwarden/internal/changelist"
)

// ErrInvalidRecord marks a row that cannot become a directive.
var ErrInvalidRecord = errors.New("invalid record")

// DefaultLayout is the change-list date format unless configured otherwise.
const DefaultLayout = "2006-01-02"

// Action is what a directive does to the restricted group.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// ParseAction matches the raw token case-insensitively. Anything other than
// the two recognised tokens is invalid.
func ParseAction(raw string) (Action, error) {
	token := strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(token, string(ActionAdd)):
		return ActionAdd, nil
	case strings.EqualFold(token, string(ActionRemove)):
		return ActionRemove, nil
	case token == "":
		return "", fmt.Errorf("%w: empty action", ErrInvalidRecord)
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidRecord, token)
	}
}

// Date is a calendar day without time-of-day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Record is a well-formed directive.
type Record struct {
	MemberID      string
	EffectiveDate Date
	Action        Action
}

// Parser validates rows against a fixed, explicit date layout.
type Parser struct {
	Layout   string
	Location *time.Location
}

// NewParser returns a Parser; an empty layout falls back to DefaultLayout and
// a nil location to UTC.
func NewParser(layout string, loc *time.Location) Parser {
	if layout == "" {
		layout = DefaultLayout
	}
	if loc == nil {
		loc = time.UTC
	}
	return Parser{Layout: layout, Location: loc}
}

// Parse converts a raw row into a Record. Every failure wraps ErrInvalidRecord.
func (p Parser) Parse(row changelist.Row) (Record, error) {
	memberID := strings.TrimSpace(row.MemberID)
	if memberID == "" {
		return Record{}, fmt.Errorf("%w: empty user_id", ErrInvalidRecord)
	}

	raw := strings.TrimSpace(row.Date)
	if raw == "" {
		return Record{}, fmt.Errorf("%w: empty date", ErrInvalidRecord)
	}
	when, err := time.ParseInLocation(p.Layout, raw, p.Location)
	if err != nil {
		return Record{}, fmt.Errorf("%w: date %q does not match layout %q", ErrInvalidRecord, raw, p.Layout)
	}

	action, err := ParseAction(row.Action)
	if err != nil {
		return Record{}, err
	}

	return Record{
		MemberID:      memberID,
		EffectiveDate: DateOf(when, p.Location),
		Action:        action,
	}, nil
}

// IsEffectiveOn reports whether the record is due on today. Only year, month
// and day are compared.
func IsEffectiveOn(r Record, today Date) bool {
	return r.EffectiveDate == today
}

// ValidateLayout rejects layouts that cannot round-trip a calendar day, such
// as a layout without a year or a day component.
func ValidateLayout(layout string) error {
	probe := time.Date(2031, time.November, 27, 0, 0, 0, 0, time.UTC)
	parsed, err := time.Parse(layout, probe.Format(layout))
	if err != nil {
		return fmt.Errorf("date layout %q: %w", layout, err)
	}
	if DateOf(parsed, time.UTC) != DateOf(probe, time.UTC) {
		return fmt.Errorf("date layout %q does not identify a calendar day", layout)
	}
	return nil
}
