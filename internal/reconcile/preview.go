// SPDX-License-Identifier: MIT

package reconcile

import (
	"context"

	"github.com/ManuGH/threadwarden/internal/directive"
	xglog "github.com/ManuGH/threadwarden/internal/log"
	"github.com/ManuGH/threadwarden/internal/metrics"
)

// Preview loads the change list and classifies every row for today without
// touching the directory.
func (e *Engine) Preview(ctx context.Context) ([]directive.Planned, error) {
	return e.PreviewOn(ctx, e.Today())
}

// PreviewOn is Preview for an explicit day. Invalid rows are logged with
// their line numbers so operators can fix them before the next run.
func (e *Engine) PreviewOn(ctx context.Context, today directive.Date) ([]directive.Planned, error) {
	rows, err := e.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	plan := e.parser.Plan(rows, today)
	sum := directive.Summarize(plan)
	metrics.SetChangelistRows(sum.Total, sum.Invalid, sum.Due)

	logger := xglog.WithContext(ctx, e.logger)
	for _, p := range plan {
		if p.Err == nil {
			continue
		}
		logger.Warn().
			Str(xglog.FieldEvent, "changelist.invalid_row").
			Int(xglog.FieldLine, p.Row.Line).
			Str(xglog.FieldMemberID, p.Row.MemberID).
			Err(p.Err).
			Msg("change list row will be skipped")
	}
	logger.Info().
		Str(xglog.FieldEvent, "changelist.validated").
		Str(xglog.FieldRunDate, today.String()).
		Int("rows", sum.Total).
		Int("invalid", sum.Invalid).
		Int("due", sum.Due).
		Int("adds", sum.Adds).
		Int("removes", sum.Removes).
		Msg("change list validated")
	return plan, nil
}
