// SPDX-License-Identifier: MIT

package commands

import (
	"errors"
	"fmt"

	"github.com/ManuGH/threadwarden/internal/reconcile"
	"github.com/ManuGH/threadwarden/internal/schedule"
)

// FormatRun renders the result of a triggered reconciliation for chat.
func FormatRun(run *reconcile.Run, err error) string {
	switch {
	case errors.Is(err, schedule.ErrRunInFlight):
		return "A reconciliation run is already in progress. Try again once it finishes."
	case err != nil:
		return fmt.Sprintf("Reconciliation aborted: %v", err)
	case run == nil:
		return "Reconciliation finished without a result."
	}

	c := run.Counts()
	return fmt.Sprintf(
		"Reconciliation for %s finished: %d applied, %d not due today, %d invalid, %d member not found, %d failed (%d rows).",
		run.RunDate, c.Applied, c.NotToday, c.Invalid, c.MemberNotFound, c.Failed, c.Total(),
	)
}
