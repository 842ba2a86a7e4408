// SPDX-License-Identifier: MIT

package reconcile

import "context"

type triggerKey struct{}

// Trigger reasons.
const (
	TriggerSchedule = "schedule"
	TriggerCommand  = "command"
	TriggerCLI      = "cli"
)

// WithTrigger records why a run was started.
func WithTrigger(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, triggerKey{}, reason)
}

// TriggerFromContext returns the trigger reason, or "manual" if none was set.
func TriggerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(triggerKey{}).(string); ok && v != "" {
		return v
	}
	return "manual"
}
