// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by reconciliation and gateway spans.
const (
	RunIDKey      = "reconcile.run_id"
	RunDateKey    = "reconcile.run_date"
	RunTriggerKey = "reconcile.trigger"
	RunRowsKey    = "reconcile.rows"

	OutcomeAppliedKey  = "reconcile.applied"
	OutcomeSkippedKey  = "reconcile.skipped"
	OutcomeFailedKey   = "reconcile.failed"
	OutcomeInvalidKey  = "reconcile.invalid"
	OutcomeNotFoundKey = "reconcile.member_not_found"

	MemberIDKey = "directory.member_id"
	GroupIDKey  = "directory.group_id"
	ActionKey   = "directory.action"
	LineKey     = "changelist.line"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RunAttributes identifies a reconciliation run.
func RunAttributes(runID, runDate, trigger string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(RunIDKey, runID),
		attribute.String(RunDateKey, runDate),
	}
	if trigger != "" {
		attrs = append(attrs, attribute.String(RunTriggerKey, trigger))
	}
	return attrs
}

// RunResultAttributes summarises a finished run.
func RunResultAttributes(rows, applied, skippedNotToday, invalid, notFound, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(RunRowsKey, rows),
		attribute.Int(OutcomeAppliedKey, applied),
		attribute.Int(OutcomeSkippedKey, skippedNotToday),
		attribute.Int(OutcomeInvalidKey, invalid),
		attribute.Int(OutcomeNotFoundKey, notFound),
		attribute.Int(OutcomeFailedKey, failed),
	}
}

// ApplyAttributes describes one directory mutation.
func ApplyAttributes(groupID, memberID, action string, line int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(GroupIDKey, groupID),
		attribute.String(MemberIDKey, memberID),
		attribute.String(ActionKey, action),
		attribute.Int(LineKey, line),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(err error, errorType string) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
