// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldMemberID  = "member_id"
	FieldGroupID   = "group_id"
	FieldGuildID   = "guild_id"
	FieldChannelID = "channel_id"
	FieldAuthor    = "author"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldTrigger   = "trigger"

	// Reconciliation fields
	FieldRunDate = "run_date"
	FieldLine    = "line"
	FieldAction  = "action"
	FieldStatus  = "status"
	FieldReason  = "reason"

	// Connection fields
	FieldAttempt  = "attempt"
	FieldDelay    = "delay"
	FieldCode     = "code"
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
