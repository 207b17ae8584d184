package logging

// Canonical attribute keys shared across components.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldTool      = "tool"
	FieldDirectory = "dir"
	FieldRunID     = "run_id"
	FieldPID       = "pid"
	FieldErrorHint = "hint"
)
