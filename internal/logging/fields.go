package logging

// Standardized structured log field keys.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldJobID     = "job_id"
	FieldRecordID  = "record_id"
	FieldMode      = "mode"
	FieldState     = "state"
	FieldAttempt   = "attempt"
	FieldElapsed   = "elapsed"
)
