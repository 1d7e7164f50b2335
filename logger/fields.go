package logger

import "go.uber.org/zap"

// Standard field names for consistent structured logging across the engine.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldSourceID = "source_id"
	FieldRecordID = "record_id"
	FieldLabel    = "label"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldFetchedAt  = "fetched_at"
	FieldWindow     = "window"

	// Quality
	FieldQualityScore = "quality_score"
	FieldErrorCount   = "error_count"
	FieldWarningCount = "warning_count"
	FieldContentHash  = "content_hash"

	// Status
	FieldStatus     = "status"
	FieldStatusCode = "status_code"
	FieldSuccess    = "success"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount = "count"

	// Symbols (see the sym package)
	FieldSymbol = "symbol"
)

// WithSymbol returns a logger with a subsystem symbol pre-attached,
// so every entry from that subsystem carries its marker.
func WithSymbol(log *zap.SugaredLogger, symbol string) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log.With(FieldSymbol, symbol)
}
