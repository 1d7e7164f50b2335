// Package track wraps fetch operations with timing, validation, digest
// computation, and metadata persistence.
//
// Execute is the single choke point every tracked fetch flows through. An
// upstream failure is absorbed into the returned payload's _metadata block
// rather than propagated, so callers can always distinguish "no data" from
// "data with problems" by inspecting the same shape.
package track

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/evlocate/foundation/contract"
	"github.com/evlocate/foundation/digest"
	"github.com/evlocate/foundation/errors"
	"github.com/evlocate/foundation/logger"
	"github.com/evlocate/foundation/metadata"
	"github.com/evlocate/foundation/sym"
	"github.com/evlocate/foundation/validate"
)

// Reserved keys injected into successful payloads. Source payloads using
// these keys get silently overwritten, which is why they carry the
// underscore prefix.
const (
	MetadataKey   = "_metadata"
	ValidationKey = "_validation"

	// StatusCodeKey lets an operation report the upstream HTTP status of a
	// successful fetch. It is stripped before validation and hashing.
	StatusCodeKey = "_status_code"
)

// Operation is a single fetch attempt against an upstream source
type Operation func(ctx context.Context) (map[string]interface{}, error)

// EnrichedPayload is the source payload plus the reserved _metadata and
// _validation sub-maps
type EnrichedPayload map[string]interface{}

// statusCoder is implemented by errors that carry an upstream HTTP status
type statusCoder interface {
	StatusCode() int
}

// Notifier receives every appended record; used to feed the live record
// stream. Implementations must not block.
type Notifier interface {
	NotifyRecord(record metadata.Record)
}

// Tracker instruments fetch operations for registered sources
type Tracker struct {
	registry  *contract.Registry
	validator *validate.Validator
	store     *metadata.Store
	notifier  Notifier
	log       *zap.SugaredLogger
}

// NewTracker creates a tracker. notifier may be nil.
func NewTracker(registry *contract.Registry, validator *validate.Validator, store *metadata.Store, log *zap.SugaredLogger) *Tracker {
	return &Tracker{
		registry:  registry,
		validator: validator,
		store:     store,
		log:       log,
	}
}

// SetNotifier attaches a record notifier; call before the first Execute
func (t *Tracker) SetNotifier(n Notifier) {
	t.notifier = n
}

// Execute runs op for the given source, measures it, validates the result,
// and persists a fetch record. The measured duration brackets op alone, not
// the validation or persistence that follow.
//
// An unknown sourceID is a configuration error returned before op runs. An
// op failure (error or panic) is recorded and absorbed: the caller receives
// an enriched payload whose _metadata block has success false, never an
// error. The record write itself is best-effort and never fails the call.
func (t *Tracker) Execute(ctx context.Context, sourceID, label string, op Operation) (EnrichedPayload, error) {
	if _, err := t.registry.Lookup(sourceID); err != nil {
		return nil, err
	}

	fetchedAt := time.Now().UTC()
	payload, opErr := runOperation(ctx, op)
	elapsed := time.Since(fetchedAt)

	record := metadata.Record{
		SourceID:       sourceID,
		Label:          label,
		FetchedAt:      fetchedAt,
		ResponseTimeMs: float64(elapsed.Microseconds()) / 1000.0,
	}

	if opErr != nil {
		record.Success = false
		record.ErrorMessage = opErr.Error()
		var sc statusCoder
		if errors.As(opErr, &sc) {
			record.StatusCode = sc.StatusCode()
		}

		t.append(ctx, &record)

		if t.log != nil {
			t.log.Warnw("tracked fetch failed",
				logger.FieldSymbol, sym.Fetch,
				logger.FieldSourceID, sourceID,
				logger.FieldLabel, label,
				logger.FieldDurationMS, record.ResponseTimeMs,
				logger.FieldError, opErr,
			)
		}
		return enrich(nil, record, validate.Result{}), nil
	}

	record.StatusCode = extractStatusCode(payload)

	result, err := t.validator.Validate(sourceID, payload)
	if err != nil {
		// Contract vanished between lookup and validation; treat it the
		// same as the pre-flight configuration error
		return nil, err
	}

	record.Success = true
	record.ContentHash = digest.Digest(payload)
	record.PayloadSize = payloadSize(payload)
	record.QualityScore = result.QualityScore
	record.ErrorCount = result.ErrorCount
	record.WarningCount = result.WarningCount
	record.Issues = result.Issues

	t.append(ctx, &record)

	if t.log != nil {
		t.log.Infow("tracked fetch completed",
			logger.FieldSymbol, sym.Fetch,
			logger.FieldSourceID, sourceID,
			logger.FieldLabel, label,
			logger.FieldDurationMS, record.ResponseTimeMs,
			logger.FieldQualityScore, record.QualityScore,
			logger.FieldErrorCount, record.ErrorCount,
			logger.FieldWarningCount, record.WarningCount,
		)
	}

	return enrich(payload, record, result), nil
}

// runOperation invokes op, converting panics into errors so a misbehaving
// source cannot take the process down
func runOperation(ctx context.Context, op Operation) (payload map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = errors.Newf("fetch operation panicked: %v", r)
		}
	}()
	return op(ctx)
}

// append persists the record and notifies listeners. Persistence failures
// are logged and dropped; losing one history row must not fail a fetch
// that already succeeded. The write runs on a detached context so a fetch
// cancelled mid-flight still leaves its failure record behind.
func (t *Tracker) append(ctx context.Context, record *metadata.Record) {
	if err := t.store.Append(context.WithoutCancel(ctx), record); err != nil {
		if t.log != nil {
			t.log.Errorw("failed to persist fetch record",
				logger.FieldSymbol, sym.DB,
				logger.FieldSourceID, record.SourceID,
				logger.FieldError, err,
			)
		}
		return
	}

	if t.notifier != nil {
		t.notifier.NotifyRecord(*record)
	}
}

// enrich attaches the reserved sub-maps to a payload. Failed fetches get an
// empty payload with only the _metadata block; _validation is present only
// when the fetch succeeded and was actually validated.
func enrich(payload map[string]interface{}, record metadata.Record, result validate.Result) EnrichedPayload {
	enriched := make(EnrichedPayload, len(payload)+2)
	for k, v := range payload {
		enriched[k] = v
	}

	meta := map[string]interface{}{
		"record_id":        record.ID,
		"source_id":        record.SourceID,
		"label":            record.Label,
		"fetched_at":       record.FetchedAt.Format(time.RFC3339Nano),
		"success":          record.Success,
		"status_code":      record.StatusCode,
		"response_time_ms": record.ResponseTimeMs,
		"content_hash":     record.ContentHash,
		"payload_size":     record.PayloadSize,
	}
	if record.ErrorMessage != "" {
		meta["error"] = record.ErrorMessage
	}
	enriched[MetadataKey] = meta

	if record.Success {
		enriched[ValidationKey] = map[string]interface{}{
			"is_valid":      result.IsValid,
			"quality_score": result.QualityScore,
			"quality_label": validate.Label(result.QualityScore),
			"errors":        result.Issues,
			"error_count":   result.ErrorCount,
			"warning_count": result.WarningCount,
		}
	}
	return enriched
}

// payloadSize is the serialized byte size of the raw payload, before
// enrichment. Unserializable values count as zero rather than failing the
// fetch.
func payloadSize(payload map[string]interface{}) int {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(data)
}

// extractStatusCode removes the _status_code hint from the payload and
// returns it, so the hint never reaches validation or the content digest
func extractStatusCode(payload map[string]interface{}) int {
	v, ok := payload[StatusCodeKey]
	if !ok {
		return 0
	}
	delete(payload, StatusCodeKey)

	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
