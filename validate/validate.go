// Package validate checks fetched payloads against their registered
// contracts and scores how trustworthy the result looks.
//
// Validation failure is business-expected, never exceptional: a malformed
// payload comes back as a populated Result, not an error. The only error a
// Validator returns is the configuration error for an unregistered source.
package validate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/evlocate/foundation/contract"
)

// Severity classifies a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding against one field (or the whole
// record when Field is empty)
type Issue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result is the outcome of validating one payload
type Result struct {
	IsValid      bool    `json:"is_valid"`
	QualityScore float64 `json:"quality_score"`
	Issues       []Issue `json:"errors"`
	ErrorCount   int     `json:"error_count"`
	WarningCount int     `json:"warning_count"`
}

// Weights tunes the quality-score computation. The defaults make a single
// structural error dominate the score while warnings degrade gracefully;
// they are calibration knobs, not a fixed external contract.
type Weights struct {
	Error             float64 // score cost per error
	Warning           float64 // score cost per warning
	NearBoundFraction float64 // outer fraction of a numeric range treated as near-bound
}

// DefaultWeights returns the standard scoring weights
func DefaultWeights() Weights {
	return Weights{
		Error:             0.3,
		Warning:           0.1,
		NearBoundFraction: 0.10,
	}
}

// Validator validates payloads against contracts from a registry
type Validator struct {
	registry *contract.Registry

	mu      sync.RWMutex
	weights Weights
}

// NewValidator creates a validator over the given registry with default weights
func NewValidator(registry *contract.Registry) *Validator {
	return &Validator{registry: registry, weights: DefaultWeights()}
}

// SetWeights swaps the scoring weights; used by config live-reload
func (v *Validator) SetWeights(w Weights) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.weights = w
}

// Weights returns the current scoring weights
func (v *Validator) Weights() Weights {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.weights
}

// Validate scores a payload against its source's contract.
// The returned error is non-nil only for an unregistered source_id.
func (v *Validator) Validate(sourceID string, payload map[string]interface{}) (Result, error) {
	c, err := v.registry.Lookup(sourceID)
	if err != nil {
		return Result{}, err
	}

	w := v.Weights()

	if len(payload) == 0 {
		// One issue covering the whole record; the score is forced to
		// zero because there is nothing to partially trust
		return Result{
			IsValid:      false,
			QualityScore: 0.0,
			Issues: []Issue{{
				Field:    "",
				Message:  "payload is empty or not a mapping",
				Severity: SeverityError,
			}},
			ErrorCount: 1,
		}, nil
	}

	var issues []Issue

	// Required fields, in declared order
	for _, field := range c.RequiredFields {
		value, present := payload[field]
		if !present || value == nil {
			issues = append(issues, Issue{
				Field:    field,
				Message:  fmt.Sprintf("missing required field %s", field),
				Severity: SeverityError,
			})
		}
	}

	// Type checks for present fields with a declared kind
	for _, field := range sortedKeys(c.FieldTypes) {
		value, present := payload[field]
		if !present || value == nil {
			continue
		}
		kind := c.FieldTypes[field]
		if !matchesKind(value, kind) {
			issues = append(issues, Issue{
				Field:    field,
				Message:  fmt.Sprintf("expected %s, got %T", kind, value),
				Severity: SeverityError,
			})
		}
	}

	// Range checks for present numeric values
	for _, field := range sortedKeys(c.FieldRanges) {
		value, present := payload[field]
		if !present {
			continue
		}
		num, ok := asNumber(value)
		if !ok {
			// Non-numeric values in ranged fields are caught by the type check
			continue
		}

		r := c.FieldRanges[field]
		switch {
		case num < r.Min:
			issues = append(issues, Issue{
				Field:    field,
				Message:  fmt.Sprintf("%s = %v below minimum %v", field, num, r.Min),
				Severity: SeverityError,
			})
		case num > r.Max:
			issues = append(issues, Issue{
				Field:    field,
				Message:  fmt.Sprintf("%s = %v above maximum %v", field, num, r.Max),
				Severity: SeverityError,
			})
		case nearBound(num, r, w.NearBoundFraction):
			issues = append(issues, Issue{
				Field:    field,
				Message:  fmt.Sprintf("%s = %v near range bound [%v, %v]", field, num, r.Min, r.Max),
				Severity: SeverityWarning,
			})
		}
	}

	return score(issues, w), nil
}

// score folds issues into a Result using the given weights
func score(issues []Issue, w Weights) Result {
	var errorCount, warningCount int
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			errorCount++
		} else {
			warningCount++
		}
	}

	quality := 1.0 - w.Error*float64(errorCount) - w.Warning*float64(warningCount)
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}

	return Result{
		IsValid:      errorCount == 0,
		QualityScore: quality,
		Issues:       issues,
		ErrorCount:   errorCount,
		WarningCount: warningCount,
	}
}

// Label maps a quality score onto its coarse human-readable band
func Label(qualityScore float64) string {
	switch {
	case qualityScore >= 0.9:
		return "Excellent"
	case qualityScore >= 0.7:
		return "Good"
	case qualityScore >= 0.5:
		return "Fair"
	case qualityScore >= 0.3:
		return "Poor"
	default:
		return "Very Poor"
	}
}

// nearBound reports whether a value sits inside the outer fraction of its
// range at either end. Zero-width ranges never warn.
func nearBound(num float64, r contract.Range, fraction float64) bool {
	width := r.Max - r.Min
	if width <= 0 || fraction <= 0 {
		return false
	}
	margin := width * fraction
	return num < r.Min+margin || num > r.Max-margin
}

func matchesKind(value interface{}, kind contract.Kind) bool {
	switch kind {
	case contract.KindNumeric:
		_, ok := asNumber(value)
		return ok
	case contract.KindString:
		_, ok := value.(string)
		return ok
	case contract.KindBool:
		_, ok := value.(bool)
		return ok
	case contract.KindTimestamp:
		switch ts := value.(type) {
		case time.Time:
			return true
		case string:
			_, err := time.Parse(time.RFC3339, ts)
			return err == nil
		}
		return false
	case contract.KindList:
		_, ok := value.([]interface{})
		return ok
	case contract.KindMapping:
		_, ok := value.(map[string]interface{})
		return ok
	}
	return false
}

// asNumber accepts the numeric types that JSON decoding and native callers
// produce. Booleans are deliberately not numbers.
func asNumber(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
