package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlocate/foundation/contract"
	"github.com/evlocate/foundation/errors"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()

	registry := contract.NewRegistry()
	err := registry.Register(contract.Contract{
		SourceID:       "grid_load",
		SourceName:     "Grid Load",
		RequiredFields: []string{"region", "load_mw"},
		FieldTypes: map[string]contract.Kind{
			"region":      contract.KindString,
			"load_mw":     contract.KindNumeric,
			"renewable":   contract.KindBool,
			"observed_at": contract.KindTimestamp,
			"segments":    contract.KindList,
			"breakdown":   contract.KindMapping,
		},
		FieldRanges: map[string]contract.Range{
			"load_mw": {Min: 0, Max: 100},
		},
	})
	require.NoError(t, err)

	return NewValidator(registry)
}

func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"region":  "north",
		"load_mw": 50.0,
	}
}

func TestValidateCleanPayload(t *testing.T) {
	v := newTestValidator(t)

	result, err := v.Validate("grid_load", validPayload())
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Equal(t, 1.0, result.QualityScore)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Equal(t, 0, result.WarningCount)
}

func TestValidateUnknownSource(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate("nope", validPayload())
	require.Error(t, err)
	assert.True(t, errors.IsUnknownSourceError(err))
}

func TestValidateEmptyPayload(t *testing.T) {
	v := newTestValidator(t)

	for name, payload := range map[string]map[string]interface{}{
		"nil":   nil,
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			result, err := v.Validate("grid_load", payload)
			require.NoError(t, err)

			assert.False(t, result.IsValid)
			assert.Equal(t, 0.0, result.QualityScore)
			require.Len(t, result.Issues, 1)
			assert.Equal(t, "", result.Issues[0].Field)
			assert.Equal(t, SeverityError, result.Issues[0].Severity)
		})
	}
}

func TestValidateMissingRequired(t *testing.T) {
	v := newTestValidator(t)

	t.Run("absent field", func(t *testing.T) {
		result, err := v.Validate("grid_load", map[string]interface{}{
			"region": "north",
		})
		require.NoError(t, err)

		assert.False(t, result.IsValid)
		require.Len(t, result.Issues, 1)
		assert.Equal(t, "load_mw", result.Issues[0].Field)
		assert.InDelta(t, 0.7, result.QualityScore, 1e-9)
	})

	t.Run("null counts as missing", func(t *testing.T) {
		result, err := v.Validate("grid_load", map[string]interface{}{
			"region":  "north",
			"load_mw": nil,
		})
		require.NoError(t, err)

		assert.False(t, result.IsValid)
		assert.Equal(t, 1, result.ErrorCount)
	})
}

func TestValidateTypeMismatch(t *testing.T) {
	v := newTestValidator(t)

	cases := map[string]map[string]interface{}{
		"string field":    {"region": 42, "load_mw": 50.0},
		"numeric field":   {"region": "north", "load_mw": "fifty"},
		"bool field":      {"region": "north", "load_mw": 50.0, "renewable": "yes"},
		"timestamp field": {"region": "north", "load_mw": 50.0, "observed_at": "last tuesday"},
		"list field":      {"region": "north", "load_mw": 50.0, "segments": "a,b"},
		"mapping field":   {"region": "north", "load_mw": 50.0, "breakdown": []interface{}{1.0}},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := v.Validate("grid_load", payload)
			require.NoError(t, err)

			assert.False(t, result.IsValid)
			assert.Equal(t, 1, result.ErrorCount)
			assert.InDelta(t, 0.7, result.QualityScore, 1e-9)
		})
	}
}

func TestValidateTimestampForms(t *testing.T) {
	v := newTestValidator(t)

	payload := validPayload()
	payload["observed_at"] = time.Now().UTC()
	result, err := v.Validate("grid_load", payload)
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	payload["observed_at"] = "2026-08-30T12:00:00Z"
	result, err = v.Validate("grid_load", payload)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestValidateRange(t *testing.T) {
	v := newTestValidator(t)

	t.Run("below minimum", func(t *testing.T) {
		payload := validPayload()
		payload["load_mw"] = -5.0
		result, err := v.Validate("grid_load", payload)
		require.NoError(t, err)

		assert.False(t, result.IsValid)
		assert.Equal(t, 1, result.ErrorCount)
		assert.InDelta(t, 0.7, result.QualityScore, 1e-9)
	})

	t.Run("above maximum", func(t *testing.T) {
		payload := validPayload()
		payload["load_mw"] = 150.0
		result, err := v.Validate("grid_load", payload)
		require.NoError(t, err)

		assert.False(t, result.IsValid)
		assert.Equal(t, 1, result.ErrorCount)
	})

	t.Run("near lower bound warns", func(t *testing.T) {
		payload := validPayload()
		payload["load_mw"] = 3.0
		result, err := v.Validate("grid_load", payload)
		require.NoError(t, err)

		assert.True(t, result.IsValid)
		assert.Equal(t, 0, result.ErrorCount)
		assert.Equal(t, 1, result.WarningCount)
		assert.InDelta(t, 0.9, result.QualityScore, 1e-9)
	})

	t.Run("near upper bound warns", func(t *testing.T) {
		payload := validPayload()
		payload["load_mw"] = 97.0
		result, err := v.Validate("grid_load", payload)
		require.NoError(t, err)

		assert.True(t, result.IsValid)
		assert.Equal(t, 1, result.WarningCount)
	})

	t.Run("mid range is clean", func(t *testing.T) {
		payload := validPayload()
		payload["load_mw"] = 11.0
		result, err := v.Validate("grid_load", payload)
		require.NoError(t, err)

		assert.True(t, result.IsValid)
		assert.Equal(t, 0, result.WarningCount)
	})

	t.Run("integer values accepted", func(t *testing.T) {
		payload := validPayload()
		payload["load_mw"] = 42
		result, err := v.Validate("grid_load", payload)
		require.NoError(t, err)
		assert.True(t, result.IsValid)
	})
}

func TestValidateScoreClampsAtZero(t *testing.T) {
	registry := contract.NewRegistry()
	err := registry.Register(contract.Contract{
		SourceID:       "strict",
		RequiredFields: []string{"a", "b", "c", "d", "e"},
	})
	require.NoError(t, err)

	v := NewValidator(registry)
	result, err := v.Validate("strict", map[string]interface{}{"x": 1.0})
	require.NoError(t, err)

	assert.Equal(t, 5, result.ErrorCount)
	assert.Equal(t, 0.0, result.QualityScore)
}

func TestValidateMixedIssues(t *testing.T) {
	v := newTestValidator(t)

	// One missing required field plus one near-bound warning
	result, err := v.Validate("grid_load", map[string]interface{}{
		"load_mw": 99.0,
	})
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 1, result.WarningCount)
	assert.InDelta(t, 0.6, result.QualityScore, 1e-9)
}

func TestSetWeights(t *testing.T) {
	v := newTestValidator(t)
	v.SetWeights(Weights{Error: 0.5, Warning: 0.25, NearBoundFraction: 0.10})

	result, err := v.Validate("grid_load", map[string]interface{}{
		"region": "north",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result.QualityScore, 1e-9)
}

func TestLabel(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{1.0, "Excellent"},
		{0.9, "Excellent"},
		{0.89, "Good"},
		{0.7, "Good"},
		{0.6, "Fair"},
		{0.5, "Fair"},
		{0.4, "Poor"},
		{0.3, "Poor"},
		{0.1, "Very Poor"},
		{0.0, "Very Poor"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Label(tc.score))
	}
}
