package contract

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlocate/foundation/errors"
)

func validContract(sourceID string) Contract {
	return Contract{
		SourceID:       sourceID,
		SourceName:     "Test Source",
		RequiredFields: []string{"value"},
		FieldTypes:     map[string]Kind{"value": KindNumeric},
		FieldRanges:    map[string]Range{"value": {Min: 0, Max: 1}},
		FreshnessSLA:   6 * time.Hour,
	}
}

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(validContract("entsoe")))

	c, err := reg.Lookup("entsoe")
	require.NoError(t, err)
	assert.Equal(t, "entsoe", c.SourceID)
	assert.Equal(t, KindNumeric, c.FieldTypes["value"])
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(validContract("entsoe")))
	err := reg.Register(validContract("entsoe"))

	require.Error(t, err)
	assert.True(t, errors.IsDuplicateContractError(err))
}

func TestLookupUnknownSource(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Lookup("nope")
	require.Error(t, err)
	assert.True(t, errors.IsUnknownSourceError(err))
}

func TestContractValidation(t *testing.T) {
	t.Run("missing source id", func(t *testing.T) {
		c := validContract("")
		assert.Error(t, NewRegistry().Register(c))
	})

	t.Run("unknown kind", func(t *testing.T) {
		c := validContract("x")
		c.FieldTypes["value"] = Kind("complex128")
		assert.Error(t, NewRegistry().Register(c))
	})

	t.Run("inverted range", func(t *testing.T) {
		c := validContract("x")
		c.FieldRanges["value"] = Range{Min: 10, Max: 1}
		assert.Error(t, NewRegistry().Register(c))
	})

	t.Run("range on non-numeric field", func(t *testing.T) {
		c := validContract("x")
		c.FieldTypes["value"] = KindString
		assert.Error(t, NewRegistry().Register(c))
	})
}

func TestRegistrationIsolatesCaller(t *testing.T) {
	reg := NewRegistry()
	c := validContract("entsoe")
	require.NoError(t, reg.Register(c))

	// Mutating the caller's copy must not affect the registered contract
	c.SourceName = "mutated"

	stored, err := reg.Lookup("entsoe")
	require.NoError(t, err)
	assert.Equal(t, "Test Source", stored.SourceName)
}

func TestConcurrentLookups(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 8; i++ {
		require.NoError(t, reg.Register(validContract(fmt.Sprintf("source-%d", i))))
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("source-%d", n%8)
			c, err := reg.Lookup(id)
			assert.NoError(t, err)
			assert.Equal(t, id, c.SourceID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, reg.Len())
	assert.Len(t, reg.SourceIDs(), 8)
}
