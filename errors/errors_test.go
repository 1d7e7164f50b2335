package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelWrapping(t *testing.T) {
	t.Run("unknown source survives wrapping", func(t *testing.T) {
		err := NewUnknownSourceError("entsoe")
		err = Wrap(err, "execute")

		assert.True(t, IsUnknownSourceError(err))
		assert.False(t, IsDuplicateContractError(err))
		assert.Contains(t, err.Error(), "entsoe")
	})

	t.Run("duplicate contract survives wrapping", func(t *testing.T) {
		err := NewDuplicateContractError("openchargemap")
		err = Wrapf(err, "registering %d contracts", 3)

		assert.True(t, IsDuplicateContractError(err))
		assert.Contains(t, err.Error(), "openchargemap")
	})

	t.Run("nil is not any sentinel", func(t *testing.T) {
		assert.False(t, IsUnknownSourceError(nil))
		assert.False(t, IsDuplicateContractError(nil))
		assert.False(t, IsNotFoundError(nil))
	})
}

func TestDetailsPreserved(t *testing.T) {
	err := New("fetch failed")
	err = WithDetail(err, "source: dft_vehicle_licensing")
	err = Wrap(err, "tracked fetch")

	details := GetAllDetails(err)
	require.Len(t, details, 1)
	assert.Equal(t, "source: dft_vehicle_licensing", details[0])
}
