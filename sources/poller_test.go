package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlocate/foundation/contract"
	"github.com/evlocate/foundation/internal/httpclient"
	foundationtesting "github.com/evlocate/foundation/internal/testing"
	"github.com/evlocate/foundation/metadata"
	"github.com/evlocate/foundation/track"
	"github.com/evlocate/foundation/validate"
)

func TestPollerTracksConfiguredSources(t *testing.T) {
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"value": 0.5}`))
	}))
	defer upstream.Close()

	registry := contract.NewRegistry()
	require.NoError(t, registry.Register(contract.Contract{
		SourceID:     "polled",
		Endpoint:     upstream.URL,
		PollInterval: 20 * time.Millisecond,
	}))
	require.NoError(t, registry.Register(contract.Contract{
		SourceID: "manual",
	}))

	store := metadata.NewStore(foundationtesting.CreateTestDB(t), nil)
	tracker := track.NewTracker(registry, validate.NewValidator(registry), store, nil)
	client := NewClientWithHTTP(httpclient.WrapClient(upstream.Client()), 6000, nil)

	poller := NewPoller(context.Background(), registry, tracker, client, nil)
	started := poller.Start()
	assert.Equal(t, 1, started, "only the contract with an endpoint is polled")

	// Initial fetch plus at least one tick
	require.Eventually(t, func() bool {
		return hits.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	poller.Stop()

	records, err := store.QueryRecent(context.Background(), "polled", 10)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.True(t, records[0].Success)
	assert.Equal(t, "poll", records[0].Label)
	assert.Equal(t, http.StatusOK, records[0].StatusCode)

	records, err = store.QueryRecent(context.Background(), "manual", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
