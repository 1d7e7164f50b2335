package metadata

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationtesting "github.com/evlocate/foundation/internal/testing"
	"github.com/evlocate/foundation/validate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(foundationtesting.CreateTestDB(t), nil)
}

func sampleRecord(sourceID string, fetchedAt time.Time) *Record {
	return &Record{
		SourceID:       sourceID,
		Label:          "hourly",
		FetchedAt:      fetchedAt,
		Success:        true,
		StatusCode:     200,
		ResponseTimeMs: 120.5,
		ContentHash:    "abc123",
		PayloadSize:    512,
		QualityScore:   1.0,
	}
}

func TestAppendAndQueryRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		record := sampleRecord("entsoe", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Append(ctx, record))
		assert.NotEmpty(t, record.ID)
	}

	records, err := store.QueryRecent(ctx, "entsoe", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first
	assert.Equal(t, base.Add(4*time.Minute), records[0].FetchedAt)
	assert.Equal(t, base.Add(3*time.Minute), records[1].FetchedAt)
	assert.Equal(t, base.Add(2*time.Minute), records[2].FetchedAt)

	assert.Equal(t, "entsoe", records[0].SourceID)
	assert.Equal(t, "hourly", records[0].Label)
	assert.Equal(t, 200, records[0].StatusCode)
	assert.Equal(t, 120.5, records[0].ResponseTimeMs)
	assert.Equal(t, "abc123", records[0].ContentHash)
	assert.True(t, records[0].Success)
}

func TestQueryRecentScopedBySource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Append(ctx, sampleRecord("entsoe", now)))
	require.NoError(t, store.Append(ctx, sampleRecord("openchargemap", now)))

	records, err := store.QueryRecent(ctx, "entsoe", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "entsoe", records[0].SourceID)

	records, err = store.QueryRecent(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendFailureRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := &Record{
		SourceID:     "entsoe",
		FetchedAt:    time.Now().UTC(),
		Success:      false,
		StatusCode:   503,
		ErrorMessage: "upstream unavailable",
		Issues: []validate.Issue{
			{Field: "load_mw", Message: "missing required field load_mw", Severity: validate.SeverityError},
		},
		ErrorCount: 1,
	}
	require.NoError(t, store.Append(ctx, record))

	records, err := store.QueryRecent(ctx, "entsoe", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.False(t, records[0].Success)
	assert.Equal(t, 503, records[0].StatusCode)
	assert.Equal(t, "upstream unavailable", records[0].ErrorMessage)
	require.Len(t, records[0].Issues, 1)
	assert.Equal(t, "load_mw", records[0].Issues[0].Field)
	assert.Equal(t, validate.SeverityError, records[0].Issues[0].Severity)
}

func TestAggregateWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Three successes and one failure inside the window, one success outside
	for i, qualityScore := range []float64{1.0, 0.8, 0.6} {
		record := sampleRecord("entsoe", now.Add(-time.Duration(i+1)*time.Minute))
		record.QualityScore = qualityScore
		record.ResponseTimeMs = 100
		require.NoError(t, store.Append(ctx, record))
	}
	failure := sampleRecord("entsoe", now.Add(-4*time.Minute))
	failure.Success = false
	failure.QualityScore = 0
	failure.ResponseTimeMs = 300
	require.NoError(t, store.Append(ctx, failure))

	old := sampleRecord("entsoe", now.Add(-2*time.Hour))
	require.NoError(t, store.Append(ctx, old))

	agg, err := store.AggregateWindow(ctx, "entsoe", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, agg.TotalCalls)
	assert.Equal(t, 3, agg.Successes)
	assert.InDelta(t, 0.75, agg.SuccessRate, 1e-9)
	assert.InDelta(t, 150, agg.AvgResponseTimeMs, 1e-9)
	// Quality averages over successes only
	assert.InDelta(t, 0.8, agg.AvgQualityScore, 1e-9)
	assert.Equal(t, now.Add(-time.Minute).Truncate(time.Second),
		agg.LastSuccessAt.Truncate(time.Second))
}

func TestAggregateWindowEmpty(t *testing.T) {
	store := newTestStore(t)

	agg, err := store.AggregateWindow(context.Background(), "entsoe", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 0, agg.TotalCalls)
	assert.Equal(t, 0, agg.Successes)
	assert.Equal(t, 0.0, agg.SuccessRate)
	assert.Equal(t, 0.0, agg.AvgResponseTimeMs)
	assert.Equal(t, 0.0, agg.AvgQualityScore)
	assert.True(t, agg.LastSuccessAt.IsZero())
}

func TestPurgeOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Append(ctx, sampleRecord("entsoe", now)))
	require.NoError(t, store.Append(ctx, sampleRecord("entsoe", now.Add(-48*time.Hour))))
	require.NoError(t, store.Append(ctx, sampleRecord("openchargemap", now.Add(-72*time.Hour))))

	purged, err := store.PurgeOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	records, err := store.QueryRecent(ctx, "entsoe", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCountBySource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, sampleRecord("entsoe", now)))
	}
	require.NoError(t, store.Append(ctx, sampleRecord("openchargemap", now)))

	counts, err := store.CountBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts["entsoe"])
	assert.Equal(t, int64(1), counts["openchargemap"])
}

func TestConcurrentAppend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record := sampleRecord(fmt.Sprintf("source_%d", i%5), time.Now().UTC())
			errs <- store.Append(ctx, record)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	counts, err := store.CountBySource(ctx)
	require.NoError(t, err)
	var total int64
	for _, count := range counts {
		total += count
	}
	assert.Equal(t, int64(50), total)
}

func TestAppendDatabaseError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO fetch_metadata").
		WillReturnError(fmt.Errorf("disk I/O error"))

	store := NewStore(mockDB, nil)
	err = store.Append(context.Background(), sampleRecord("entsoe", time.Now().UTC()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Contains(t, err.Error(), "entsoe")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRecentDatabaseError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT (.+) FROM fetch_metadata").
		WillReturnError(fmt.Errorf("database is locked"))

	store := NewStore(mockDB, nil)
	_, err = store.QueryRecent(context.Background(), "entsoe", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}
