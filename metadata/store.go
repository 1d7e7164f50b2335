// Package metadata persists the append-only history of tracked fetch
// attempts and serves the windowed aggregates that health reporting is
// computed from.
package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evlocate/foundation/errors"
	"github.com/evlocate/foundation/logger"
	"github.com/evlocate/foundation/sym"
	"github.com/evlocate/foundation/validate"
)

// Record is one fetch attempt, success or failure. Records are written once
// and never updated.
type Record struct {
	ID             string           `json:"id"`
	SourceID       string           `json:"source_id"`
	Label          string           `json:"label"`
	FetchedAt      time.Time        `json:"fetched_at"`
	Success        bool             `json:"success"`
	StatusCode     int              `json:"status_code,omitempty"`
	ResponseTimeMs float64          `json:"response_time_ms"`
	ContentHash    string           `json:"content_hash,omitempty"`
	PayloadSize    int              `json:"payload_size"`
	QualityScore   float64          `json:"quality_score"`
	ErrorCount     int              `json:"error_count"`
	WarningCount   int              `json:"warning_count"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	Issues         []validate.Issue `json:"validation_errors,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Aggregate summarizes all records for one source inside a time window
type Aggregate struct {
	SourceID          string    `json:"source_id"`
	TotalCalls        int       `json:"total_calls"`
	Successes         int       `json:"successes"`
	SuccessRate       float64   `json:"success_rate"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	AvgQualityScore   float64   `json:"avg_quality_score"`
	LastSuccessAt     time.Time `json:"last_success_at,omitempty"`
}

// Store persists fetch records in sqlite
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewStore creates a store over an already-opened and migrated database
func NewStore(db *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log}
}

// Append writes one record. The record's ID is assigned here if empty;
// FetchedAt must already be set by the caller.
func (s *Store) Append(ctx context.Context, record *Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	issuesJSON, err := marshalIssues(record.Issues)
	if err != nil {
		return errors.Wrapf(err, "marshaling validation issues for %s", record.SourceID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fetch_metadata (
			id, source_id, label, fetched_at, success, status_code,
			response_time_ms, content_hash, payload_size, quality_score,
			error_count, warning_count, error_message, validation_errors,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.SourceID,
		record.Label,
		record.FetchedAt.UTC(),
		record.Success,
		record.StatusCode,
		record.ResponseTimeMs,
		record.ContentHash,
		record.PayloadSize,
		record.QualityScore,
		record.ErrorCount,
		record.WarningCount,
		record.ErrorMessage,
		issuesJSON,
		record.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "appending fetch record for %s", record.SourceID)
	}

	if s.log != nil {
		s.log.Debugw("fetch record appended",
			logger.FieldSymbol, sym.DB,
			logger.FieldRecordID, record.ID,
			logger.FieldSourceID, record.SourceID,
			logger.FieldSuccess, record.Success,
		)
	}
	return nil
}

// QueryRecent returns up to limit records for a source, newest first
func (s *Store) QueryRecent(ctx context.Context, sourceID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, label, fetched_at, success, status_code,
		       response_time_ms, content_hash, payload_size, quality_score,
		       error_count, warning_count, error_message, validation_errors,
		       created_at
		FROM fetch_metadata
		WHERE source_id = ?
		ORDER BY fetched_at DESC
		LIMIT ?`,
		sourceID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "querying recent records for %s", sourceID)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterating recent records for %s", sourceID)
	}
	return records, nil
}

// AggregateWindow computes the rollup for one source over the trailing
// window ending now. A source with no records in the window yields a
// zero-valued Aggregate, not an error.
func (s *Store) AggregateWindow(ctx context.Context, sourceID string, window time.Duration) (Aggregate, error) {
	since := time.Now().UTC().Add(-window)

	agg := Aggregate{SourceID: sourceID}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(success), 0),
		       COALESCE(AVG(response_time_ms), 0),
		       COALESCE(AVG(CASE WHEN success = 1 THEN quality_score END), 0)
		FROM fetch_metadata
		WHERE source_id = ? AND fetched_at >= ?`,
		sourceID, since,
	).Scan(&agg.TotalCalls, &agg.Successes, &agg.AvgResponseTimeMs, &agg.AvgQualityScore)
	if err != nil {
		return Aggregate{}, errors.Wrapf(err, "aggregating window for %s", sourceID)
	}
	if agg.TotalCalls > 0 {
		agg.SuccessRate = float64(agg.Successes) / float64(agg.TotalCalls)
	}

	// Queried as a plain column so the driver hands back a timestamp, not
	// the stringly result an aggregate expression would produce. Not
	// window-bounded: freshness cares about the last success ever.
	var lastSuccess time.Time
	err = s.db.QueryRowContext(ctx, `
		SELECT fetched_at FROM fetch_metadata
		WHERE source_id = ? AND success = 1
		ORDER BY fetched_at DESC
		LIMIT 1`,
		sourceID,
	).Scan(&lastSuccess)
	switch {
	case err == sql.ErrNoRows:
		// No successful fetch yet
	case err != nil:
		return Aggregate{}, errors.Wrapf(err, "finding last success for %s", sourceID)
	default:
		agg.LastSuccessAt = lastSuccess.UTC()
	}
	return agg, nil
}

// PurgeOlderThan deletes records whose fetched_at is older than the given
// age and returns how many were removed
func (s *Store) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM fetch_metadata WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "purging old fetch records")
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting purged fetch records")
	}
	return purged, nil
}

// CountBySource returns the total record count per source id, for the stats
// command
func (s *Store) CountBySource(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, COUNT(*) FROM fetch_metadata GROUP BY source_id`)
	if err != nil {
		return nil, errors.Wrap(err, "counting records by source")
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var sourceID string
		var count int64
		if err := rows.Scan(&sourceID, &count); err != nil {
			return nil, errors.Wrap(err, "scanning record count")
		}
		counts[sourceID] = count
	}
	return counts, rows.Err()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var record Record
	var statusCode sql.NullInt64
	var errorMessage, issuesJSON sql.NullString

	err := rows.Scan(
		&record.ID,
		&record.SourceID,
		&record.Label,
		&record.FetchedAt,
		&record.Success,
		&statusCode,
		&record.ResponseTimeMs,
		&record.ContentHash,
		&record.PayloadSize,
		&record.QualityScore,
		&record.ErrorCount,
		&record.WarningCount,
		&errorMessage,
		&issuesJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return Record{}, errors.Wrap(err, "scanning fetch record")
	}

	record.StatusCode = int(statusCode.Int64)
	record.ErrorMessage = errorMessage.String
	record.FetchedAt = record.FetchedAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()

	if issuesJSON.Valid && issuesJSON.String != "" {
		if err := json.Unmarshal([]byte(issuesJSON.String), &record.Issues); err != nil {
			return Record{}, errors.Wrapf(err, "decoding validation issues for record %s", record.ID)
		}
	}
	return record, nil
}

// marshalIssues renders issues as JSON for storage; no issues stores an
// empty string so the column stays greppable
func marshalIssues(issues []validate.Issue) (string, error) {
	if len(issues) == 0 {
		return "", nil
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
