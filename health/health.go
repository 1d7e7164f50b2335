// Package health rolls fetch history up into per-source health statuses
// and the dashboard summary.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/evlocate/foundation/contract"
	"github.com/evlocate/foundation/logger"
	"github.com/evlocate/foundation/metadata"
	"github.com/evlocate/foundation/sym"
	"github.com/evlocate/foundation/validate"
)

// Status is the coarse health band of one source
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
	StatusUnknown  Status = "unknown"
)

// Success-rate thresholds separating the health bands
const (
	healthyThreshold  = 0.9
	degradedThreshold = 0.7
)

// DefaultWindow is the trailing window health is computed over when the
// caller does not specify one
const DefaultWindow = time.Hour

// SourceHealth is the rollup for one registered source over a window
type SourceHealth struct {
	SourceID          string    `json:"source_id"`
	SourceName        string    `json:"source_name"`
	Status            Status    `json:"status"`
	TotalCalls        int       `json:"total_calls"`
	Successes         int       `json:"successes"`
	SuccessRate       float64   `json:"success_rate"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	AvgQualityScore   float64   `json:"avg_quality_score"`
	QualityLabel      string    `json:"quality_label"`
	LastSuccessAt     time.Time `json:"last_success_at,omitempty"`
	Stale             bool      `json:"stale"`
}

// Dashboard is the aggregate payload for the quality overview endpoint
type Dashboard struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	Window          string         `json:"window"`
	TotalSources    int            `json:"total_sources"`
	ActiveSources   int            `json:"active_sources"`
	HealthySources  int            `json:"healthy_sources"`
	OverallQuality  float64        `json:"overall_quality"`
	OverallLabel    string         `json:"overall_label"`
	StatusBreakdown map[Status]int `json:"status_breakdown"`
	Sources         []SourceHealth `json:"sources"`
}

// Aggregator computes health from the metadata store and contract registry
type Aggregator struct {
	registry *contract.Registry
	store    *metadata.Store
	log      *zap.SugaredLogger
}

// NewAggregator creates a health aggregator
func NewAggregator(registry *contract.Registry, store *metadata.Store, log *zap.SugaredLogger) *Aggregator {
	return &Aggregator{registry: registry, store: store, log: log}
}

// SourceHealth computes the rollup for one source over the trailing window
func (a *Aggregator) SourceHealth(ctx context.Context, sourceID string, window time.Duration) (SourceHealth, error) {
	c, err := a.registry.Lookup(sourceID)
	if err != nil {
		return SourceHealth{}, err
	}
	if window <= 0 {
		window = DefaultWindow
	}

	agg, err := a.store.AggregateWindow(ctx, sourceID, window)
	if err != nil {
		return SourceHealth{}, err
	}

	health := SourceHealth{
		SourceID:          sourceID,
		SourceName:        c.SourceName,
		Status:            statusFor(agg),
		TotalCalls:        agg.TotalCalls,
		Successes:         agg.Successes,
		SuccessRate:       agg.SuccessRate,
		AvgResponseTimeMs: agg.AvgResponseTimeMs,
		AvgQualityScore:   agg.AvgQualityScore,
		QualityLabel:      validate.Label(agg.AvgQualityScore),
		LastSuccessAt:     agg.LastSuccessAt,
	}
	if c.FreshnessSLA > 0 {
		health.Stale = agg.LastSuccessAt.IsZero() ||
			time.Since(agg.LastSuccessAt) > c.FreshnessSLA
	}
	return health, nil
}

// SourcesHealth computes the rollup for every registered source, sorted by
// source id
func (a *Aggregator) SourcesHealth(ctx context.Context, window time.Duration) ([]SourceHealth, error) {
	ids := a.registry.SourceIDs()
	healths := make([]SourceHealth, 0, len(ids))
	for _, id := range ids {
		health, err := a.SourceHealth(ctx, id, window)
		if err != nil {
			return nil, err
		}
		healths = append(healths, health)
	}
	return healths, nil
}

// Dashboard builds the quality overview across all registered sources.
// Overall quality averages only sources that had calls in the window.
func (a *Aggregator) Dashboard(ctx context.Context, window time.Duration) (Dashboard, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	healths, err := a.SourcesHealth(ctx, window)
	if err != nil {
		return Dashboard{}, err
	}

	dashboard := Dashboard{
		GeneratedAt:     time.Now().UTC(),
		Window:          window.String(),
		TotalSources:    len(healths),
		StatusBreakdown: make(map[Status]int),
		Sources:         healths,
	}

	var qualitySum float64
	for _, health := range healths {
		dashboard.StatusBreakdown[health.Status]++
		if health.Status == StatusHealthy {
			dashboard.HealthySources++
		}
		if health.TotalCalls > 0 {
			dashboard.ActiveSources++
			qualitySum += health.AvgQualityScore
		}
	}
	if dashboard.ActiveSources > 0 {
		dashboard.OverallQuality = qualitySum / float64(dashboard.ActiveSources)
	}
	dashboard.OverallLabel = validate.Label(dashboard.OverallQuality)

	if a.log != nil {
		a.log.Debugw("dashboard computed",
			logger.FieldSymbol, sym.Health,
			logger.FieldWindow, dashboard.Window,
			logger.FieldCount, dashboard.TotalSources,
		)
	}
	return dashboard, nil
}

// statusFor maps a window aggregate onto a health band. A source with no
// calls in the window is unknown, not down.
func statusFor(agg metadata.Aggregate) Status {
	if agg.TotalCalls == 0 {
		return StatusUnknown
	}
	switch {
	case agg.SuccessRate > healthyThreshold:
		return StatusHealthy
	case agg.SuccessRate > degradedThreshold:
		return StatusDegraded
	default:
		return StatusDown
	}
}
