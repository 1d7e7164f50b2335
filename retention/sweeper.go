// Package retention periodically trims old fetch records so the metadata
// store does not grow without bound.
package retention

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evlocate/foundation/logger"
	"github.com/evlocate/foundation/metadata"
	"github.com/evlocate/foundation/sym"
)

// Sweeper runs the retention purge on a fixed interval. A purge failure is
// logged and retried on the next tick; the loop never exits on its own.
type Sweeper struct {
	store    *metadata.Store
	maxAge   time.Duration
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *zap.SugaredLogger

	mu         sync.Mutex
	lastSweep  time.Time
	lastPurged int64
	sweeps     int64
}

// NewSweeper creates a sweeper with a parent context
func NewSweeper(ctx context.Context, store *metadata.Store, maxAge, interval time.Duration, log *zap.SugaredLogger) *Sweeper {
	sweepCtx, cancel := context.WithCancel(ctx)
	return &Sweeper{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		ctx:      sweepCtx,
		cancel:   cancel,
		log:      log,
	}
}

// Start begins the sweep loop
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
	if s.log != nil {
		s.log.Infow("retention sweeper started",
			logger.FieldSymbol, sym.Sweep,
			"max_age", s.maxAge,
			"interval", s.interval,
		)
	}
}

// Stop gracefully stops the sweep loop
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
	if s.log != nil {
		s.log.Infow("retention sweeper stopped", logger.FieldSymbol, sym.Sweep)
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one purge pass immediately and returns how many records were
// removed. Also invoked by the sweep loop on every tick.
func (s *Sweeper) Sweep() int64 {
	purged, err := s.store.PurgeOlderThan(s.ctx, s.maxAge)
	if err != nil {
		if s.log != nil {
			s.log.Warnw("retention sweep failed",
				logger.FieldSymbol, sym.Sweep,
				logger.FieldError, err,
			)
		}
		return 0
	}

	s.mu.Lock()
	s.lastSweep = time.Now().UTC()
	s.lastPurged = purged
	s.sweeps++
	s.mu.Unlock()

	if purged > 0 && s.log != nil {
		s.log.Infow("retention sweep purged records",
			logger.FieldSymbol, sym.Sweep,
			logger.FieldCount, purged,
			"max_age", s.maxAge,
		)
	}
	return purged
}

// Stats returns sweep counters for the stats command
func (s *Sweeper) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"last_sweep_at": s.lastSweep,
		"last_purged":   s.lastPurged,
		"sweeps":        s.sweeps,
	}
}
