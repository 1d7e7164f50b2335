package sources

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evlocate/foundation/contract"
	"github.com/evlocate/foundation/logger"
	"github.com/evlocate/foundation/sym"
	"github.com/evlocate/foundation/track"
)

// Poller drives periodic tracked fetches for every contract that declares
// an endpoint and poll interval. Fetch failures are already recorded by the
// tracker, so the poll loop only logs and keeps going.
type Poller struct {
	registry *contract.Registry
	tracker  *track.Tracker
	client   *Client
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *zap.SugaredLogger
}

// NewPoller creates a poller with a parent context
func NewPoller(ctx context.Context, registry *contract.Registry, tracker *track.Tracker, client *Client, log *zap.SugaredLogger) *Poller {
	pollCtx, cancel := context.WithCancel(ctx)
	return &Poller{
		registry: registry,
		tracker:  tracker,
		client:   client,
		ctx:      pollCtx,
		cancel:   cancel,
		log:      log,
	}
}

// Start launches one poll loop per pollable source and returns how many
// were started
func (p *Poller) Start() int {
	started := 0
	for _, sourceID := range p.registry.SourceIDs() {
		c, err := p.registry.Lookup(sourceID)
		if err != nil {
			continue
		}
		if c.Endpoint == "" || c.PollInterval <= 0 {
			continue
		}

		p.wg.Add(1)
		go p.poll(c.SourceID, c.Endpoint, c.PollInterval)
		started++
	}

	if started > 0 && p.log != nil {
		p.log.Infow("source polling started",
			logger.FieldSymbol, sym.Fetch,
			logger.FieldCount, started,
		)
	}
	return started
}

// Stop cancels all poll loops and waits for them to exit
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Poller) poll(sourceID, endpoint string, interval time.Duration) {
	defer p.wg.Done()

	op := p.client.Operation(endpoint)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First fetch right away so health does not sit at unknown for a
	// full interval after startup
	p.fetch(sourceID, op)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.fetch(sourceID, op)
		}
	}
}

func (p *Poller) fetch(sourceID string, op track.Operation) {
	if _, err := p.tracker.Execute(p.ctx, sourceID, "poll", op); err != nil {
		if p.log != nil {
			p.log.Debugw("poll fetch failed",
				logger.FieldSymbol, sym.Fetch,
				logger.FieldSourceID, sourceID,
				logger.FieldError, err,
			)
		}
	}
}
