// Package poller drives the accrual engine across all tracked identities on
// a fixed interval.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vihansingh1735-lab/cobalstonee/internal/accrual"
	"github.com/vihansingh1735-lab/cobalstonee/internal/metrics"
	"github.com/vihansingh1735-lab/cobalstonee/internal/presence"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

const (
	// DefaultTick is the presence polling interval.
	DefaultTick = 30 * time.Second

	// DefaultConcurrency bounds in-flight presence lookups per tick.
	DefaultConcurrency = 8
)

// Config holds poller configuration.
type Config struct {
	Tick        time.Duration
	Concurrency int
}

// Poller queries presence for every tracked identity each tick, feeds the
// observations through the accrual engine, and writes mutated records through
// to persistent storage. Identities are independent: a failed lookup or save
// for one never blocks the others.
type Poller struct {
	store       *accrual.Store
	engine      *accrual.Engine
	source      presence.Source
	gateway     storage.Store
	clock       accrual.Clock
	tick        time.Duration
	concurrency int
	logger      zerolog.Logger

	cancel   context.CancelFunc
	stopChan chan struct{}
	doneChan chan struct{}

	// unsaved holds record keys whose write-through failed; their in-memory
	// state is authoritative and the save is retried on the next tick.
	unsaved map[string]bool
}

// NewPoller creates a presence poller.
func NewPoller(store *accrual.Store, engine *accrual.Engine, source presence.Source, gateway storage.Store, clock accrual.Clock, config Config, logger zerolog.Logger) *Poller {
	if config.Tick <= 0 {
		config.Tick = DefaultTick
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}

	return &Poller{
		store:       store,
		engine:      engine,
		source:      source,
		gateway:     gateway,
		clock:       clock,
		tick:        config.Tick,
		concurrency: config.Concurrency,
		logger:      logger.With().Str("component", "presence-poller").Logger(),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
		unsaved:     make(map[string]bool),
	}
}

// Start begins the poll loop.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
	p.logger.Info().
		Dur("tick", p.tick).
		Int("concurrency", p.concurrency).
		Msg("Presence poller started")
}

// Stop stops the poll loop and waits for it to exit. In-flight lookups are
// cancelled and their results discarded; no partial mutation is applied.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	close(p.stopChan)
	<-p.doneChan
	p.logger.Info().Msg("Presence poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.doneChan)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-p.stopChan:
			return
		}
	}
}

// pollOnce performs one full tick: look up presence for every identity with
// bounded concurrency, then apply the observations one record at a time.
func (p *Poller) pollOnce(ctx context.Context) {
	started := time.Now()

	identities := p.store.Identities()
	if len(identities) == 0 {
		return
	}

	statuses := p.lookupAll(ctx, identities)

	// Shutdown during the fan-out: discard the results rather than applying
	// a partial tick.
	if ctx.Err() != nil {
		return
	}

	now := p.clock.Now()
	for i, identity := range identities {
		todayKey := accrual.DayKey(now, p.store.Location(identity.GroupID))

		record, mutated, ok := p.store.Mutate(identity.GroupID, identity.MemberID, func(r *storage.AccrualRecord) bool {
			return p.engine.Observe(r, statuses[i], now, todayKey)
		})
		if !ok {
			// Untracked while the tick was in flight.
			continue
		}

		if mutated || p.unsaved[record.Key()] {
			p.persist(ctx, record)
		}
	}

	tracked, inSession := p.store.Counts()
	metrics.TrackedIdentities.Set(float64(tracked))
	metrics.ActiveSessions.Set(float64(inSession))
	metrics.PollDuration.Observe(time.Since(started).Seconds())
}

// lookupAll resolves presence for all identities, bounded by the configured
// concurrency. A failed lookup yields StatusUnknown for that identity only.
func (p *Poller) lookupAll(ctx context.Context, identities []accrual.IdentityRef) []presence.Status {
	statuses := make([]presence.Status, len(identities))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i, identity := range identities {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, identity accrual.IdentityRef) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := p.source.Lookup(ctx, identity.RemoteID)
			if err != nil {
				metrics.PresenceLookupErrors.Inc()
				p.logger.Debug().Err(err).
					Str("group_id", identity.GroupID).
					Str("member_id", identity.MemberID).
					Str("remote_id", identity.RemoteID).
					Msg("Presence lookup failed, treating as unknown")
				statuses[i] = presence.StatusUnknown
				return
			}

			statuses[i] = result.Status
		}(i, identity)
	}

	wg.Wait()

	for _, status := range statuses {
		metrics.PresenceLookups.WithLabelValues(string(status)).Inc()
	}

	return statuses
}

func (p *Poller) persist(ctx context.Context, record storage.AccrualRecord) {
	if err := p.gateway.Accruals().Upsert(ctx, record); err != nil {
		metrics.StoreSaveErrors.Inc()
		p.unsaved[record.Key()] = true
		p.logger.Error().Err(err).
			Str("group_id", record.GroupID).
			Str("member_id", record.MemberID).
			Msg("Failed to persist accrual record, will retry")
		return
	}

	delete(p.unsaved, record.Key())
}
