package report

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/vihansingh1735-lab/cobalstonee/internal/accrual"
	"github.com/vihansingh1735-lab/cobalstonee/internal/metrics"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

// DefaultTick is the scheduler's wall-clock polling interval. The scheduled
// time is a lower bound checked with >=, so a coarse tick only delays a
// report, never skips it.
const DefaultTick = time.Minute

// Sink delivers a finished leaderboard to its external destination.
type Sink interface {
	Deliver(ctx context.Context, groupID, webhookURL string, entries []Entry) error
}

// Scheduler fires each group's daily report exactly once per calendar day, at
// or after the group's configured local time.
type Scheduler struct {
	store   *accrual.Store
	gateway storage.Store
	sink    Sink
	clock   accrual.Clock
	tick    time.Duration
	logger  zerolog.Logger

	cancel   context.CancelFunc
	stopChan chan struct{}
	doneChan chan struct{}

	// unsaved holds group IDs whose advanced lastSentDay could not be
	// persisted yet; retried every tick so a restart cannot double-send.
	unsaved map[string]bool

	// warned suppresses repeated complaints about the same broken config.
	warned map[string]string
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	Tick time.Duration
}

// NewScheduler creates a daily report scheduler.
func NewScheduler(store *accrual.Store, gateway storage.Store, sink Sink, clock accrual.Clock, config SchedulerConfig, logger zerolog.Logger) *Scheduler {
	if config.Tick <= 0 {
		config.Tick = DefaultTick
	}

	return &Scheduler{
		store:    store,
		gateway:  gateway,
		sink:     sink,
		clock:    clock,
		tick:     config.Tick,
		logger:   logger.With().Str("component", "report-scheduler").Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		unsaved:  make(map[string]bool),
		warned:   make(map[string]string),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
	s.logger.Info().Dur("tick", s.tick).Msg("Report scheduler started")
}

// Stop stops the scheduler and waits for the loop to exit. An in-flight
// delivery is abandoned; its day is re-dispatched on the next start.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	close(s.stopChan)
	<-s.doneChan
	s.logger.Info().Msg("Report scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.dispatchDue(ctx)
		case <-s.stopChan:
			return
		}
	}
}

// dispatchDue checks every group and dispatches reports whose scheduled time
// has passed today. A broken config disables its group without affecting the
// others.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.clock.Now()

	for _, config := range s.store.GroupConfigs() {
		if s.unsaved[config.GroupID] {
			s.persistConfig(ctx, config)
		}

		if config.WebhookURL == "" || config.ScheduledTime == "" {
			continue
		}

		loc := time.UTC
		if config.Timezone != "" {
			parsed, err := time.LoadLocation(config.Timezone)
			if err != nil {
				s.warnOnce(config.GroupID, "timezone", config.Timezone)
				continue
			}
			loc = parsed
		}

		scheduled, err := time.Parse("15:04", config.ScheduledTime)
		if err != nil {
			s.warnOnce(config.GroupID, "scheduled_time", config.ScheduledTime)
			continue
		}

		today := accrual.DayKey(now, loc)
		if config.LastSentDay == today {
			continue
		}

		local := now.In(loc)
		if local.Hour()*60+local.Minute() < scheduled.Hour()*60+scheduled.Minute() {
			continue
		}

		entries := Project(s.store.GroupRecords(config.GroupID))

		if err := s.sink.Deliver(ctx, config.GroupID, config.WebhookURL, entries); err != nil {
			metrics.ReportDeliveryErrors.WithLabelValues(config.GroupID).Inc()
			s.logger.Error().Err(err).
				Str("group_id", config.GroupID).
				Str("day", today).
				Msg("Report delivery failed, will retry next tick")
			continue
		}

		metrics.ReportsDelivered.WithLabelValues(config.GroupID).Inc()
		s.logger.Info().
			Str("group_id", config.GroupID).
			Str("day", today).
			Int("entries", len(entries)).
			Msg("Daily report delivered")

		updated, ok := s.store.MarkSent(config.GroupID, today)
		if !ok {
			continue
		}
		s.persistConfig(ctx, updated)
	}
}

func (s *Scheduler) persistConfig(ctx context.Context, config storage.GroupReportConfig) {
	if current, ok := s.store.GroupConfig(config.GroupID); ok {
		config = current
	}

	if err := s.gateway.Groups().Upsert(ctx, config); err != nil {
		metrics.StoreSaveErrors.Inc()
		s.unsaved[config.GroupID] = true
		s.logger.Error().Err(err).
			Str("group_id", config.GroupID).
			Msg("Failed to persist report config, will retry")
		return
	}

	delete(s.unsaved, config.GroupID)
}

func (s *Scheduler) warnOnce(groupID, field, value string) {
	key := groupID + "/" + field
	if s.warned[key] == value {
		return
	}
	s.warned[key] = value
	s.logger.Warn().
		Str("group_id", groupID).
		Str(field, value).
		Msg("Invalid report config, group reports disabled")
}
