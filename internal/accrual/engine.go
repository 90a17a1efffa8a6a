// Package accrual converts observed presence transitions into capped daily
// reward points. The engine advances one record by one observation at a time;
// the store owns all records and serializes access to them.
package accrual

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/vihansingh1735-lab/cobalstonee/internal/metrics"
	"github.com/vihansingh1735-lab/cobalstonee/internal/presence"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

const (
	// DefaultPointInterval is the active time required per point.
	DefaultPointInterval = 600 * time.Second

	// DefaultDailyCap is the maximum points an identity earns per day.
	DefaultDailyCap = 50
)

// Config holds engine configuration.
type Config struct {
	PointInterval time.Duration
	DailyCap      int64
}

// Engine advances accrual records from presence observations.
type Engine struct {
	intervalSeconds int64
	dailyCap        int64
	logger          zerolog.Logger
}

// NewEngine creates an accrual engine.
func NewEngine(config Config, logger zerolog.Logger) *Engine {
	if config.PointInterval <= 0 {
		config.PointInterval = DefaultPointInterval
	}
	if config.DailyCap <= 0 {
		config.DailyCap = DefaultDailyCap
	}

	return &Engine{
		intervalSeconds: int64(config.PointInterval.Seconds()),
		dailyCap:        config.DailyCap,
		logger:          logger.With().Str("component", "accrual-engine").Logger(),
	}
}

// Observe advances one record by one presence observation and reports whether
// the record changed. now must be non-decreasing across calls for the same
// record; todayKey is the calendar day of now in the record's group timezone.
//
// An unknown status is treated as "no information": the record keeps its
// current session state and nothing is lost or granted, except for the daily
// reset which applies on every call.
func (e *Engine) Observe(record *storage.AccrualRecord, status presence.Status, now time.Time, todayKey string) bool {
	mutated := false

	// Day rollover first, regardless of presence outcome. Carry seconds are
	// not daily-scoped and survive the reset.
	if record.LastResetDay != todayKey {
		record.PointsToday = 0
		record.PlayedToday = 0
		record.LastResetDay = todayKey
		mutated = true

		e.logger.Debug().
			Str("group_id", record.GroupID).
			Str("member_id", record.MemberID).
			Str("day", todayKey).
			Msg("Daily counters reset")
	}

	switch {
	case status == presence.StatusActive && record.SessionState != storage.SessionActive:
		startedAt := now
		record.SessionState = storage.SessionActive
		record.SessionStartedAt = &startedAt
		mutated = true

		metrics.SessionsStarted.WithLabelValues(record.GroupID).Inc()
		e.logger.Info().
			Str("group_id", record.GroupID).
			Str("member_id", record.MemberID).
			Str("remote_id", record.RemoteID).
			Msg("Session started")

	case status == presence.StatusInactive && record.SessionState == storage.SessionActive:
		elapsed := int64(0)
		if record.SessionStartedAt != nil {
			elapsed = int64(now.Sub(*record.SessionStartedAt) / time.Second)
		}
		if elapsed < 0 {
			elapsed = 0
		}

		record.CarrySeconds += elapsed
		record.PlayedToday += elapsed
		awarded := e.convert(record)

		record.SessionState = storage.SessionOffline
		record.SessionStartedAt = nil
		mutated = true

		if awarded > 0 {
			metrics.PointsAwarded.WithLabelValues(record.GroupID).Add(float64(awarded))
		}
		e.logger.Info().
			Str("group_id", record.GroupID).
			Str("member_id", record.MemberID).
			Str("remote_id", record.RemoteID).
			Int64("session_seconds", elapsed).
			Int64("points_awarded", awarded).
			Int64("points_today", record.PointsToday).
			Int64("carry_seconds", record.CarrySeconds).
			Msg("Session ended")
	}

	return mutated
}

// convert redeems whole point intervals out of the carry, clamped to the
// daily cap. Carry is reduced only by the seconds actually redeemed, so
// seconds beyond the cap or below interval granularity are never discarded.
func (e *Engine) convert(record *storage.AccrualRecord) int64 {
	earned := record.CarrySeconds / e.intervalSeconds

	allowed := earned
	if room := e.dailyCap - record.PointsToday; allowed > room {
		allowed = room
	}
	if allowed <= 0 {
		return 0
	}

	record.PointsToday += allowed
	record.PointsTotal += allowed
	record.CarrySeconds -= allowed * e.intervalSeconds

	return allowed
}
