package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

// parseAccrualRecord converts a Redis hash to an AccrualRecord
func parseAccrualRecord(data map[string]string) (*storage.AccrualRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	carrySeconds, err := strconv.ParseInt(data["carry_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse carry_seconds: %w", err)
	}

	playedToday, err := strconv.ParseInt(data["played_today"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse played_today: %w", err)
	}

	pointsToday, err := strconv.ParseInt(data["points_today"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse points_today: %w", err)
	}

	pointsTotal, err := strconv.ParseInt(data["points_total"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse points_total: %w", err)
	}

	trackedAt, err := time.Parse(time.RFC3339Nano, data["tracked_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse tracked_at: %w", err)
	}

	var sessionStartedAt *time.Time
	if raw := data["session_started_at"]; raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session_started_at: %w", err)
		}
		sessionStartedAt = &parsed
	}

	state := storage.SessionState(data["session_state"])
	switch state {
	case storage.SessionOffline, storage.SessionActive:
	default:
		return nil, fmt.Errorf("invalid session_state: %q", data["session_state"])
	}

	return &storage.AccrualRecord{
		GroupID:          data["group_id"],
		MemberID:         data["member_id"],
		RemoteID:         data["remote_id"],
		DisplayName:      data["display_name"],
		SessionState:     state,
		SessionStartedAt: sessionStartedAt,
		CarrySeconds:     carrySeconds,
		PlayedToday:      playedToday,
		PointsToday:      pointsToday,
		PointsTotal:      pointsTotal,
		LastResetDay:     data["last_reset_day"],
		TrackedAt:        trackedAt,
	}, nil
}

// parseGroupConfig converts a Redis hash to a GroupReportConfig
func parseGroupConfig(data map[string]string) (*storage.GroupReportConfig, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	return &storage.GroupReportConfig{
		GroupID:       data["group_id"],
		WebhookURL:    data["webhook_url"],
		ScheduledTime: data["scheduled_time"],
		Timezone:      data["timezone"],
		LastSentDay:   data["last_sent_day"],
	}, nil
}
