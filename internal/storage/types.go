package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionState tracks whether an identity is currently inside an observed
// play session.
type SessionState string

const (
	SessionOffline SessionState = "OFFLINE"
	SessionActive  SessionState = "IN_SESSION"
)

// UnmarshalJSON implements json.Unmarshaler to normalize the state to
// uppercase.
func (s *SessionState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := SessionState(strings.ToUpper(raw))

	switch normalized {
	case SessionOffline, SessionActive:
		*s = normalized
		return nil
	default:
		return fmt.Errorf("invalid session state: %s (must be OFFLINE or IN_SESSION)", raw)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (s SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// AccrualRecord holds the running accrual state for one tracked identity:
// a chat-group member bound to a remote platform account. There is at most
// one record per (group, member) pair and it lives exactly as long as the
// identity is tracked.
type AccrualRecord struct {
	GroupID     string `json:"group_id"`
	MemberID    string `json:"member_id"`
	RemoteID    string `json:"remote_id"`
	DisplayName string `json:"display_name"`

	SessionState     SessionState `json:"session_state"`
	SessionStartedAt *time.Time   `json:"session_started_at,omitempty"`

	// CarrySeconds holds active seconds observed but not yet redeemed into a
	// whole point. Always 0 <= CarrySeconds < the point interval after a
	// conversion, and never touched by the daily reset.
	CarrySeconds int64 `json:"carry_seconds"`

	PlayedToday  int64  `json:"played_today"`
	PointsToday  int64  `json:"points_today"`
	PointsTotal  int64  `json:"points_total"`
	LastResetDay string `json:"last_reset_day"`

	// TrackedAt orders leaderboard ties: earlier-tracked identities rank
	// first among equal scores.
	TrackedAt time.Time `json:"tracked_at"`
}

// Key returns the storage key for the record.
func (r *AccrualRecord) Key() string {
	return AccrualKey(r.GroupID, r.MemberID)
}

// AccrualKey builds the composite storage key for a (group, member) pair.
func AccrualKey(groupID, memberID string) string {
	return groupID + ":" + memberID
}

// GroupReportConfig holds the daily report settings for one group. A group
// with an empty WebhookURL never dispatches.
type GroupReportConfig struct {
	GroupID       string `json:"group_id"`
	WebhookURL    string `json:"webhook_url"`
	ScheduledTime string `json:"scheduled_time"` // local time of day, "15:04"
	Timezone      string `json:"timezone"`       // IANA name, defaults to UTC
	LastSentDay   string `json:"last_sent_day"`
}
