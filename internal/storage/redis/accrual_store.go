package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

const accrualIndexKey = "cobalstonee:accruals"

type accrualStore struct {
	client *redis.Client
}

func accrualRecordKey(groupID, memberID string) string {
	return fmt.Sprintf("cobalstonee:accrual:%s", storage.AccrualKey(groupID, memberID))
}

// Upsert creates or updates an accrual record
func (s *accrualStore) Upsert(ctx context.Context, record storage.AccrualRecord) error {
	recordKey := accrualRecordKey(record.GroupID, record.MemberID)

	startedAt := ""
	if record.SessionStartedAt != nil {
		startedAt = record.SessionStartedAt.Format(time.RFC3339Nano)
	}

	fields := map[string]interface{}{
		"group_id":           record.GroupID,
		"member_id":          record.MemberID,
		"remote_id":          record.RemoteID,
		"display_name":       record.DisplayName,
		"session_state":      string(record.SessionState),
		"session_started_at": startedAt,
		"carry_seconds":      record.CarrySeconds,
		"played_today":       record.PlayedToday,
		"points_today":       record.PointsToday,
		"points_total":       record.PointsTotal,
		"last_reset_day":     record.LastResetDay,
		"tracked_at":         record.TrackedAt.Format(time.RFC3339Nano),
	}

	pipe := s.client.TxPipeline()
	// Replace the hash wholesale so cleared optional fields don't linger.
	pipe.Del(ctx, recordKey)
	pipe.HSet(ctx, recordKey, fields)
	pipe.SAdd(ctx, accrualIndexKey, record.Key())
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves an accrual record by (group, member)
func (s *accrualStore) Get(ctx context.Context, groupID, memberID string) (*storage.AccrualRecord, error) {
	data, err := s.client.HGetAll(ctx, accrualRecordKey(groupID, memberID)).Result()
	if err != nil {
		return nil, err
	}
	return parseAccrualRecord(data)
}

// List returns all accrual records
func (s *accrualStore) List(ctx context.Context) ([]storage.AccrualRecord, error) {
	keys, err := s.client.SMembers(ctx, accrualIndexKey).Result()
	if err != nil {
		return nil, err
	}

	records := make([]storage.AccrualRecord, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.HGetAll(ctx, "cobalstonee:accrual:"+key).Result()
		if err != nil {
			return nil, err
		}

		record, err := parseAccrualRecord(data)
		if errors.Is(err, storage.ErrNotFound) {
			// Index entry with no backing hash; drop it.
			s.client.SRem(ctx, accrualIndexKey, key)
			continue
		}
		if err != nil {
			return nil, err
		}

		records = append(records, *record)
	}

	return records, nil
}

// Delete removes an accrual record
func (s *accrualStore) Delete(ctx context.Context, groupID, memberID string) error {
	recordKey := accrualRecordKey(groupID, memberID)

	deleted, err := s.client.Del(ctx, recordKey).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}

	return s.client.SRem(ctx, accrualIndexKey, storage.AccrualKey(groupID, memberID)).Err()
}
