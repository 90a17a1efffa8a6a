package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

const groupIndexKey = "cobalstonee:groups"

type groupStore struct {
	client *redis.Client
}

func groupConfigKey(groupID string) string {
	return fmt.Sprintf("cobalstonee:group:%s", groupID)
}

// Upsert creates or updates a group report config
func (s *groupStore) Upsert(ctx context.Context, config storage.GroupReportConfig) error {
	configKey := groupConfigKey(config.GroupID)

	fields := map[string]interface{}{
		"group_id":       config.GroupID,
		"webhook_url":    config.WebhookURL,
		"scheduled_time": config.ScheduledTime,
		"timezone":       config.Timezone,
		"last_sent_day":  config.LastSentDay,
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, configKey)
	pipe.HSet(ctx, configKey, fields)
	pipe.SAdd(ctx, groupIndexKey, config.GroupID)
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a group report config by group ID
func (s *groupStore) Get(ctx context.Context, groupID string) (*storage.GroupReportConfig, error) {
	data, err := s.client.HGetAll(ctx, groupConfigKey(groupID)).Result()
	if err != nil {
		return nil, err
	}
	return parseGroupConfig(data)
}

// List returns all group report configs
func (s *groupStore) List(ctx context.Context) ([]storage.GroupReportConfig, error) {
	groupIDs, err := s.client.SMembers(ctx, groupIndexKey).Result()
	if err != nil {
		return nil, err
	}

	configs := make([]storage.GroupReportConfig, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		data, err := s.client.HGetAll(ctx, groupConfigKey(groupID)).Result()
		if err != nil {
			return nil, err
		}

		config, err := parseGroupConfig(data)
		if errors.Is(err, storage.ErrNotFound) {
			s.client.SRem(ctx, groupIndexKey, groupID)
			continue
		}
		if err != nil {
			return nil, err
		}

		configs = append(configs, *config)
	}

	return configs, nil
}

// Delete removes a group report config
func (s *groupStore) Delete(ctx context.Context, groupID string) error {
	deleted, err := s.client.Del(ctx, groupConfigKey(groupID)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}

	return s.client.SRem(ctx, groupIndexKey, groupID).Err()
}
