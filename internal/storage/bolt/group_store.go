package bolt

import (
	"context"

	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
	"go.etcd.io/bbolt"
)

type groupStore struct {
	db *bbolt.DB
}

func (s *groupStore) Upsert(ctx context.Context, config storage.GroupReportConfig) error {
	return putBucketValue(ctx, s.db, bucketGroups, config.GroupID, config)
}

func (s *groupStore) Get(ctx context.Context, groupID string) (*storage.GroupReportConfig, error) {
	return getBucketValue[storage.GroupReportConfig](ctx, s.db, bucketGroups, groupID)
}

func (s *groupStore) List(ctx context.Context) ([]storage.GroupReportConfig, error) {
	return listBucket[storage.GroupReportConfig](ctx, s.db, bucketGroups)
}

func (s *groupStore) Delete(ctx context.Context, groupID string) error {
	return deleteBucketValue(ctx, s.db, bucketGroups, groupID)
}
