package bolt

import (
	"context"

	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
	"go.etcd.io/bbolt"
)

type accrualStore struct {
	db *bbolt.DB
}

func (s *accrualStore) Upsert(ctx context.Context, record storage.AccrualRecord) error {
	return putBucketValue(ctx, s.db, bucketAccruals, record.Key(), record)
}

func (s *accrualStore) Get(ctx context.Context, groupID, memberID string) (*storage.AccrualRecord, error) {
	return getBucketValue[storage.AccrualRecord](ctx, s.db, bucketAccruals, storage.AccrualKey(groupID, memberID))
}

func (s *accrualStore) List(ctx context.Context) ([]storage.AccrualRecord, error) {
	return listBucket[storage.AccrualRecord](ctx, s.db, bucketAccruals)
}

func (s *accrualStore) Delete(ctx context.Context, groupID, memberID string) error {
	return deleteBucketValue(ctx, s.db, bucketAccruals, storage.AccrualKey(groupID, memberID))
}
