package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/vihansingh1735-lab/cobalstonee/internal/accrual"
	"github.com/vihansingh1735-lab/cobalstonee/internal/presence"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

type fakeSource struct {
	mu       sync.Mutex
	statuses map[string]presence.Status
	errs     map[string]error
	lookups  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		statuses: make(map[string]presence.Status),
		errs:     make(map[string]error),
	}
}

func (f *fakeSource) Lookup(ctx context.Context, remoteID string) (presence.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++

	if err, ok := f.errs[remoteID]; ok {
		return presence.Result{}, err
	}
	if status, ok := f.statuses[remoteID]; ok {
		return presence.Result{Status: status}, nil
	}
	return presence.Result{Status: presence.StatusUnknown}, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	records map[string]storage.AccrualRecord
	upserts int
	err     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{records: make(map[string]storage.AccrualRecord)}
}

func (f *fakeGateway) Close() error                   { return nil }
func (f *fakeGateway) Accruals() storage.AccrualStore { return f }
func (f *fakeGateway) Groups() storage.GroupStore     { return nil }

func (f *fakeGateway) Upsert(ctx context.Context, record storage.AccrualRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.err != nil {
		return f.err
	}
	f.records[record.Key()] = record
	return nil
}

func (f *fakeGateway) Get(ctx context.Context, groupID, memberID string) (*storage.AccrualRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[storage.AccrualKey(groupID, memberID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &record, nil
}

func (f *fakeGateway) List(ctx context.Context) ([]storage.AccrualRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]storage.AccrualRecord, 0, len(f.records))
	for _, record := range f.records {
		records = append(records, record)
	}
	return records, nil
}

func (f *fakeGateway) Delete(ctx context.Context, groupID, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := storage.AccrualKey(groupID, memberID)
	if _, ok := f.records[key]; !ok {
		return storage.ErrNotFound
	}
	delete(f.records, key)
	return nil
}

func pollerFixture(t *testing.T, now time.Time) (*Poller, *accrual.Store, *fakeSource, *fakeGateway, *accrual.TestClock) {
	t.Helper()

	store := accrual.NewStore(zerolog.Nop())
	engine := accrual.NewEngine(accrual.Config{PointInterval: 600 * time.Second, DailyCap: 50}, zerolog.Nop())
	source := newFakeSource()
	gateway := newFakeGateway()
	clock := &accrual.TestClock{CurrentTime: now}
	poller := NewPoller(store, engine, source, gateway, clock, Config{Concurrency: 4}, zerolog.Nop())

	return poller, store, source, gateway, clock
}

func trackTestRecord(store *accrual.Store, memberID, remoteID string, now time.Time) {
	store.Track(storage.AccrualRecord{
		GroupID:      "g1",
		MemberID:     memberID,
		RemoteID:     remoteID,
		SessionState: storage.SessionOffline,
		LastResetDay: accrual.DayKey(now, time.UTC),
		TrackedAt:    now,
	})
}

func TestPollOnceStartsAndEndsSessions(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	poller, store, source, gateway, clock := pollerFixture(t, now)
	trackTestRecord(store, "m1", "1001", now)

	source.statuses["1001"] = presence.StatusActive
	poller.pollOnce(context.Background())

	record, _ := store.Get("g1", "m1")
	if record.SessionState != storage.SessionActive {
		t.Fatalf("SessionState = %q after active poll", record.SessionState)
	}
	// Mutation is written through immediately.
	if persisted := gateway.records[record.Key()]; persisted.SessionState != storage.SessionActive {
		t.Errorf("persisted state = %q, want %q", persisted.SessionState, storage.SessionActive)
	}

	clock.Advance(1300 * time.Second)
	source.statuses["1001"] = presence.StatusInactive
	poller.pollOnce(context.Background())

	record, _ = store.Get("g1", "m1")
	if record.SessionState != storage.SessionOffline {
		t.Errorf("SessionState = %q after inactive poll", record.SessionState)
	}
	if record.PointsToday != 2 || record.CarrySeconds != 100 {
		t.Errorf("points=%d carry=%d, want 2 and 100", record.PointsToday, record.CarrySeconds)
	}
	if persisted := gateway.records[record.Key()]; persisted.PointsToday != 2 {
		t.Errorf("persisted PointsToday = %d, want 2", persisted.PointsToday)
	}
}

func TestPollOnceUnchangedRecordNotPersisted(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	poller, store, source, gateway, _ := pollerFixture(t, now)
	trackTestRecord(store, "m1", "1001", now)

	source.statuses["1001"] = presence.StatusInactive
	poller.pollOnce(context.Background())

	if gateway.upserts != 0 {
		t.Errorf("got %d upserts for a no-op poll, want 0", gateway.upserts)
	}
}

func TestPollOnceFailedLookupIsUnknown(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	poller, store, source, _, clock := pollerFixture(t, now)
	trackTestRecord(store, "m1", "1001", now)
	trackTestRecord(store, "m2", "1002", now)

	source.statuses["1001"] = presence.StatusActive
	source.statuses["1002"] = presence.StatusActive
	poller.pollOnce(context.Background())

	// One lookup starts failing; that identity keeps its session while the
	// other still ends normally.
	clock.Advance(700 * time.Second)
	source.errs["1001"] = errors.New("api timeout")
	source.statuses["1002"] = presence.StatusInactive
	poller.pollOnce(context.Background())

	m1, _ := store.Get("g1", "m1")
	if m1.SessionState != storage.SessionActive {
		t.Errorf("m1 state = %q, want session kept through lookup failure", m1.SessionState)
	}
	m2, _ := store.Get("g1", "m2")
	if m2.SessionState != storage.SessionOffline || m2.PointsToday != 1 {
		t.Errorf("m2 state=%q points=%d, want OFFLINE and 1", m2.SessionState, m2.PointsToday)
	}
}

func TestPollOnceRetriesFailedSave(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	poller, store, source, gateway, _ := pollerFixture(t, now)
	trackTestRecord(store, "m1", "1001", now)

	gateway.err = errors.New("disk full")
	source.statuses["1001"] = presence.StatusActive
	poller.pollOnce(context.Background())

	// In-memory state advanced even though the save failed.
	record, _ := store.Get("g1", "m1")
	if record.SessionState != storage.SessionActive {
		t.Fatalf("SessionState = %q, want %q", record.SessionState, storage.SessionActive)
	}
	if len(gateway.records) != 0 {
		t.Fatal("record persisted despite save error")
	}

	// Next tick produces no new mutation but retries the dirty record.
	gateway.err = nil
	poller.pollOnce(context.Background())

	persisted, ok := gateway.records[record.Key()]
	if !ok || persisted.SessionState != storage.SessionActive {
		t.Errorf("persisted = %+v after retry", persisted)
	}
}

func TestPollOnceEmptyStoreSkipsLookups(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	poller, _, source, _, _ := pollerFixture(t, now)

	poller.pollOnce(context.Background())
	if source.lookups != 0 {
		t.Errorf("got %d lookups on an empty store, want 0", source.lookups)
	}
}

func TestPollOnceCancelledContextDiscardsResults(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	poller, store, source, gateway, _ := pollerFixture(t, now)
	trackTestRecord(store, "m1", "1001", now)

	source.statuses["1001"] = presence.StatusActive
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poller.pollOnce(ctx)

	record, _ := store.Get("g1", "m1")
	if record.SessionState != storage.SessionOffline {
		t.Errorf("SessionState = %q, cancelled tick must not apply", record.SessionState)
	}
	if gateway.upserts != 0 {
		t.Errorf("got %d upserts from a cancelled tick, want 0", gateway.upserts)
	}
}

func TestPollerStartStop(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	poller, _, _, _, _ := pollerFixture(t, now)

	poller.Start()
	poller.Stop()
}
