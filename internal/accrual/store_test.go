package accrual

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

func storeRecord(groupID, memberID string, trackedAt time.Time) storage.AccrualRecord {
	return storage.AccrualRecord{
		GroupID:      groupID,
		MemberID:     memberID,
		RemoteID:     "r-" + memberID,
		SessionState: storage.SessionOffline,
		LastResetDay: "2025-03-10",
		TrackedAt:    trackedAt,
	}
}

func TestStoreLoadRebuildsTrackingOrder(t *testing.T) {
	store := NewStore(zerolog.Nop())
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	// Persisted out of order; Load must sort by TrackedAt.
	store.Load([]storage.AccrualRecord{
		storeRecord("g1", "c", base.Add(2*time.Hour)),
		storeRecord("g1", "a", base),
		storeRecord("g1", "b", base.Add(time.Hour)),
	}, nil)

	refs := store.Identities()
	if len(refs) != 3 {
		t.Fatalf("got %d identities, want 3", len(refs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if refs[i].MemberID != want {
			t.Errorf("refs[%d].MemberID = %q, want %q", i, refs[i].MemberID, want)
		}
	}
}

func TestStoreTrackAppendsAndReplaces(t *testing.T) {
	store := NewStore(zerolog.Nop())
	now := time.Now()

	store.Track(storeRecord("g1", "a", now))
	store.Track(storeRecord("g1", "b", now.Add(time.Second)))

	replaced := storeRecord("g1", "a", now.Add(2*time.Second))
	replaced.PointsTotal = 7
	store.Track(replaced)

	refs := store.Identities()
	if len(refs) != 2 {
		t.Fatalf("got %d identities, want 2", len(refs))
	}
	// Re-tracking keeps the original position.
	if refs[0].MemberID != "a" || refs[1].MemberID != "b" {
		t.Errorf("order = [%s %s], want [a b]", refs[0].MemberID, refs[1].MemberID)
	}

	record, ok := store.Get("g1", "a")
	if !ok || record.PointsTotal != 7 {
		t.Errorf("Get after replace: ok=%v PointsTotal=%d", ok, record.PointsTotal)
	}
}

func TestStoreUntrack(t *testing.T) {
	store := NewStore(zerolog.Nop())
	store.Track(storeRecord("g1", "a", time.Now()))

	if !store.Untrack("g1", "a") {
		t.Error("Untrack existing = false, want true")
	}
	if store.Untrack("g1", "a") {
		t.Error("Untrack missing = true, want false")
	}
	if _, ok := store.Get("g1", "a"); ok {
		t.Error("record still present after Untrack")
	}
	if len(store.Identities()) != 0 {
		t.Error("identity still listed after Untrack")
	}
}

func TestStoreMutate(t *testing.T) {
	store := NewStore(zerolog.Nop())
	store.Track(storeRecord("g1", "a", time.Now()))

	copy1, mutated, found := store.Mutate("g1", "a", func(r *storage.AccrualRecord) bool {
		r.PointsToday = 3
		return true
	})
	if !found || !mutated {
		t.Fatalf("Mutate: found=%v mutated=%v", found, mutated)
	}
	if copy1.PointsToday != 3 {
		t.Errorf("returned copy PointsToday = %d, want 3", copy1.PointsToday)
	}

	// The returned value is a copy; writing to it must not touch the store.
	copy1.PointsToday = 99
	record, _ := store.Get("g1", "a")
	if record.PointsToday != 3 {
		t.Errorf("store PointsToday = %d, want 3", record.PointsToday)
	}

	_, _, found = store.Mutate("g1", "missing", func(r *storage.AccrualRecord) bool { return true })
	if found {
		t.Error("Mutate on missing record reported found")
	}
}

func TestStoreGroupRecordsFiltersAndOrders(t *testing.T) {
	store := NewStore(zerolog.Nop())
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store.Track(storeRecord("g1", "a", base))
	store.Track(storeRecord("g2", "x", base.Add(time.Second)))
	store.Track(storeRecord("g1", "b", base.Add(2*time.Second)))

	records := store.GroupRecords("g1")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].MemberID != "a" || records[1].MemberID != "b" {
		t.Errorf("order = [%s %s], want [a b]", records[0].MemberID, records[1].MemberID)
	}
}

func TestStoreCounts(t *testing.T) {
	store := NewStore(zerolog.Nop())
	active := storeRecord("g1", "a", time.Now())
	active.SessionState = storage.SessionActive
	store.Track(active)
	store.Track(storeRecord("g1", "b", time.Now()))

	tracked, inSession := store.Counts()
	if tracked != 2 || inSession != 1 {
		t.Errorf("Counts = (%d, %d), want (2, 1)", tracked, inSession)
	}
}

func TestStoreMarkSent(t *testing.T) {
	store := NewStore(zerolog.Nop())
	store.SetGroupConfig(storage.GroupReportConfig{
		GroupID:       "g1",
		WebhookURL:    "https://example.com/hook",
		ScheduledTime: "09:00",
		Timezone:      "UTC",
	})

	group, ok := store.MarkSent("g1", "2025-03-10")
	if !ok {
		t.Fatal("MarkSent existing = false")
	}
	if group.LastSentDay != "2025-03-10" {
		t.Errorf("returned LastSentDay = %q, want 2025-03-10", group.LastSentDay)
	}

	stored, _ := store.GroupConfig("g1")
	if stored.LastSentDay != "2025-03-10" {
		t.Errorf("stored LastSentDay = %q, want 2025-03-10", stored.LastSentDay)
	}

	if _, ok := store.MarkSent("missing", "2025-03-10"); ok {
		t.Error("MarkSent on missing group = true")
	}
}

func TestStoreLocationFallback(t *testing.T) {
	store := NewStore(zerolog.Nop())
	store.SetGroupConfig(storage.GroupReportConfig{GroupID: "good", Timezone: "America/New_York"})
	store.SetGroupConfig(storage.GroupReportConfig{GroupID: "bad", Timezone: "Mars/Olympus_Mons"})
	store.SetGroupConfig(storage.GroupReportConfig{GroupID: "empty"})

	if got := store.Location("good").String(); got != "America/New_York" {
		t.Errorf("Location(good) = %q", got)
	}
	if got := store.Location("bad"); got != time.UTC {
		t.Errorf("Location(bad) = %v, want UTC", got)
	}
	if got := store.Location("empty"); got != time.UTC {
		t.Errorf("Location(empty) = %v, want UTC", got)
	}
	if got := store.Location("unconfigured"); got != time.UTC {
		t.Errorf("Location(unconfigured) = %v, want UTC", got)
	}
}

func TestStoreGroupConfigsSorted(t *testing.T) {
	store := NewStore(zerolog.Nop())
	store.SetGroupConfig(storage.GroupReportConfig{GroupID: "zz"})
	store.SetGroupConfig(storage.GroupReportConfig{GroupID: "aa"})
	store.SetGroupConfig(storage.GroupReportConfig{GroupID: "mm"})

	configs := store.GroupConfigs()
	if len(configs) != 3 {
		t.Fatalf("got %d configs, want 3", len(configs))
	}
	for i, want := range []string{"aa", "mm", "zz"} {
		if configs[i].GroupID != want {
			t.Errorf("configs[%d].GroupID = %q, want %q", i, configs[i].GroupID, want)
		}
	}

	if !store.RemoveGroupConfig("mm") {
		t.Error("RemoveGroupConfig existing = false")
	}
	if store.RemoveGroupConfig("mm") {
		t.Error("RemoveGroupConfig missing = true")
	}
}
