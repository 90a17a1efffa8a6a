package accrual

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/vihansingh1735-lab/cobalstonee/internal/presence"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(Config{PointInterval: 600 * time.Second, DailyCap: 50}, zerolog.Nop())
}

func testRecord(day string) *storage.AccrualRecord {
	return &storage.AccrualRecord{
		GroupID:      "g1",
		MemberID:     "m1",
		RemoteID:     "1001",
		DisplayName:  "Tester",
		SessionState: storage.SessionOffline,
		LastResetDay: day,
	}
}

func TestObserveSessionStart(t *testing.T) {
	engine := testEngine(t)
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	record := testRecord("2025-03-10")

	mutated := engine.Observe(record, presence.StatusActive, now, "2025-03-10")
	if !mutated {
		t.Fatal("expected mutation on session start")
	}
	if record.SessionState != storage.SessionActive {
		t.Errorf("SessionState = %q, want %q", record.SessionState, storage.SessionActive)
	}
	if record.SessionStartedAt == nil || !record.SessionStartedAt.Equal(now) {
		t.Errorf("SessionStartedAt = %v, want %v", record.SessionStartedAt, now)
	}
	if record.PointsToday != 0 || record.PointsTotal != 0 {
		t.Errorf("points granted on start: today=%d total=%d", record.PointsToday, record.PointsTotal)
	}
}

func TestObserveActiveWhileActiveIsNoop(t *testing.T) {
	engine := testEngine(t)
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	record := testRecord("2025-03-10")

	engine.Observe(record, presence.StatusActive, start, "2025-03-10")
	mutated := engine.Observe(record, presence.StatusActive, start.Add(30*time.Second), "2025-03-10")
	if mutated {
		t.Error("repeated active observation should not mutate")
	}
	if !record.SessionStartedAt.Equal(start) {
		t.Errorf("SessionStartedAt moved to %v, want %v", record.SessionStartedAt, start)
	}
}

func TestObserveShortSessionCarriesOver(t *testing.T) {
	engine := testEngine(t)
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	record := testRecord("2025-03-10")

	engine.Observe(record, presence.StatusActive, start, "2025-03-10")
	engine.Observe(record, presence.StatusInactive, start.Add(250*time.Second), "2025-03-10")

	if record.PointsToday != 0 {
		t.Errorf("PointsToday = %d, want 0", record.PointsToday)
	}
	if record.CarrySeconds != 250 {
		t.Errorf("CarrySeconds = %d, want 250", record.CarrySeconds)
	}
	if record.PlayedToday != 250 {
		t.Errorf("PlayedToday = %d, want 250", record.PlayedToday)
	}
	if record.SessionState != storage.SessionOffline {
		t.Errorf("SessionState = %q, want %q", record.SessionState, storage.SessionOffline)
	}
	if record.SessionStartedAt != nil {
		t.Error("SessionStartedAt not cleared after session end")
	}

	// A second short session tops the carry past one interval.
	engine.Observe(record, presence.StatusActive, start.Add(300*time.Second), "2025-03-10")
	engine.Observe(record, presence.StatusInactive, start.Add(700*time.Second), "2025-03-10")

	if record.PointsToday != 1 {
		t.Errorf("PointsToday = %d, want 1", record.PointsToday)
	}
	if record.CarrySeconds != 50 {
		t.Errorf("CarrySeconds = %d, want 50", record.CarrySeconds)
	}
}

func TestObserveDailyCapClamp(t *testing.T) {
	engine := testEngine(t)
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	record := testRecord("2025-03-10")
	record.PointsToday = 49
	record.PointsTotal = 120

	engine.Observe(record, presence.StatusActive, start, "2025-03-10")
	engine.Observe(record, presence.StatusInactive, start.Add(1200*time.Second), "2025-03-10")

	if record.PointsToday != 50 {
		t.Errorf("PointsToday = %d, want 50", record.PointsToday)
	}
	if record.PointsTotal != 121 {
		t.Errorf("PointsTotal = %d, want 121", record.PointsTotal)
	}
	// The second interval's seconds stay in the carry for tomorrow.
	if record.CarrySeconds != 600 {
		t.Errorf("CarrySeconds = %d, want 600", record.CarrySeconds)
	}
}

func TestObserveAtCapEarnsNothing(t *testing.T) {
	engine := testEngine(t)
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	record := testRecord("2025-03-10")
	record.PointsToday = 50
	record.PointsTotal = 50

	engine.Observe(record, presence.StatusActive, start, "2025-03-10")
	engine.Observe(record, presence.StatusInactive, start.Add(3000*time.Second), "2025-03-10")

	if record.PointsToday != 50 || record.PointsTotal != 50 {
		t.Errorf("points past cap: today=%d total=%d", record.PointsToday, record.PointsTotal)
	}
	if record.CarrySeconds != 3000 {
		t.Errorf("CarrySeconds = %d, want 3000", record.CarrySeconds)
	}
}

func TestObserveDailyReset(t *testing.T) {
	engine := testEngine(t)
	record := testRecord("2025-03-10")
	record.PointsToday = 37
	record.PlayedToday = 22200
	record.PointsTotal = 400
	record.CarrySeconds = 123

	now := time.Date(2025, 3, 11, 0, 5, 0, 0, time.UTC)
	mutated := engine.Observe(record, presence.StatusUnknown, now, "2025-03-11")

	if !mutated {
		t.Fatal("day rollover should mutate")
	}
	if record.PointsToday != 0 || record.PlayedToday != 0 {
		t.Errorf("daily counters survived reset: today=%d played=%d", record.PointsToday, record.PlayedToday)
	}
	if record.PointsTotal != 400 {
		t.Errorf("PointsTotal = %d, want 400", record.PointsTotal)
	}
	if record.CarrySeconds != 123 {
		t.Errorf("CarrySeconds = %d, want 123; carry is not daily-scoped", record.CarrySeconds)
	}
	if record.LastResetDay != "2025-03-11" {
		t.Errorf("LastResetDay = %q, want 2025-03-11", record.LastResetDay)
	}

	// A second observation on the same day does not reset again.
	record.PointsToday = 5
	mutated = engine.Observe(record, presence.StatusUnknown, now.Add(time.Minute), "2025-03-11")
	if mutated {
		t.Error("same-day repeat observation should not mutate")
	}
	if record.PointsToday != 5 {
		t.Errorf("PointsToday = %d, want 5", record.PointsToday)
	}
}

func TestObserveUnknownKeepsSessionState(t *testing.T) {
	engine := testEngine(t)
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	record := testRecord("2025-03-10")

	engine.Observe(record, presence.StatusActive, start, "2025-03-10")
	mutated := engine.Observe(record, presence.StatusUnknown, start.Add(5*time.Minute), "2025-03-10")

	if mutated {
		t.Error("unknown status should not mutate within the same day")
	}
	if record.SessionState != storage.SessionActive {
		t.Errorf("SessionState = %q, want %q", record.SessionState, storage.SessionActive)
	}
	if !record.SessionStartedAt.Equal(start) {
		t.Errorf("SessionStartedAt = %v, want %v", record.SessionStartedAt, start)
	}

	// The session keeps accruing through the gap: ending it later counts the
	// full span from the original start.
	engine.Observe(record, presence.StatusInactive, start.Add(1200*time.Second), "2025-03-10")
	if record.PointsToday != 2 {
		t.Errorf("PointsToday = %d, want 2", record.PointsToday)
	}
}

func TestObserveCrossMidnightAttributesToLeaveDay(t *testing.T) {
	engine := testEngine(t)
	record := testRecord("2025-03-10")

	start := time.Date(2025, 3, 10, 23, 50, 0, 0, time.UTC)
	engine.Observe(record, presence.StatusActive, start, "2025-03-10")

	// Session ends 20 minutes later, after midnight. The reset runs first,
	// then the whole session is credited to the leave day.
	end := time.Date(2025, 3, 11, 0, 10, 0, 0, time.UTC)
	engine.Observe(record, presence.StatusInactive, end, "2025-03-11")

	if record.LastResetDay != "2025-03-11" {
		t.Errorf("LastResetDay = %q, want 2025-03-11", record.LastResetDay)
	}
	if record.PointsToday != 2 {
		t.Errorf("PointsToday = %d, want 2", record.PointsToday)
	}
	if record.PlayedToday != 1200 {
		t.Errorf("PlayedToday = %d, want 1200", record.PlayedToday)
	}
}

func TestObserveNoSecondsLost(t *testing.T) {
	engine := testEngine(t)
	record := testRecord("2025-03-10")
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	// A run of uneven sessions; every observed second must end up either
	// redeemed as points or still in the carry.
	sessions := []int64{130, 470, 601, 59, 1803, 600, 7, 999}

	now := start
	var observed int64
	for _, length := range sessions {
		engine.Observe(record, presence.StatusActive, now, "2025-03-10")
		now = now.Add(time.Duration(length) * time.Second)
		engine.Observe(record, presence.StatusInactive, now, "2025-03-10")
		now = now.Add(30 * time.Second)
		observed += length
	}

	accounted := record.PointsTotal*600 + record.CarrySeconds
	if accounted != observed {
		t.Errorf("accounted %d seconds (points %d, carry %d), observed %d",
			accounted, record.PointsTotal, record.CarrySeconds, observed)
	}
	if record.PlayedToday != observed {
		t.Errorf("PlayedToday = %d, want %d", record.PlayedToday, observed)
	}
	if record.PointsToday > 50 {
		t.Errorf("PointsToday = %d exceeds cap", record.PointsToday)
	}
}

func TestObserveInactiveWhileOfflineIsNoop(t *testing.T) {
	engine := testEngine(t)
	record := testRecord("2025-03-10")
	record.CarrySeconds = 700

	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	mutated := engine.Observe(record, presence.StatusInactive, now, "2025-03-10")

	if mutated {
		t.Error("inactive observation on an offline record should not mutate")
	}
	// Carry is only converted on a session end, never on idle polls.
	if record.CarrySeconds != 700 || record.PointsToday != 0 {
		t.Errorf("idle poll converted carry: carry=%d today=%d", record.CarrySeconds, record.PointsToday)
	}
}

func TestObserveNilStartedAtEndsCleanly(t *testing.T) {
	engine := testEngine(t)
	record := testRecord("2025-03-10")
	record.SessionState = storage.SessionActive
	record.SessionStartedAt = nil

	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	mutated := engine.Observe(record, presence.StatusInactive, now, "2025-03-10")

	if !mutated {
		t.Fatal("session end should mutate")
	}
	if record.SessionState != storage.SessionOffline {
		t.Errorf("SessionState = %q, want %q", record.SessionState, storage.SessionOffline)
	}
	if record.CarrySeconds != 0 {
		t.Errorf("CarrySeconds = %d, want 0", record.CarrySeconds)
	}
}

func TestDayKey(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	// 02:30 UTC on March 11 is still March 10 in New York.
	now := time.Date(2025, 3, 11, 2, 30, 0, 0, time.UTC)
	if got := DayKey(now, time.UTC); got != "2025-03-11" {
		t.Errorf("DayKey UTC = %q, want 2025-03-11", got)
	}
	if got := DayKey(now, ny); got != "2025-03-10" {
		t.Errorf("DayKey New York = %q, want 2025-03-10", got)
	}
}
