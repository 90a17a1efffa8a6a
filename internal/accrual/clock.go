package accrual

import "time"

// Clock provides time information for accrual and scheduling.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
}

// RealClock provides actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// TestClock provides adjustable time for testing.
type TestClock struct {
	CurrentTime time.Time
}

// Now returns the test time.
func (t *TestClock) Now() time.Time {
	return t.CurrentTime
}

// Advance moves the test time forward.
func (t *TestClock) Advance(d time.Duration) {
	t.CurrentTime = t.CurrentTime.Add(d)
}

const dayKeyLayout = "2006-01-02"

// DayKey returns the calendar-day key for a moment in the given location.
// Records and report configs compare day keys to detect day boundaries.
func DayKey(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(dayKeyLayout)
}
