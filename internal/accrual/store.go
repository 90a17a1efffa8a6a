package accrual

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

// IdentityRef identifies one tracked identity without exposing its record.
type IdentityRef struct {
	GroupID  string
	MemberID string
	RemoteID string
}

// Store is the in-memory owner of all accrual records and group report
// configs. All reads hand out copies; all mutations happen under the store
// lock, so a record is never observed by two concurrent calls.
type Store struct {
	mu      sync.RWMutex
	records map[string]*storage.AccrualRecord
	order   []string // record keys in tracking order
	groups  map[string]*storage.GroupReportConfig
	locs    map[string]*time.Location
	logger  zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		records: make(map[string]*storage.AccrualRecord),
		groups:  make(map[string]*storage.GroupReportConfig),
		locs:    make(map[string]*time.Location),
		logger:  logger.With().Str("component", "accrual-store").Logger(),
	}
}

// Load replaces the store contents with a persisted snapshot. Tracking order
// is rebuilt from the records' TrackedAt timestamps.
func (s *Store) Load(records []storage.AccrualRecord, groups []storage.GroupReportConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]storage.AccrualRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TrackedAt.Before(sorted[j].TrackedAt)
	})

	s.records = make(map[string]*storage.AccrualRecord, len(sorted))
	s.order = make([]string, 0, len(sorted))
	for i := range sorted {
		record := sorted[i]
		key := record.Key()
		s.records[key] = &record
		s.order = append(s.order, key)
	}

	s.groups = make(map[string]*storage.GroupReportConfig, len(groups))
	s.locs = make(map[string]*time.Location, len(groups))
	for i := range groups {
		group := groups[i]
		s.groups[group.GroupID] = &group
		s.locs[group.GroupID] = s.parseLocation(group.GroupID, group.Timezone)
	}
}

// Track inserts or replaces the record for a (group, member) pair. Replacing
// restarts the member's accrual from zero, matching an explicit re-track.
func (s *Store) Track(record storage.AccrualRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.Key()
	if _, exists := s.records[key]; !exists {
		s.order = append(s.order, key)
	}
	s.records[key] = &record
}

// Untrack removes the record for a (group, member) pair.
func (s *Store) Untrack(groupID, memberID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.AccrualKey(groupID, memberID)
	if _, exists := s.records[key]; !exists {
		return false
	}

	delete(s.records, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the record for a (group, member) pair.
func (s *Store) Get(groupID, memberID string) (storage.AccrualRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[storage.AccrualKey(groupID, memberID)]
	if !ok {
		return storage.AccrualRecord{}, false
	}
	return *record, true
}

// Identities returns a snapshot of all tracked identities in tracking order.
func (s *Store) Identities() []IdentityRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]IdentityRef, 0, len(s.order))
	for _, key := range s.order {
		record := s.records[key]
		refs = append(refs, IdentityRef{
			GroupID:  record.GroupID,
			MemberID: record.MemberID,
			RemoteID: record.RemoteID,
		})
	}
	return refs
}

// Mutate runs fn against the live record under the store lock and returns a
// copy of the (possibly mutated) record, whether fn reported a mutation, and
// whether the record still exists. This is the only write path into a record
// after tracking.
func (s *Store) Mutate(groupID, memberID string, fn func(*storage.AccrualRecord) bool) (storage.AccrualRecord, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[storage.AccrualKey(groupID, memberID)]
	if !ok {
		return storage.AccrualRecord{}, false, false
	}

	mutated := fn(record)
	return *record, mutated, true
}

// GroupRecords returns copies of a group's records in tracking order.
func (s *Store) GroupRecords(groupID string) []storage.AccrualRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]storage.AccrualRecord, 0)
	for _, key := range s.order {
		record := s.records[key]
		if record.GroupID == groupID {
			records = append(records, *record)
		}
	}
	return records
}

// Counts returns the number of tracked identities and how many of them are
// currently in a session.
func (s *Store) Counts() (tracked int, inSession int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		tracked++
		if record.SessionState == storage.SessionActive {
			inSession++
		}
	}
	return tracked, inSession
}

// GroupConfig returns a copy of a group's report config.
func (s *Store) GroupConfig(groupID string) (storage.GroupReportConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[groupID]
	if !ok {
		return storage.GroupReportConfig{}, false
	}
	return *group, true
}

// GroupConfigs returns copies of all group report configs.
func (s *Store) GroupConfigs() []storage.GroupReportConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]storage.GroupReportConfig, 0, len(s.groups))
	for _, group := range s.groups {
		configs = append(configs, *group)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].GroupID < configs[j].GroupID
	})
	return configs
}

// SetGroupConfig inserts or replaces a group's report config.
func (s *Store) SetGroupConfig(config storage.GroupReportConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups[config.GroupID] = &config
	s.locs[config.GroupID] = s.parseLocation(config.GroupID, config.Timezone)
}

// RemoveGroupConfig removes a group's report config.
func (s *Store) RemoveGroupConfig(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[groupID]; !ok {
		return false
	}
	delete(s.groups, groupID)
	delete(s.locs, groupID)
	return true
}

// MarkSent records that a group's daily report went out for the given day and
// returns a copy of the updated config for persistence.
func (s *Store) MarkSent(groupID, day string) (storage.GroupReportConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return storage.GroupReportConfig{}, false
	}
	group.LastSentDay = day
	return *group, true
}

// Location returns the timezone for a group's day keys. Groups without a
// config, or with an unparseable timezone, use UTC.
func (s *Store) Location(groupID string) *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if loc, ok := s.locs[groupID]; ok {
		return loc
	}
	return time.UTC
}

func (s *Store) parseLocation(groupID, timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		s.logger.Warn().
			Str("group_id", groupID).
			Str("timezone", timezone).
			Msg("Unknown timezone, falling back to UTC for day keys")
		return time.UTC
	}
	return loc
}
