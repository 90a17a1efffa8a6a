// Package report builds and schedules the daily leaderboard.
package report

import (
	"sort"

	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
)

// Entry is one leaderboard row.
type Entry struct {
	MemberID    string
	DisplayName string
	PointsToday int64
	PlayedToday int64
}

// Project builds the leaderboard view for a group from its accrual records.
// Rows are ordered by points descending; ties keep tracking order. The input
// must already be in tracking order and is not mutated.
func Project(records []storage.AccrualRecord) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, Entry{
			MemberID:    record.MemberID,
			DisplayName: record.DisplayName,
			PointsToday: record.PointsToday,
			PlayedToday: record.PlayedToday,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PointsToday > entries[j].PointsToday
	})

	return entries
}
