// Package standings turns finalized result rows into ranked leaderboards.
// Everything here is pure: callers fetch and filter rows, these functions
// fold, rank and slice them.
package standings

import (
	"cmp"
	"slices"

	"github.com/abrezinsky/standings/internal/models"
)

// UnknownLabel replaces an empty format or class in breakdowns
const UnknownLabel = "Unknown"

// LeaderboardEntry is one competitor's aggregated line on a leaderboard
type LeaderboardEntry struct {
	CompetitorKey      string `json:"competitor_key,omitempty"`
	CompetitorName     string `json:"competitor_name"`
	TotalPoints        int    `json:"total_points"`
	EventsParticipated int    `json:"events_participated"`
	FirstPlace         int    `json:"first_place"`
	SecondPlace        int    `json:"second_place"`
	ThirdPlace         int    `json:"third_place"`
	IsGuest            bool   `json:"is_guest"`
	Rank               int    `json:"rank"`

	key string
}

// Key returns the aggregation key the entry was folded under
func (e LeaderboardEntry) Key() string {
	return e.key
}

// Leaderboard is a ranked, paginated page of entries. Total counts every
// entry before pagination.
type Leaderboard struct {
	Format           string             `json:"format,omitempty"`
	CompetitionClass string             `json:"competition_class,omitempty"`
	Entries          []LeaderboardEntry `json:"entries"`
	Total            int                `json:"total"`
}

// AggregationKey groups guests by name and registered competitors by key,
// so the two never merge.
func AggregationKey(row models.ResultRow) string {
	if row.IsGuest() {
		return "guest_" + row.CompetitorName
	}
	return "id_" + row.CompetitorKey
}

// Aggregate folds rows into one entry per aggregation key. Entries come
// back in the order their key was first seen and are not ranked.
func Aggregate(rows []models.ResultRow) []LeaderboardEntry {
	index := make(map[string]int)
	var entries []LeaderboardEntry

	for _, row := range rows {
		key := AggregationKey(row)
		i, ok := index[key]
		if !ok {
			entry := LeaderboardEntry{
				CompetitorName: row.CompetitorName,
				IsGuest:        row.IsGuest(),
				key:            key,
			}
			if !entry.IsGuest {
				entry.CompetitorKey = row.CompetitorKey
			}
			entries = append(entries, entry)
			i = len(entries) - 1
			index[key] = i
		}

		e := &entries[i]
		e.TotalPoints += row.Points()
		e.EventsParticipated++
		if row.Placement != nil {
			switch *row.Placement {
			case 1:
				e.FirstPlace++
			case 2:
				e.SecondPlace++
			case 3:
				e.ThirdPlace++
			}
		}
	}
	return entries
}

// Rank sorts entries by total points descending and assigns 1-based ranks
// by position. Equal totals are ordered by aggregation key ascending; the
// sort is stable so entries sharing a key keep their input order.
func Rank(entries []LeaderboardEntry) []LeaderboardEntry {
	ranked := slices.Clone(entries)
	slices.SortStableFunc(ranked, func(a, b LeaderboardEntry) int {
		if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Paginate returns a copy of the window [offset, offset+limit). A limit of
// zero or less means no upper bound.
func Paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return slices.Clone(items[offset:end])
}

// BuildLeaderboard aggregates, ranks and paginates rows in one step
func BuildLeaderboard(rows []models.ResultRow, limit, offset int) Leaderboard {
	ranked := Rank(Aggregate(rows))
	return Leaderboard{
		Entries: Paginate(ranked, limit, offset),
		Total:   len(ranked),
	}
}

// RankOf returns the rank of a registered competitor within a full ranked
// leaderboard, or len(entries)+1 when the competitor is absent.
func RankOf(entries []LeaderboardEntry, competitorKey string) int {
	for i, e := range entries {
		if !e.IsGuest && e.CompetitorKey == competitorKey {
			if e.Rank > 0 {
				return e.Rank
			}
			return i + 1
		}
	}
	return len(entries) + 1
}
