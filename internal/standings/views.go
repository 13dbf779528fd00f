package standings

import (
	"cmp"
	"slices"

	"github.com/abrezinsky/standings/internal/models"
)

// TeamStandingsEntry is a team's aggregated line
type TeamStandingsEntry struct {
	TeamID             string `json:"team_id"`
	TeamName           string `json:"team_name"`
	TotalPoints        int    `json:"total_points"`
	MemberCount        int    `json:"member_count"`
	EventsParticipated int    `json:"events_participated"`
	Rank               int    `json:"rank"`
}

// TeamLeaderboard is a ranked, paginated page of team entries
type TeamLeaderboard struct {
	Entries []TeamStandingsEntry `json:"entries"`
	Total   int                  `json:"total"`
}

type teamAgg struct {
	entry   TeamStandingsEntry
	members map[string]struct{}
	events  map[string]struct{}
}

// AggregateTeams sums the points of each team's linked results. Links to
// results outside rows are ignored. A link without a member counts the
// linked result's competitor as the member. Entries are ranked by points
// descending, then team id.
func AggregateTeams(rows []models.ResultRow, links []models.ResultTeam, teams []models.Team) []TeamStandingsEntry {
	results := make(map[string]models.ResultRow, len(rows))
	for _, r := range rows {
		results[r.ID] = r
	}
	names := make(map[string]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}

	aggs := make(map[string]*teamAgg)
	var order []string
	for _, link := range links {
		row, ok := results[link.ResultID]
		if !ok {
			continue
		}
		agg, ok := aggs[link.TeamID]
		if !ok {
			name := names[link.TeamID]
			if name == "" {
				name = link.TeamID
			}
			agg = &teamAgg{
				entry:   TeamStandingsEntry{TeamID: link.TeamID, TeamName: name},
				members: make(map[string]struct{}),
				events:  make(map[string]struct{}),
			}
			aggs[link.TeamID] = agg
			order = append(order, link.TeamID)
		}

		agg.entry.TotalPoints += row.Points()
		member := link.MemberID
		if member == "" {
			member = AggregationKey(row)
		}
		agg.members[member] = struct{}{}
		if row.EventID != "" {
			agg.events[row.EventID] = struct{}{}
		}
	}

	entries := make([]TeamStandingsEntry, 0, len(order))
	for _, id := range order {
		agg := aggs[id]
		agg.entry.MemberCount = len(agg.members)
		agg.entry.EventsParticipated = len(agg.events)
		entries = append(entries, agg.entry)
	}

	slices.SortStableFunc(entries, func(a, b TeamStandingsEntry) int {
		if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
			return c
		}
		return cmp.Compare(a.TeamID, b.TeamID)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Placements counts podium finishes
type Placements struct {
	First  int `json:"first"`
	Second int `json:"second"`
	Third  int `json:"third"`
}

// FormatBreakdown is a competitor's totals within one format
type FormatBreakdown struct {
	Format string `json:"format"`
	Points int    `json:"points"`
	Events int    `json:"events"`
}

// ClassBreakdown is a competitor's totals within one format and class
type ClassBreakdown struct {
	Format    string `json:"format"`
	ClassName string `json:"class_name"`
	Points    int    `json:"points"`
	Events    int    `json:"events"`
}

// CompetitorStats is the single-competitor statistics view
type CompetitorStats struct {
	CompetitorKey      string            `json:"competitor_key"`
	CompetitorName     string            `json:"competitor_name"`
	TotalPoints        int               `json:"total_points"`
	Ranking            int               `json:"ranking"`
	EventsParticipated int               `json:"events_participated"`
	Placements         Placements        `json:"placements"`
	ByFormat           []FormatBreakdown `json:"by_format"`
	ByClass            []ClassBreakdown  `json:"by_class"`
}

type breakdown struct {
	points int
	events map[string]struct{}
}

func (b *breakdown) add(row models.ResultRow) {
	b.points += row.Points()
	if row.EventID != "" {
		b.events[row.EventID] = struct{}{}
	}
}

func labelOr(s string) string {
	if s == "" {
		return UnknownLabel
	}
	return s
}

// BuildCompetitorStats summarizes the rows belonging to competitorKey.
// It returns nil when there are none. Ranking is left at zero for the
// caller to fill in with RankOf.
func BuildCompetitorStats(competitorKey string, rows []models.ResultRow) *CompetitorStats {
	var stats *CompetitorStats
	events := make(map[string]struct{})
	formats := make(map[string]*breakdown)
	var formatOrder []string
	type classKey struct{ format, class string }
	classes := make(map[classKey]*breakdown)
	var classOrder []classKey

	for _, row := range rows {
		if row.CompetitorKey != competitorKey {
			continue
		}
		if stats == nil {
			stats = &CompetitorStats{CompetitorKey: competitorKey, CompetitorName: row.CompetitorName}
		}

		stats.TotalPoints += row.Points()
		if row.Placement != nil {
			switch *row.Placement {
			case 1:
				stats.Placements.First++
			case 2:
				stats.Placements.Second++
			case 3:
				stats.Placements.Third++
			}
		}
		if row.EventID != "" {
			events[row.EventID] = struct{}{}
		}

		format := labelOr(row.Format)
		fb, ok := formats[format]
		if !ok {
			fb = &breakdown{events: make(map[string]struct{})}
			formats[format] = fb
			formatOrder = append(formatOrder, format)
		}
		fb.add(row)

		ck := classKey{format, labelOr(row.CompetitionClass)}
		cb, ok := classes[ck]
		if !ok {
			cb = &breakdown{events: make(map[string]struct{})}
			classes[ck] = cb
			classOrder = append(classOrder, ck)
		}
		cb.add(row)
	}

	if stats == nil {
		return nil
	}

	stats.EventsParticipated = len(events)
	stats.ByFormat = make([]FormatBreakdown, 0, len(formatOrder))
	for _, f := range formatOrder {
		stats.ByFormat = append(stats.ByFormat, FormatBreakdown{Format: f, Points: formats[f].points, Events: len(formats[f].events)})
	}
	stats.ByClass = make([]ClassBreakdown, 0, len(classOrder))
	for _, ck := range classOrder {
		b := classes[ck]
		stats.ByClass = append(stats.ByClass, ClassBreakdown{Format: ck.format, ClassName: ck.class, Points: b.points, Events: len(b.events)})
	}
	return stats
}

// ClassSummary counts the result rows of one format and class
type ClassSummary struct {
	Format      string `json:"format"`
	ClassName   string `json:"class_name"`
	ResultCount int    `json:"result_count"`
}

// ClassCatalog groups rows by format and class, busiest first. Equal
// counts are ordered by format, then class.
func ClassCatalog(rows []models.ResultRow) []ClassSummary {
	index := make(map[[2]string]int)
	catalog := []ClassSummary{}
	for _, row := range rows {
		k := [2]string{labelOr(row.Format), labelOr(row.CompetitionClass)}
		i, ok := index[k]
		if !ok {
			catalog = append(catalog, ClassSummary{Format: k[0], ClassName: k[1]})
			i = len(catalog) - 1
			index[k] = i
		}
		catalog[i].ResultCount++
	}

	slices.SortStableFunc(catalog, func(a, b ClassSummary) int {
		if c := cmp.Compare(b.ResultCount, a.ResultCount); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Format, b.Format); c != 0 {
			return c
		}
		return cmp.Compare(a.ClassName, b.ClassName)
	})
	return catalog
}

// FormatSummary is the headline view of one format
type FormatSummary struct {
	Format           string             `json:"format"`
	TotalCompetitors int                `json:"total_competitors"`
	TotalEvents      int                `json:"total_events"`
	TopCompetitors   []LeaderboardEntry `json:"top_competitors"`
}

// BuildFormatSummary counts distinct competitors and events in rows and
// keeps the top entries of the format's leaderboard.
func BuildFormatSummary(format string, rows []models.ResultRow, top int) FormatSummary {
	competitors := make(map[string]struct{})
	events := make(map[string]struct{})
	for _, row := range rows {
		competitors[AggregationKey(row)] = struct{}{}
		if row.EventID != "" {
			events[row.EventID] = struct{}{}
		}
	}
	return FormatSummary{
		Format:           format,
		TotalCompetitors: len(competitors),
		TotalEvents:      len(events),
		TopCompetitors:   BuildLeaderboard(rows, top, 0).Entries,
	}
}
