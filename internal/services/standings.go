package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/abrezinsky/standings/internal/cache"
	"github.com/abrezinsky/standings/internal/logger"
	"github.com/abrezinsky/standings/internal/metrics"
	"github.com/abrezinsky/standings/internal/repository"
	"github.com/abrezinsky/standings/internal/standings"
)

// DefaultFormats are the competition formats summarized and warmed when
// none are configured
var DefaultFormats = []string{"SPL", "SQL", "SSI", "MK"}

// Page sizes used by the cache warmer. They match the API defaults so a
// warmed entry is the one a default request reads.
const (
	WarmLeaderboardLimit  = 100
	WarmStandingsLimit    = 50
	summaryTopCompetitors = 10
)

// StandingsServiceRepository defines the repository methods needed by StandingsService
type StandingsServiceRepository interface {
	repository.SeasonRepository
	repository.ResultRepository
}

// StandingsService serves cached leaderboard reads
type StandingsService struct {
	log     logger.Logger
	repo    StandingsServiceRepository
	cache   *cache.Cache
	formats []string
	warming sync.Mutex
}

// NewStandingsService creates a new StandingsService. An empty formats list
// uses DefaultFormats.
func NewStandingsService(log logger.Logger, repo StandingsServiceRepository, c *cache.Cache, formats []string) *StandingsService {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	normalized := make([]string, 0, len(formats))
	for _, f := range formats {
		if f = normalizeFormat(f); f != "" {
			normalized = append(normalized, f)
		}
	}
	return &StandingsService{log: log, repo: repo, cache: c, formats: normalized}
}

// Formats returns the configured formats
func (s *StandingsService) Formats() []string {
	return slices.Clone(s.formats)
}

func normalizeFormat(format string) string {
	return strings.ToUpper(strings.TrimSpace(format))
}

// cacheKey joins a view name with its parameters. String parameters are
// quoted so an empty season never collides with a season id and a
// separator inside a class name stays part of that name.
func cacheKey(view string, params ...any) string {
	var b strings.Builder
	b.WriteString(view)
	for _, p := range params {
		b.WriteByte('|')
		if s, ok := p.(string); ok {
			b.WriteString(strconv.Quote(s))
			continue
		}
		fmt.Fprint(&b, p)
	}
	return b.String()
}

func cloneLeaderboard(lb *standings.Leaderboard) *standings.Leaderboard {
	out := *lb
	out.Entries = slices.Clone(lb.Entries)
	return &out
}

// SeasonLeaderboard returns the overall leaderboard. An empty seasonID
// covers every season.
func (s *StandingsService) SeasonLeaderboard(ctx context.Context, seasonID string, limit, offset int) (*standings.Leaderboard, error) {
	key := cacheKey("season_leaderboard", seasonID, limit, offset)
	lb, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*standings.Leaderboard, error) {
		rows, err := s.repo.FindResults(ctx, repository.ResultFilter{SeasonID: seasonID})
		if err != nil {
			return nil, err
		}
		built := standings.BuildLeaderboard(rows, limit, offset)
		return &built, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneLeaderboard(lb), nil
}

// FormatStandings returns the leaderboard of one format
func (s *StandingsService) FormatStandings(ctx context.Context, format, seasonID string, limit, offset int) (*standings.Leaderboard, error) {
	format = normalizeFormat(format)
	key := cacheKey("format_standings", format, seasonID, limit, offset)
	lb, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*standings.Leaderboard, error) {
		rows, err := s.repo.FindResults(ctx, repository.ResultFilter{SeasonID: seasonID, Format: format})
		if err != nil {
			return nil, err
		}
		built := standings.BuildLeaderboard(rows, limit, offset)
		built.Format = format
		return &built, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneLeaderboard(lb), nil
}

// ClassStandings returns the leaderboard of one class within a format
func (s *StandingsService) ClassStandings(ctx context.Context, format, class, seasonID string, limit, offset int) (*standings.Leaderboard, error) {
	format = normalizeFormat(format)
	key := cacheKey("class_standings", format, class, seasonID, limit, offset)
	lb, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*standings.Leaderboard, error) {
		rows, err := s.repo.FindResults(ctx, repository.ResultFilter{SeasonID: seasonID, Format: format, CompetitionClass: class})
		if err != nil {
			return nil, err
		}
		built := standings.BuildLeaderboard(rows, limit, offset)
		built.Format = format
		built.CompetitionClass = class
		return &built, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneLeaderboard(lb), nil
}

// TeamStandings returns teams ranked by the points of their linked results
func (s *StandingsService) TeamStandings(ctx context.Context, seasonID string, limit, offset int) (*standings.TeamLeaderboard, error) {
	key := cacheKey("team_standings", seasonID, limit, offset)
	lb, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*standings.TeamLeaderboard, error) {
		rows, err := s.repo.FindResults(ctx, repository.ResultFilter{SeasonID: seasonID})
		if err != nil {
			return nil, err
		}
		links, err := s.repo.ListResultTeams(ctx, seasonID)
		if err != nil {
			return nil, err
		}
		teams, err := s.repo.ListTeams(ctx)
		if err != nil {
			return nil, err
		}
		ranked := standings.AggregateTeams(rows, links, teams)
		return &standings.TeamLeaderboard{
			Entries: standings.Paginate(ranked, limit, offset),
			Total:   len(ranked),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	out := *lb
	out.Entries = slices.Clone(lb.Entries)
	return &out, nil
}

// FormatSummaries returns a headline summary for every configured format
func (s *StandingsService) FormatSummaries(ctx context.Context, seasonID string) ([]standings.FormatSummary, error) {
	key := cacheKey("format_summaries", seasonID)
	summaries, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]standings.FormatSummary, error) {
		out := make([]standings.FormatSummary, 0, len(s.formats))
		for _, format := range s.formats {
			rows, err := s.repo.FindResults(ctx, repository.ResultFilter{SeasonID: seasonID, Format: format})
			if err != nil {
				return nil, err
			}
			out = append(out, standings.BuildFormatSummary(format, rows, summaryTopCompetitors))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	out := slices.Clone(summaries)
	for i := range out {
		out[i].TopCompetitors = slices.Clone(out[i].TopCompetitors)
	}
	return out, nil
}

// CompetitorStats returns one competitor's statistics, or nil when the
// competitor has no results in scope. The ranking comes from the full
// season leaderboard.
func (s *StandingsService) CompetitorStats(ctx context.Context, competitorKey, seasonID string) (*standings.CompetitorStats, error) {
	if competitorKey == "" {
		return nil, ErrCompetitorKeyMissing
	}

	key := cacheKey("competitor_stats", competitorKey, seasonID)
	stats, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*standings.CompetitorStats, error) {
		rows, err := s.repo.FindResults(ctx, repository.ResultFilter{SeasonID: seasonID, CompetitorKey: competitorKey})
		if err != nil {
			return nil, err
		}
		stats := standings.BuildCompetitorStats(competitorKey, rows)
		if stats == nil {
			return nil, nil
		}

		full, err := s.SeasonLeaderboard(ctx, seasonID, 0, 0)
		if err != nil {
			return nil, err
		}
		stats.Ranking = standings.RankOf(full.Entries, competitorKey)
		return stats, nil
	})
	if err != nil || stats == nil {
		return nil, err
	}

	out := *stats
	out.ByFormat = slices.Clone(stats.ByFormat)
	out.ByClass = slices.Clone(stats.ByClass)
	return &out, nil
}

// ClassCatalog lists the classes with results, busiest first. An empty
// format covers every format.
func (s *StandingsService) ClassCatalog(ctx context.Context, format, seasonID string) ([]standings.ClassSummary, error) {
	format = normalizeFormat(format)
	key := cacheKey("class_catalog", format, seasonID)
	catalog, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]standings.ClassSummary, error) {
		rows, err := s.repo.FindResults(ctx, repository.ResultFilter{SeasonID: seasonID, Format: format})
		if err != nil {
			return nil, err
		}
		return standings.ClassCatalog(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(catalog), nil
}

// ClearCache drops every cached standings entry
func (s *StandingsService) ClearCache() {
	s.cache.Clear()
	s.log.Info("Standings cache cleared")
}

// WarmCache precomputes the default views of the current season. It
// returns ErrWarmInProgress when another warm is running and
// ErrNoCurrentSeason when no season is flagged current.
func (s *StandingsService) WarmCache(ctx context.Context) error {
	if !s.warming.TryLock() {
		metrics.CacheWarmRuns.WithLabelValues(metrics.Skipped).Inc()
		return ErrWarmInProgress
	}
	defer s.warming.Unlock()

	s.log.Info("Warming standings cache")

	season, err := s.repo.FindCurrentSeason(ctx)
	if stderrors.Is(err, repository.ErrNotFound) {
		metrics.CacheWarmRuns.WithLabelValues(metrics.Skipped).Inc()
		return ErrNoCurrentSeason
	}
	if err != nil {
		metrics.CacheWarmRuns.WithLabelValues(metrics.Failure).Inc()
		return fmt.Errorf("failed to find current season: %w", err)
	}

	if err := s.warmSeason(ctx, season.ID); err != nil {
		metrics.CacheWarmRuns.WithLabelValues(metrics.Failure).Inc()
		return err
	}

	metrics.CacheWarmRuns.WithLabelValues(metrics.Success).Inc()
	s.log.Info("Standings cache warmed", "season_id", season.ID, "entries", s.cache.Len())
	return nil
}

func (s *StandingsService) warmSeason(ctx context.Context, seasonID string) error {
	if _, err := s.SeasonLeaderboard(ctx, seasonID, WarmLeaderboardLimit, 0); err != nil {
		return fmt.Errorf("failed to warm season leaderboard: %w", err)
	}
	if _, err := s.FormatSummaries(ctx, seasonID); err != nil {
		return fmt.Errorf("failed to warm format summaries: %w", err)
	}
	if _, err := s.TeamStandings(ctx, seasonID, WarmStandingsLimit, 0); err != nil {
		return fmt.Errorf("failed to warm team standings: %w", err)
	}
	for _, format := range s.formats {
		if _, err := s.FormatStandings(ctx, format, seasonID, WarmStandingsLimit, 0); err != nil {
			return fmt.Errorf("failed to warm %s standings: %w", format, err)
		}
	}
	return nil
}
