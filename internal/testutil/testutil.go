package testutil

import (
	"context"
	"testing"

	"github.com/abrezinsky/standings/internal/models"
	"github.com/abrezinsky/standings/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}

// String returns a pointer to v
func String(v string) *string {
	return &v
}

// SeedSeason creates a season with an optional threshold
func SeedSeason(t *testing.T, repo repository.SeasonRepository, id string, current bool, threshold *int) models.Season {
	t.Helper()

	season := models.Season{ID: id, Name: "Season " + id, IsCurrent: current, QualificationPointsThreshold: threshold}
	if err := repo.CreateSeason(context.Background(), season); err != nil {
		t.Fatalf("CreateSeason failed: %v", err)
	}
	return season
}

// Result describes a result row for SeedResults
type Result struct {
	Key       string
	Name      string
	UserID    string
	Class     string
	Format    string
	Season    string
	Event     string
	Points    int
	Placement int
}

// SeedResults inserts results and returns their ids in order
func SeedResults(t *testing.T, repo repository.ResultRepository, results ...Result) []string {
	t.Helper()

	ids := make([]string, 0, len(results))
	for _, r := range results {
		row := models.ResultRow{
			CompetitorKey:    r.Key,
			CompetitorName:   r.Name,
			CompetitionClass: r.Class,
			Format:           r.Format,
			SeasonID:         r.Season,
			EventID:          r.Event,
			PointsEarned:     Int(r.Points),
		}
		if r.UserID != "" {
			row.CompetitorUserID = String(r.UserID)
		}
		if r.Placement > 0 {
			row.Placement = Int(r.Placement)
		}
		id, err := repo.CreateResult(context.Background(), row)
		if err != nil {
			t.Fatalf("CreateResult failed: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}
