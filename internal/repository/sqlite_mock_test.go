package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/standings/internal/models"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Repository{db: db}, mock
}

// TestFindResults_ScanError tests row scanning error
func TestFindResults_ScanError(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "competitor_key", "competitor_name", "competitor_user_id",
		"competition_class", "format", "season_id", "event_id", "points_earned", "placement"}).
		AddRow("r1", "101", "Ann", nil, "SQL 1", "SQL", "s1", "e1", "not-a-number", nil)
	mock.ExpectQuery("SELECT (.+) FROM competition_results").WillReturnRows(rows)

	if _, err := repo.FindResults(context.Background(), ResultFilter{}); err == nil {
		t.Error("expected scan error, got nil")
	}
}

func TestFindResults_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM competition_results WHERE season_id = (.+) AND format = (.+)").
		WithArgs("s1", "SPL").
		WillReturnError(errors.New("disk I/O error"))

	if _, err := repo.FindResults(context.Background(), ResultFilter{SeasonID: "s1", Format: "spl"}); err == nil {
		t.Error("expected query error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateQualification_MapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO world_finals_qualifications").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})

	q := &models.Qualification{SeasonID: "s1", CompetitorKey: "101", CompetitionClass: "SQL 1", QualifiedAt: time.Now()}
	if err := repo.CreateQualification(context.Background(), q); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateQualification_PassesOtherErrors(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO world_finals_qualifications").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrBusy})

	q := &models.Qualification{SeasonID: "s1", CompetitorKey: "101", CompetitionClass: "SQL 1", QualifiedAt: time.Now()}
	err := repo.CreateQualification(context.Background(), q)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Errorf("expected the raw busy error, got %v", err)
	}
}

func TestListQualifications_ScanError(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("q1")
	mock.ExpectQuery("SELECT (.+) FROM world_finals_qualifications").WillReturnRows(rows)

	if _, err := repo.ListQualifications(context.Background(), QualificationFilter{}); err == nil {
		t.Error("expected scan error for a short row, got nil")
	}
}

func TestRedeemInvitation_ExecError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE world_finals_qualifications").
		WillReturnError(errors.New("database is locked"))

	if _, err := repo.RedeemInvitation(context.Background(), "tok", time.Now()); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected the raw exec error, got %v", err)
	}
}

func TestMigrate_Error(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS seasons").WillReturnError(errors.New("read-only database"))

	if err := repo.migrate(); err == nil {
		t.Error("expected migrate to fail")
	}
}
