package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/standings/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// SQLite works best with a single connection; it also keeps
	// ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// DB returns the underlying database connection (for transactions)
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS seasons (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			is_current BOOLEAN NOT NULL DEFAULT 0,
			qualification_points_threshold INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS competition_results (
			id TEXT PRIMARY KEY,
			competitor_key TEXT,
			competitor_name TEXT NOT NULL,
			competitor_user_id TEXT,
			competition_class TEXT NOT NULL,
			format TEXT NOT NULL,
			season_id TEXT,
			event_id TEXT,
			points_earned INTEGER,
			placement INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS result_teams (
			id TEXT PRIMARY KEY,
			result_id TEXT NOT NULL,
			team_id TEXT NOT NULL,
			member_id TEXT,
			FOREIGN KEY (result_id) REFERENCES competition_results(id) ON DELETE CASCADE,
			FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			email TEXT,
			first_name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			link TEXT,
			type TEXT NOT NULL DEFAULT 'system',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS world_finals_qualifications (
			id TEXT PRIMARY KEY,
			season_id TEXT NOT NULL,
			competitor_key TEXT NOT NULL,
			competitor_name TEXT NOT NULL,
			user_id TEXT,
			competition_class TEXT NOT NULL,
			total_points INTEGER NOT NULL,
			qualified_at DATETIME NOT NULL,
			notification_sent BOOLEAN NOT NULL DEFAULT 0,
			notification_sent_at DATETIME,
			email_sent BOOLEAN NOT NULL DEFAULT 0,
			email_sent_at DATETIME,
			invitation_sent BOOLEAN NOT NULL DEFAULT 0,
			invitation_sent_at DATETIME,
			invitation_token TEXT UNIQUE,
			invitation_redeemed BOOLEAN NOT NULL DEFAULT 0,
			invitation_redeemed_at DATETIME,
			UNIQUE(season_id, competitor_key, competition_class)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_season ON competition_results(season_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_competitor ON competition_results(competitor_key, season_id, competition_class)`,
		`CREATE INDEX IF NOT EXISTS idx_results_format ON competition_results(format, competition_class)`,
		`CREATE INDEX IF NOT EXISTS idx_result_teams_result ON result_teams(result_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_qualifications_season ON world_finals_qualifications(season_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Season Methods ====================

// CreateSeason inserts a season. Marking a season current clears the flag
// on every other season.
func (r *Repository) CreateSeason(ctx context.Context, season models.Season) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if season.IsCurrent {
		if _, err := tx.ExecContext(ctx, `UPDATE seasons SET is_current = 0`); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO seasons (id, name, is_current, qualification_points_threshold)
		VALUES (?, ?, ?, ?)`,
		season.ID, season.Name, season.IsCurrent, nullInt(season.QualificationPointsThreshold))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return tx.Commit()
}

// FindSeasonByID returns a season or ErrNotFound
func (r *Repository) FindSeasonByID(ctx context.Context, id string) (*models.Season, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, is_current, qualification_points_threshold
		FROM seasons WHERE id = ?`, id)
	return scanSeason(row)
}

// FindCurrentSeason returns the season flagged current or ErrNotFound
func (r *Repository) FindCurrentSeason(ctx context.Context) (*models.Season, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, is_current, qualification_points_threshold
		FROM seasons WHERE is_current = 1 LIMIT 1`)
	return scanSeason(row)
}

// SetQualificationThreshold changes a season's threshold; nil clears it
func (r *Repository) SetQualificationThreshold(ctx context.Context, seasonID string, threshold *int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE seasons SET qualification_points_threshold = ? WHERE id = ?`,
		nullInt(threshold), seasonID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanSeason(row *sql.Row) (*models.Season, error) {
	var s models.Season
	var threshold sql.NullInt64
	err := row.Scan(&s.ID, &s.Name, &s.IsCurrent, &threshold)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.QualificationPointsThreshold = intPtr(threshold)
	return &s, nil
}

// ==================== Result Methods ====================

// CreateResult inserts a result row and returns its id. A missing id is
// generated; the format is stored upper-cased.
func (r *Repository) CreateResult(ctx context.Context, row models.ResultRow) (string, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO competition_results
			(id, competitor_key, competitor_name, competitor_user_id, competition_class,
			 format, season_id, event_id, points_earned, placement)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.CompetitorKey, row.CompetitorName, nullString(row.CompetitorUserID),
		row.CompetitionClass, strings.ToUpper(row.Format), row.SeasonID, row.EventID,
		nullInt(row.PointsEarned), nullInt(row.Placement))
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", err
	}
	return row.ID, nil
}

// FindResults returns every row matching the filter in insertion order
func (r *Repository) FindResults(ctx context.Context, filter ResultFilter) ([]models.ResultRow, error) {
	query := `
		SELECT id, competitor_key, competitor_name, competitor_user_id, competition_class,
		       format, season_id, event_id, points_earned, placement
		FROM competition_results`

	var where []string
	var args []any
	if filter.SeasonID != "" {
		where = append(where, "season_id = ?")
		args = append(args, filter.SeasonID)
	}
	if filter.Format != "" {
		where = append(where, "format = ?")
		args = append(args, strings.ToUpper(filter.Format))
	}
	if filter.CompetitionClass != "" {
		where = append(where, "competition_class = ?")
		args = append(args, filter.CompetitionClass)
	}
	if filter.CompetitorKey != "" {
		where = append(where, "competitor_key = ?")
		args = append(args, filter.CompetitorKey)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.ResultRow
	for rows.Next() {
		var row models.ResultRow
		var key, userID, seasonID, eventID sql.NullString
		var points, placement sql.NullInt64
		if err := rows.Scan(&row.ID, &key, &row.CompetitorName, &userID, &row.CompetitionClass,
			&row.Format, &seasonID, &eventID, &points, &placement); err != nil {
			return nil, err
		}
		row.CompetitorKey = key.String
		row.CompetitorUserID = stringPtr(userID)
		row.SeasonID = seasonID.String
		row.EventID = eventID.String
		row.PointsEarned = intPtr(points)
		row.Placement = intPtr(placement)
		results = append(results, row)
	}
	return results, rows.Err()
}

// CreateTeam inserts a team
func (r *Repository) CreateTeam(ctx context.Context, team models.Team) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO teams (id, name) VALUES (?, ?)`, team.ID, team.Name)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// ListTeams returns all teams ordered by name
func (r *Repository) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// LinkResultTeam links a result to a team
func (r *Repository) LinkResultTeam(ctx context.Context, link models.ResultTeam) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO result_teams (id, result_id, team_id, member_id) VALUES (?, ?, ?, ?)`,
		link.ID, link.ResultID, link.TeamID, link.MemberID)
	return err
}

// ListResultTeams returns result/team links whose result belongs to the
// season. An empty season returns every link.
func (r *Repository) ListResultTeams(ctx context.Context, seasonID string) ([]models.ResultTeam, error) {
	query := `
		SELECT rt.id, rt.result_id, rt.team_id, rt.member_id
		FROM result_teams rt
		JOIN competition_results cr ON cr.id = rt.result_id`
	var args []any
	if seasonID != "" {
		query += " WHERE cr.season_id = ?"
		args = append(args, seasonID)
	}
	query += " ORDER BY rt.rowid"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.ResultTeam
	for rows.Next() {
		var l models.ResultTeam
		var memberID sql.NullString
		if err := rows.Scan(&l.ID, &l.ResultID, &l.TeamID, &memberID); err != nil {
			return nil, err
		}
		l.MemberID = memberID.String
		links = append(links, l)
	}
	return links, rows.Err()
}

// ==================== Profile Methods ====================

// CreateProfile inserts a user profile
func (r *Repository) CreateProfile(ctx context.Context, profile models.Profile) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO profiles (id, email, first_name) VALUES (?, ?, ?)`,
		profile.ID, profile.Email, profile.FirstName)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetProfile returns a profile or ErrNotFound
func (r *Repository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	var email, firstName sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT id, email, first_name FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &email, &firstName)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Email = email.String
	p.FirstName = firstName.String
	return &p, nil
}

// ==================== Notification Methods ====================

// CreateNotification stores an in-app notification
func (r *Repository) CreateNotification(ctx context.Context, n models.Notification) (int64, error) {
	if n.Type == "" {
		n.Type = "system"
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, title, message, link, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Link, n.Type, n.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotifications returns a user's notifications, oldest first
func (r *Repository) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, link, type, created_at
		FROM notifications WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		var link sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &link, &n.Type, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Link = link.String
		list = append(list, n)
	}
	return list, rows.Err()
}

// ==================== Qualification Methods ====================

const qualificationColumns = `
	id, season_id, competitor_key, competitor_name, user_id, competition_class,
	total_points, qualified_at, notification_sent, notification_sent_at,
	email_sent, email_sent_at, invitation_sent, invitation_sent_at,
	invitation_token, invitation_redeemed, invitation_redeemed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQualification(s rowScanner) (*models.Qualification, error) {
	var q models.Qualification
	var userID, token sql.NullString
	var notifiedAt, emailedAt, invitedAt, redeemedAt sql.NullTime
	err := s.Scan(&q.ID, &q.SeasonID, &q.CompetitorKey, &q.CompetitorName, &userID,
		&q.CompetitionClass, &q.TotalPoints, &q.QualifiedAt,
		&q.NotificationSent, &notifiedAt, &q.EmailSent, &emailedAt,
		&q.InvitationSent, &invitedAt, &token, &q.InvitationRedeemed, &redeemedAt)
	if err != nil {
		return nil, err
	}
	q.UserID = stringPtr(userID)
	q.InvitationToken = stringPtr(token)
	q.NotificationSentAt = timePtr(notifiedAt)
	q.EmailSentAt = timePtr(emailedAt)
	q.InvitationSentAt = timePtr(invitedAt)
	q.InvitationRedeemedAt = timePtr(redeemedAt)
	return &q, nil
}

// CreateQualification inserts a new record, assigning an id when missing.
// A second record for the same season, competitor and class fails with
// ErrDuplicate.
func (r *Repository) CreateQualification(ctx context.Context, q *models.Qualification) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO world_finals_qualifications
			(id, season_id, competitor_key, competitor_name, user_id, competition_class,
			 total_points, qualified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.SeasonID, q.CompetitorKey, q.CompetitorName, nullString(q.UserID),
		q.CompetitionClass, q.TotalPoints, q.QualifiedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetQualification returns a record by id or ErrNotFound
func (r *Repository) GetQualification(ctx context.Context, id string) (*models.Qualification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+qualificationColumns+` FROM world_finals_qualifications WHERE id = ?`, id)
	q, err := scanQualification(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return q, err
}

// FindQualification returns the record for a unique key or ErrNotFound
func (r *Repository) FindQualification(ctx context.Context, key models.QualificationKey) (*models.Qualification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+qualificationColumns+`
		FROM world_finals_qualifications
		WHERE season_id = ? AND competitor_key = ? AND competition_class = ?`,
		key.SeasonID, key.CompetitorKey, key.CompetitionClass)
	q, err := scanQualification(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return q, err
}

// ListQualifications returns matching records ordered by class, then
// points descending
func (r *Repository) ListQualifications(ctx context.Context, filter QualificationFilter) ([]models.Qualification, error) {
	query := `SELECT ` + qualificationColumns + ` FROM world_finals_qualifications`

	var where []string
	var args []any
	if filter.SeasonID != "" {
		where = append(where, "season_id = ?")
		args = append(args, filter.SeasonID)
	}
	if filter.CompetitionClass != "" {
		where = append(where, "competition_class = ?")
		args = append(args, filter.CompetitionClass)
	}
	if filter.CompetitorKeys != nil {
		if len(filter.CompetitorKeys) == 0 {
			return nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.CompetitorKeys)), ",")
		where = append(where, "competitor_key IN ("+placeholders+")")
		for _, k := range filter.CompetitorKeys {
			args = append(args, k)
		}
	}
	if filter.InvitationSent != nil {
		where = append(where, "invitation_sent = ?")
		args = append(args, *filter.InvitationSent)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY competition_class ASC, total_points DESC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Qualification
	for rows.Next() {
		q, err := scanQualification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// UpdateQualificationPoints sets the record's total points
func (r *Repository) UpdateQualificationPoints(ctx context.Context, id string, totalPoints int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE world_finals_qualifications SET total_points = ? WHERE id = ?`, totalPoints, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkNotificationSent sets the notification flag. The first timestamp wins.
func (r *Repository) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE world_finals_qualifications
		SET notification_sent = 1, notification_sent_at = COALESCE(notification_sent_at, ?)
		WHERE id = ?`, at, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkEmailSent sets the email flag. The first timestamp wins.
func (r *Repository) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE world_finals_qualifications
		SET email_sent = 1, email_sent_at = COALESCE(email_sent_at, ?)
		WHERE id = ?`, at, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// IssueInvitation stores a fresh token on a record that has not been
// redeemed. Returns ErrNotFound for an unknown id and ErrAlreadyRedeemed
// when the record's invitation was already used.
func (r *Repository) IssueInvitation(ctx context.Context, id, token string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE world_finals_qualifications
		SET invitation_token = ?, invitation_sent = 1, invitation_sent_at = ?
		WHERE id = ? AND invitation_redeemed = 0`, token, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetQualification(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyRedeemed
}

// RedeemInvitation marks the record holding an unredeemed token as
// redeemed and returns it. Unknown or used tokens yield ErrNotFound; the
// conditional update makes a second redemption impossible.
func (r *Repository) RedeemInvitation(ctx context.Context, token string, at time.Time) (*models.Qualification, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE world_finals_qualifications
		SET invitation_redeemed = 1, invitation_redeemed_at = ?
		WHERE invitation_token = ? AND invitation_redeemed = 0`, at, token)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+qualificationColumns+` FROM world_finals_qualifications WHERE invitation_token = ?`, token)
	q, err := scanQualification(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return q, err
}

// ==================== Helpers ====================

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
