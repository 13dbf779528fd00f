package models

import "time"

// Guest sentinel competitor keys. Rows carrying one of these (or no key at
// all) belong to unregistered entrants.
const (
	GuestKeyZero    = "0"
	GuestKeyDefault = "999999"
)

// IsGuestKey reports whether a competitor key denotes a guest entrant
func IsGuestKey(key string) bool {
	return key == "" || key == GuestKeyZero || key == GuestKeyDefault
}

// Season represents a competition season
type Season struct {
	ID                           string `json:"id"`
	Name                         string `json:"name"`
	IsCurrent                    bool   `json:"is_current"`
	QualificationPointsThreshold *int   `json:"qualification_points_threshold"`
}

// ResultRow is a finalized per-competitor, per-event, per-class result
type ResultRow struct {
	ID               string  `json:"id"`
	CompetitorKey    string  `json:"competitor_key"`
	CompetitorName   string  `json:"competitor_name"`
	CompetitorUserID *string `json:"competitor_user_id,omitempty"`
	CompetitionClass string  `json:"competition_class"`
	Format           string  `json:"format"`
	SeasonID         string  `json:"season_id"`
	EventID          string  `json:"event_id"`
	PointsEarned     *int    `json:"points_earned"`
	Placement        *int    `json:"placement"`
}

// Points returns the points earned, treating missing as zero
func (r ResultRow) Points() int {
	if r.PointsEarned == nil {
		return 0
	}
	return *r.PointsEarned
}

// IsGuest reports whether the row belongs to a guest entrant
func (r ResultRow) IsGuest() bool {
	return IsGuestKey(r.CompetitorKey)
}

// Team is a named group that results can be linked to
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResultTeam links one result to one team, optionally naming the member
// who earned it
type ResultTeam struct {
	ID       string `json:"id"`
	ResultID string `json:"result_id"`
	TeamID   string `json:"team_id"`
	MemberID string `json:"member_id,omitempty"`
}

// Profile is the contact information of a registered user
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}

// Notification is an in-app message shown to a user
type Notification struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Qualification tracks one competitor's qualified status for a season and
// class, plus the delivery state of every side effect. Delivery flags only
// ever move from false to true.
type Qualification struct {
	ID                   string     `json:"id"`
	SeasonID             string     `json:"season_id"`
	CompetitorKey        string     `json:"competitor_key"`
	CompetitorName       string     `json:"competitor_name"`
	UserID               *string    `json:"user_id,omitempty"`
	CompetitionClass     string     `json:"competition_class"`
	TotalPoints          int        `json:"total_points"`
	QualifiedAt          time.Time  `json:"qualified_at"`
	NotificationSent     bool       `json:"notification_sent"`
	NotificationSentAt   *time.Time `json:"notification_sent_at,omitempty"`
	EmailSent            bool       `json:"email_sent"`
	EmailSentAt          *time.Time `json:"email_sent_at,omitempty"`
	InvitationSent       bool       `json:"invitation_sent"`
	InvitationSentAt     *time.Time `json:"invitation_sent_at,omitempty"`
	InvitationToken      *string    `json:"-"`
	InvitationRedeemed   bool       `json:"invitation_redeemed"`
	InvitationRedeemedAt *time.Time `json:"invitation_redeemed_at,omitempty"`
}

// QualificationKey uniquely identifies a qualification record
type QualificationKey struct {
	SeasonID         string
	CompetitorKey    string
	CompetitionClass string
}

// Key returns the record's unique key
func (q *Qualification) Key() QualificationKey {
	return QualificationKey{SeasonID: q.SeasonID, CompetitorKey: q.CompetitorKey, CompetitionClass: q.CompetitionClass}
}

// String renders the key for logging and lock names
func (k QualificationKey) String() string {
	return k.SeasonID + "|" + k.CompetitorKey + "|" + k.CompetitionClass
}
