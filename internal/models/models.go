package models

import (
	"strings"
	"time"
)

// Role is the privilege level stored on a user profile
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// StatusActive is the only status a listing ever carries
const StatusActive = "active"

// NotificationJoinRequest is written when someone joins another user's listing
const NotificationJoinRequest = "join_request"

// DefaultPlayersNeeded is the capacity used when a listing does not specify one
const DefaultPlayersNeeded = 8

// Sports is the fixed set of sports a listing can be created for
var Sports = []string{
	"Football",
	"Basketball",
	"Tennis",
	"Cricket",
	"Badminton",
	"Volleyball",
	"Swimming",
	"Running",
	"Cycling",
	"Yoga",
	"Gym",
	"Boxing",
	"Martial Arts",
}

// SkillLevels is the fixed set of skill levels
var SkillLevels = []string{
	"Beginner",
	"Intermediate",
	"Advanced",
}

// CanonicalSport returns the enumerated spelling of sport, matched case-insensitively
func CanonicalSport(sport string) (string, bool) {
	return canonical(Sports, sport)
}

// CanonicalSkill returns the enumerated spelling of skill, matched case-insensitively
func CanonicalSkill(skill string) (string, bool) {
	return canonical(SkillLevels, skill)
}

func canonical(set []string, v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return s, true
		}
	}
	return "", false
}

// Account holds the credentials owned by the auth service
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TokenVersion int       `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserProfile is the profile document kept for every signed-in user
type UserProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Location    string    `json:"location"`
	Sports      []string  `json:"sports"`
	Role        Role      `json:"role"`
	PushToken   *string   `json:"push_token,omitempty"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsAdmin reports whether the profile carries the admin role
func (p *UserProfile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// HasSport reports whether sport is already in the interest set
func (p *UserProfile) HasSport(sport string) bool {
	for _, s := range p.Sports {
		if strings.EqualFold(s, sport) {
			return true
		}
	}
	return false
}

// Listing is a proposed sports match
type Listing struct {
	ID                string    `json:"id"`
	Sport             string    `json:"sport"`
	City              string    `json:"city"`
	Area              string    `json:"area"`
	Skill             string    `json:"skill"`
	Date              string    `json:"date"`
	Time              string    `json:"time"`
	DurationHours     *float64  `json:"duration_hours,omitempty"`
	Description       string    `json:"description,omitempty"`
	VenueDetails      string    `json:"venue_details,omitempty"`
	EquipmentProvided bool      `json:"equipment_provided"`
	ParkingAvailable  bool      `json:"parking_available"`
	ChangingRooms     bool      `json:"changing_rooms"`
	PlayersNeeded     int       `json:"players_needed"`
	Participants      []string  `json:"participants"`
	CreatedBy         string    `json:"created_by"`
	CreatedByEmail    string    `json:"created_by_email"`
	CreatedAt         time.Time `json:"created_at"`
	Status            string    `json:"status"`
}

// Capacity returns PlayersNeeded, falling back to the default for unset values
func (l *Listing) Capacity() int {
	if l.PlayersNeeded <= 0 {
		return DefaultPlayersNeeded
	}
	return l.PlayersNeeded
}

// IsFull reports whether no more participants can join
func (l *Listing) IsFull() bool {
	return len(l.Participants) >= l.Capacity()
}

// HasParticipant reports whether userID already joined
func (l *Listing) HasParticipant(userID string) bool {
	for _, p := range l.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with l
func (l Listing) Clone() Listing {
	l.Participants = append([]string(nil), l.Participants...)
	if l.DurationHours != nil {
		d := *l.DurationHours
		l.DurationHours = &d
	}
	return l
}

// Notification is a write-only record addressed to a listing creator
type Notification struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	MatchID    string    `json:"match_id"`
	Sport      string    `json:"sport"`
	FromUserID string    `json:"from_user_id"`
	FromEmail  string    `json:"from_user_email"`
	FromName   string    `json:"from_user_name"`
	ToUserID   string    `json:"to_user_id"`
	Read       bool      `json:"read"`
	Timestamp  time.Time `json:"timestamp"`
}

// AdminStats holds the aggregate counters shown on the admin panel
type AdminStats struct {
	TotalListings int `json:"total_listings"`
	TotalUsers    int `json:"total_users"`
	TodayListings int `json:"today_listings"`
}

// DisplayNameFor returns name when set, otherwise the local part of email
func DisplayNameFor(name, email string) string {
	if strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
