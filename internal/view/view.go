// Package view turns listings and session state into the display-ready
// structures the browser client renders. Everything here is pure.
package view

import (
	"fmt"
	"strings"
	"time"

	"sports-buddy-backend/internal/filter"
	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/session"
)

// DefaultIcon is used for sports missing from the icon table
const DefaultIcon = "fa-running"

var sportIcons = map[string]string{
	"Football":     "fa-futbol",
	"Basketball":   "fa-basketball-ball",
	"Tennis":       "fa-baseball-ball",
	"Cricket":      "fa-baseball-ball",
	"Badminton":    "fa-table-tennis",
	"Volleyball":   "fa-volleyball-ball",
	"Swimming":     "fa-swimmer",
	"Running":      "fa-running",
	"Cycling":      "fa-bicycle",
	"Yoga":         "fa-spa",
	"Gym":          "fa-dumbbell",
	"Boxing":       "fa-boxing-glove",
	"Martial Arts": "fa-user-ninja",
}

// SportIcon returns the icon key for sport
func SportIcon(sport string) string {
	if icon, ok := sportIcons[sport]; ok {
		return icon
	}
	return DefaultIcon
}

// TimeAgo renders how long before now t was
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff/(24*time.Hour)))
	}
	return t.In(now.Location()).Format("Jan 2")
}

// FormatMatchDate renders a listing's date and time, e.g. "Sat, Jun 1 at 18:30"
func FormatMatchDate(date, clock string) string {
	if date == "" {
		return "Flexible schedule"
	}
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	formatted := d.Format("Mon, Jan 2")
	if clock != "" {
		return formatted + " at " + clock
	}
	return formatted
}

// CreatorName is the part of the creator's email before the @
func CreatorName(email string) string {
	if email == "" {
		return "Anonymous"
	}
	return models.DisplayNameFor("", email)
}

// ShareText is the message used when a listing is shared
func ShareText(l models.Listing) string {
	creator := "someone"
	if l.CreatedByEmail != "" {
		creator = CreatorName(l.CreatedByEmail)
	}
	return fmt.Sprintf("Join %s for %s in %s. Skill level: %s", creator, l.Sport, l.City, l.Skill)
}

// Listing is one card in the feed
type Listing struct {
	models.Listing
	Icon             string `json:"icon"`
	SkillClass       string `json:"skill_class"`
	TimeAgo          string `json:"time_ago"`
	When             string `json:"when"`
	CreatorName      string `json:"creator_name"`
	ParticipantCount int    `json:"participant_count"`
	Capacity         int    `json:"capacity"`
	Full             bool   `json:"full"`
	Joined           bool   `json:"joined"`
	CanDelete        bool   `json:"can_delete"`
	ShareText        string `json:"share_text"`
}

// NewListing derives the display fields of l for the viewer in s
func NewListing(l models.Listing, s session.State, now time.Time) Listing {
	userID := s.UserID()
	return Listing{
		Listing:          l,
		Icon:             SportIcon(l.Sport),
		SkillClass:       "skill-" + strings.ToLower(l.Skill),
		TimeAgo:          TimeAgo(l.CreatedAt, now),
		When:             FormatMatchDate(l.Date, l.Time),
		CreatorName:      CreatorName(l.CreatedByEmail),
		ParticipantCount: len(l.Participants),
		Capacity:         l.Capacity(),
		Full:             l.IsFull(),
		Joined:           userID != "" && l.HasParticipant(userID),
		CanDelete:        userID != "" && (l.CreatedBy == userID || s.IsAdmin()),
		ShareText:        ShareText(l),
	}
}

// Feed is the filtered listing view for one viewer
type Feed struct {
	Listings []Listing    `json:"listings"`
	Empty    bool         `json:"empty"`
	Total    int          `json:"total"`
	Filter   filter.State `json:"filter"`
}

// NewFeed filters listings with f and renders them for the viewer in s
func NewFeed(listings []models.Listing, f filter.State, s session.State, now time.Time) Feed {
	filtered := filter.Apply(listings, f)
	feed := Feed{
		Listings: make([]Listing, 0, len(filtered)),
		Empty:    len(filtered) == 0,
		Total:    len(listings),
		Filter:   f,
	}
	for _, l := range filtered {
		feed.Listings = append(feed.Listings, NewListing(l, s, now))
	}
	return feed
}

// Session is the signed-in state shown in the header and menus
type Session struct {
	Authenticated bool                `json:"authenticated"`
	Admin         bool                `json:"admin"`
	UserID        string              `json:"user_id,omitempty"`
	DisplayName   string              `json:"display_name,omitempty"`
	Profile       *models.UserProfile `json:"profile,omitempty"`
}

// NewSession renders s
func NewSession(s session.State) Session {
	return Session{
		Authenticated: s.Authenticated(),
		Admin:         s.IsAdmin(),
		UserID:        s.UserID(),
		DisplayName:   s.DisplayName(),
		Profile:       s.Profile(),
	}
}

// ParticipantPreviewSize is how many participant names a details view lists
const ParticipantPreviewSize = 5

// Details is the expanded view of one listing
type Details struct {
	Listing
	ParticipantNames []string `json:"participant_names"`
	MoreParticipants int      `json:"more_participants"`
}

// NewDetails renders l with the names of its first participants. names maps
// user IDs to display names; IDs without a name are skipped.
func NewDetails(l models.Listing, names map[string]string, s session.State, now time.Time) Details {
	d := Details{
		Listing:          NewListing(l, s, now),
		ParticipantNames: []string{},
	}
	for i, id := range l.Participants {
		if i == ParticipantPreviewSize {
			break
		}
		if name, ok := names[id]; ok {
			d.ParticipantNames = append(d.ParticipantNames, name)
		}
	}
	if len(l.Participants) > ParticipantPreviewSize {
		d.MoreParticipants = len(l.Participants) - ParticipantPreviewSize
	}
	return d
}

// PreviewParticipants returns the participant IDs a details view needs names for
func PreviewParticipants(l models.Listing) []string {
	if len(l.Participants) <= ParticipantPreviewSize {
		return l.Participants
	}
	return l.Participants[:ParticipantPreviewSize]
}
