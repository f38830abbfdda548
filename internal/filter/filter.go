// Package filter narrows the listing feed by sport, skill level and free text.
package filter

import (
	"strings"

	"sports-buddy-backend/internal/models"
)

// All disables the sport or skill predicate
const All = "all"

// State is the current filter selection. It is a value: setters return a copy.
type State struct {
	Sport string `json:"sport"`
	Skill string `json:"skill"`
	Query string `json:"query"`
}

// Default returns a state that keeps every listing
func Default() State {
	return State{Sport: All, Skill: All}
}

// WithSport returns a copy with the sport filter set; empty means all
func (s State) WithSport(sport string) State {
	s.Sport = normalizeChoice(sport)
	return s
}

// WithSkill returns a copy with the skill filter set; empty means all
func (s State) WithSkill(skill string) State {
	s.Skill = normalizeChoice(skill)
	return s
}

// WithQuery returns a copy with the free-text query set
func (s State) WithQuery(query string) State {
	s.Query = query
	return s
}

// Reset returns the default state
func (s State) Reset() State {
	return Default()
}

// IsDefault reports whether the state keeps every listing
func (s State) IsDefault() bool {
	return isAll(s.Sport) && isAll(s.Skill) && normalizeQuery(s.Query) == ""
}

// Apply returns the listings matching every active predicate, in input order.
// It does not modify its input.
func Apply(listings []models.Listing, s State) []models.Listing {
	query := normalizeQuery(s.Query)
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if !isAll(s.Sport) && !strings.EqualFold(l.Sport, strings.TrimSpace(s.Sport)) {
			continue
		}
		if !isAll(s.Skill) && !strings.EqualFold(l.Skill, strings.TrimSpace(s.Skill)) {
			continue
		}
		if query != "" && !matchesQuery(l, query) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Matches reports whether a single listing passes s
func Matches(l models.Listing, s State) bool {
	return len(Apply([]models.Listing{l}, s)) == 1
}

func matchesQuery(l models.Listing, query string) bool {
	for _, field := range []string{l.Sport, l.City, l.Area, l.Skill, l.Description} {
		if field != "" && strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func normalizeChoice(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return All
	}
	return v
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, All)
}
