package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/repository"
	"sports-buddy-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// AdminService serves the admin panel
type AdminService struct {
	listings ListingStore
	profiles ProfileStore
	loc      *time.Location
	now      func() time.Time
}

// NewAdminService creates a new admin service. The "today" counter uses the
// calendar day in loc.
func NewAdminService(listings ListingStore, profiles ProfileStore, loc *time.Location) *AdminService {
	if loc == nil {
		loc = time.Local
	}
	return &AdminService{
		listings: listings,
		profiles: profiles,
		loc:      loc,
		now:      time.Now,
	}
}

// SetClock replaces the wall clock used for the day boundaries
func (s *AdminService) SetClock(now func() time.Time) {
	s.now = now
}

// DayBounds returns the start of t's calendar day in loc and the start of the next one
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Stats returns the aggregate counters. Only admins may read them.
func (s *AdminService) Stats(ctx context.Context, sess session.State) (*models.AdminStats, error) {
	if !sess.Authenticated() {
		return nil, ErrSignInRequired
	}
	if !sess.IsAdmin() {
		return nil, errAdminOnly
	}
	return s.compute(ctx)
}

func (s *AdminService) compute(ctx context.Context) (*models.AdminStats, error) {
	total, err := s.listings.Count(ctx)
	if err != nil {
		return nil, remoteError(err, "Error", "Could not load statistics")
	}
	users, err := s.profiles.CountProfiles(ctx)
	if err != nil {
		return nil, remoteError(err, "Error", "Could not load statistics")
	}
	from, to := DayBounds(s.now(), s.loc)
	today, err := s.listings.CountCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, remoteError(err, "Error", "Could not load statistics")
	}

	return &models.AdminStats{
		TotalListings: total,
		TotalUsers:    users,
		TodayListings: today,
	}, nil
}

// IsTestListing reports whether a listing was created by a test account
func IsTestListing(l models.Listing) bool {
	email := strings.ToLower(l.CreatedByEmail)
	return strings.Contains(email, "test") || strings.Contains(email, "example")
}

// ClearTestData deletes every listing created by a test account and returns
// how many were removed
func (s *AdminService) ClearTestData(ctx context.Context, sess session.State) (int, error) {
	if !sess.Authenticated() {
		return 0, ErrSignInRequired
	}
	if !sess.IsAdmin() {
		return 0, errAdminOnly
	}

	all, err := s.listings.ListAll(ctx)
	if err != nil {
		return 0, remoteError(err, "Error", "Could not load matches")
	}

	removed := 0
	for _, l := range all {
		if !IsTestListing(l) {
			continue
		}
		if err := s.listings.Delete(ctx, l.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			log.Error().Err(err).Str("listing_id", l.ID).Msg("Failed to delete test listing")
			return removed, remoteError(err, "Error", "Could not clear test data")
		}
		removed++
	}

	log.Info().Str("user_id", sess.UserID()).Int("removed", removed).Msg("Test data cleared")
	return removed, nil
}
