package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sports-buddy-backend/internal/filter"
	"sports-buddy-backend/internal/metrics"
	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/repository"
	"sports-buddy-backend/internal/session"
	"sports-buddy-backend/internal/view"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ListingStore is the listing persistence used by the services
type ListingStore interface {
	Create(ctx context.Context, l *models.Listing) error
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	AddParticipant(ctx context.Context, id, userID string) (*models.Listing, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]models.Listing, error)
	ListByCreator(ctx context.Context, userID string) ([]models.Listing, error)
	Count(ctx context.Context) (int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}

// ProfileStore is the profile persistence used by the services
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	CreateProfileIfAbsent(ctx context.Context, p *models.UserProfile) (bool, error)
	AddSportInterest(ctx context.Context, id, sport, location string) error
	UpdatePushToken(ctx context.Context, id string, pushToken *string) error
	UpdatePhotoURL(ctx context.Context, id, photoURL string) error
	CountProfiles(ctx context.Context) (int, error)
}

// ListingCache is the live copy of the listing collection
type ListingCache interface {
	Listings() []models.Listing
	Get(id string) (models.Listing, bool)
	ByCreator(userID string) []models.Listing
	Loaded() bool
}

// ListingService implements the match lifecycle: create, join and delete
type ListingService struct {
	listings ListingStore
	profiles ProfileStore
	notifier *Notifier
	cache    ListingCache
	loc      *time.Location
	now      func() time.Time
}

// NewListingService creates a new listing service. Dates and times on listings
// are interpreted in loc.
func NewListingService(
	listings ListingStore,
	profiles ProfileStore,
	notifier *Notifier,
	cache ListingCache,
	loc *time.Location,
) *ListingService {
	if loc == nil {
		loc = time.Local
	}
	return &ListingService{
		listings: listings,
		profiles: profiles,
		notifier: notifier,
		cache:    cache,
		loc:      loc,
		now:      time.Now,
	}
}

// SetClock replaces the wall clock used for validation
func (s *ListingService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateListingRequest is the payload of the create operation
type CreateListingRequest struct {
	Sport             string   `json:"sport"`
	City              string   `json:"city"`
	Area              string   `json:"area"`
	Skill             string   `json:"skill"`
	Date              string   `json:"date"`
	Time              string   `json:"time"`
	DurationHours     *float64 `json:"duration_hours,omitempty"`
	Description       string   `json:"description"`
	VenueDetails      string   `json:"venue_details"`
	EquipmentProvided bool     `json:"equipment_provided"`
	ParkingAvailable  bool     `json:"parking_available"`
	ChangingRooms     bool     `json:"changing_rooms"`
	PlayersNeeded     *int     `json:"players_needed,omitempty"`
}

// validate normalizes req into a listing without any remote call
func (s *ListingService) validate(req CreateListingRequest) (*models.Listing, error) {
	sport := strings.TrimSpace(req.Sport)
	city := strings.TrimSpace(req.City)
	area := strings.TrimSpace(req.Area)
	if sport == "" || city == "" || area == "" {
		return nil, validationError("Missing Information", "Please fill all required fields (*)")
	}

	canonicalSport, ok := models.CanonicalSport(sport)
	if !ok {
		return nil, validationError("Invalid Sport", fmt.Sprintf("%q is not a supported sport", sport))
	}
	skill, ok := models.CanonicalSkill(req.Skill)
	if !ok {
		return nil, validationError("Invalid Skill Level", "Please choose Beginner, Intermediate or Advanced")
	}

	date := strings.TrimSpace(req.Date)
	clock := strings.TrimSpace(req.Time)
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, s.loc)
	if err != nil {
		return nil, validationError("Invalid Time", "Please select a valid date and time")
	}
	if !start.After(s.now()) {
		return nil, validationError("Invalid Time", "Please select a future date and time")
	}

	players := models.DefaultPlayersNeeded
	if req.PlayersNeeded != nil {
		players = *req.PlayersNeeded
	}
	if players <= 0 {
		return nil, validationError("Invalid Players", "Players needed must be at least 1")
	}
	if req.DurationHours != nil && *req.DurationHours <= 0 {
		return nil, validationError("Invalid Duration", "Duration must be a positive number of hours")
	}

	return &models.Listing{
		Sport:             canonicalSport,
		City:              city,
		Area:              area,
		Skill:             skill,
		Date:              date,
		Time:              clock,
		DurationHours:     req.DurationHours,
		Description:       strings.TrimSpace(req.Description),
		VenueDetails:      strings.TrimSpace(req.VenueDetails),
		EquipmentProvided: req.EquipmentProvided,
		ParkingAvailable:  req.ParkingAvailable,
		ChangingRooms:     req.ChangingRooms,
		PlayersNeeded:     players,
		Participants:      []string{},
		Status:            models.StatusActive,
	}, nil
}

// Create validates req and writes a new listing owned by the caller. The
// caller's sport interests and location are then updated on a best-effort basis.
func (s *ListingService) Create(ctx context.Context, sess session.State, req CreateListingRequest) (*models.Listing, error) {
	if !sess.Authenticated() {
		return nil, ErrSignInRequired
	}

	listing, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	listing.ID = uuid.New().String()
	listing.CreatedBy = sess.UserID()
	listing.CreatedByEmail = sess.Email()

	if err := s.listings.Create(ctx, listing); err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Msg("Failed to create listing")
		return nil, remoteError(err, "Creation Failed", "Could not create match. Please try again.")
	}
	metrics.ListingsCreated.Inc()

	log.Info().
		Str("user_id", sess.UserID()).
		Str("listing_id", listing.ID).
		Str("sport", listing.Sport).
		Msg("Listing created")

	if err := s.profiles.AddSportInterest(ctx, sess.UserID(), listing.Sport, listing.City); err != nil {
		log.Warn().
			Err(err).
			Str("user_id", sess.UserID()).
			Str("sport", listing.Sport).
			Msg("Failed to update sport interests")
	}

	return listing, nil
}

// JoinResult is the outcome of a successful join
type JoinResult struct {
	Listing *models.Listing `json:"listing"`
	Notice  Notice          `json:"notice"`
}

var (
	errListingGone = newError(KindNotFound, "Match Not Found", "This match no longer exists")
	errMatchFull   = newError(KindCapacity, "Match Full", "This match has reached maximum players")
	errJoinedTwice = newError(KindAlreadyJoined, "Already Joined", "You are already part of this match")
	errNotAllowed  = newError(KindAuthorization, "Access Denied", "Only the creator or an admin can delete this match")
	errAdminOnly   = newError(KindAuthorization, "Access Denied", "Admin features require admin privileges")
)

// Join adds the caller to a listing's participants. The listing is re-read from
// the store, never the cache, before the capacity and duplicate checks. The
// store repeats both checks atomically when it applies the update.
func (s *ListingService) Join(ctx context.Context, sess session.State, listingID string) (*JoinResult, error) {
	if !sess.Authenticated() {
		return nil, ErrSignInRequired
	}
	userID := sess.UserID()

	current, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		metrics.JoinAttempts.WithLabelValues("error").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errListingGone
		}
		log.Error().Err(err).Str("user_id", userID).Str("listing_id", listingID).Msg("Failed to load listing")
		return nil, remoteError(err, "Join Failed", "Could not join match")
	}

	if current.IsFull() {
		metrics.JoinAttempts.WithLabelValues("full").Inc()
		return nil, errMatchFull
	}
	if current.HasParticipant(userID) {
		metrics.JoinAttempts.WithLabelValues("already_joined").Inc()
		return nil, errJoinedTwice
	}

	updated, err := s.listings.AddParticipant(ctx, listingID, userID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrListingFull):
		metrics.JoinAttempts.WithLabelValues("full").Inc()
		return nil, errMatchFull
	case errors.Is(err, repository.ErrAlreadyJoined):
		metrics.JoinAttempts.WithLabelValues("already_joined").Inc()
		return nil, errJoinedTwice
	case errors.Is(err, repository.ErrNotFound):
		metrics.JoinAttempts.WithLabelValues("error").Inc()
		return nil, errListingGone
	default:
		metrics.JoinAttempts.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("user_id", userID).Str("listing_id", listingID).Msg("Failed to join listing")
		return nil, remoteError(err, "Join Failed", "Could not join match")
	}
	metrics.JoinAttempts.WithLabelValues("joined").Inc()

	log.Info().
		Str("user_id", userID).
		Str("listing_id", listingID).
		Int("participants", len(updated.Participants)).
		Msg("Listing joined")

	if s.notifier != nil && updated.CreatedBy != userID {
		if err := s.notifier.JoinRequest(ctx, *updated, sess); err != nil {
			log.Warn().
				Err(err).
				Str("listing_id", listingID).
				Str("to_user_id", updated.CreatedBy).
				Msg("Failed to notify listing creator")
		}
	}

	return &JoinResult{
		Listing: updated,
		Notice: Notice{
			Title:   "Success!",
			Message: fmt.Sprintf("You've joined the %s match", updated.Sport),
			Tone:    ToneSuccess,
		},
	}, nil
}

// Delete removes a listing. Only its creator or an admin may do so; anyone else
// is refused before the store is contacted once the feed has loaded.
func (s *ListingService) Delete(ctx context.Context, sess session.State, listingID string) error {
	if !sess.Authenticated() {
		return ErrSignInRequired
	}
	userID := sess.UserID()

	if !sess.IsAdmin() {
		creator, err := s.creatorOf(ctx, listingID)
		if err != nil {
			return err
		}
		if creator != userID {
			log.Warn().Str("user_id", userID).Str("listing_id", listingID).Msg("Refused listing deletion")
			return errNotAllowed
		}
	}

	if err := s.listings.Delete(ctx, listingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errListingGone
		}
		log.Error().Err(err).Str("user_id", userID).Str("listing_id", listingID).Msg("Failed to delete listing")
		return remoteError(err, "Deletion Failed", "Could not delete match")
	}
	metrics.ListingsDeleted.Inc()

	log.Info().
		Str("user_id", userID).
		Str("listing_id", listingID).
		Bool("admin", sess.IsAdmin()).
		Msg("Listing deleted")

	return nil
}

// creatorOf answers from the cache once it holds a snapshot, so a refusal or a
// missing listing never reaches the store. Before the first snapshot it reads
// the listing.
func (s *ListingService) creatorOf(ctx context.Context, listingID string) (string, error) {
	if s.cache != nil && s.cache.Loaded() {
		l, ok := s.cache.Get(listingID)
		if !ok {
			return "", errListingGone
		}
		return l.CreatedBy, nil
	}
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", errListingGone
		}
		return "", remoteError(err, "Deletion Failed", "Could not delete match")
	}
	return l.CreatedBy, nil
}

// Feed renders the cached listings for the viewer with f applied
func (s *ListingService) Feed(sess session.State, f filter.State) view.Feed {
	return view.NewFeed(s.cache.Listings(), f, sess, s.now())
}

// Mine returns the listings the caller created, newest first
func (s *ListingService) Mine(ctx context.Context, sess session.State) ([]view.Listing, error) {
	if !sess.Authenticated() {
		return nil, ErrSignInRequired
	}

	var mine []models.Listing
	if s.cache.Loaded() {
		mine = s.cache.ByCreator(sess.UserID())
	} else {
		var err error
		mine, err = s.listings.ListByCreator(ctx, sess.UserID())
		if err != nil {
			return nil, remoteError(err, "Error", "Could not load your matches")
		}
	}

	now := s.now()
	out := make([]view.Listing, 0, len(mine))
	for _, l := range mine {
		out = append(out, view.NewListing(l, sess, now))
	}
	return out, nil
}

// Details loads one listing fresh from the store together with the names of
// its first participants. Participants whose profile cannot be read are skipped.
func (s *ListingService) Details(ctx context.Context, sess session.State, listingID string) (*view.Details, error) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errListingGone
		}
		return nil, remoteError(err, "Error", "Could not load match details")
	}

	names := map[string]string{}
	for _, id := range view.PreviewParticipants(*l) {
		p, err := s.profiles.GetProfile(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("user_id", id).Msg("Failed to load participant")
			continue
		}
		names[id] = models.DisplayNameFor(p.DisplayName, p.Email)
	}

	d := view.NewDetails(*l, names, sess, s.now())
	return &d, nil
}
