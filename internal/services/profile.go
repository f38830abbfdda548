package services

import (
	"context"
	"errors"
	"strings"

	"sports-buddy-backend/internal/repository"
	"sports-buddy-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// ProfileService updates the signed-in user's own profile
type ProfileService struct {
	profiles ProfileStore
}

// NewProfileService creates a new profile service
func NewProfileService(profiles ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// UpdatePushToken stores the device token push notifications go to. A nil or
// blank token clears it.
func (s *ProfileService) UpdatePushToken(ctx context.Context, sess session.State, token *string) error {
	if !sess.Authenticated() {
		return ErrSignInRequired
	}

	if token != nil {
		trimmed := strings.TrimSpace(*token)
		if trimmed == "" {
			token = nil
		} else {
			token = &trimmed
		}
	}

	userID := sess.UserID()
	if err := s.profiles.UpdatePushToken(ctx, userID, token); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, "Profile Not Found", "Your profile could not be found")
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update push token")
		return remoteError(err, "Update Failed", "Could not update push token")
	}

	log.Info().Str("user_id", userID).Bool("cleared", token == nil).Msg("Push token updated")
	return nil
}
