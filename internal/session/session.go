// Package session resolves an authenticated identity into the state the rest of
// the service gates on: who the caller is, their profile, and admin rights.
package session

import (
	"context"
	"errors"
	"fmt"

	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// Identity is the signed-in principal carried by a token
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// State is an immutable snapshot of one caller's session
type State struct {
	identity *Identity
	profile  *models.UserProfile
	admin    bool
}

// Anonymous returns the signed-out state
func Anonymous() State {
	return State{}
}

// NewState builds a state for an identity and its profile
func NewState(id Identity, profile *models.UserProfile) State {
	s := State{identity: &id}
	if profile != nil {
		p := *profile
		p.Sports = append([]string(nil), profile.Sports...)
		s.profile = &p
		s.admin = p.IsAdmin()
	}
	return s
}

// Authenticated reports whether a user is signed in
func (s State) Authenticated() bool {
	return s.identity != nil
}

// IsAdmin reports whether the signed-in user holds the admin role
func (s State) IsAdmin() bool {
	return s.admin
}

// UserID returns the signed-in user's ID, or "" when anonymous
func (s State) UserID() string {
	if s.identity == nil {
		return ""
	}
	return s.identity.UserID
}

// Email returns the signed-in user's email, or "" when anonymous
func (s State) Email() string {
	if s.identity == nil {
		return ""
	}
	return s.identity.Email
}

// DisplayName prefers the profile's name, then the token's, then the email local part
func (s State) DisplayName() string {
	if s.identity == nil {
		return ""
	}
	if s.profile != nil && s.profile.DisplayName != "" {
		return s.profile.DisplayName
	}
	return models.DisplayNameFor(s.identity.DisplayName, s.identity.Email)
}

// Profile returns a copy of the cached profile, or nil
func (s State) Profile() *models.UserProfile {
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	p.Sports = append([]string(nil), s.profile.Sports...)
	return &p
}

// WithProfile returns a copy of s carrying profile
func (s State) WithProfile(profile *models.UserProfile) State {
	if s.identity == nil {
		return s
	}
	return NewState(*s.identity, profile)
}

// ProfileStore is the profile persistence the resolver needs
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	CreateProfileIfAbsent(ctx context.Context, p *models.UserProfile) (bool, error)
}

// Resolver turns auth changes into session states
type Resolver struct {
	profiles ProfileStore
}

// NewResolver creates a new resolver
func NewResolver(profiles ProfileStore) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve handles one auth change. A nil identity signs out. A present identity
// loads the profile, creating it on first sign-in without overwriting an
// existing one, and derives admin rights from its role. On failure the error is
// returned together with the anonymous state.
func (r *Resolver) Resolve(ctx context.Context, id *Identity) (State, error) {
	if id == nil {
		return Anonymous(), nil
	}

	profile, err := r.profiles.GetProfile(ctx, id.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		profile = &models.UserProfile{
			ID:          id.UserID,
			Email:       id.Email,
			DisplayName: models.DisplayNameFor(id.DisplayName, id.Email),
			Sports:      []string{},
			Role:        models.RoleUser,
		}
		created, createErr := r.profiles.CreateProfileIfAbsent(ctx, profile)
		if createErr != nil {
			err = createErr
		} else if !created {
			// Lost a race with another first sign-in; read the winner's document.
			profile, err = r.profiles.GetProfile(ctx, id.UserID)
		} else {
			err = nil
			log.Info().Str("user_id", id.UserID).Msg("Profile created")
		}
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", id.UserID).Msg("Failed to load profile")
		return Anonymous(), fmt.Errorf("failed to load profile: %w", err)
	}

	return NewState(*id, profile), nil
}
