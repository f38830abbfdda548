package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/repository"
	"sports-buddy-backend/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	minRegisterPassword = 8
	minSignInPassword   = 6

	purposeSession       = "session"
	purposePasswordReset = "password_reset"
)

// AccountStore is the credential persistence used by the auth service
type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	BumpTokenVersion(ctx context.Context, id string) (int, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Claims are the JWT claims issued by the auth service
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Version int    `json:"ver"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// AuthService handles registration, sign-in and tokens
type AuthService struct {
	accounts AccountStore
	profiles ProfileStore
	mailer   Mailer

	secret          []byte
	tokenTTL        time.Duration
	resetTTL        time.Duration
	resetURLPattern string
	now             func() time.Time

	revokeMu sync.RWMutex
	onRevoke []func(userID string)
}

// NewAuthService creates a new auth service
func NewAuthService(
	accounts AccountStore,
	profiles ProfileStore,
	mailer Mailer,
	secret string,
	tokenTTL, resetTTL time.Duration,
	resetURLPattern string,
) *AuthService {
	return &AuthService{
		accounts:        accounts,
		profiles:        profiles,
		mailer:          mailer,
		secret:          []byte(secret),
		tokenTTL:        tokenTTL,
		resetTTL:        resetTTL,
		resetURLPattern: resetURLPattern,
		now:             time.Now,
	}
}

// OnRevoke registers fn to run after every token of a user was invalidated,
// by a sign-out or a password reset
func (s *AuthService) OnRevoke(fn func(userID string)) {
	s.revokeMu.Lock()
	defer s.revokeMu.Unlock()
	s.onRevoke = append(s.onRevoke, fn)
}

func (s *AuthService) revoked(userID string) {
	s.revokeMu.RLock()
	fns := append([]func(string){}, s.onRevoke...)
	s.revokeMu.RUnlock()
	for _, fn := range fns {
		fn(userID)
	}
}

// SetClock replaces the wall clock used for token timestamps
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// RegisterRequest is the payload of the register operation
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Location        string `json:"location"`
}

// SignInRequest is the payload of the sign-in operation
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned after a successful register or sign-in
type AuthResult struct {
	Token   string              `json:"token"`
	Profile *models.UserProfile `json:"profile"`
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, ".")
}

// Register creates an account and its profile and signs the user in
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	location := strings.TrimSpace(req.Location)

	if name == "" || email == "" || req.Password == "" || req.ConfirmPassword == "" || location == "" {
		return nil, validationError("Missing Information", "Please fill all fields")
	}
	if !validEmail(email) {
		return nil, validationError("Invalid Email", "Please enter a valid email address")
	}
	if len(req.Password) < minRegisterPassword {
		return nil, validationError("Weak Password", fmt.Sprintf("Password must be at least %d characters", minRegisterPassword))
	}
	if req.Password != req.ConfirmPassword {
		return nil, validationError("Password Mismatch", "Passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, newError(KindConflict, "Registration Failed", "An account with this email already exists")
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to create account")
		return nil, remoteError(err, "Registration Failed", "Could not create account")
	}

	profile := &models.UserProfile{
		ID:          account.ID,
		Email:       email,
		DisplayName: name,
		Location:    location,
		Sports:      []string{},
		Role:        models.RoleUser,
	}
	if _, err := s.profiles.CreateProfileIfAbsent(ctx, profile); err != nil {
		// The session resolver creates a default profile on first use
		log.Warn().Err(err).Str("user_id", account.ID).Msg("Failed to create profile")
	}

	token, err := s.issue(account, name, purposeSession, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", account.ID).Msg("Account registered")

	return &AuthResult{Token: token, Profile: profile}, nil
}

// SignIn verifies credentials and issues a session token
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, validationError("Missing Information", "Please enter email and password")
	}
	if !validEmail(email) {
		return nil, validationError("Invalid Email", "Please enter a valid email address")
	}
	if len(req.Password) < minSignInPassword {
		return nil, validationError("Invalid Password", fmt.Sprintf("Password must be at least %d characters", minSignInPassword))
	}

	invalid := newError(KindUnauthenticated, "Sign In Failed", "Invalid email or password")

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid
		}
		return nil, remoteError(err, "Sign In Failed", "Could not sign in")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn().Str("user_id", account.ID).Msg("Sign-in with wrong password")
		return nil, invalid
	}

	var name string
	profile, err := s.profiles.GetProfile(ctx, account.ID)
	if err == nil {
		name = profile.DisplayName
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Warn().Err(err).Str("user_id", account.ID).Msg("Failed to load profile at sign-in")
	}

	token, err := s.issue(account, name, purposeSession, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", account.ID).Msg("Signed in")

	return &AuthResult{Token: token, Profile: profile}, nil
}

// SignOut invalidates every token issued to the user so far
func (s *AuthService) SignOut(ctx context.Context, userID string) error {
	if _, err := s.accounts.BumpTokenVersion(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return remoteError(err, "Sign Out Failed", "Could not sign out")
	}
	log.Info().Str("user_id", userID).Msg("Signed out")
	s.revoked(userID)
	return nil
}

// RequestPasswordReset mails a reset link when the address belongs to an
// account. The outcome is the same whether or not it does.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return validationError("Invalid Email", "Please enter a valid email address")
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info().Msg("Password reset requested for unknown email")
			return nil
		}
		return remoteError(err, "Reset Failed", "Could not send reset email")
	}

	token, err := s.issue(account, "", purposePasswordReset, s.resetTTL)
	if err != nil {
		return err
	}

	link := token
	if s.resetURLPattern != "" {
		link = fmt.Sprintf(s.resetURLPattern, token)
	}
	if err := s.mailer.SendPasswordReset(ctx, account.Email, link); err != nil {
		log.Error().Err(err).Str("user_id", account.ID).Msg("Failed to send password reset")
		return newError(KindBackend, "Reset Failed", "Could not send reset email")
	}
	return nil
}

// ConfirmPasswordRequest is the payload of the reset confirmation
type ConfirmPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ConfirmPasswordReset sets a new password using a reset token. Changing the
// password also invalidates every outstanding token, the reset token included.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, req ConfirmPasswordRequest) error {
	if len(req.Password) < minRegisterPassword {
		return validationError("Weak Password", fmt.Sprintf("Password must be at least %d characters", minRegisterPassword))
	}
	if req.Password != req.ConfirmPassword {
		return validationError("Password Mismatch", "Passwords do not match")
	}

	expired := newError(KindValidation, "Invalid Link", "This reset link is invalid or has expired")

	account, _, err := s.verify(ctx, req.Token, purposePasswordReset)
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) && svcErr.Kind == KindUnauthenticated {
			return expired
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, string(hash)); err != nil {
		return remoteError(err, "Reset Failed", "Could not update password")
	}

	log.Info().Str("user_id", account.ID).Msg("Password reset")
	s.revoked(account.ID)
	return nil
}

// ValidateToken checks a session token, including that it was not revoked by
// a sign-out, and returns the identity it carries
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*session.Identity, error) {
	_, claims, err := s.verify(ctx, tokenString, purposeSession)
	if err != nil {
		return nil, err
	}
	return &session.Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}

// verify parses a token for purpose and checks its version against the account
func (s *AuthService) verify(ctx context.Context, tokenString, purpose string) (*models.Account, *Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil || claims.Purpose != purpose {
		return nil, nil, ErrSignInRequired
	}

	account, err := s.accounts.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSignInRequired
		}
		return nil, nil, remoteError(err, "Authentication Failed", "Could not verify session")
	}
	if account.TokenVersion != claims.Version {
		return nil, nil, ErrSignInRequired
	}
	return account, claims, nil
}

func (s *AuthService) issue(account *models.Account, name, purpose string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Email:   account.Email,
		Name:    name,
		Version: account.TokenVersion,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (s *AuthService) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
