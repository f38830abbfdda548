package repository

import (
	"context"
	"errors"
	"fmt"

	"sports-buddy-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// UserRepository handles database operations for accounts and profiles
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateAccount creates a new account
func (r *UserRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, token_version)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.TokenVersion,
	).Scan(&account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByEmail retrieves an account by email
func (r *UserRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT id, email, password_hash, token_version, created_at
		FROM accounts
		WHERE lower(email) = lower($1)
	`
	return r.scanAccount(r.db.QueryRow(ctx, query, email))
}

// GetAccountByID retrieves an account by ID
func (r *UserRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, email, password_hash, token_version, created_at
		FROM accounts
		WHERE id = $1
	`
	return r.scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.TokenVersion, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// BumpTokenVersion invalidates every token issued for the account
func (r *UserRepository) BumpTokenVersion(ctx context.Context, id string) (int, error) {
	query := `UPDATE accounts SET token_version = token_version + 1 WHERE id = $1 RETURNING token_version`
	var version int
	err := r.db.QueryRow(ctx, query, id).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to bump token version: %w", err)
	}
	return version, nil
}

// UpdatePassword stores a new password hash and invalidates issued tokens
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $1, token_version = token_version + 1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProfile retrieves a profile by user ID
func (r *UserRepository) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	query := `
		SELECT id, email, display_name, location, sports, role, push_token, photo_url, created_at
		FROM profiles
		WHERE id = $1
	`
	var p models.UserProfile
	var role string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.Location, &p.Sports, &role,
		&p.PushToken, &p.PhotoURL, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.Role = models.Role(role)
	return &p, nil
}

// CreateProfileIfAbsent inserts the profile unless one already exists for the ID.
// It reports whether a row was written.
func (r *UserRepository) CreateProfileIfAbsent(ctx context.Context, p *models.UserProfile) (bool, error) {
	if p.Sports == nil {
		p.Sports = []string{}
	}
	query := `
		INSERT INTO profiles (id, email, display_name, location, sports, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		p.ID, p.Email, p.DisplayName, p.Location, p.Sports, string(p.Role),
	).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create profile: %w", err)
	}
	return true, nil
}

// AddSportInterest appends sport to the interest set if absent and overwrites the location
func (r *UserRepository) AddSportInterest(ctx context.Context, id, sport, location string) error {
	query := `
		UPDATE profiles
		SET sports = CASE WHEN $2 = ANY(sports) THEN sports ELSE array_append(sports, $2) END,
		    location = $3
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id, sport, location)
	if err != nil {
		return fmt.Errorf("failed to update sport interests: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	query := `UPDATE profiles SET push_token = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, pushToken, id)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePhotoURL records the uploaded profile photo location
func (r *UserRepository) UpdatePhotoURL(ctx context.Context, id, photoURL string) error {
	query := `UPDATE profiles SET photo_url = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, photoURL, id)
	if err != nil {
		return fmt.Errorf("failed to update photo url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountProfiles returns the number of user profiles
func (r *UserRepository) CountProfiles(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return total, nil
}
