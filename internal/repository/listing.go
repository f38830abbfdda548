package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sports-buddy-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangesChannel is the LISTEN/NOTIFY channel fed by the listings trigger
const ChangesChannel = "listings_changed"

const listingColumns = `
	id, sport, city, area, skill, match_date, match_time, duration_hours,
	description, venue_details, equipment_provided, parking_available, changing_rooms,
	players_needed, participants, created_by, created_by_email, created_at, status
`

// ListingRepository handles database operations for match listings
type ListingRepository struct {
	db *pgxpool.Pool
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create inserts a new listing; created_at is assigned by the server
func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	if l.Participants == nil {
		l.Participants = []string{}
	}
	query := `
		INSERT INTO listings (
			id, sport, city, area, skill, match_date, match_time, duration_hours,
			description, venue_details, equipment_provided, parking_available, changing_rooms,
			players_needed, participants, created_by, created_by_email, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		l.ID, l.Sport, l.City, l.Area, l.Skill, l.Date, l.Time, l.DurationHours,
		l.Description, l.VenueDetails, l.EquipmentProvided, l.ParkingAvailable, l.ChangingRooms,
		l.PlayersNeeded, l.Participants, l.CreatedBy, l.CreatedByEmail, l.Status,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// GetByID retrieves a listing by ID
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	l, err := scanListing(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// AddParticipant adds userID to the participant set in a single conditional
// update, so concurrent joins cannot push the listing past players_needed.
func (r *ListingRepository) AddParticipant(ctx context.Context, id, userID string) (*models.Listing, error) {
	query := `
		UPDATE listings
		SET participants = array_append(participants, $2)
		WHERE id = $1
		  AND NOT ($2 = ANY(participants))
		  AND cardinality(participants) < players_needed
		RETURNING ` + listingColumns
	l, err := scanListing(r.db.QueryRow(ctx, query, id, userID))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}

	// Nothing was updated; find out which condition failed.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.HasParticipant(userID) {
		return current, ErrAlreadyJoined
	}
	return current, ErrListingFull
}

// Delete deletes a listing by ID
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM listings WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every listing, newest first
func (r *ListingRepository) ListAll(ctx context.Context) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY created_at DESC, id`
	return r.list(ctx, query)
}

// ListByCreator returns listings created by userID, newest first
func (r *ListingRepository) ListByCreator(ctx context.Context, userID string) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE created_by = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, userID)
}

func (r *ListingRepository) list(ctx context.Context, query string, args ...any) ([]models.Listing, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return listings, nil
}

// Count returns the number of listings
func (r *ListingRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return total, nil
}

// CountCreatedBetween counts listings with from <= created_at < to
func (r *ListingRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM listings WHERE created_at >= $1 AND created_at < $2`
	var total int
	if err := r.db.QueryRow(ctx, query, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count listings in range: %w", err)
	}
	return total, nil
}

// Watch opens a dedicated connection listening on ChangesChannel
func (r *ListingRepository) Watch(ctx context.Context) (Watcher, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+ChangesChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", ChangesChannel, err)
	}
	return &ChangeWatcher{conn: conn}, nil
}

// ChangeWatcher delivers one wake-up per listings change notification
type ChangeWatcher struct {
	conn *pgxpool.Conn
}

// Wait blocks until the next change notification or ctx is done
func (w *ChangeWatcher) Wait(ctx context.Context) error {
	if _, err := w.conn.Conn().WaitForNotification(ctx); err != nil {
		return fmt.Errorf("failed to wait for listing changes: %w", err)
	}
	return nil
}

// Close releases the listen connection. The connection is destroyed rather than
// returned to the pool so no LISTEN state leaks to other users.
func (w *ChangeWatcher) Close() {
	w.conn.Hijack().Close(context.Background())
}

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.Sport, &l.City, &l.Area, &l.Skill, &l.Date, &l.Time, &l.DurationHours,
		&l.Description, &l.VenueDetails, &l.EquipmentProvided, &l.ParkingAvailable, &l.ChangingRooms,
		&l.PlayersNeeded, &l.Participants, &l.CreatedBy, &l.CreatedByEmail, &l.CreatedAt, &l.Status,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
