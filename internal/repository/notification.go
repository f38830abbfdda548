package repository

import (
	"context"
	"fmt"

	"sports-buddy-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationRepository stores notification records
type NotificationRepository struct {
	db *pgxpool.Pool
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification inserts a notification; the timestamp is assigned by the server
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (
			id, type, match_id, sport, from_user_id, from_user_email, from_user_name, to_user_id, read
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		n.ID, n.Type, n.MatchID, n.Sport, n.FromUserID, n.FromEmail, n.FromName, n.ToUserID, n.Read,
	).Scan(&n.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
