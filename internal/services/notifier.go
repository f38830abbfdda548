package services

import (
	"context"
	"fmt"
	"time"

	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NotificationStore is the notification persistence used by the notifier
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Notifier tells listing creators that someone joined their match
type Notifier struct {
	notifications NotificationStore
	profiles      ProfileStore
	pusher        Pusher
	now           func() time.Time
}

// NewNotifier creates a new notifier. pusher may be nil, in which case only the
// notification record is written.
func NewNotifier(notifications NotificationStore, profiles ProfileStore, pusher Pusher) *Notifier {
	return &Notifier{
		notifications: notifications,
		profiles:      profiles,
		pusher:        pusher,
		now:           time.Now,
	}
}

// JoinRequest records that the session's user joined l and pushes an alert to
// the creator's device when one is registered
func (n *Notifier) JoinRequest(ctx context.Context, l models.Listing, from session.State) error {
	note := &models.Notification{
		ID:         uuid.New().String(),
		Type:       models.NotificationJoinRequest,
		MatchID:    l.ID,
		Sport:      l.Sport,
		FromUserID: from.UserID(),
		FromEmail:  from.Email(),
		FromName:   from.DisplayName(),
		ToUserID:   l.CreatedBy,
		Read:       false,
		Timestamp:  n.now(),
	}
	if err := n.notifications.CreateNotification(ctx, note); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if n.pusher == nil {
		return nil
	}

	creator, err := n.profiles.GetProfile(ctx, l.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to load creator profile: %w", err)
	}
	if creator.PushToken == nil || *creator.PushToken == "" {
		return nil
	}

	title := "New player joined"
	body := fmt.Sprintf("%s joined your %s match", note.FromName, l.Sport)
	if err := n.pusher.Push(ctx, *creator.PushToken, title, body, map[string]string{"match_id": l.ID}); err != nil {
		return err
	}

	log.Debug().Str("to_user_id", l.CreatedBy).Str("listing_id", l.ID).Msg("Join request pushed")
	return nil
}
