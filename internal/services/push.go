package services

import (
	"context"
	"fmt"

	"sports-buddy-backend/internal/config"
	"sports-buddy-backend/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Pusher delivers a push notification to one device
type Pusher interface {
	Push(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}

// APNsPusher sends notifications through Apple Push Notification service
type APNsPusher struct {
	client *apns2.Client
	topic  string
}

// NewAPNsPusher creates a token-authenticated APNs client
func NewAPNsPusher(cfg config.APNsConfig) (*APNsPusher, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsPusher{client: client, topic: cfg.Topic}, nil
}

// Push sends one alert to deviceToken
func (p *APNsPusher) Push(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	pl := payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default")
	for k, v := range data {
		pl = pl.Custom(k, v)
	}

	res, err := p.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       p.topic,
		Payload:     pl,
	})
	if err != nil {
		metrics.PushDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		metrics.PushDeliveries.WithLabelValues("rejected").Inc()
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}

	metrics.PushDeliveries.WithLabelValues("sent").Inc()
	log.Debug().Str("apns_id", res.ApnsID).Msg("Push delivered")
	return nil
}
