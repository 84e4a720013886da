package notify

import (
	"context"
	"fmt"

	"sitaraServer/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// messageSender is the part of the FCM client the pusher uses.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMPusher sends notifications through Firebase Cloud Messaging
type FCMPusher struct {
	client messageSender
	topic  string
}

func NewFCMPusher(ctx context.Context, app *firebase.App) (*FCMPusher, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	zap.S().Info("✅ FCM push enabled")
	return &FCMPusher{client: client, topic: config.BroadcastTopic}, nil
}

func buildMessage(title, body string, data map[string]string) *messaging.Message {
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
}

func (p *FCMPusher) PushAll(ctx context.Context, title, body string, data map[string]string) error {
	msg := buildMessage(title, body, data)
	msg.Topic = p.topic

	id, err := p.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send topic push: %w", err)
	}
	zap.S().Infof("📣 Push sent to topic %s: %s", p.topic, id)
	return nil
}

func (p *FCMPusher) PushToken(ctx context.Context, token, title, body string, data map[string]string) error {
	if token == "" {
		return nil
	}

	msg := buildMessage(title, body, data)
	msg.Token = token

	if _, err := p.client.Send(ctx, msg); err != nil {
		if messaging.IsRegistrationTokenNotRegistered(err) {
			zap.S().Debugf("⚠️  Stale FCM token skipped")
			return nil
		}
		return fmt.Errorf("failed to send device push: %w", err)
	}
	return nil
}
