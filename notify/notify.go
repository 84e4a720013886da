package notify

import (
	"context"

	"go.uber.org/zap"
)

// Pusher delivers mobile push notifications.
type Pusher interface {
	// PushAll sends to every installed app via the broadcast topic.
	PushAll(ctx context.Context, title, body string, data map[string]string) error
	// PushToken sends to a single device.
	PushToken(ctx context.Context, token, title, body string, data map[string]string) error
}

// Alerter notifies the operators' chat. Alert must not block.
type Alerter interface {
	Alert(text string)
}

// NopPusher is used when Firebase is not configured.
type NopPusher struct{}

func (NopPusher) PushAll(ctx context.Context, title, body string, data map[string]string) error {
	zap.S().Debugf("🔕 Push disabled, skipping broadcast %q", title)
	return nil
}

func (NopPusher) PushToken(ctx context.Context, token, title, body string, data map[string]string) error {
	return nil
}

// NopAlerter is used when no Telegram bot is configured.
type NopAlerter struct{}

func (NopAlerter) Alert(string) {}
