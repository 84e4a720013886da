package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sitaraServer/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// chatSender is satisfied by *tgbotapi.BotAPI.
type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter queues operator alerts and sends them to one chat,
// spaced out to stay under Telegram's per-chat rate limit.
type TelegramAlerter struct {
	bot      chatSender
	chatID   int64
	interval time.Duration

	queue  chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTelegramAlerter creates a new Telegram alerter
func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	zap.S().Infof("✅ Telegram alerts enabled as @%s (chat %d)", bot.Self.UserName, chatID)
	return newTelegramAlerter(bot, chatID, config.TelegramSendInterval), nil
}

func newTelegramAlerter(bot chatSender, chatID int64, interval time.Duration) *TelegramAlerter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &TelegramAlerter{
		bot:      bot,
		chatID:   chatID,
		interval: interval,
		queue:    make(chan string, config.TelegramQueueCapacity),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.wg.Add(1)
	go a.messageSender()
	return a
}

// Alert queues text. When the queue is full the alert is dropped.
func (a *TelegramAlerter) Alert(text string) {
	select {
	case <-a.ctx.Done():
		return
	default:
	}

	select {
	case a.queue <- text:
	default:
		zap.S().Warn("⚠️  Telegram queue full, dropping alert")
	}
}

// Close flushes queued alerts and stops the sender
func (a *TelegramAlerter) Close() {
	a.cancel()
	a.wg.Wait()
}

// messageSender runs in background and sends queued messages with proper intervals
func (a *TelegramAlerter) messageSender() {
	defer a.wg.Done()

	var lastSend time.Time
	for {
		select {
		case <-a.ctx.Done():
			// drain what is already queued
			for {
				select {
				case text := <-a.queue:
					a.send(text)
				default:
					return
				}
			}

		case text := <-a.queue:
			if wait := a.interval - time.Since(lastSend); wait > 0 {
				select {
				case <-time.After(wait):
				case <-a.ctx.Done():
				}
			}
			a.send(text)
			lastSend = time.Now()
		}
	}
}

func (a *TelegramAlerter) send(text string) {
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := a.bot.Send(msg); err != nil {
		zap.S().Warnf("⚠️  Failed to send Telegram alert: %v", err)
	}
}
