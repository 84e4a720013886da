package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeChat struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeChat) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeChat) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestTelegramAlerterFlushesOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	chat := &fakeChat{}
	a := newTelegramAlerter(chat, 42, time.Millisecond)

	a.Alert("withdrawal 1")
	a.Alert("payment 2")
	a.Close()

	assert.Equal(t, []string{"withdrawal 1", "payment 2"}, chat.texts())

	// alerts after close are ignored
	a.Alert("late")
	assert.Len(t, chat.texts(), 2)
}

func TestTelegramAlerterSpacesMessages(t *testing.T) {
	defer goleak.VerifyNone(t)

	chat := &fakeChat{}
	a := newTelegramAlerter(chat, 42, 30*time.Millisecond)
	defer a.Close()

	start := time.Now()
	a.Alert("one")
	a.Alert("two")

	require.Eventually(t, func() bool { return len(chat.texts()) == 2 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

type fakeFCM struct {
	msgs []*messaging.Message
	err  error
}

func (f *fakeFCM) Send(ctx context.Context, m *messaging.Message) (string, error) {
	f.msgs = append(f.msgs, m)
	return "projects/x/messages/1", f.err
}

func TestFCMPusher(t *testing.T) {
	fcm := &fakeFCM{}
	p := &FCMPusher{client: fcm, topic: "all"}
	ctx := context.Background()

	require.NoError(t, p.PushAll(ctx, "Result", "Kalyan 128-10-370", map[string]string{"bazaarId": "k"}))
	require.Len(t, fcm.msgs, 1)
	assert.Equal(t, "all", fcm.msgs[0].Topic)
	assert.Equal(t, "Result", fcm.msgs[0].Notification.Title)
	assert.Equal(t, "k", fcm.msgs[0].Data["bazaarId"])

	require.NoError(t, p.PushToken(ctx, "", "skip", "no token", nil))
	assert.Len(t, fcm.msgs, 1)

	require.NoError(t, p.PushToken(ctx, "device-token", "Won", "You won 95.00", nil))
	assert.Equal(t, "device-token", fcm.msgs[1].Token)

	fcm.err = errors.New("unavailable")
	assert.Error(t, p.PushAll(ctx, "t", "b", nil))
}

func TestNopImplementations(t *testing.T) {
	var p Pusher = NopPusher{}
	assert.NoError(t, p.PushAll(context.Background(), "t", "b", nil))
	assert.NoError(t, p.PushToken(context.Background(), "tok", "t", "b", nil))

	var a Alerter = NopAlerter{}
	a.Alert("ignored")
}
