package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	updates chan tgbotapi.Update

	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	stopped bool
}

func newFakeBotAPI() *fakeBotAPI {
	return &fakeBotAPI{updates: make(chan tgbotapi.Update, 16)}
}

func (f *fakeBotAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBotAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBotAPI) replies() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func commandUpdate(updateID int, chatID int64, username, text string) tgbotapi.Update {
	cmdLen := len(text)
	for i, ch := range text {
		if ch == ' ' {
			cmdLen = i
			break
		}
	}
	return tgbotapi.Update{
		UpdateID: updateID,
		Message: &tgbotapi.Message{
			MessageID: updateID,
			Text:      text,
			Chat:      &tgbotapi.Chat{ID: chatID},
			From:      &tgbotapi.User{ID: chatID, UserName: username},
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
		},
	}
}

func TestPoller_HandlesCommands(t *testing.T) {
	c, engine := newTestCommands(t)
	api := newFakeBotAPI()
	p := NewPoller(api, c, NewLimiter(0, 1), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	api.updates <- commandUpdate(1, 42, "alice", "/start")
	require.Eventually(t, func() bool { return len(api.replies()) == 1 }, time.Second, 5*time.Millisecond)

	api.updates <- commandUpdate(2, 42, "alice", "/done 1")
	// повторная доставка того же обновления игнорируется
	api.updates <- commandUpdate(2, 42, "alice", "/done 1")
	api.updates <- tgbotapi.Update{UpdateID: 3, Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 42}}}
	require.Eventually(t, func() bool { return len(api.replies()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	replies := api.replies()
	assert.Equal(t, int64(42), replies[0].ChatID)
	assert.Equal(t, "👋 Hi alice! Use /menu to see options.", replies[0].Text)
	assert.Equal(t, "✅ You earned 10 coins!", replies[1].Text)

	acc, err := engine.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(10), acc.Balance)

	api.mu.Lock()
	assert.True(t, api.stopped)
	api.mu.Unlock()
}

func TestPoller_RateLimited(t *testing.T) {
	c, _ := newTestCommands(t)
	api := newFakeBotAPI()
	p := NewPoller(api, c, NewLimiter(0.001, 1), nil)

	p.dispatch(context.Background(), commandUpdate(1, 42, "alice", "/menu"))
	p.dispatch(context.Background(), commandUpdate(2, 42, "alice", "/menu"))
	p.wg.Wait()

	replies := api.replies()
	require.Len(t, replies, 2)
	texts := []string{replies[0].Text, replies[1].Text}
	assert.Contains(t, texts, menuText)
	assert.Contains(t, texts, replyRateLimited)
}

func TestPoller_ClosedUpdatesChannel(t *testing.T) {
	c, _ := newTestCommands(t)
	api := newFakeBotAPI()
	close(api.updates)

	p := NewPoller(api, c, nil, nil)
	assert.NoError(t, p.Run(context.Background()))
}
