package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/reward-ledger/internal/metrics"
)

const (
	pollTimeoutSeconds = 30
	commandTimeout     = 15 * time.Second
	recentUpdates      = 1024
)

// BotAPI описывает часть клиента Telegram, которой пользуется Poller.
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Poller получает обновления long polling и обрабатывает каждую команду в отдельной горутине.
type Poller struct {
	api      BotAPI
	commands *Commands
	limiter  *Limiter
	logger   *zap.Logger

	seen *recentIDs
	wg   sync.WaitGroup
}

func NewPoller(api BotAPI, commands *Commands, limiter *Limiter, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		api:      api,
		commands: commands,
		limiter:  limiter,
		logger:   logger,
		seen:     newRecentIDs(recentUpdates),
	}
}

// Run читает обновления до отмены ctx и дожидается завершения начатых команд.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := p.api.GetUpdatesChan(cfg)

	defer p.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			p.dispatch(ctx, upd)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, upd tgbotapi.Update) {
	m := upd.Message
	if m == nil || m.Chat == nil || !m.IsCommand() {
		return
	}
	if !p.seen.add(upd.UpdateID) {
		p.logger.Debug("duplicate update skipped", zap.Int("updateID", upd.UpdateID))
		return
	}

	msg := Message{
		ChatID:  m.Chat.ID,
		Command: m.Command(),
		Args:    m.CommandArguments(),
	}
	if m.From != nil {
		msg.UserName = m.From.UserName
		msg.FirstName = m.From.FirstName
	}

	if !p.limiter.Allow(msg.ChatID) {
		metrics.ChatRateLimited.Inc()
		p.reply(msg.ChatID, replyRateLimited)
		return
	}

	// Начатая команда доводится до конца даже при остановке.
	cmdCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commandTimeout)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		if reply := p.commands.Handle(cmdCtx, msg); reply != "" {
			p.reply(msg.ChatID, reply)
		}
	}()
}

func (p *Poller) reply(chatID int64, text string) {
	if _, err := p.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		p.logger.Warn("chat reply failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

// recentIDs помнит последние id обновлений, чтобы повторная доставка не выполнялась дважды.
type recentIDs struct {
	mu   sync.Mutex
	ids  map[int]struct{}
	ring []int
	next int
}

func newRecentIDs(size int) *recentIDs {
	return &recentIDs{
		ids:  make(map[int]struct{}, size),
		ring: make([]int, 0, size),
	}
}

// add возвращает false, если id уже встречался.
func (r *recentIDs) add(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return false
	}
	if len(r.ring) < cap(r.ring) {
		r.ring = append(r.ring, id)
	} else {
		delete(r.ids, r.ring[r.next])
		r.ring[r.next] = id
		r.next = (r.next + 1) % len(r.ring)
	}
	r.ids[id] = struct{}{}
	return true
}
