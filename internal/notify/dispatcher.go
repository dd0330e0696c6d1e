// Package notify доставляет уведомления о событиях движка в чаты Telegram.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/reward-ledger/internal/metrics"
	"github.com/mmeshcher/reward-ledger/internal/model"
)

const (
	defaultQueueSize = 256
	sendTimeout      = 10 * time.Second
	drainTimeout     = 5 * time.Second
)

// Sender отправляет текст в чат.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Dispatcher принимает события без блокировки и доставляет их в фоне.
// Ошибка доставки не влияет на операцию, породившую событие.
type Dispatcher struct {
	queue       chan model.Event
	sender      Sender
	renderer    *Renderer
	adminChatID int64
	logger      *zap.Logger
}

// NewDispatcher создаёт диспетчер с очередью заданного размера.
// adminChatID == 0 отключает уведомления администратора.
func NewDispatcher(sender Sender, renderer *Renderer, adminChatID int64, queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if renderer == nil {
		renderer = NewRenderer("en")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:       make(chan model.Event, queueSize),
		sender:      sender,
		renderer:    renderer,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// Publish ставит событие в очередь. При переполнении событие отбрасывается.
func (d *Dispatcher) Publish(ev model.Event) {
	select {
	case d.queue <- ev:
		metrics.NotificationsQueued.Inc()
	default:
		metrics.NotificationsDelivered.WithLabelValues("dropped").Inc()
		d.logger.Warn("notification queue full, event dropped",
			zap.String("eventID", ev.ID), zap.String("kind", string(ev.Kind)))
	}
}

// Run доставляет события до отмены ctx, после чего пытается отправить остаток очереди.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case ev := <-d.queue:
			metrics.NotificationsQueued.Dec()
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case ev := <-d.queue:
			metrics.NotificationsQueued.Dec()
			if ctx.Err() != nil {
				metrics.NotificationsDelivered.WithLabelValues("dropped").Inc()
				continue
			}
			d.deliver(ctx, ev)
		default:
			return
		}
	}
}

// Route возвращает чат-получатель события. ok == false, если получателя нет.
func (d *Dispatcher) Route(ev model.Event) (int64, bool) {
	switch ev.Kind {
	case model.EventNewAccount, model.EventWithdrawalRequested:
		return d.adminChatID, d.adminChatID != 0
	case model.EventReferralBonusGranted, model.EventWithdrawalApproved:
		return ev.AccountID, ev.AccountID != 0
	default:
		return 0, false
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev model.Event) {
	chatID, ok := d.Route(ev)
	if !ok {
		metrics.NotificationsDelivered.WithLabelValues("skipped").Inc()
		return
	}
	text, ok := d.renderer.Render(ev)
	if !ok {
		metrics.NotificationsDelivered.WithLabelValues("skipped").Inc()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, chatID, text); err != nil {
		metrics.NotificationsDelivered.WithLabelValues("failed").Inc()
		d.logger.Warn("notification delivery failed", zap.Error(err),
			zap.String("eventID", ev.ID), zap.String("kind", string(ev.Kind)), zap.Int64("chatID", chatID))
		return
	}
	metrics.NotificationsDelivered.WithLabelValues("sent").Inc()
}
