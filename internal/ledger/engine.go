// Package ledger реализует движок начислений: задания, реферальные бонусы и заявки на вывод.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/reward-ledger/internal/metrics"
	"github.com/mmeshcher/reward-ledger/internal/model"
	"github.com/mmeshcher/reward-ledger/internal/repository"
)

// ReferralBonus начисляется пригласившему за каждого нового пользователя.
const ReferralBonus int64 = 5

// Publisher принимает события после фиксации транзакции. Publish не должен блокироваться.
type Publisher interface {
	Publish(event model.Event)
}

// Engine выполняет операции над балансами. Каждая операция выполняется в одной транзакции хранилища,
// события публикуются только после её фиксации.
type Engine struct {
	*Catalog

	store     repository.Store
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine создаёт движок поверх хранилища. publisher может быть nil.
func NewEngine(store repository.Store, publisher Publisher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Catalog:   NewCatalog(store),
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Onboard регистрирует пользователя при первом обращении.
//
// Создание счёта фиксируется отдельно от реферального бонуса: ошибка начисления
// бонуса только логируется и не отменяет регистрацию.
func (e *Engine) Onboard(ctx context.Context, id int64, displayName string, referrerID *int64) (model.Event, error) {
	start := time.Now()

	var (
		acc     model.Account
		created bool
	)
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		acc, created, err = getOrCreateAccount(ctx, tx, id, displayName, referrerID)
		return err
	})
	e.observe("onboard", start, err)
	if err != nil {
		return model.Event{}, fmt.Errorf("onboard: %w", err)
	}

	if !created {
		return e.newEvent(model.EventExistingAccount, acc.ID, acc.DisplayName), nil
	}

	ev := e.newEvent(model.EventNewAccount, acc.ID, acc.DisplayName)
	e.publish(ev)

	if acc.ReferredBy != nil {
		e.grantReferralBonus(ctx, acc)
	}
	return ev, nil
}

func (e *Engine) grantReferralBonus(ctx context.Context, acc model.Account) {
	start := time.Now()
	referrerID := *acc.ReferredBy

	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		_, err := tx.AdjustBalance(ctx, referrerID, ReferralBonus)
		return err
	})
	e.observe("referral_bonus", start, err)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			e.logger.Debug("referrer not found, bonus skipped",
				zap.Int64("accountID", acc.ID), zap.Int64("referrerID", referrerID))
			return
		}
		e.logger.Warn("referral bonus failed", zap.Error(err),
			zap.Int64("accountID", acc.ID), zap.Int64("referrerID", referrerID))
		return
	}

	metrics.CoinsMoved.WithLabelValues("referral").Add(float64(ReferralBonus))
	ev := e.newEvent(model.EventReferralBonusGranted, referrerID, acc.DisplayName)
	ev.Amount = ReferralBonus
	e.publish(ev)
}

// CompleteTask начисляет награду за задание.
func (e *Engine) CompleteTask(ctx context.Context, accountID, taskID int64) (model.Event, error) {
	start := time.Now()

	var (
		task model.Task
		acc  model.Account
	)
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		task, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if _, err = tx.GetAccount(ctx, accountID); err != nil {
			return err
		}
		acc, err = tx.AdjustBalance(ctx, accountID, task.Reward)
		return err
	})
	e.observe("complete_task", start, err)
	if err != nil {
		return model.Event{}, fmt.Errorf("complete task: %w", err)
	}

	metrics.CoinsMoved.WithLabelValues("task").Add(float64(task.Reward))
	ev := e.newEvent(model.EventTaskCompleted, acc.ID, acc.DisplayName)
	ev.Amount = task.Reward
	ev.TaskID = task.ID
	e.publish(ev)
	return ev, nil
}

// RequestWithdrawal создаёт заявку на вывод. Баланс не списывается, но сумма заявки
// вместе с уже ожидающими заявками не может превышать баланс.
func (e *Engine) RequestWithdrawal(ctx context.Context, accountID, amount int64) (model.Withdrawal, error) {
	start := time.Now()

	var (
		acc model.Account
		w   model.Withdrawal
	)
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		if amount <= 0 {
			return fmt.Errorf("%w: amount must be positive", repository.ErrInvalidInput)
		}

		var err error
		acc, err = tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}

		pending, err := tx.PendingWithdrawalTotal(ctx, accountID)
		if err != nil {
			return err
		}
		if amount > acc.Balance-pending {
			return repository.ErrInsufficientBalance
		}

		w, err = createWithdrawal(ctx, tx, accountID, amount)
		return err
	})
	e.observe("request_withdrawal", start, err)
	if err != nil {
		return model.Withdrawal{}, fmt.Errorf("request withdrawal: %w", err)
	}

	ev := e.newEvent(model.EventWithdrawalRequested, acc.ID, acc.DisplayName)
	ev.Amount = w.Amount
	ev.RequestID = w.ID
	e.publish(ev)
	return w, nil
}

// ApproveWithdrawal одобряет заявку и списывает сумму с баланса.
//
// Повторное одобрение ничего не меняет и возвращает changed == false.
// Если счёт владельца отсутствует, заявка одобряется без списания.
func (e *Engine) ApproveWithdrawal(ctx context.Context, id int64) (model.Withdrawal, bool, error) {
	start := time.Now()

	var (
		w       model.Withdrawal
		changed bool
		debited bool
		acc     model.Account
	)
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		debited = false
		w, changed, err = approveWithdrawal(ctx, tx, id, e.now())
		if err != nil || !changed {
			return err
		}

		acc, err = tx.AdjustBalance(ctx, w.AccountID, -w.Amount)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		debited = true
		return nil
	})
	e.observe("approve_withdrawal", start, err)
	if err != nil {
		return model.Withdrawal{}, false, fmt.Errorf("approve withdrawal: %w", err)
	}
	if !changed {
		return w, false, nil
	}

	if debited {
		metrics.CoinsMoved.WithLabelValues("withdrawal").Add(float64(w.Amount))
	} else {
		e.logger.Warn("withdrawal approved without debit, account missing",
			zap.Int64("withdrawalID", w.ID), zap.Int64("accountID", w.AccountID))
	}

	ev := e.newEvent(model.EventWithdrawalApproved, w.AccountID, acc.DisplayName)
	ev.Amount = w.Amount
	ev.RequestID = w.ID
	e.publish(ev)
	return w, true, nil
}

// Stats возвращает агрегаты по счетам и заявкам.
func (e *Engine) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		st = model.Stats{}

		accounts, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		st.Accounts = int64(len(accounts))
		for _, a := range accounts {
			st.TotalBalance += a.Balance
		}

		withdrawals, err := tx.ListWithdrawals(ctx)
		if err != nil {
			return err
		}
		st.Withdrawals = int64(len(withdrawals))
		for _, w := range withdrawals {
			if w.Status == model.WithdrawalPending {
				st.PendingWithdrawals++
			}
		}
		return nil
	})
	if err != nil {
		return model.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func (e *Engine) newEvent(kind model.EventKind, accountID int64, displayName string) model.Event {
	return model.Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		AccountID:   accountID,
		DisplayName: displayName,
		OccurredAt:  e.now(),
	}
}

func (e *Engine) publish(ev model.Event) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(ev)
}

func (e *Engine) observe(op string, start time.Time, err error) {
	metrics.LedgerOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.LedgerOperations.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, repository.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
