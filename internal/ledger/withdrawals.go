package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/reward-ledger/internal/model"
	"github.com/mmeshcher/reward-ledger/internal/repository"
)

func createWithdrawal(ctx context.Context, tx repository.Tx, accountID, amount int64) (model.Withdrawal, error) {
	if amount <= 0 {
		return model.Withdrawal{}, fmt.Errorf("%w: amount must be positive", repository.ErrInvalidInput)
	}
	return tx.InsertWithdrawal(ctx, accountID, amount)
}

// approveWithdrawal переводит заявку в approved. Для уже одобренной заявки
// возвращает её без изменений и changed == false.
func approveWithdrawal(ctx context.Context, tx repository.Tx, id int64, at time.Time) (model.Withdrawal, bool, error) {
	w, err := tx.LockWithdrawal(ctx, id)
	if err != nil {
		return model.Withdrawal{}, false, err
	}
	if w.Status == model.WithdrawalApproved {
		return w, false, nil
	}

	w, err = tx.MarkWithdrawalApproved(ctx, id, at)
	if err != nil {
		return model.Withdrawal{}, false, err
	}
	return w, true, nil
}

// GetWithdrawal возвращает заявку на вывод.
func (e *Engine) GetWithdrawal(ctx context.Context, id int64) (model.Withdrawal, error) {
	var w model.Withdrawal
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		w, err = tx.GetWithdrawal(ctx, id)
		return err
	})
	return w, err
}

// ListWithdrawals возвращает все заявки в порядке создания.
func (e *Engine) ListWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	var res []model.Withdrawal
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListWithdrawals(ctx)
		return err
	})
	return res, err
}
