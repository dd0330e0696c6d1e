package ledger

import (
	"context"
	"strings"

	"github.com/mmeshcher/reward-ledger/internal/model"
	"github.com/mmeshcher/reward-ledger/internal/repository"
)

// getOrCreateAccount находит счёт или создаёт новый с нулевым балансом.
// Ссылка на самого себя не сохраняется.
func getOrCreateAccount(ctx context.Context, tx repository.Tx, id int64, displayName string, referrerID *int64) (model.Account, bool, error) {
	acc := model.Account{
		ID:          id,
		DisplayName: strings.TrimSpace(displayName),
	}
	if referrerID != nil && *referrerID != id {
		ref := *referrerID
		acc.ReferredBy = &ref
	}
	return tx.CreateAccount(ctx, acc)
}

// GetAccount возвращает счёт пользователя.
func (e *Engine) GetAccount(ctx context.Context, id int64) (model.Account, error) {
	var acc model.Account
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

// ListAccounts возвращает все счета в порядке создания.
func (e *Engine) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		accounts, err = tx.ListAccounts(ctx)
		return err
	})
	return accounts, err
}
