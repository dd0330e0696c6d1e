// Package repository содержит хранилища счетов, заданий и заявок на вывод.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/reward-ledger/internal/model"
)

var (
	// ErrNotFound возвращается, если запрошенная запись отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrAccountNotFound возвращается, если счёт пользователя не найден.
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)
	// ErrTaskNotFound возвращается, если задание не найдено.
	ErrTaskNotFound = fmt.Errorf("task %w", ErrNotFound)
	// ErrWithdrawalNotFound возвращается, если заявка на вывод не найдена.
	ErrWithdrawalNotFound = fmt.Errorf("withdrawal %w", ErrNotFound)
	// ErrInsufficientBalance возвращается, если операция сделала бы баланс отрицательным.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidInput возвращается при неположительной сумме или отрицательной награде.
	ErrInvalidInput = errors.New("invalid input")
)

// Store открывает атомарные единицы работы над хранилищем.
//
// Функция fn выполняется в одной транзакции: при ошибке ни одно изменение,
// сделанное через Tx, не становится видимым.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx описывает операции, доступные внутри транзакции.
type Tx interface {
	// GetAccount возвращает счёт без блокировки.
	GetAccount(ctx context.Context, id int64) (model.Account, error)
	// LockAccount возвращает счёт и блокирует его до конца транзакции.
	LockAccount(ctx context.Context, id int64) (model.Account, error)
	// CreateAccount создаёт счёт, если его ещё нет. Второе значение сообщает, был ли счёт создан.
	CreateAccount(ctx context.Context, acc model.Account) (model.Account, bool, error)
	// AdjustBalance атомарно прибавляет delta к балансу, не допуская отрицательного значения.
	AdjustBalance(ctx context.Context, id int64, delta int64) (model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// LockTasks сериализует изменения каталога заданий до конца транзакции.
	LockTasks(ctx context.Context) error
	CountTasks(ctx context.Context) (int64, error)
	GetTask(ctx context.Context, id int64) (model.Task, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	// InsertTask сохраняет задание с идентификатором max(id)+1.
	InsertTask(ctx context.Context, title string, reward int64, link string) (model.Task, error)

	InsertWithdrawal(ctx context.Context, accountID, amount int64) (model.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id int64) (model.Withdrawal, error)
	// LockWithdrawal возвращает заявку и блокирует её до конца транзакции.
	LockWithdrawal(ctx context.Context, id int64) (model.Withdrawal, error)
	MarkWithdrawalApproved(ctx context.Context, id int64, at time.Time) (model.Withdrawal, error)
	// PendingWithdrawalTotal возвращает сумму необработанных заявок пользователя.
	PendingWithdrawalTotal(ctx context.Context, accountID int64) (int64, error)
	ListWithdrawals(ctx context.Context) ([]model.Withdrawal, error)
}
