package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/reward-ledger/internal/model"
)

// MemoryStore хранит данные в памяти процесса. Используется без DATABASE_URI и в тестах.
//
// Транзакции выполняются строго последовательно под общим мьютексом, изменения
// копятся в транзакции и применяются только при успешном завершении fn.
type MemoryStore struct {
	mu               sync.Mutex
	accounts         map[int64]model.Account
	tasks            map[int64]model.Task
	withdrawals      map[int64]model.Withdrawal
	nextWithdrawalID int64
	now              func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:         make(map[int64]model.Account),
		tasks:            make(map[int64]model.Task),
		withdrawals:      make(map[int64]model.Withdrawal),
		nextWithdrawalID: 1,
		now:              time.Now,
	}
}

// Close ничего не делает.
func (s *MemoryStore) Close() error { return nil }

// WithTx выполняет fn атомарно относительно остальных транзакций.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:                s,
		accounts:         make(map[int64]model.Account),
		tasks:            make(map[int64]model.Task),
		withdrawals:      make(map[int64]model.Withdrawal),
		nextWithdrawalID: s.nextWithdrawalID,
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, acc := range tx.accounts {
		s.accounts[id] = acc
	}
	for id, task := range tx.tasks {
		s.tasks[id] = task
	}
	for id, w := range tx.withdrawals {
		s.withdrawals[id] = w
	}
	s.nextWithdrawalID = tx.nextWithdrawalID
	return nil
}

type memTx struct {
	s                *MemoryStore
	accounts         map[int64]model.Account
	tasks            map[int64]model.Task
	withdrawals      map[int64]model.Withdrawal
	nextWithdrawalID int64
}

func (t *memTx) account(id int64) (model.Account, bool) {
	if acc, ok := t.accounts[id]; ok {
		return acc, true
	}
	acc, ok := t.s.accounts[id]
	return acc, ok
}

func (t *memTx) task(id int64) (model.Task, bool) {
	if task, ok := t.tasks[id]; ok {
		return task, true
	}
	task, ok := t.s.tasks[id]
	return task, ok
}

func (t *memTx) withdrawal(id int64) (model.Withdrawal, bool) {
	if w, ok := t.withdrawals[id]; ok {
		return w, true
	}
	w, ok := t.s.withdrawals[id]
	return w, ok
}

func (t *memTx) GetAccount(_ context.Context, id int64) (model.Account, error) {
	acc, ok := t.account(id)
	if !ok {
		return model.Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (t *memTx) LockAccount(ctx context.Context, id int64) (model.Account, error) {
	return t.GetAccount(ctx, id)
}

func (t *memTx) CreateAccount(_ context.Context, acc model.Account) (model.Account, bool, error) {
	if existing, ok := t.account(acc.ID); ok {
		return existing, false, nil
	}

	acc.Balance = 0
	acc.CreatedAt = t.s.now()
	t.accounts[acc.ID] = acc
	return acc, true, nil
}

func (t *memTx) AdjustBalance(_ context.Context, id int64, delta int64) (model.Account, error) {
	acc, ok := t.account(id)
	if !ok {
		return model.Account{}, ErrAccountNotFound
	}
	if acc.Balance+delta < 0 {
		return model.Account{}, ErrInsufficientBalance
	}

	acc.Balance += delta
	t.accounts[id] = acc
	return acc, nil
}

func (t *memTx) ListAccounts(_ context.Context) ([]model.Account, error) {
	merged := make(map[int64]model.Account, len(t.s.accounts)+len(t.accounts))
	for id, acc := range t.s.accounts {
		merged[id] = acc
	}
	for id, acc := range t.accounts {
		merged[id] = acc
	}

	res := make([]model.Account, 0, len(merged))
	for _, acc := range merged {
		res = append(res, acc)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (t *memTx) LockTasks(_ context.Context) error { return nil }

func (t *memTx) CountTasks(ctx context.Context) (int64, error) {
	tasks, err := t.ListTasks(ctx)
	return int64(len(tasks)), err
}

func (t *memTx) GetTask(_ context.Context, id int64) (model.Task, error) {
	task, ok := t.task(id)
	if !ok {
		return model.Task{}, ErrTaskNotFound
	}
	return task, nil
}

func (t *memTx) ListTasks(_ context.Context) ([]model.Task, error) {
	merged := make(map[int64]model.Task, len(t.s.tasks)+len(t.tasks))
	for id, task := range t.s.tasks {
		merged[id] = task
	}
	for id, task := range t.tasks {
		merged[id] = task
	}

	res := make([]model.Task, 0, len(merged))
	for _, task := range merged {
		res = append(res, task)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (t *memTx) InsertTask(ctx context.Context, title string, reward int64, link string) (model.Task, error) {
	tasks, err := t.ListTasks(ctx)
	if err != nil {
		return model.Task{}, err
	}

	var maxID int64
	for _, task := range tasks {
		if task.ID > maxID {
			maxID = task.ID
		}
	}

	task := model.Task{ID: maxID + 1, Title: title, Reward: reward, Link: link}
	t.tasks[task.ID] = task
	return task, nil
}

func (t *memTx) InsertWithdrawal(_ context.Context, accountID, amount int64) (model.Withdrawal, error) {
	w := model.Withdrawal{
		ID:        t.nextWithdrawalID,
		AccountID: accountID,
		Amount:    amount,
		Status:    model.WithdrawalPending,
		CreatedAt: t.s.now(),
	}
	t.nextWithdrawalID++
	t.withdrawals[w.ID] = w
	return w, nil
}

func (t *memTx) GetWithdrawal(_ context.Context, id int64) (model.Withdrawal, error) {
	w, ok := t.withdrawal(id)
	if !ok {
		return model.Withdrawal{}, ErrWithdrawalNotFound
	}
	return w, nil
}

func (t *memTx) LockWithdrawal(ctx context.Context, id int64) (model.Withdrawal, error) {
	return t.GetWithdrawal(ctx, id)
}

func (t *memTx) MarkWithdrawalApproved(_ context.Context, id int64, at time.Time) (model.Withdrawal, error) {
	w, ok := t.withdrawal(id)
	if !ok {
		return model.Withdrawal{}, ErrWithdrawalNotFound
	}

	w.Status = model.WithdrawalApproved
	w.ApprovedAt = &at
	t.withdrawals[id] = w
	return w, nil
}

func (t *memTx) PendingWithdrawalTotal(ctx context.Context, accountID int64) (int64, error) {
	all, err := t.ListWithdrawals(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, w := range all {
		if w.AccountID == accountID && w.Status == model.WithdrawalPending {
			total += w.Amount
		}
	}
	return total, nil
}

func (t *memTx) ListWithdrawals(_ context.Context) ([]model.Withdrawal, error) {
	merged := make(map[int64]model.Withdrawal, len(t.s.withdrawals)+len(t.withdrawals))
	for id, w := range t.s.withdrawals {
		merged[id] = w
	}
	for id, w := range t.withdrawals {
		merged[id] = w
	}

	res := make([]model.Withdrawal, 0, len(merged))
	for _, w := range merged {
		res = append(res, w)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
