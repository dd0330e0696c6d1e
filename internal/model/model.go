// Package model содержит доменные сущности сервиса начисления наград.
package model

import "time"

// Account представляет пользователя и его бонусный счёт.
type Account struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"user"`
	Balance     int64     `json:"balance"`
	ReferredBy  *int64    `json:"referredBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Task описывает задание, за выполнение которого начисляются монеты.
type Task struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Reward int64  `json:"reward"`
	Link   string `json:"link"`
}

// WithdrawalStatus описывает состояние заявки на вывод.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
)

// Withdrawal описывает заявку на вывод монет. Баланс списывается только при одобрении.
type Withdrawal struct {
	ID         int64            `json:"id"`
	AccountID  int64            `json:"userId"`
	Amount     int64            `json:"amount"`
	Status     WithdrawalStatus `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	ApprovedAt *time.Time       `json:"approvedAt,omitempty"`
}

// Stats содержит агрегированные показатели для админки.
type Stats struct {
	Accounts           int64 `json:"userCount"`
	Withdrawals        int64 `json:"withdrawCount"`
	PendingWithdrawals int64 `json:"pendingCount"`
	TotalBalance       int64 `json:"balanceTotal"`
}

// EventKind определяет тип события движка начислений.
type EventKind string

const (
	EventNewAccount           EventKind = "new_account"
	EventExistingAccount      EventKind = "existing_account"
	EventReferralBonusGranted EventKind = "referral_bonus_granted"
	EventTaskCompleted        EventKind = "task_completed"
	EventWithdrawalRequested  EventKind = "withdrawal_requested"
	EventWithdrawalApproved   EventKind = "withdrawal_approved"
)

// Event описывает изменение состояния, о котором следует уведомить.
//
// AccountID указывает счёт, которого касается событие; для бонуса это пригласивший.
// DisplayName содержит имя пользователя, инициировавшего событие.
type Event struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	AccountID   int64     `json:"accountId"`
	DisplayName string    `json:"user,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	TaskID      int64     `json:"taskId,omitempty"`
	RequestID   int64     `json:"requestId,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}
