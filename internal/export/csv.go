// Package export формирует CSV-выгрузки счетов и заявок на вывод.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mmeshcher/reward-ledger/internal/model"
)

// Kind задаёт тип выгрузки.
type Kind string

const (
	KindAccounts    Kind = "accounts"
	KindWithdrawals Kind = "withdrawals"
)

// ParseKind принимает также старые имена users и withdraws.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "accounts", "users":
		return KindAccounts, true
	case "withdrawals", "withdraws":
		return KindWithdrawals, true
	default:
		return "", false
	}
}

// FileName возвращает имя файла вложения.
func (k Kind) FileName() string {
	return string(k) + ".csv"
}

var (
	accountsHeader    = []string{"id", "user", "balance", "referredBy", "createdAt"}
	withdrawalsHeader = []string{"id", "userId", "amount", "status", "createdAt", "approvedAt"}
)

// WriteAccounts пишет счета в CSV с заголовком.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(accountsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, a := range accounts {
		referredBy := ""
		if a.ReferredBy != nil {
			referredBy = strconv.FormatInt(*a.ReferredBy, 10)
		}
		record := []string{
			strconv.FormatInt(a.ID, 10),
			safeCell(a.DisplayName),
			strconv.FormatInt(a.Balance, 10),
			referredBy,
			formatTime(a.CreatedAt),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write account %d: %w", a.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWithdrawals пишет заявки на вывод в CSV с заголовком.
func WriteWithdrawals(w io.Writer, withdrawals []model.Withdrawal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(withdrawalsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, wd := range withdrawals {
		approvedAt := ""
		if wd.ApprovedAt != nil {
			approvedAt = formatTime(*wd.ApprovedAt)
		}
		record := []string{
			strconv.FormatInt(wd.ID, 10),
			strconv.FormatInt(wd.AccountID, 10),
			strconv.FormatInt(wd.Amount, 10),
			string(wd.Status),
			formatTime(wd.CreatedAt),
			approvedAt,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write withdrawal %d: %w", wd.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// safeCell экранирует значения, которые табличный редактор примет за формулу.
func safeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
