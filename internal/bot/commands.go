// Package bot реализует чат-команды поверх движка начислений.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/reward-ledger/internal/metrics"
	"github.com/mmeshcher/reward-ledger/internal/model"
	"github.com/mmeshcher/reward-ledger/internal/repository"
	"github.com/mmeshcher/reward-ledger/internal/validation"
)

const fallbackBotUsername = "YOUR_BOT_USERNAME"

const (
	replyUserNotFound  = "❌ User not found"
	replyInvalidTask   = "❌ Invalid task ID"
	replyNotEnough     = "⚠️ Not enough balance!"
	replyWithdrawSent  = "✅ Withdraw request sent!"
	replyWithdrawUsage = "Usage: /withdraw <amount>"
	replyInternalError = "⚠️ Something went wrong, please try again later."
	replyRateLimited   = "⏳ Too many commands, please slow down."
)

const menuText = "🏠 Main Menu:\n" +
	"/tasks - Available tasks\n" +
	"/wallet - Check wallet\n" +
	"/refer - Invite & earn\n" +
	"/withdraw <amount> - Request withdraw"

// Ledger описывает операции движка, доступные из чата.
type Ledger interface {
	Onboard(ctx context.Context, id int64, displayName string, referrerID *int64) (model.Event, error)
	CompleteTask(ctx context.Context, accountID, taskID int64) (model.Event, error)
	RequestWithdrawal(ctx context.Context, accountID, amount int64) (model.Withdrawal, error)
	GetAccount(ctx context.Context, id int64) (model.Account, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Message содержит входящую команду чата.
type Message struct {
	ChatID    int64
	UserName  string
	FirstName string
	Command   string
	Args      string
}

// DisplayName выбирает имя для приветствия и уведомлений.
func (m Message) DisplayName() string {
	if m.UserName != "" {
		return m.UserName
	}
	if m.FirstName != "" {
		return m.FirstName
	}
	return strconv.FormatInt(m.ChatID, 10)
}

// Commands превращает команды чата в операции движка и текст ответа.
type Commands struct {
	ledger      Ledger
	botUsername string
	adminChatID int64
	logger      *zap.Logger
}

func NewCommands(ledger Ledger, botUsername string, adminChatID int64, logger *zap.Logger) *Commands {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Commands{
		ledger:      ledger,
		botUsername: botUsername,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// SetBotUsername задаёт имя бота для реферальных ссылок, если оно не было настроено.
func (c *Commands) SetBotUsername(name string) {
	if c.botUsername == "" {
		c.botUsername = name
	}
}

// Handle выполняет команду. Пустая строка означает, что ответ не нужен.
func (c *Commands) Handle(ctx context.Context, msg Message) string {
	cmd := strings.ToLower(msg.Command)

	var reply string
	switch cmd {
	case "start":
		reply = c.start(ctx, msg)
	case "menu":
		reply = menuText
	case "tasks":
		reply = c.tasks(ctx)
	case "done":
		reply = c.done(ctx, msg)
	case "wallet":
		reply = c.wallet(ctx, msg)
	case "withdraw":
		reply = c.withdraw(ctx, msg)
	case "refer":
		reply = c.refer(msg)
	case "stats":
		reply = c.stats(ctx, msg)
	default:
		cmd = "unknown"
	}
	metrics.ChatCommands.WithLabelValues(cmd).Inc()
	return reply
}

func (c *Commands) start(ctx context.Context, msg Message) string {
	name := msg.DisplayName()
	if _, err := c.ledger.Onboard(ctx, msg.ChatID, name, validation.ParseReferrer(msg.Args)); err != nil {
		return c.internalError("start", msg, err)
	}
	return fmt.Sprintf("👋 Hi %s! Use /menu to see options.", name)
}

func (c *Commands) tasks(ctx context.Context) string {
	tasks, err := c.ledger.ListTasks(ctx)
	if err != nil {
		return c.internalError("tasks", Message{}, err)
	}

	var b strings.Builder
	b.WriteString("🎯 Available Tasks:\n\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "🧩 %d. %s — Reward: %d coins\n", t.ID, t.Title, t.Reward)
	}
	b.WriteString("\nAfter completing, send /done <task_id>")
	return b.String()
}

func (c *Commands) done(ctx context.Context, msg Message) string {
	taskID, err := validation.ParsePositiveInt(msg.Args)
	if err != nil {
		return replyInvalidTask
	}

	ev, err := c.ledger.CompleteTask(ctx, msg.ChatID, taskID)
	switch {
	case err == nil:
		return fmt.Sprintf("✅ You earned %d coins!", ev.Amount)
	case errors.Is(err, repository.ErrTaskNotFound):
		return replyInvalidTask
	case errors.Is(err, repository.ErrAccountNotFound):
		return replyUserNotFound
	default:
		return c.internalError("done", msg, err)
	}
}

func (c *Commands) wallet(ctx context.Context, msg Message) string {
	acc, err := c.ledger.GetAccount(ctx, msg.ChatID)
	switch {
	case err == nil:
		return fmt.Sprintf("💼 Your Balance: %d coins", acc.Balance)
	case errors.Is(err, repository.ErrNotFound):
		return replyUserNotFound
	default:
		return c.internalError("wallet", msg, err)
	}
}

func (c *Commands) withdraw(ctx context.Context, msg Message) string {
	amount, err := validation.ParsePositiveInt(msg.Args)
	if err != nil {
		return replyWithdrawUsage
	}

	_, err = c.ledger.RequestWithdrawal(ctx, msg.ChatID, amount)
	switch {
	case err == nil:
		return replyWithdrawSent
	case errors.Is(err, repository.ErrAccountNotFound):
		return replyUserNotFound
	case errors.Is(err, repository.ErrInsufficientBalance):
		return replyNotEnough
	case errors.Is(err, repository.ErrInvalidInput):
		return replyWithdrawUsage
	default:
		return c.internalError("withdraw", msg, err)
	}
}

func (c *Commands) refer(msg Message) string {
	username := c.botUsername
	if username == "" {
		username = fallbackBotUsername
	}
	return fmt.Sprintf("👥 Invite & Earn! Share this link:\nhttps://t.me/%s?start=%d", username, msg.ChatID)
}

func (c *Commands) stats(ctx context.Context, msg Message) string {
	if c.adminChatID == 0 || msg.ChatID != c.adminChatID {
		return ""
	}
	st, err := c.ledger.Stats(ctx)
	if err != nil {
		return c.internalError("stats", msg, err)
	}
	return fmt.Sprintf("📊 Users: %d\nWithdraws: %d", st.Accounts, st.Withdrawals)
}

func (c *Commands) internalError(cmd string, msg Message, err error) string {
	c.logger.Error("chat command failed", zap.Error(err),
		zap.String("command", cmd), zap.Int64("chatID", msg.ChatID))
	return replyInternalError
}
