package notify

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmeshcher/reward-ledger/internal/model"
)

const (
	keyNewAccount          = "notify.new_account"
	keyReferralBonus       = "notify.referral_bonus"
	keyWithdrawalRequested = "notify.withdrawal_requested"
	keyWithdrawalApproved  = "notify.withdrawal_approved"
)

// Числа передаются строками: printer форматирует %d по локали (1,500 или бенгальские цифры).
func init() {
	en := language.English
	message.SetString(en, keyNewAccount, "New user joined: @%s (%s)")
	message.SetString(en, keyReferralBonus, "🎁 You got %[1]s coins from @%[2]s's referral!")
	message.SetString(en, keyWithdrawalRequested, "💸 Withdraw request: @%s → %s coins (id: %s)")
	message.SetString(en, keyWithdrawalApproved, "✅ Your withdraw of %s coins has been approved!")

	bn := language.Bengali
	message.SetString(bn, keyNewAccount, "নতুন ইউজার যোগ হয়েছে: @%s (%s)")
	message.SetString(bn, keyReferralBonus, "🎁 @%[2]s এর রেফারেল থেকে আপনি %[1]s কয়েন পেয়েছেন!")
	message.SetString(bn, keyWithdrawalRequested, "💸 উইথড্র অনুরোধ: @%s → %s কয়েন (id: %s)")
	message.SetString(bn, keyWithdrawalApproved, "✅ আপনার %s কয়েনের উইথড্র অনুমোদিত হয়েছে!")
}

// Renderer превращает события движка в текст уведомления на выбранном языке.
type Renderer struct {
	printer *message.Printer
}

// NewRenderer создаёт рендерер. Неизвестный язык заменяется английским.
func NewRenderer(lang string) *Renderer {
	tag := language.English
	if strings.EqualFold(strings.TrimSpace(lang), "bn") {
		tag = language.Bengali
	}
	return &Renderer{printer: message.NewPrinter(tag)}
}

// Render возвращает текст уведомления. ok == false, если событие не требует уведомления.
func (r *Renderer) Render(ev model.Event) (string, bool) {
	name := displayName(ev)
	amount := strconv.FormatInt(ev.Amount, 10)

	switch ev.Kind {
	case model.EventNewAccount:
		return r.printer.Sprintf(keyNewAccount, name, strconv.FormatInt(ev.AccountID, 10)), true
	case model.EventReferralBonusGranted:
		return r.printer.Sprintf(keyReferralBonus, amount, name), true
	case model.EventWithdrawalRequested:
		return r.printer.Sprintf(keyWithdrawalRequested, name, amount, strconv.FormatInt(ev.RequestID, 10)), true
	case model.EventWithdrawalApproved:
		return r.printer.Sprintf(keyWithdrawalApproved, amount), true
	default:
		return "", false
	}
}

func displayName(ev model.Event) string {
	if name := strings.TrimPrefix(strings.TrimSpace(ev.DisplayName), "@"); name != "" {
		return name
	}
	return strconv.FormatInt(ev.AccountID, 10)
}
