package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/ShoppingBoT/internal/telegram"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	helpText := `📚 *ShoppingBoT Help*

*Items:*
• /buy <item> [xN] [price] - Add to the shopping list
• /list - Show pending and purchased items
• /del <n> - Delete item n

*Purchases:*
• /bought <n> - Confirm item n at its planned price
• /bought <n> <amount> - Record what you actually paid
• /unbought <n> - Move item n back to pending
• /buyclear - Clear purchased items

*Editing:*
• /qty <n> <quantity> - Change the quantity
• /paid <n> <amount> - Change the amount paid

*Totals:*
• /total - Planned, actual and difference

_Item numbers are the ones shown by /list._`

	err := reply(bot, message.Chat.ID, helpText)
	if err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent help message")

	return nil
}
