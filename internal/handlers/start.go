package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/ShoppingBoT/internal/service"
	"github.com/Kerhoff/ShoppingBoT/internal/telegram"
)

// StartHandler handles the /start command
type StartHandler struct {
	listHandler
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, listID string, logger *logrus.Logger) *StartHandler {
	return &StartHandler{listHandler{svc: svc, logger: logger, listID: listID}}
}

// Handle processes the /start command
func (h *StartHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	// Registers the account so the first list command finds it.
	if _, err := h.session(context.Background(), message.From); err != nil {
		return err
	}

	welcomeText := `
🛒 *Welcome to ShoppingBoT!*

I keep your shopping list and tell you how the spending compares with the plan.

*Getting started:*
• /buy <item> [xN] [price] - Add an item
• /list - Show the list with numbers
• /bought <n> [amount] - Mark item n as purchased
• /total - Planned vs. actual spending
• /help - Show every command

Get started by adding your first item with /buy!
	`

	err := reply(bot, message.Chat.ID, welcomeText)
	if err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent start message")

	return nil
}
