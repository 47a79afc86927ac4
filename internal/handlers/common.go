package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/message"

	"github.com/Kerhoff/ShoppingBoT/internal/models"
	"github.com/Kerhoff/ShoppingBoT/internal/service"
	"github.com/Kerhoff/ShoppingBoT/internal/summary"
	"github.com/Kerhoff/ShoppingBoT/internal/telegram"
)

// listHandler carries what every shopping list command needs.
type listHandler struct {
	svc    *service.Service
	logger *logrus.Logger
	listID string
}

// session resolves the Telegram account into a list session, creating the
// user on first contact.
func (h *listHandler) session(ctx context.Context, from *tgbotapi.User) (models.Session, error) {
	if from == nil {
		return models.Session{}, service.ErrUnauthenticated
	}
	id := telegramUserID(from.ID)
	if _, err := h.svc.EnsureUser(ctx, id, "", displayName(from), models.ProviderTelegram); err != nil {
		return models.Session{}, fmt.Errorf("ensure user: %w", err)
	}
	return models.Session{UserID: id, ListID: h.listID}, nil
}

func telegramUserID(id int64) string {
	return "tg:" + strconv.FormatInt(id, 10)
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// resolveItem finds the item shown at 1-based position ref in the list as
// rendered by /list.
func (h *listHandler) resolveItem(ctx context.Context, sess models.Session, ref string) (*models.ShoppingItem, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(ref, "#"))
	if err != nil || n < 1 {
		return nil, errBadReference
	}
	items, err := h.svc.Items(ctx, sess)
	if err != nil {
		return nil, err
	}
	ordered := summary.Ordered(items, h.svc.Language())
	if n > len(ordered) {
		return nil, errBadReference
	}
	return ordered[n-1], nil
}

var errBadReference = errors.New("no item at that position")

func reply(bot telegram.Sender, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := bot.Send(msg)
	return err
}

// escapeMarkdown makes user text literal in a Markdown reply. Legacy
// Markdown cannot escape inside an entity, so the result must stay outside
// *bold* and _italic_ spans.
func escapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// formatMoney renders a whole currency amount with locale grouping.
func formatMoney(p *message.Printer, v float64) string {
	rounded := int64(math.Round(v))
	if rounded < 0 {
		return p.Sprintf("-$%d", -rounded)
	}
	return p.Sprintf("$%d", rounded)
}
