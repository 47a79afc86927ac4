package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
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

var quantityRegex = regexp.MustCompile(`^[xX](\d+)$`)

// parseBuyArgs splits "/buy" arguments into the new item form. The name
// may be followed by an "xN" quantity and a planned unit price, in either
// order.
func parseBuyArgs(args []string) service.NewItemInput {
	in := service.NewItemInput{Quantity: 1}
	rest := args
	var sawQty, sawPrice bool
	for len(rest) > 1 {
		last := rest[len(rest)-1]
		if m := quantityRegex.FindStringSubmatch(last); m != nil && !sawQty {
			q, err := strconv.Atoi(m[1])
			if err != nil {
				break
			}
			in.Quantity = q
			sawQty = true
		} else if v, err := strconv.ParseFloat(last, 64); err == nil && !sawPrice {
			in.PlannedValue = v
			sawPrice = true
		} else {
			break
		}
		rest = rest[:len(rest)-1]
	}
	in.Name = strings.Join(rest, " ")
	return in
}

// ---------------------------------------------------------------------------
// BuyAddHandler – /buy <item> [xN] [price]
// ---------------------------------------------------------------------------

// BuyAddHandler handles the /buy command to add an item to the shopping list.
type BuyAddHandler struct {
	listHandler
}

// NewBuyAddHandler creates a new BuyAddHandler.
func NewBuyAddHandler(svc *service.Service, listID string, logger *logrus.Logger) *BuyAddHandler {
	return &BuyAddHandler{listHandler{svc: svc, logger: logger, listID: listID}}
}

// Handle processes the /buy command.
func (h *BuyAddHandler) Handle(bot telegram.Sender, msg *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, msg.Chat.ID,
			"❌ Please provide an item name.\n\n"+
				"*Usage:*\n"+
				"`/buy Milk x2 3000`\n"+
				"`/buy Whole wheat bread`")
	}

	in := parseBuyArgs(args)
	if err := in.Validate(); err != nil {
		var sb strings.Builder
		sb.WriteString("❌ Could not add the item:\n")
		for _, fe := range service.FieldErrors(err) {
			sb.WriteString("• " + fe.Message + "\n")
		}
		return reply(bot, msg.Chat.ID, sb.String())
	}

	ctx := context.Background()
	sess, err := h.session(ctx, msg.From)
	if err != nil {
		return err
	}

	item, err := h.svc.CreateItem(ctx, sess, in)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	p := message.NewPrinter(h.svc.Language())
	var quantityDisplay string
	if item.Quantity != 1 {
		quantityDisplay = fmt.Sprintf(" (x%d)", item.Quantity)
	}
	return reply(bot, msg.Chat.ID, fmt.Sprintf("🛒 *Added to shopping list!*\n\n⬜ %s%s — %s",
		escapeMarkdown(item.Name), quantityDisplay, formatMoney(p, item.PlannedValue)))
}

// ---------------------------------------------------------------------------
// BuyListHandler – /list
// ---------------------------------------------------------------------------

// BuyListHandler handles the /list command, showing pending and purchased
// items numbered for the other commands, followed by the totals.
type BuyListHandler struct {
	listHandler
}

// NewBuyListHandler creates a new BuyListHandler.
func NewBuyListHandler(svc *service.Service, listID string, logger *logrus.Logger) *BuyListHandler {
	return &BuyListHandler{listHandler{svc: svc, logger: logger, listID: listID}}
}

// Handle processes the /list command.
func (h *BuyListHandler) Handle(bot telegram.Sender, msg *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	sess, err := h.session(ctx, msg.From)
	if err != nil {
		return err
	}

	overview, err := h.svc.Overview(ctx, sess)
	if err != nil {
		return fmt.Errorf("get overview: %w", err)
	}

	if overview.Summary.Items == 0 {
		return reply(bot, msg.Chat.ID, "🛒 *Shopping list is empty!*\n\nAdd items with `/buy <item>`")
	}

	return reply(bot, msg.Chat.ID, renderOverview(message.NewPrinter(h.svc.Language()), overview))
}

func renderOverview(p *message.Printer, o summary.Overview) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n")

	n := 0
	line := func(item *models.ShoppingItem) {
		n++
		var quantityDisplay string
		if item.Quantity != 1 {
			quantityDisplay = fmt.Sprintf(" x%d", item.Quantity)
		}
		if item.Purchased {
			sb.WriteString(fmt.Sprintf("%d. ✅ %s%s — %s (planned %s)\n",
				n, escapeMarkdown(item.Name), quantityDisplay, formatMoney(p, item.ActualValue), formatMoney(p, item.PlannedValue)))
		} else {
			sb.WriteString(fmt.Sprintf("%d. ⬜ %s%s — %s\n",
				n, escapeMarkdown(item.Name), quantityDisplay, formatMoney(p, item.PlannedValue)))
		}
	}

	sb.WriteString(fmt.Sprintf("\n*Pending (%d)*\n", len(o.Pending)))
	for _, item := range o.Pending {
		line(item)
	}
	if len(o.Purchased) > 0 {
		sb.WriteString(fmt.Sprintf("\n*Purchased (%d)*\n", len(o.Purchased)))
		for _, item := range o.Purchased {
			line(item)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(renderSummary(p, o.Summary))
	return sb.String()
}

func renderSummary(p *message.Printer, s summary.Summary) string {
	budget := "under budget"
	if !s.UnderBudget() {
		budget = "over budget"
	}
	return fmt.Sprintf("📋 Planned: *%s*\n💵 Actual: *%s*\n📉 Difference: *%s* _(%s)_",
		formatMoney(p, s.TotalPlanned), formatMoney(p, s.TotalActual), formatMoney(p, s.Difference), budget)
}

// ---------------------------------------------------------------------------
// TotalHandler – /total
// ---------------------------------------------------------------------------

// TotalHandler handles the /total command.
type TotalHandler struct {
	listHandler
}

// NewTotalHandler creates a new TotalHandler.
func NewTotalHandler(svc *service.Service, listID string, logger *logrus.Logger) *TotalHandler {
	return &TotalHandler{listHandler{svc: svc, logger: logger, listID: listID}}
}

// Handle processes the /total command.
func (h *TotalHandler) Handle(bot telegram.Sender, msg *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	sess, err := h.session(ctx, msg.From)
	if err != nil {
		return err
	}

	overview, err := h.svc.Overview(ctx, sess)
	if err != nil {
		return fmt.Errorf("get overview: %w", err)
	}

	return reply(bot, msg.Chat.ID, renderSummary(message.NewPrinter(h.svc.Language()), overview.Summary))
}

// ---------------------------------------------------------------------------
// BoughtHandler – /bought <n> [value]
// ---------------------------------------------------------------------------

// Callback data prefixes for the purchase confirmation keyboard.
const (
	CallbackConfirm = "confirm"
	CallbackCancel  = "cancel"
)

// BoughtHandler handles the /bought command. With an amount the purchase
// is confirmed at once; without one the bot asks to confirm the planned
// value.
type BoughtHandler struct {
	listHandler
}

// NewBoughtHandler creates a new BoughtHandler.
func NewBoughtHandler(svc *service.Service, listID string, logger *logrus.Logger) *BoughtHandler {
	return &BoughtHandler{listHandler{svc: svc, logger: logger, listID: listID}}
}

// Handle processes the /bought command.
func (h *BoughtHandler) Handle(bot telegram.Sender, msg *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, msg.Chat.ID, "❌ Please provide an item number.\nUsage: `/bought 3` or `/bought 3 2800`")
	}

	ctx := context.Background()
	sess, err := h.session(ctx, msg.From)
	if err != nil {
		return err
	}

	item, err := h.resolveItem(ctx, sess, args[0])
	if err != nil {
		return h.replyLookupError(bot, msg.Chat.ID, args[0], err)
	}

	prefill, err := h.svc.BeginPurchase(ctx, sess, item.ID)
	if errors.Is(err, service.ErrAlreadyPurchased) {
		return reply(bot, msg.Chat.ID, fmt.Sprintf("ℹ️ %s is already purchased.", escapeMarkdown(item.Name)))
	}
	if err != nil {
		return fmt.Errorf("begin purchase: %w", err)
	}

	p := message.NewPrinter(h.svc.Language())

	if len(args) > 1 {
		amount := service.ParseAmount(args[1])
		value, err := h.svc.ConfirmPurchase(ctx, sess, item.ID, &amount)
		if err != nil {
			return fmt.Errorf("confirm purchase: %w", err)
		}
		return reply(bot, msg.Chat.ID, fmt.Sprintf("✅ %s purchased for %s", escapeMarkdown(item.Name), formatMoney(p, value)))
	}

	text := fmt.Sprintf("🧾 *Confirm purchase*\n\n%s\nPlanned: %s\n\n_Send_ `/bought %s <amount>` _to record a different amount._",
		escapeMarkdown(item.Name), formatMoney(p, prefill), args[0])
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeMarkdown
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+formatMoney(p, prefill), CallbackConfirm+":"+item.ID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", CallbackCancel+":"+item.ID),
		),
	)
	_, err = bot.Send(out)
	return err
}

func (h *listHandler) replyLookupError(bot telegram.Sender, chatID int64, ref string, err error) error {
	if errors.Is(err, errBadReference) {
		return reply(bot, chatID, fmt.Sprintf("❌ There is no item %s. Use /list to see the numbers.", escapeMarkdown(ref)))
	}
	return err
}

// PurchaseCallbackHandler finishes a purchase confirmation started by
// /bought from the inline keyboard.
type PurchaseCallbackHandler struct {
	listHandler
}

// NewPurchaseCallbackHandler creates a new PurchaseCallbackHandler.
func NewPurchaseCallbackHandler(svc *service.Service, listID string, logger *logrus.Logger) *PurchaseCallbackHandler {
	return &PurchaseCallbackHandler{listHandler{svc: svc, logger: logger, listID: listID}}
}

// HandleCallback processes confirm:<id> and cancel:<id>.
func (h *PurchaseCallbackHandler) HandleCallback(bot telegram.Sender, query *tgbotapi.CallbackQuery, itemID string) error {
	ctx := context.Background()
	sess, err := h.session(ctx, query.From)
	if err != nil {
		return err
	}

	var text string
	prefix, _, _ := strings.Cut(query.Data, ":")
	switch prefix {
	case CallbackConfirm:
		value, err := h.svc.ConfirmPurchase(ctx, sess, itemID, nil)
		switch {
		case errors.Is(err, service.ErrNoPendingConfirmation):
			text = "⌛ This confirmation has expired. Use /bought again."
		case err != nil:
			return fmt.Errorf("confirm purchase: %w", err)
		default:
			text = fmt.Sprintf("✅ Purchased for %s", formatMoney(message.NewPrinter(h.svc.Language()), value))
		}
	case CallbackCancel:
		if h.svc.Confirmations().State(sess, itemID) != service.PurchaseConfirming {
			text = "ℹ️ Nothing was waiting for confirmation."
			break
		}
		if err := h.svc.CancelPurchase(ctx, sess, itemID); err != nil {
			return fmt.Errorf("cancel purchase: %w", err)
		}
		text = "↩️ Purchase cancelled."
	default:
		return fmt.Errorf("unexpected callback %q", query.Data)
	}

	if query.Message == nil {
		return nil
	}
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text)
	_, err = bot.Send(edit)
	return err
}

// ---------------------------------------------------------------------------
// UnboughtHandler – /unbought <n>
// ---------------------------------------------------------------------------

// UnboughtHandler handles the /unbought command, returning an item to
// pending and clearing its actual value.
type UnboughtHandler struct {
	listHandler
}

// NewUnboughtHandler creates a new UnboughtHandler.
func NewUnboughtHandler(svc *service.Service, listID string, logger *logrus.Logger) *UnboughtHandler {
	return &UnboughtHandler{listHandler{svc: svc, logger: logger, listID: listID}}
}

// Handle processes the /unbought command.
func (h *UnboughtHandler) Handle(bot telegram.Sender, msg *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, msg.Chat.ID, "❌ Please provide an item number.\nUsage: `/unbought 3`")
	}

	ctx := context.Background()
	sess, err := h.session(ctx, msg.From)
	if err != nil {
		return err
	}

	item, err := h.resolveItem(ctx, sess, args[0])
	if err != nil {
		return h.replyLookupError(bot, msg.Chat.ID, args[0], err)
	}

	if err := h.svc.TogglePurchased(ctx, sess, item.ID, false, nil); err != nil {
		return fmt.Errorf("toggle purchased: %w", err)
	}

	return reply(bot, msg.Chat.ID, fmt.Sprintf("⬜ %s is pending again.", escapeMarkdown(item.Name)))
}

// ---------------------------------------------------------------------------
// EditFieldHandler – /qty <n> <value>, /paid <n> <value>
// ---------------------------------------------------------------------------

// EditFieldHandler commits an in-place edit of one item field.
type EditFieldHandler struct {
	listHandler
	field models.ItemField
	usage string
}

// NewQuantityHandler creates the /qty handler.
func NewQuantityHandler(svc *service.Service, listID string, logger *logrus.Logger) *EditFieldHandler {
	return &EditFieldHandler{
		listHandler: listHandler{svc: svc, logger: logger, listID: listID},
		field:       models.FieldQuantity,
		usage:       "`/qty 2 3`",
	}
}

// NewPaidHandler creates the /paid handler.
func NewPaidHandler(svc *service.Service, listID string, logger *logrus.Logger) *EditFieldHandler {
	return &EditFieldHandler{
		listHandler: listHandler{svc: svc, logger: logger, listID: listID},
		field:       models.FieldActualValue,
		usage:       "`/paid 2 2800`",
	}
}

// Handle processes the edit command.
func (h *EditFieldHandler) Handle(bot telegram.Sender, msg *tgbotapi.Message, args []string) error {
	if len(args) < 2 {
		return reply(bot, msg.Chat.ID, "❌ Please provide an item number and a value.\nUsage: "+h.usage)
	}

	ctx := context.Background()
	sess, err := h.session(ctx, msg.From)
	if err != nil {
		return err
	}

	item, err := h.resolveItem(ctx, sess, args[0])
	if err != nil {
		return h.replyLookupError(bot, msg.Chat.ID, args[0], err)
	}

	changed, err := h.svc.EditField(ctx, sess, item.ID, h.field, args[1])
	if err != nil {
		return fmt.Errorf("edit field: %w", err)
	}
	if !changed {
		return reply(bot, msg.Chat.ID, fmt.Sprintf("ℹ️ %s is unchanged.", escapeMarkdown(item.Name)))
	}
	return reply(bot, msg.Chat.ID, fmt.Sprintf("✏️ %s updated.", escapeMarkdown(item.Name)))
}

// ---------------------------------------------------------------------------
// DeleteHandler – /del <n>
// ---------------------------------------------------------------------------

// DeleteHandler handles the /del command.
type DeleteHandler struct {
	listHandler
}

// NewDeleteHandler creates a new DeleteHandler.
func NewDeleteHandler(svc *service.Service, listID string, logger *logrus.Logger) *DeleteHandler {
	return &DeleteHandler{listHandler{svc: svc, logger: logger, listID: listID}}
}

// Handle processes the /del command.
func (h *DeleteHandler) Handle(bot telegram.Sender, msg *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, msg.Chat.ID, "❌ Please provide an item number.\nUsage: `/del 3`")
	}

	ctx := context.Background()
	sess, err := h.session(ctx, msg.From)
	if err != nil {
		return err
	}

	item, err := h.resolveItem(ctx, sess, args[0])
	if err != nil {
		return h.replyLookupError(bot, msg.Chat.ID, args[0], err)
	}

	if err := h.svc.DeleteItem(ctx, sess, item.ID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	return reply(bot, msg.Chat.ID, fmt.Sprintf("🗑 %s removed.", escapeMarkdown(item.Name)))
}

// ---------------------------------------------------------------------------
// BuyClearHandler – /buyclear
// ---------------------------------------------------------------------------

// BuyClearHandler handles the /buyclear command to clear all purchased items
// from the shopping list.
type BuyClearHandler struct {
	listHandler
}

// NewBuyClearHandler creates a new BuyClearHandler.
func NewBuyClearHandler(svc *service.Service, listID string, logger *logrus.Logger) *BuyClearHandler {
	return &BuyClearHandler{listHandler{svc: svc, logger: logger, listID: listID}}
}

// Handle processes the /buyclear command.
func (h *BuyClearHandler) Handle(bot telegram.Sender, msg *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	sess, err := h.session(ctx, msg.From)
	if err != nil {
		return err
	}

	removed, err := h.svc.ClearPurchased(ctx, sess)
	if err != nil {
		return fmt.Errorf("clear purchased: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": msg.Chat.ID,
		"removed": removed,
	}).Info("Cleared purchased items")

	return reply(bot, msg.Chat.ID, fmt.Sprintf("🧹 Removed %d purchased item(s) from the shopping list!", removed))
}
