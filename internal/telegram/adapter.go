package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/stashbot/internal/gateway"
	"github.com/user/stashbot/internal/router"
	"github.com/user/stashbot/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the gateway. It maps updates to the
// transport-neutral event shape on the way in, and renders outbound
// responses (text, keyboards, re-deliveries) on the way out.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	gateway *gateway.Gateway
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:     bot,
		gateway: gw,
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			switch {
			case update.CallbackQuery != nil:
				a.handleCallback(ctx, update.CallbackQuery)
			case update.Message != nil:
				a.handleMessage(ctx, update.Message)
			}
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	event := &types.InboundEvent{
		Owner:  ownerID(msg.From.ID),
		ChatID: types.ChatID(msg.Chat.ID),
	}

	switch {
	case msg.IsCommand():
		event.Kind = types.EventCommand
		event.Command = msg.Command()
	case isForwardable(msg):
		event.Kind = types.EventForward
		event.MessageID = types.MessageID(msg.MessageID)
		event.Content = contentKind(msg)
	case msg.Text != "":
		event.Kind = types.EventText
		event.Text = msg.Text
	default:
		return
	}

	a.submit(ctx, event)
}

func (a *Adapter) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Ack immediately so the client stops its spinner.
	if _, err := a.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		slog.Warn("ack callback failed", "error", err)
	}

	if cq.Message == nil {
		return
	}
	event := &types.InboundEvent{
		Owner:    ownerID(cq.From.ID),
		ChatID:   types.ChatID(cq.Message.Chat.ID),
		Kind:     types.EventCallback,
		Callback: cq.Data,
	}
	a.submit(ctx, event)
}

func (a *Adapter) submit(ctx context.Context, event *types.InboundEvent) {
	chatID := event.ChatID
	err := a.gateway.HandleInbound(ctx, event, gateway.WithOnReply(func(out *types.Outbound) {
		a.sendOutbound(out)
	}))
	if err != nil {
		slog.Error("handle inbound failed", "owner", string(event.Owner), "error", err)
		a.sendText(int64(chatID), "Sorry, I couldn't process that. Please try again.", nil)
	}
}

// sendOutbound re-delivers any stored references first (each with its own
// delete button), then sends the rendered text and keyboard.
func (a *Adapter) sendOutbound(out *types.Outbound) {
	chatID := int64(out.ChatID)

	for _, ref := range out.Redeliver {
		cp := tgbotapi.NewCopyMessage(chatID, int64(ref.ChatID), int(ref.MessageID))
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", router.RefDeleteCallback(ref.ID)),
			),
		)
		cp.ReplyMarkup = &markup
		if _, err := a.bot.CopyMessage(cp); err != nil {
			// The source message may have been deleted on the platform;
			// skip it and keep delivering the rest.
			slog.Warn("copy message failed", "chat_id", int64(ref.ChatID), "message_id", int64(ref.MessageID), "error", err)
		}
	}

	a.sendText(chatID, out.Text, renderKeyboard(out.Keyboard))
}

func (a *Adapter) sendText(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if text == "" {
		return
	}
	parts := splitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if markup != nil && i == len(parts)-1 {
			msg.ReplyMarkup = *markup
		}
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("send message failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

// renderKeyboard converts the transport-neutral keyboard into an inline
// keyboard markup.
func renderKeyboard(kb *types.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// isForwardable reports whether the message carries content worth filing:
// any media, or a forwarded message of any kind.
func isForwardable(msg *tgbotapi.Message) bool {
	if msg.ForwardDate != 0 || msg.ForwardFrom != nil || msg.ForwardFromChat != nil {
		return true
	}
	return contentKind(msg) != types.ContentText || msg.Caption != ""
}

// contentKind classifies the message payload. Informational only.
func contentKind(msg *tgbotapi.Message) types.ContentKind {
	switch {
	case len(msg.Photo) > 0:
		return types.ContentPhoto
	case msg.Video != nil:
		return types.ContentVideo
	case msg.Document != nil:
		return types.ContentDocument
	case msg.Text != "":
		return types.ContentText
	default:
		return types.ContentOther
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func ownerID(userID int64) types.OwnerID {
	return types.OwnerID(strconv.FormatInt(userID, 10))
}
