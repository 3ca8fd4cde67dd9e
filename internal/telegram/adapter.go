// Package telegram bridges Telegram to the event router, as a second chat
// platform next to the Slack webhook.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/deckhand/internal/types"
)

const maxTelegramMessage = 4096

// Enqueuer accepts a parsed inbound event for asynchronous handling.
type Enqueuer interface {
	Enqueue(event *types.InboundEvent) error
}

// Adapter long-polls Telegram updates, converts them to inbound events, and
// implements types.Responder for the "telegram" platform.
type Adapter struct {
	bot   *tgbotapi.BotAPI
	queue Enqueuer
}

// New creates a Telegram adapter.
func New(token string, queue Enqueuer) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{bot: bot, queue: queue}, nil
}

// Start begins long-polling for updates until the context is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			a.handleMessage(update.UpdateID, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(updateID int, msg *tgbotapi.Message) {
	event := &types.InboundEvent{
		// Update ids are stable across redeliveries of the same update.
		ID:           types.EventID("telegram:" + strconv.Itoa(updateID)),
		Platform:     "telegram",
		Conversation: strconv.FormatInt(msg.Chat.ID, 10),
		Author:       strconv.FormatInt(msg.From.ID, 10),
		Direct:       msg.Chat.IsPrivate(),
		Text:         msg.Text,
		At:           time.Unix(int64(msg.Date), 0),
		SelfAuthored: msg.From.IsBot,
	}
	if msg.ReplyToMessage != nil {
		event.Thread = strconv.Itoa(msg.ReplyToMessage.MessageID)
	}
	for _, doc := range documentRefs(msg) {
		event.Files = append(event.Files, doc)
	}

	if err := a.queue.Enqueue(event); err != nil {
		slog.Error("enqueue failed", "event_id", string(event.ID), "error", err)
	}
}

// documentRefs maps Telegram attachments to file references. The URL is left
// empty; Download resolves it via getFile when the file is actually fetched.
func documentRefs(msg *tgbotapi.Message) []types.FileRef {
	if msg.Document == nil {
		return nil
	}
	return []types.FileRef{{
		ID:       msg.Document.FileID,
		Platform: "telegram",
		Name:     msg.Document.FileName,
		MimeType: msg.Document.MimeType,
	}}
}

// Send delivers text back to the chat, splitting messages that exceed the
// Telegram limit.
func (a *Adapter) Send(_ context.Context, to types.Reply, text string) error {
	chatID, err := strconv.ParseInt(to.Conversation, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", to.Conversation, err)
	}

	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		if to.Thread != "" {
			if replyID, err := strconv.Atoi(to.Thread); err == nil {
				msg.ReplyToMessageID = replyID
			}
		}
		if _, err := a.bot.Send(msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// Download fetches an attachment's bytes through the bot file API.
func (a *Adapter) Download(ctx context.Context, ref types.FileRef) ([]byte, error) {
	url, err := a.bot.GetFileDirectURL(ref.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	return fetch(ctx, url)
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
