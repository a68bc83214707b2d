// Package telegram is the chat transport: replies, inline keyboards,
// callback acknowledgments and media URL resolution over the Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Channel wraps one bot identity.
type Channel struct {
	bot *telego.Bot
}

func New(botToken string) (*Channel, error) {
	bot, err := telego.NewBot(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Channel{bot: bot}, nil
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}
	return id, nil
}

// SendMessage sends a plain text reply.
func (c *Channel) SendMessage(ctx context.Context, chatID, text string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	_, err = c.bot.SendMessage(ctx, tu.Message(tu.ID(id), text))
	return err
}

// SendKeyboard sends text with an inline button grid attached.
func (c *Channel) SendKeyboard(ctx context.Context, chatID, text string, kb *telego.InlineKeyboardMarkup) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	msg := tu.Message(tu.ID(id), text)
	msg.ReplyMarkup = kb
	_, err = c.bot.SendMessage(ctx, msg)
	return err
}

// AnswerCallback acknowledges a button press so the client stops its
// spinner. Failure is not worth surfacing to callers.
func (c *Channel) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
}

// FileURL resolves a Telegram file id to its download URL.
// Implements command.FileResolver.
func (c *Channel) FileURL(ctx context.Context, fileID string) (string, error) {
	f, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file %s: %w", fileID, err)
	}
	return c.bot.FileDownloadURL(f.FilePath), nil
}

// Notify implements dispatch.Notifier. The scope is implicit: one
// Channel serves one bot identity.
func (c *Channel) Notify(ctx context.Context, _ string, chatID, text string) error {
	return c.SendMessage(ctx, chatID, text)
}
