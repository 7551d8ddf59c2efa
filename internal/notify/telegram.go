// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// maxMessageRunes is Telegram's limit on one text message.
const maxMessageRunes = 4096

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends new items to one chat.
type Telegram struct {
	Sender Sender
	ChatID int64
}

// NewTelegram authenticates token with the Bot API.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram bot token not configured")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id not configured")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return &Telegram{Sender: bot, ChatID: chatID}, nil
}

// Notify sends items as one or more messages. Nothing is sent when items
// is empty.
func (t *Telegram) Notify(ctx context.Context, w types.Watch, items []types.Item) error {
	if len(items) == 0 {
		return nil
	}
	for _, chunk := range splitMessage(FormatMessage(w, items), maxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.ChatID, chunk)
		msg.DisableWebPagePreview = true
		if _, err := t.Sender.Send(msg); err != nil {
			return fmt.Errorf("sending telegram message for %s: %w", w.DisplayName, err)
		}
	}
	return nil
}

// splitMessage breaks text on line boundaries into chunks of at most max
// runes. A single line longer than max is cut.
func splitMessage(text string, max int) []string {
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			n = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		for len(r) > max {
			flush()
			chunks = append(chunks, string(r[:max]))
			r = r[max:]
		}
		if n+len(r) > max {
			flush()
		}
		cur.WriteString(string(r))
		n += len(r)
	}
	flush()
	return chunks
}
