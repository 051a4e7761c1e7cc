package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "github.com/sir-photch/notesock/internal/pkg/errors"
)

// defaultHTTPClientTimeout bounds the Telegram API call so a failing or
// slow Telegram endpoint cannot hang the caller (a fatal-error exit path
// or the capacity monitor's cron tick).
const defaultHTTPClientTimeout = 5 * time.Second

// TelegramNotifier sends alerts to a single chat via the Telegram bot API.
type TelegramNotifier struct {
	botAPI *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier constructs a TelegramNotifier. botToken and chatID
// come from --telegram-bot-token/--telegram-chat-id; an empty token means
// alerting should use NoOp instead, not this constructor.
func NewTelegramNotifier(botToken string, chatID int64) (*TelegramNotifier, error) {
	httpClient := &http.Client{Timeout: defaultHTTPClientTimeout}

	botAPI, err := tgbotapi.NewBotAPIWithClient(botToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Configuration, "construct telegram bot client")
	}

	return &TelegramNotifier{botAPI: botAPI, chatID: chatID}, nil
}

// Notify sends title and message as a single Telegram message. The ctx
// deadline, if any, is not forwarded to the underlying HTTP call (the
// library does not accept one); the client's own fixed timeout bounds the
// call instead.
func (n *TelegramNotifier) Notify(_ context.Context, title, message string) error {
	text := message
	if title != "" {
		text = fmt.Sprintf("%s\n%s", title, message)
	}

	messageConfig := tgbotapi.NewMessage(n.chatID, text)

	if _, err := n.botAPI.Send(messageConfig); err != nil {
		return apperrors.Wrap(err, apperrors.IO, "send telegram alert")
	}
	return nil
}
