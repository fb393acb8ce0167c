// Package bot defines the Telegram conversational adapter.
package bot

import (
	"context"

	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeltelegram"
)

// Messenger defines the Bot API calls used by the adapter.
type Messenger interface {
	GetUpdates(ctx context.Context, offset int64) ([]modeltelegram.Update, error)
	SendMessage(ctx context.Context, request modeltelegram.SendMessageRequest) error
	EditMessageText(ctx context.Context, request modeltelegram.EditMessageTextRequest) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
}

// Bot defines a set of methods for types implementing Bot.
type Bot interface {
	Run(ctx context.Context) error
	HandleUpdate(ctx context.Context, update modeltelegram.Update)
}
