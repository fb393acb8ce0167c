// Package modeltelegram provides the subset of Telegram Bot API types used by the bot.

package modeltelegram

import "encoding/json"

type (
	// Response is the envelope returned by every Bot API method.
	Response struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result,omitempty"`
		ErrorCode   int             `json:"error_code,omitempty"`
		Description string          `json:"description,omitempty"`
	}
	Update struct {
		UpdateID      int64          `json:"update_id"`
		Message       *Message       `json:"message,omitempty"`
		CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
	}
	Message struct {
		MessageID int64  `json:"message_id"`
		From      *User  `json:"from,omitempty"`
		Chat      Chat   `json:"chat"`
		Text      string `json:"text,omitempty"`
	}
	User struct {
		ID       int64  `json:"id"`
		Username string `json:"username,omitempty"`
	}
	Chat struct {
		ID int64 `json:"id"`
	}
	CallbackQuery struct {
		ID      string   `json:"id"`
		From    User     `json:"from"`
		Message *Message `json:"message,omitempty"`
		Data    string   `json:"data,omitempty"`
	}
	InlineKeyboardButton struct {
		Text         string `json:"text"`
		CallbackData string `json:"callback_data"`
	}
	InlineKeyboardMarkup struct {
		InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
	}
	KeyboardButton struct {
		Text string `json:"text"`
	}
	ReplyKeyboardMarkup struct {
		Keyboard       [][]KeyboardButton `json:"keyboard"`
		ResizeKeyboard bool               `json:"resize_keyboard,omitempty"`
	}
	// SendMessageRequest carries either keyboard kind in ReplyMarkup.
	SendMessageRequest struct {
		ChatID      int64       `json:"chat_id"`
		Text        string      `json:"text"`
		ParseMode   string      `json:"parse_mode,omitempty"`
		ReplyMarkup interface{} `json:"reply_markup,omitempty"`
	}
	EditMessageTextRequest struct {
		ChatID    int64  `json:"chat_id"`
		MessageID int64  `json:"message_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode,omitempty"`
	}
	AnswerCallbackQueryRequest struct {
		CallbackQueryID string `json:"callback_query_id"`
	}
	GetUpdatesRequest struct {
		Offset         int64    `json:"offset,omitempty"`
		Timeout        int      `json:"timeout"`
		AllowedUpdates []string `json:"allowed_updates,omitempty"`
	}
)
