// Package client implements a client for the Telegram Bot API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeltelegram"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// APIError is a non-ok Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed with code %d: %s", e.Method, e.Code, e.Description)
}

// Client defines attributes of a struct available to its methods.
type Client struct {
	client      *resty.Client
	pollTimeout int
	log         *zerolog.Logger
}

// InitClient initializes a resty client bound to the bot token.
func InitClient(botConfig *config.BotConfig, log *zerolog.Logger) *Client {
	botClient := resty.New().
		SetBaseURL(strings.TrimRight(botConfig.APIAddress, "/")+"/bot"+botConfig.Token).
		SetHeader("Content-Type", "application/json").
		SetTimeout(time.Duration(botConfig.PollTimeout)*time.Second + 10*time.Second)
	log.Info().Msg("telegram bot client initialized")
	return &Client{client: botClient, pollTimeout: botConfig.PollTimeout, log: log}
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]modeltelegram.Update, error) {
	var updates []modeltelegram.Update
	err := c.call(ctx, "getUpdates", modeltelegram.GetUpdatesRequest{
		Offset:         offset,
		Timeout:        c.pollTimeout,
		AllowedUpdates: []string{"message", "callback_query"},
	}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends a text message to a chat.
func (c *Client) SendMessage(ctx context.Context, request modeltelegram.SendMessageRequest) error {
	return c.call(ctx, "sendMessage", request, nil)
}

// EditMessageText replaces the text of a previously sent message.
func (c *Client) EditMessageText(ctx context.Context, request modeltelegram.EditMessageTextRequest) error {
	return c.call(ctx, "editMessageText", request, nil)
}

// AnswerCallbackQuery acknowledges an inline button press.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error {
	return c.call(ctx, "answerCallbackQuery", modeltelegram.AnswerCallbackQueryRequest{CallbackQueryID: callbackQueryID}, nil)
}

func (c *Client) call(ctx context.Context, method string, body interface{}, result interface{}) error {
	var envelope modeltelegram.Response
	response, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&envelope).
		SetError(&envelope).
		Post("/" + method)
	if err != nil {
		c.log.Err(err).Msg(fmt.Sprintf("telegram %s request failed", method))
		return err
	}
	if !envelope.OK {
		return &APIError{Method: method, Code: response.StatusCode(), Description: envelope.Description}
	}
	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, result)
}
