// Package bot implements the Telegram long-polling adapter for providers and admins.

package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	botService "github.com/danilovkiri/dk-go-maxrent/internal/bot/v1"
	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeltariff"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeltelegram"
	serviceErrors "github.com/danilovkiri/dk-go-maxrent/internal/service/errors"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/processor/v1"
	storageErrors "github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/errors"
	"github.com/rs/zerolog"
)

const (
	buttonAddAccount = "📤 Add account"
	buttonBalance    = "💰 Balance"
	buttonWallet     = "💳 Wallet"

	callbackTariffPrefix = "tariff_"
	commandRentPrefix    = "/rent_"

	updateTimeout = 5 * time.Second
	retryDelay    = time.Second
)

type state int

const (
	stateIdle state = iota
	stateWaitingAccount
	stateWaitingTariff
	stateWaitingWallet
)

type session struct {
	state    state
	login    string
	password string
}

// Bot defines attributes of a struct available to its methods.
type Bot struct {
	messenger botService.Messenger
	service   processor.Processor
	cfg       *config.BotConfig
	location  *time.Location
	log       *zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]session
}

// InitBot initializes the conversational adapter. Rental deadlines are rendered in location.
func InitBot(messenger botService.Messenger, mainService processor.Processor, cfg *config.BotConfig, location *time.Location, log *zerolog.Logger) (*Bot, error) {
	if messenger == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil messenger was passed to bot initializer"}
	}
	if mainService == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil processor was passed to bot initializer"}
	}
	if cfg == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil bot config was passed to bot initializer"}
	}
	if location == nil {
		location = time.Local
	}
	return &Bot{
		messenger: messenger,
		service:   mainService,
		cfg:       cfg,
		location:  location,
		log:       log,
		sessions:  make(map[int64]session),
	}, nil
}

// Run long-polls the Bot API until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info().Msg("telegram bot polling started")
	var offset int64
	for {
		updates, err := b.messenger.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				b.log.Info().Msg("telegram bot polling stopped")
				return nil
			}
			b.log.Warn().Err(err).Msg("telegram polling failed, retrying")
			select {
			case <-ctx.Done():
				b.log.Info().Msg("telegram bot polling stopped")
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}
		for _, update := range updates {
			offset = update.UpdateID + 1
			updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
			b.HandleUpdate(updateCtx, update)
			cancel()
		}
	}
}

// HandleUpdate dispatches a single update.
func (b *Bot) HandleUpdate(ctx context.Context, update modeltelegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// commandName returns the leading command token with any @botname suffix removed,
// or an empty string when text is not a command.
func commandName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	command := strings.Fields(text)[0]
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	return command
}

func (b *Bot) handleMessage(ctx context.Context, message *modeltelegram.Message) {
	chatID := message.Chat.ID
	senderID := chatID
	if message.From != nil {
		senderID = message.From.ID
	}
	text := strings.TrimSpace(message.Text)
	command := commandName(text)

	switch {
	case command == "/start":
		b.handleStart(ctx, chatID)
		return
	case text == buttonAddAccount || command == "/add":
		b.setSession(chatID, session{state: stateWaitingAccount})
		b.send(ctx, chatID, "Send the login and password of the account separated by a space:", nil)
		return
	case text == buttonBalance || command == "/balance":
		b.resetSession(chatID)
		b.handleBalance(ctx, chatID)
		return
	case text == buttonWallet || command == "/wallet":
		b.setSession(chatID, session{state: stateWaitingWallet})
		b.send(ctx, chatID, "Send your USDT TRC20 payout wallet address:", nil)
		return
	case command == "/rent":
		b.handleRentMenu(ctx, chatID, senderID)
		return
	case strings.HasPrefix(command, commandRentPrefix):
		b.handleRent(ctx, chatID, senderID, strings.TrimPrefix(command, commandRentPrefix))
		return
	}

	current := b.getSession(chatID)
	switch current.state {
	case stateWaitingAccount:
		fields := strings.Fields(text)
		if len(fields) != 2 {
			b.send(ctx, chatID, "❌ Invalid format. Send the login and password separated by a space:", nil)
			return
		}
		b.setSession(chatID, session{state: stateWaitingTariff, login: fields[0], password: fields[1]})
		b.send(ctx, chatID, "Choose a tariff for this account:", tariffButtons())
	case stateWaitingTariff:
		b.send(ctx, chatID, "Choose a tariff with the buttons above:", tariffButtons())
	case stateWaitingWallet:
		b.handleWallet(ctx, chatID, text)
	default:
		b.send(ctx, chatID, "Choose an action:", mainMenu())
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	b.resetSession(chatID)
	if _, err := b.service.EnsureChatProvider(ctx, chatID); err != nil {
		b.fail(ctx, chatID, "handleStart", err)
		return
	}
	b.send(ctx, chatID, "👋 <b>Welcome to MaxRent!</b>\n\n"+
		"🔹 Rent out your Max accounts\n"+
		"🔹 Receive payouts in USDT\n\n"+
		"Choose an action:", mainMenu())
}

func (b *Bot) handleBalance(ctx context.Context, chatID int64) {
	providerID, err := b.service.EnsureChatProvider(ctx, chatID)
	if err != nil {
		b.fail(ctx, chatID, "handleBalance", err)
		return
	}
	balance, err := b.service.GetBalance(ctx, providerID)
	if err != nil {
		b.fail(ctx, chatID, "handleBalance", err)
		return
	}
	walletInfo := fmt.Sprintf("\n⚠ No wallet linked. Use the '%s' button", buttonWallet)
	if balance.WalletAddress != "" {
		walletInfo = fmt.Sprintf("\n💳 Wallet: <code>%s</code>", html.EscapeString(balance.WalletAddress))
	}
	b.send(ctx, chatID, fmt.Sprintf("💰 <b>Your balance:</b> %s USDT%s", balance.Balance.String(), walletInfo), mainMenu())
}

func (b *Bot) handleWallet(ctx context.Context, chatID int64, text string) {
	providerID, err := b.service.EnsureChatProvider(ctx, chatID)
	if err != nil {
		b.fail(ctx, chatID, "handleWallet", err)
		return
	}
	wallet, err := b.service.SetWallet(ctx, providerID, text)
	if err != nil {
		var validationError *serviceErrors.ValidationError
		if errors.As(err, &validationError) {
			b.send(ctx, chatID, "❌ Invalid USDT TRC20 wallet format. Try again:", nil)
			return
		}
		b.fail(ctx, chatID, "handleWallet", err)
		return
	}
	b.resetSession(chatID)
	b.send(ctx, chatID, fmt.Sprintf("✅ Wallet linked:\n<code>%s</code>", html.EscapeString(wallet)), mainMenu())
}

func (b *Bot) handleCallback(ctx context.Context, query *modeltelegram.CallbackQuery) {
	if err := b.messenger.AnswerCallbackQuery(ctx, query.ID); err != nil {
		b.log.Warn().Err(err).Msg("answering callback query failed")
	}
	if query.Message == nil || !strings.HasPrefix(query.Data, callbackTariffPrefix) {
		return
	}
	chatID := query.Message.Chat.ID
	current := b.getSession(chatID)
	if current.state != stateWaitingTariff {
		b.send(ctx, chatID, "This selection has expired. Choose an action:", mainMenu())
		return
	}
	tariffKey := strings.TrimPrefix(query.Data, callbackTariffPrefix)
	tariff, ok := modeltariff.Lookup(tariffKey)
	if !ok {
		b.send(ctx, chatID, "❌ Unknown tariff. Choose a tariff with the buttons:", tariffButtons())
		return
	}
	providerID, err := b.service.EnsureChatProvider(ctx, chatID)
	if err != nil {
		b.fail(ctx, chatID, "handleCallback", err)
		return
	}
	_, err = b.service.AddAccount(ctx, providerID, modeldto.NewAccount{
		Login:  current.login,
		Secret: current.password,
		Tariff: tariff.Key,
	})
	if err != nil {
		b.fail(ctx, chatID, "handleCallback", err)
		return
	}
	b.resetSession(chatID)
	err = b.messenger.EditMessageText(ctx, modeltelegram.EditMessageTextRequest{
		ChatID:    chatID,
		MessageID: query.Message.MessageID,
		ParseMode: "HTML",
		Text: fmt.Sprintf("✅ <b>Account added!</b>\n\n"+
			"👤 Login: <code>%s</code>\n"+
			"🔐 Password: <code>%s</code>\n"+
			"⏱ Tariff: %s\n"+
			"💵 Rent price: %s USDT",
			html.EscapeString(current.login), html.EscapeString(current.password), tariff.Label, tariff.Price.String()),
	})
	if err != nil {
		b.log.Error().Err(err).Msg("editing tariff message failed")
	}
}

func (b *Bot) handleRentMenu(ctx context.Context, chatID, senderID int64) {
	if !b.cfg.IsAdmin(senderID) {
		b.send(ctx, chatID, "🚫 Access denied", nil)
		return
	}
	accounts, err := b.service.ListAvailable(ctx)
	if err != nil {
		b.fail(ctx, chatID, "handleRentMenu", err)
		return
	}
	if len(accounts) == 0 {
		b.send(ctx, chatID, "😔 No accounts available", nil)
		return
	}
	var sb strings.Builder
	sb.WriteString("🔄 <b>Available accounts:</b>\n")
	for _, account := range accounts {
		price := "?"
		if tariff, ok := modeltariff.Lookup(account.Tariff); ok {
			price = tariff.Price.String()
		}
		sb.WriteString(fmt.Sprintf("\n👤 <code>%s</code> - %s USDT (%s%d)", html.EscapeString(account.Login), price, commandRentPrefix, account.ID))
	}
	b.send(ctx, chatID, sb.String(), nil)
}

func (b *Bot) handleRent(ctx context.Context, chatID, senderID int64, rawID string) {
	if !b.cfg.IsAdmin(senderID) {
		b.send(ctx, chatID, "🚫 Access denied", nil)
		return
	}
	accountID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || accountID <= 0 {
		b.send(ctx, chatID, "❌ Invalid command format", nil)
		return
	}
	receipt, err := b.service.RentRestingTariff(ctx, accountID)
	if err != nil {
		var notFoundError *storageErrors.NotFoundError
		var alreadyRentedError *storageErrors.AlreadyRentedError
		switch {
		case errors.As(err, &notFoundError):
			b.send(ctx, chatID, "❌ Account not found", nil)
		case errors.As(err, &alreadyRentedError):
			b.send(ctx, chatID, "❌ Account is already rented", nil)
		default:
			b.fail(ctx, chatID, "handleRent", err)
		}
		return
	}
	b.send(ctx, chatID, fmt.Sprintf("✅ <b>Account rented!</b>\n\n"+
		"👤 Login: <code>%s</code>\n"+
		"🔐 Password: <code>%s</code>\n"+
		"⏱ Tariff: %s\n"+
		"⏳ Until: %s",
		html.EscapeString(receipt.Login), html.EscapeString(receipt.Secret), receipt.TariffLabel, receipt.ExpiresAt.In(b.location).Format("15:04")), nil)
}

func (b *Bot) fail(ctx context.Context, chatID int64, op string, err error) {
	b.log.Error().Err(err).Msg(op + " failed")
	b.send(ctx, chatID, "⚠ Service is temporarily unavailable, try again later", nil)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup interface{}) {
	err := b.messenger.SendMessage(ctx, modeltelegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	})
	if err != nil {
		b.log.Error().Err(err).Msg(fmt.Sprintf("sending message to chat %d failed", chatID))
	}
}

func (b *Bot) getSession(chatID int64) session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[chatID]
}

func (b *Bot) setSession(chatID int64, s session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[chatID] = s
}

func (b *Bot) resetSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, chatID)
}

func mainMenu() *modeltelegram.ReplyKeyboardMarkup {
	return &modeltelegram.ReplyKeyboardMarkup{
		Keyboard: [][]modeltelegram.KeyboardButton{
			{{Text: buttonAddAccount}, {Text: buttonBalance}, {Text: buttonWallet}},
		},
		ResizeKeyboard: true,
	}
}

func tariffButtons() *modeltelegram.InlineKeyboardMarkup {
	tariffs := modeltariff.All()
	rows := make([][]modeltelegram.InlineKeyboardButton, 0, len(tariffs))
	for _, tariff := range tariffs {
		rows = append(rows, []modeltelegram.InlineKeyboardButton{{
			Text:         fmt.Sprintf("⏳ %s - %s USDT", tariff.Label, tariff.Price.String()),
			CallbackData: callbackTariffPrefix + tariff.Key,
		}})
	}
	return &modeltelegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}
