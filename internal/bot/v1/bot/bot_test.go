package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	botService "github.com/danilovkiri/dk-go-maxrent/internal/bot/v1"
	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeltelegram"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/processor/v1/processor"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/rental/v1/rental"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/secretary/v1/secretary"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/inmemory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ botService.Bot = (*Bot)(nil)

const (
	providerChat int64 = 100
	adminChat    int64 = 900
)

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []modeltelegram.SendMessageRequest
	edited  []modeltelegram.EditMessageTextRequest
	answers []string
	batches [][]modeltelegram.Update
	offsets []int64
}

func (f *fakeMessenger) GetUpdates(ctx context.Context, offset int64) ([]modeltelegram.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeMessenger) SendMessage(_ context.Context, request modeltelegram.SendMessageRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, request)
	return nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, request modeltelegram.EditMessageTextRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, request)
	return nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, id)
	return nil
}

func (f *fakeMessenger) last() modeltelegram.SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return modeltelegram.SendMessageRequest{}
	}
	return f.sent[len(f.sent)-1]
}

type fixture struct {
	bot       *Bot
	messenger *fakeMessenger
	service   *processor.Processor
	store     *inmemory.Storage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	store := inmemory.InitStorage(&log)
	engine, err := rental.InitService(store, &log)
	require.NoError(t, err)
	sec, err := secretary.NewSecretaryService(&config.SecretConfig{SecretKey: "key", TokenTTL: time.Minute})
	require.NoError(t, err)
	proc, err := processor.InitService(store, engine, sec, &config.RentalConfig{WalletPrefix: "T", WalletMinLength: 25, AdminListLimit: 5}, &log)
	require.NoError(t, err)
	messenger := &fakeMessenger{}
	b, err := InitBot(messenger, proc, &config.BotConfig{AdminChatIDs: []int64{adminChat}}, time.UTC, &log)
	require.NoError(t, err)
	return &fixture{bot: b, messenger: messenger, service: proc, store: store}
}

func text(chatID int64, body string) modeltelegram.Update {
	return modeltelegram.Update{Message: &modeltelegram.Message{
		Chat: modeltelegram.Chat{ID: chatID},
		From: &modeltelegram.User{ID: chatID},
		Text: body,
	}}
}

func callback(chatID int64, data string) modeltelegram.Update {
	return modeltelegram.Update{CallbackQuery: &modeltelegram.CallbackQuery{
		ID:      "cb",
		From:    modeltelegram.User{ID: chatID},
		Message: &modeltelegram.Message{MessageID: 11, Chat: modeltelegram.Chat{ID: chatID}},
		Data:    data,
	}}
}

func TestStart_RegistersProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bot.HandleUpdate(ctx, text(providerChat, "/start"))

	_, err := f.store.GetProviderByChatID(ctx, providerChat)
	require.NoError(t, err)
	assert.Contains(t, f.messenger.last().Text, "Welcome")
	assert.IsType(t, &modeltelegram.ReplyKeyboardMarkup{}, f.messenger.last().ReplyMarkup)
}

func TestAddAccountConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bot.HandleUpdate(ctx, text(providerChat, "/start"))
	f.bot.HandleUpdate(ctx, text(providerChat, buttonAddAccount))

	f.bot.HandleUpdate(ctx, text(providerChat, "only-login"))
	assert.Contains(t, f.messenger.last().Text, "Invalid format")

	f.bot.HandleUpdate(ctx, text(providerChat, "maxuser maxpass"))
	markup, ok := f.messenger.last().ReplyMarkup.(*modeltelegram.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "tariff_1_hour", markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "tariff_2_hours", markup.InlineKeyboard[1][0].CallbackData)

	f.bot.HandleUpdate(ctx, callback(providerChat, "tariff_2_hours"))
	assert.Equal(t, []string{"cb"}, f.messenger.answers)
	require.Len(t, f.messenger.edited, 1)
	assert.Contains(t, f.messenger.edited[0].Text, "2 hours")
	assert.Contains(t, f.messenger.edited[0].Text, "14 USDT")

	providerID, err := f.service.EnsureChatProvider(ctx, providerChat)
	require.NoError(t, err)
	dashboard, err := f.service.GetDashboard(ctx, providerID)
	require.NoError(t, err)
	require.Len(t, dashboard.Accounts, 1)
	assert.Equal(t, "maxuser", dashboard.Accounts[0].Login)
	assert.Equal(t, "2_hours", dashboard.Accounts[0].Tariff)

	// a stale button press must not list the account twice
	f.bot.HandleUpdate(ctx, callback(providerChat, "tariff_2_hours"))
	dashboard, err = f.service.GetDashboard(ctx, providerID)
	require.NoError(t, err)
	assert.Len(t, dashboard.Accounts, 1)
}

func TestWalletConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bot.HandleUpdate(ctx, text(providerChat, buttonWallet))
	f.bot.HandleUpdate(ctx, text(providerChat, "Xabcdefghijklmnopqrstuvwxyz"))
	assert.Contains(t, f.messenger.last().Text, "Invalid USDT TRC20 wallet")

	f.bot.HandleUpdate(ctx, text(providerChat, "Tabcdefghijklmnopqrstuvwxyz"))
	assert.Contains(t, f.messenger.last().Text, "Wallet linked")

	f.bot.HandleUpdate(ctx, text(providerChat, buttonBalance))
	assert.Contains(t, f.messenger.last().Text, "0 USDT")
	assert.Contains(t, f.messenger.last().Text, "Tabcdefghijklmnopqrstuvwxyz")
}

func TestRentCommands_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	providerID, err := f.service.EnsureChatProvider(ctx, providerChat)
	require.NoError(t, err)
	id, err := f.service.AddAccount(ctx, providerID, modeldto.NewAccount{Login: "maxuser", Secret: "maxpass", Tariff: "2_hours"})
	require.NoError(t, err)

	f.bot.HandleUpdate(ctx, text(providerChat, "/rent"))
	assert.Contains(t, f.messenger.last().Text, "Access denied")
	f.bot.HandleUpdate(ctx, text(providerChat, fmt.Sprintf("/rent_%d", id)))
	assert.Contains(t, f.messenger.last().Text, "Access denied")

	f.bot.HandleUpdate(ctx, text(adminChat, "/rent"))
	assert.Contains(t, f.messenger.last().Text, fmt.Sprintf("/rent_%d", id))
	assert.Contains(t, f.messenger.last().Text, "14 USDT")

	f.bot.HandleUpdate(ctx, text(adminChat, fmt.Sprintf("/rent_%d", id)))
	assert.Contains(t, f.messenger.last().Text, "Account rented")
	assert.Contains(t, f.messenger.last().Text, "maxpass")
	assert.Contains(t, f.messenger.last().Text, "2 hours")

	f.bot.HandleUpdate(ctx, text(adminChat, fmt.Sprintf("/rent_%d", id)))
	assert.Contains(t, f.messenger.last().Text, "already rented")
	assert.NotContains(t, f.messenger.last().Text, "maxpass")

	f.bot.HandleUpdate(ctx, text(adminChat, "/rent"))
	assert.Contains(t, f.messenger.last().Text, "No accounts available")

	f.bot.HandleUpdate(ctx, text(adminChat, "/rent_abc"))
	assert.Contains(t, f.messenger.last().Text, "Invalid command format")
	f.bot.HandleUpdate(ctx, text(adminChat, "/rent_9999"))
	assert.Contains(t, f.messenger.last().Text, "Account not found")

	settlement, err := f.service.Release(ctx, providerID, id)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(14).Equal(settlement.Amount))
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "/start", want: "/start"},
		{text: "/start ref_42", want: "/start"},
		{text: "/rent@MaxRentBot", want: "/rent"},
		{text: "/rent_17@MaxRentBot", want: "/rent_17"},
		{text: "/", want: "/"},
		{text: "hello /start", want: ""},
		{text: buttonBalance, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, commandName(tt.text))
		})
	}
}

func TestCommands_PayloadAndBotSuffix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bot.HandleUpdate(ctx, text(providerChat, "/start ref_42"))
	_, err := f.store.GetProviderByChatID(ctx, providerChat)
	require.NoError(t, err)
	assert.Contains(t, f.messenger.last().Text, "Welcome")

	f.bot.HandleUpdate(ctx, text(providerChat, "/balance@MaxRentBot"))
	assert.Contains(t, f.messenger.last().Text, "0 USDT")

	providerID, err := f.service.EnsureChatProvider(ctx, providerChat)
	require.NoError(t, err)
	id, err := f.service.AddAccount(ctx, providerID, modeldto.NewAccount{Login: "maxuser", Secret: "maxpass", Tariff: "1_hour"})
	require.NoError(t, err)

	f.bot.HandleUpdate(ctx, text(adminChat, "/rent@MaxRentBot"))
	assert.Contains(t, f.messenger.last().Text, fmt.Sprintf("/rent_%d", id))

	f.bot.HandleUpdate(ctx, text(adminChat, fmt.Sprintf("/rent_%d@MaxRentBot", id)))
	assert.Contains(t, f.messenger.last().Text, "Account rented")
	assert.Contains(t, f.messenger.last().Text, "maxpass")
}

func TestRun_AdvancesOffset(t *testing.T) {
	f := newFixture(t)
	f.messenger.batches = [][]modeltelegram.Update{
		{func() modeltelegram.Update { u := text(providerChat, "/start"); u.UpdateID = 5; return u }()},
		{func() modeltelegram.Update { u := text(providerChat, buttonBalance); u.UpdateID = 6; return u }()},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	assert.Eventually(t, func() bool {
		f.messenger.mu.Lock()
		defer f.messenger.mu.Unlock()
		return len(f.messenger.offsets) >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	f.messenger.mu.Lock()
	defer f.messenger.mu.Unlock()
	assert.Equal(t, []int64{0, 6, 7}, f.messenger.offsets[:3])
	assert.Len(t, f.messenger.sent, 2)
}

func TestInitBot_NilArguments(t *testing.T) {
	log := zerolog.Nop()
	_, err := InitBot(nil, nil, nil, nil, &log)
	assert.Error(t, err)
}
