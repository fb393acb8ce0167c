package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	rest "github.com/danilovkiri/dk-go-maxrent/internal/api/rest/v1"
	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
	processorService "github.com/danilovkiri/dk-go-maxrent/internal/service/processor/v1"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/processor/v1/processor"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/rental/v1/rental"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/secretary/v1/secretary"
	storageErrors "github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/errors"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/inmemory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serverConfig = &config.ServerConfig{DisplayTimezone: "UTC"}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	log := zerolog.Nop()
	store := inmemory.InitStorage(&log)
	engine, err := rental.InitService(store, &log)
	require.NoError(t, err)
	sec, err := secretary.NewSecretaryService(&config.SecretConfig{SecretKey: "key", TokenTTL: time.Minute})
	require.NoError(t, err)
	proc, err := processor.InitService(store, engine, sec, &config.RentalConfig{WalletPrefix: "T", WalletMinLength: 25, AdminListLimit: 5}, &log)
	require.NoError(t, err)
	r, err := rest.NewRouter(proc, serverConfig, &log)
	require.NoError(t, err)
	return r
}

func do(r http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, r http.Handler, login string) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/user/register", "", fmt.Sprintf(`{"login":%q,"password":"pw"}`, login))
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Header().Get("Authorization")
	require.NotEmpty(t, token)
	return token
}

func addAccount(t *testing.T, r http.Handler, token string) int64 {
	t.Helper()
	w := do(r, http.MethodPost, "/api/user/accounts", token, `{"login":"acc","password":"secret"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created modeldto.CreatedAccount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created.ID
}

func TestHandleRent(t *testing.T) {
	r := newRouter(t)
	token := register(t, r, "alice")
	renter := register(t, r, "renter")
	id := addAccount(t, r, token)

	w := do(r, http.MethodGet, fmt.Sprintf("/api/rent/%d/1_hour", id), renter, "")
	require.Equal(t, http.StatusOK, w.Code)
	var rent modeldto.RentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rent))
	assert.Equal(t, "acc", rent.Login)
	assert.Equal(t, "secret", rent.Password)
	assert.Equal(t, "1 hour", rent.Tariff)
	assert.Regexp(t, `^\d{2}:\d{2}$`, rent.Until)
	assert.True(t, decimal.NewFromInt(7).Equal(rent.Price))

	w = do(r, http.MethodPost, fmt.Sprintf("/api/rent/%d/2_hours", id), renter, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleRent_RequiresToken(t *testing.T) {
	r := newRouter(t)
	token := register(t, r, "alice")
	id := addAccount(t, r, token)
	target := fmt.Sprintf("/api/rent/%d/1_hour", id)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, target, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, target, "Bearer garbage", "").Code)

	// rejected requests must leave the account available
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, target, token, "").Code)
}

func TestHandleRent_Rejections(t *testing.T) {
	r := newRouter(t)
	token := register(t, r, "alice")
	id := addAccount(t, r, token)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "unknown tariff", target: fmt.Sprintf("/api/rent/%d/3_hours", id), status: http.StatusBadRequest},
		{name: "unknown account", target: "/api/rent/9999/1_hour", status: http.StatusNotFound},
		{name: "malformed account", target: "/api/rent/abc/1_hour", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.target, token, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}

	// a rejected tariff must leave the account available
	w := do(r, http.MethodGet, fmt.Sprintf("/api/rent/%d/1_hour", id), token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/user/dashboard", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/user/balance", "Bearer garbage", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "", "").Code)
}

func TestRegisterAndLogin(t *testing.T) {
	r := newRouter(t)
	register(t, r, "alice")
	w := do(r, http.MethodPost, "/api/user/register", "", `{"login":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/user/login", "", `{"login":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Authorization"))

	w = do(r, http.MethodPost, "/api/user/login", "", `{"login":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecodeJSON_ContentTypeParameters(t *testing.T) {
	r := newRouter(t)
	register(t, r, "alice")

	tests := []struct {
		name        string
		contentType string
		status      int
	}{
		{name: "charset parameter", contentType: "application/json; charset=utf-8", status: http.StatusOK},
		{name: "mixed case", contentType: "Application/JSON", status: http.StatusOK},
		{name: "other media type", contentType: "text/plain; charset=utf-8", status: http.StatusBadRequest},
		{name: "malformed", contentType: "application/json; charset", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/user/login", strings.NewReader(`{"login":"alice","password":"pw"}`))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestWalletAndBalance(t *testing.T) {
	r := newRouter(t)
	token := register(t, r, "alice")

	w := do(r, http.MethodPost, "/api/user/wallet", token, `{"wallet_address":"Xabcdefghijklmnopqrstuvwxyz"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/api/user/wallet", token, `{"wallet_address":" Tabcdefghijklmnopqrstuvwxyz "}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/user/balance", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var balance modeldto.Balance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, "Tabcdefghijklmnopqrstuvwxyz", balance.WalletAddress)
	assert.True(t, balance.Balance.IsZero())
}

func TestDashboardAndRelease(t *testing.T) {
	r := newRouter(t)
	owner := register(t, r, "alice")
	stranger := register(t, r, "bob")
	id := addAccount(t, r, owner)
	addAccount(t, r, owner)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, fmt.Sprintf("/api/rent/%d/2_hours", id), stranger, "").Code)

	w := do(r, http.MethodGet, "/api/user/dashboard", owner, "")
	require.Equal(t, http.StatusOK, w.Code)
	var dashboard modeldto.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dashboard))
	assert.Equal(t, 1, dashboard.Rented)
	assert.Equal(t, 1, dashboard.Available)

	release := fmt.Sprintf("/api/accounts/%d/release", id)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, release, stranger, "").Code)

	w = do(r, http.MethodPost, release, owner, "")
	require.Equal(t, http.StatusOK, w.Code)
	var settlement modeldto.Settlement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settlement))
	assert.True(t, settlement.Released)
	assert.True(t, decimal.NewFromInt(14).Equal(settlement.Amount))

	w = do(r, http.MethodPost, release, owner, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settlement))
	assert.False(t, settlement.Released)

	w = do(r, http.MethodGet, "/api/user/balance", owner, "")
	var balance modeldto.Balance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.True(t, decimal.NewFromInt(14).Equal(balance.Balance))
}

type unavailableProcessor struct {
	processorService.Processor
}

func (unavailableProcessor) GetProviderID(string) (string, error) {
	return "renter", nil
}

func (unavailableProcessor) Rent(context.Context, int64, string) (*modeldto.Receipt, error) {
	return nil, &storageErrors.TransientStorageError{Err: errors.New("connection refused")}
}

func TestHandleRent_TransientFailure(t *testing.T) {
	log := zerolog.Nop()
	r, err := rest.NewRouter(unavailableProcessor{}, serverConfig, &log)
	require.NoError(t, err)
	w := do(r, http.MethodGet, "/api/rent/1/1_hour", "Bearer token", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
