// Package handlers provides API endpoint handling functionality.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	handlersErrors "github.com/danilovkiri/dk-go-maxrent/internal/api/rest/v1/errors"
	"github.com/danilovkiri/dk-go-maxrent/internal/api/rest/v1/middleware"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
	serviceErrors "github.com/danilovkiri/dk-go-maxrent/internal/service/errors"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/processor/v1"
	storageErrors "github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/errors"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

const requestTimeout = 500 * time.Millisecond

// Handler defines attributes of a struct available to its methods.
type Handler struct {
	service  processor.Processor
	location *time.Location
	log      *zerolog.Logger
}

// InitHandlers initializes a handler object. Rental deadlines are rendered in location.
func InitHandlers(mainService processor.Processor, location *time.Location, log *zerolog.Logger) (*Handler, error) {
	if mainService == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil processor was passed to handlers initializer"}
	}
	if location == nil {
		location = time.Local
	}
	return &Handler{service: mainService, location: location, log: log}, nil
}

// HandleRegister processes provider register requests.
func (h *Handler) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		var credentials modeldto.Credentials
		if !h.decodeJSON(w, r, "HandleRegister", &credentials) {
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new provider register request detected for %s", credentials.Login))
		accessToken, err := h.service.RegisterProvider(ctx, credentials)
		if err != nil {
			h.writeError(w, "HandleRegister", err)
			return
		}
		w.Header().Set("Authorization", "Bearer "+accessToken)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleLogin processes provider login requests.
func (h *Handler) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		var credentials modeldto.Credentials
		if !h.decodeJSON(w, r, "HandleLogin", &credentials) {
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new login request detected for %s", credentials.Login))
		accessToken, err := h.service.LoginProvider(ctx, credentials)
		if err != nil {
			h.writeError(w, "HandleLogin", err)
			return
		}
		w.Header().Set("Authorization", "Bearer "+accessToken)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleGetDashboard lists the requesting provider's accounts.
func (h *Handler) HandleGetDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		providerID, ok := h.providerID(w, r)
		if !ok {
			return
		}
		dashboard, err := h.service.GetDashboard(ctx, providerID)
		if err != nil {
			h.writeError(w, "HandleGetDashboard", err)
			return
		}
		h.writeJSON(w, "HandleGetDashboard", http.StatusOK, dashboard)
	}
}

// HandleNewAccount processes account listing requests.
func (h *Handler) HandleNewAccount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		providerID, ok := h.providerID(w, r)
		if !ok {
			return
		}
		var account modeldto.NewAccount
		if !h.decodeJSON(w, r, "HandleNewAccount", &account) {
			return
		}
		id, err := h.service.AddAccount(ctx, providerID, account)
		if err != nil {
			h.writeError(w, "HandleNewAccount", err)
			return
		}
		h.writeJSON(w, "HandleNewAccount", http.StatusCreated, modeldto.CreatedAccount{ID: id})
	}
}

// HandleGetBalance processes balance query requests.
func (h *Handler) HandleGetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		providerID, ok := h.providerID(w, r)
		if !ok {
			return
		}
		balance, err := h.service.GetBalance(ctx, providerID)
		if err != nil {
			h.writeError(w, "HandleGetBalance", err)
			return
		}
		h.writeJSON(w, "HandleGetBalance", http.StatusOK, balance)
	}
}

// HandleSetWallet processes payout address updates.
func (h *Handler) HandleSetWallet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		providerID, ok := h.providerID(w, r)
		if !ok {
			return
		}
		var request struct {
			WalletAddress string `json:"wallet_address"`
		}
		if !h.decodeJSON(w, r, "HandleSetWallet", &request) {
			return
		}
		wallet, err := h.service.SetWallet(ctx, providerID, request.WalletAddress)
		if err != nil {
			h.writeError(w, "HandleSetWallet", err)
			return
		}
		h.writeJSON(w, "HandleSetWallet", http.StatusOK, modeldto.Balance{WalletAddress: wallet})
	}
}

// HandleRent processes rent requests and returns the credentials of the claimed account.
func (h *Handler) HandleRent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		renterID, ok := h.providerID(w, r)
		if !ok {
			return
		}
		accountID, ok := h.accountID(w, r)
		if !ok {
			return
		}
		tariff := chi.URLParam(r, "tariff")
		h.log.Info().Msg(fmt.Sprintf("new rent request detected from %s for account %d on %s", renterID, accountID, tariff))
		receipt, err := h.service.Rent(ctx, accountID, tariff)
		if err != nil {
			h.writeError(w, "HandleRent", err)
			return
		}
		h.writeJSON(w, "HandleRent", http.StatusOK, modeldto.RentResponse{
			Login:    receipt.Login,
			Password: receipt.Secret,
			Tariff:   receipt.TariffLabel,
			Until:    receipt.ExpiresAt.In(h.location).Format("15:04"),
			Price:    receipt.Price,
		})
	}
}

// HandleRelease ends a rental early on behalf of the account owner.
func (h *Handler) HandleRelease() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		providerID, ok := h.providerID(w, r)
		if !ok {
			return
		}
		accountID, ok := h.accountID(w, r)
		if !ok {
			return
		}
		settlement, err := h.service.Release(ctx, providerID, accountID)
		if err != nil {
			h.writeError(w, "HandleRelease", err)
			return
		}
		h.writeJSON(w, "HandleRelease", http.StatusOK, settlement)
	}
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, "HandleHealth", http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *Handler) providerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	providerID, ok := middleware.ProviderID(r.Context())
	if !ok {
		http.Error(w, "token authorization required", http.StatusUnauthorized)
		return "", false
	}
	return providerID, true
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || accountID <= 0 {
		h.writeWarning(w, http.StatusBadRequest, "invalid account identifier")
		return 0, false
	}
	return accountID, true
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, op string, v interface{}) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		return false
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Error().Err(err).Msg(op + " failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		h.log.Info().Err(err).Msg(op + " rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, op string, status int, v interface{}) {
	resBody, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg(op + " failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(resBody); err != nil {
		h.log.Error().Err(err).Msg(op + " failed")
	}
}

func (h *Handler) writeWarning(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, "warning", status, modeldto.Warning{Message: message})
}

// writeError maps the error taxonomy onto HTTP statuses. Expected outcomes become warnings and are not logged as failures.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
	var transientStorageError *storageErrors.TransientStorageError
	var notFoundError *storageErrors.NotFoundError
	var alreadyRentedError *storageErrors.AlreadyRentedError
	var alreadyExistsError *storageErrors.AlreadyExistsError
	var invalidTariffError *serviceErrors.InvalidTariffError
	var validationError *serviceErrors.ValidationError
	var invalidCredentialsError *serviceErrors.InvalidCredentialsError
	var forbiddenError *serviceErrors.ForbiddenError
	switch {
	case errors.As(err, &alreadyRentedError):
		h.log.Info().Err(err).Msg(op + " rejected")
		h.writeWarning(w, http.StatusConflict, "account is already rented")
	case errors.As(err, &invalidTariffError):
		h.log.Info().Err(err).Msg(op + " rejected")
		h.writeWarning(w, http.StatusBadRequest, "unknown tariff")
	case errors.As(err, &notFoundError):
		h.log.Info().Err(err).Msg(op + " rejected")
		h.writeWarning(w, http.StatusNotFound, "not found")
	case errors.As(err, &validationError):
		h.log.Info().Err(err).Msg(op + " rejected")
		h.writeWarning(w, http.StatusUnprocessableEntity, validationError.Error())
	case errors.As(err, &alreadyExistsError):
		h.log.Info().Err(err).Msg(op + " rejected")
		w.WriteHeader(http.StatusConflict)
	case errors.As(err, &invalidCredentialsError):
		h.log.Info().Err(err).Msg(op + " rejected")
		w.WriteHeader(http.StatusUnauthorized)
	case errors.As(err, &forbiddenError):
		h.log.Info().Err(err).Msg(op + " rejected")
		h.writeWarning(w, http.StatusForbidden, "access denied")
	case errors.As(err, &contextTimeoutExceededError):
		h.log.Error().Err(err).Msg(op + " failed")
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	case errors.As(err, &transientStorageError):
		h.log.Error().Err(err).Msg(op + " failed")
		w.Header().Set("Retry-After", "1")
		http.Error(w, "temporarily unavailable, retry later", http.StatusServiceUnavailable)
	default:
		h.log.Error().Err(err).Msg(op + " failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
