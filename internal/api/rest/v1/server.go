// Package rest provides functionality for initializing a server.
package rest

import (
	"net/http"
	"time"

	"github.com/danilovkiri/dk-go-maxrent/internal/api/rest/v1/handlers"
	"github.com/danilovkiri/dk-go-maxrent/internal/api/rest/v1/middleware"
	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/processor/v1"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"
)

// NewRouter sets routing for the dashboard and renter endpoints.
func NewRouter(mainService processor.Processor, serverConfig *config.ServerConfig, log *zerolog.Logger) (http.Handler, error) {
	// initialize token handler
	tokenHandler, err := middleware.NewTokenHandler(mainService)
	if err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(serverConfig.DisplayTimezone)
	if err != nil {
		return nil, err
	}

	// initialize handlers
	urlHandler, err := handlers.InitHandlers(mainService, location, log)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Compress(5))
	r.Use(middleware.DecompressHandle)
	publicGroup := r.Group(nil)
	mainGroup := r.Group(nil)
	mainGroup.Use(tokenHandler.TokenHandle)
	publicGroup.Get("/health", urlHandler.HandleHealth())
	publicGroup.Post("/api/user/register", urlHandler.HandleRegister())
	publicGroup.Post("/api/user/login", urlHandler.HandleLogin())
	mainGroup.Get("/api/user/dashboard", urlHandler.HandleGetDashboard())
	mainGroup.Post("/api/user/accounts", urlHandler.HandleNewAccount())
	mainGroup.Get("/api/user/balance", urlHandler.HandleGetBalance())
	mainGroup.Post("/api/user/wallet", urlHandler.HandleSetWallet())
	mainGroup.Post("/api/accounts/{accountID}/release", urlHandler.HandleRelease())
	mainGroup.Get("/api/rent/{accountID}/{tariff}", urlHandler.HandleRent())
	mainGroup.Post("/api/rent/{accountID}/{tariff}", urlHandler.HandleRent())
	return r, nil
}

// InitServer returns a http.Server object ready to be listening and serving.
func InitServer(mainService processor.Processor, serverConfig *config.ServerConfig, log *zerolog.Logger) (*http.Server, error) {
	r, err := NewRouter(mainService, serverConfig, log)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:         serverConfig.ServerAddress,
		Handler:      r,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}
