package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rest "github.com/danilovkiri/dk-go-maxrent/internal/api/rest/v1"
	"github.com/danilovkiri/dk-go-maxrent/internal/api/telegram/client"
	"github.com/danilovkiri/dk-go-maxrent/internal/bot/v1/bot"
	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	"github.com/danilovkiri/dk-go-maxrent/internal/logger"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/processor/v1/processor"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/rental/v1/rental"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/secretary/v1/secretary"
	"github.com/danilovkiri/dk-go-maxrent/internal/service/sweeper/v1/sweeper"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/inmemory"
	"github.com/danilovkiri/dk-go-maxrent/internal/storage/v1/inpsql"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// get configuration
	cfg, err := config.NewConfiguration()
	if err != nil {
		panic(err)
	}
	cfg.ParseFlags(flag.CommandLine, os.Args[1:])

	log := logger.InitLog(cfg.ServerConfig.LogLevel)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// initialize storage
	st, closeStorage, err := initStorage(ctx, cfg.StorageConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("storage initialization failed")
	}
	defer closeStorage()

	// initialize rental engine and expiry sweeper
	engine, err := rental.InitService(st, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	sweeperService, err := sweeper.InitSweeper(engine, cfg.SweeperConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	// initialize secretary and main service
	secretaryService, err := secretary.NewSecretaryService(cfg.SecretConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	mainService, err := processor.InitService(st, engine, secretaryService, cfg.RentalConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	// initialize server
	server, err := rest.InitServer(mainService, cfg.ServerConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	if err := sweeperService.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("")
	}
	defer sweeperService.Stop()

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.BotConfig.Token != "" {
		location, err := time.LoadLocation(cfg.ServerConfig.DisplayTimezone)
		if err != nil {
			log.Fatal().Err(err).Msg("")
		}
		botService, err := bot.InitBot(client.InitClient(cfg.BotConfig, log), mainService, cfg.BotConfig, location, log)
		if err != nil {
			log.Fatal().Err(err).Msg("")
		}
		g.Go(func() error {
			return botService.Run(gCtx)
		})
	} else {
		log.Info().Msg("telegram bot disabled, no token configured")
	}

	// set a listener for graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("server shutdown attempted")
		ctxTO, cancelTO := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelTO()
		return server.Shutdown(ctxTO)
	})

	// start up the server
	g.Go(func() error {
		log.Info().Msg("server start attempted")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server shutdown succeeded")
}

// initStorage selects PostgreSQL when a DSN is configured and the in-memory store otherwise.
func initStorage(ctx context.Context, cfg *config.StorageConfig, log *zerolog.Logger) (storage.Storage, func(), error) {
	if cfg.DatabaseDSN == "" {
		log.Warn().Msg("no database DSN configured, using in-memory storage")
		return inmemory.InitStorage(log), func() {}, nil
	}
	st, err := inpsql.InitStorage(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("closing storage failed")
		}
	}, nil
}
