package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/okatkov/partyline/backend/config"
	"github.com/okatkov/partyline/backend/relay"
	"github.com/okatkov/partyline/backend/router"
	httpServer "github.com/okatkov/partyline/backend/server/http"
	websocketServer "github.com/okatkov/partyline/backend/server/websocket"
	store "github.com/okatkov/partyline/backend/storage/memory"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	memStore := store.NewMemStore(cfg.RoomCodeLen)
	rt := router.NewRouter(router.Config{
		Logger: &logger,
		Store:  memStore,
		Relay:  relay.NewRelay(&logger),
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:        &logger,
		RoomDirectory: memStore,
		ListenAddr:    cfg.APIListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:      &logger,
		Coordinator: rt,
		ListenAddr:  cfg.WSListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
