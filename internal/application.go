package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hypergrid-games/hypergrid-backend/internal/config"
	"github.com/hypergrid-games/hypergrid-backend/internal/repository"
	"github.com/hypergrid-games/hypergrid-backend/internal/repository/storage"
	"github.com/hypergrid-games/hypergrid-backend/internal/room"
	"github.com/hypergrid-games/hypergrid-backend/transport/rest"
	"github.com/hypergrid-games/hypergrid-backend/transport/websocket"
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	// the match archive is optional; rooms themselves never touch disk
	var matches repository.MatchRepository
	if redisAddr := conf.Redis.GetRedisAddr(); redisAddr != "" {
		redisStorage, err := storage.New(ctx, redisAddr)
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		matches = repository.NewMatchRepository(redisStorage.Connection)
		log.Info("match archive enabled", "addr", redisAddr)
	} else {
		log.Info("match archive disabled")
	}

	registry := room.NewRegistry(logger, matches)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, registry)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err := <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err := <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
