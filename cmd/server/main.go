package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"

	"soulconnect/auth"
	"soulconnect/gateway"
	"soulconnect/internal"
	"soulconnect/matching"
	"soulconnect/observability"
	"soulconnect/persona"
	"soulconnect/repositories"
	"soulconnect/runtime"
	"soulconnect/runtime/workers"
	"soulconnect/search"
	"soulconnect/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern ensures all 'defer' statements (database cleanup, index flush) execute before
// the program exits, and keeps initialization testable outside the main entry point.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories & seed data
	identityRepository := repositories.NewIdentityRepository(db, logger)
	roomRepository := repositories.NewRoomRepository(db, logger)
	messageRepository := repositories.NewMessageRepository(db, logger)

	if err := identityRepository.Seed(persona.SeedIdentities()); err != nil {
		return exitRuntime, fmt.Errorf("persona seeding failed: %w", err)
	}

	// 4. Domain components
	traitConfig, err := matching.LoadTraitConfig()
	if err != nil {
		return exitRuntime, fmt.Errorf("trait config: %w", err)
	}
	scorer := matching.NewScorer(traitConfig, rand.Float64)

	selector, err := persona.NewSelector(logger, rand.Float64)
	if err != nil {
		return exitRuntime, fmt.Errorf("persona banks: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)

	messageIndex := search.NewMessageIndex(blugeWriter, logger)

	registry := runtime.NewRegistry()
	router := runtime.NewRouter(logger, registry, roomRepository, config.SinkTimeout, metrics)
	router.AddPermanentSinks(search.NewIndexSink(messageIndex))

	engine := runtime.NewEngine(logger, registry, router,
		identityRepository, roomRepository, messageRepository, selector, metrics)

	// 5. Services & transport
	tokens := auth.NewTokens(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(identityRepository, tokens)
	matchService := services.NewMatchService(identityRepository, scorer)
	presenceService := services.NewPresenceService(identityRepository, traitConfig)
	chatService := services.NewChatService(engine, messageIndex)

	socketGateway := gateway.NewSocketGateway(logger, engine, tokens, config.ConnectionBufferSize)
	handler := gateway.NewHandler(logger, authService, matchService, presenceService, chatService, engine)
	mux := gateway.NewRouter(handler, socketGateway, tokens)

	internal.StartDebugServer(db, promRegistry, config.DebugPort)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Background workers under supervision
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	supervisor.Add(workers.NewPresenceSweeper(logger, identityRepository, roomRepository,
		router, config.SweepInterval, metrics))
	go supervisor.Run(ctx)

	// 8. HTTP server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections are long lived
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 10. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	supervisor.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
