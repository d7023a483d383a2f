package main

import (
	"chat-relay/infrastructure/api"
	"chat-relay/infrastructure/ws"
	"chat-relay/logs"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so that deferred cleanup (database close,
// sequence release) always executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}
	defer func() { _ = userRepository.Close() }()
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)

	// 4. Core: registry, presence, router, lifecycle service
	registry := runtime.NewRegistry()
	presence := runtime.NewPresence(log, registry)
	router := runtime.NewRouter(log, registry, messageRepository)
	relay := services.NewRelayService(log, registry, presence, router,
		userRepository, config.AllowUnknownUsers)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background workers
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewStorageGCWorker(db, log, config.GCInterval))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 7. HTTP + WebSocket server
	chatHandler := ws.NewChatHandler(log, relay, ws.Config{
		SendBufferSize: config.SendBufferSize,
		MaxMessageSize: config.MaxMessageSize,
		WriteTimeout:   config.WriteTimeout,
		PongTimeout:    config.PongTimeout,
		PingInterval:   config.PingInterval,
	})
	apiServer := api.NewServer(log, userRepository, messageRepository)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: apiServer.Routes(chatHandler),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown timed out", "error", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
