package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/rs/cors"

	"meowchat/auth"
	"meowchat/infrastructure/rest"
	"meowchat/infrastructure/ws"
	"meowchat/internal"
	"meowchat/repositories"
	"meowchat/runtime"
	"meowchat/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle, so
// every defer executes before the process exits and main stays testable.
func run() error {
	// 1. Configuration & Logger
	if err := godotenv.Load(); err != nil {
		fmt.Println(".env file not found, relying on the environment")
	}
	var config internal.Config
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

	// 3. Repositories, registry & services
	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}
	defer func() { _ = userRepository.Close() }()
	messageRepository := repositories.NewMessageRepository(db, log)
	registry := runtime.NewRegistry()

	secret := []byte(config.JWTSecret)
	authService := services.NewAuthService(userRepository, secret, config.AuthTokenDuration)
	chatService := services.NewChatService(log, registry, messageRepository)
	gate := auth.NewGate(log, secret)

	// 4. HTTP surface: websocket endpoint, account routes, static files
	router := mux.NewRouter()
	wsServer := ws.NewServer(log, gate, chatService, config.Origins(),
		config.ConnectionBufferSize, config.DeliveryTimeout)
	router.HandleFunc("/ws", wsServer.Handle).Methods(http.MethodGet)
	rest.NewHandler(log, authService, config.StaticDir).Routes(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   config.Origins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS", "PUT"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: c.Handler(router),
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", server.Addr, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}
