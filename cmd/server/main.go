package main

import (
	"comms-lab/auth"
	"comms-lab/contract"
	"comms-lab/infrastructure/api"
	"comms-lab/infrastructure/grpc/server"
	"comms-lab/infrastructure/storage"
	"comms-lab/infrastructure/ws"
	"comms-lab/internal"
	"comms-lab/moderation"
	"comms-lab/runtime"
	"comms-lab/runtime/workers"
	"comms-lab/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const sequenceBandwidth = 100

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until a signal or a server failure, then shuts down.
// Returning instead of exiting lets every defer release badger and its sequences.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(strings.ToUpper(config.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	sequences := make(map[string]*storage.Sequence)
	defer func() {
		for _, seq := range sequences {
			_ = seq.Release()
		}
	}()
	for _, key := range []string{storage.SeqThread, storage.SeqMessage, storage.SeqUser} {
		seq, err := storage.NewSequence(db, key, sequenceBandwidth)
		if err != nil {
			return exitRuntime, fmt.Errorf("sequence %s: %w", key, err)
		}
		sequences[key] = seq
	}

	// 3. Stores
	threadRepository := storage.NewThreadRepository(db, logger, sequences[storage.SeqThread])
	messageRepository := storage.NewMessageRepository(db, logger, sequences[storage.SeqMessage], config.LimitMessages)
	membershipRepository := storage.NewMembershipRepository(db, logger)
	userRepository := storage.NewUserRepository(db, sequences[storage.SeqUser])

	unread, err := services.NewUnreadCalculator(threadRepository, messageRepository, membershipRepository, config.UnreadCacheSize)
	if err != nil {
		return exitRuntime, fmt.Errorf("unread calculator: %w", err)
	}
	defer unread.Close()

	censor, err := buildCensor(config, charReplacement, logger)
	if err != nil {
		return exitConfig, err
	}

	// 4. Runtime: registry, dispatcher and supervised workers
	registry := runtime.NewRegistry(logger, membershipRepository)
	dispatcher := runtime.NewDispatcher(logger, registry, config.BufferSize)
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(logger, sup, registry, dispatcher, config.SinkTimeout, config.MetricInterval)

	// 5. Services
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	commsService := services.NewCommsService(logger, threadRepository, messageRepository, membershipRepository,
		userRepository, unread, dispatcher, censor,
		services.CommsConfig{MaxContentLength: config.MaxContentLength, LimitMessages: config.LimitMessages})
	authService := services.NewAuthService(logger, userRepository, tokens)

	if config.AdminUsername != "" {
		if _, err := authService.EnsureAdmin(config.AdminUsername, config.AdminPassword); err != nil {
			return exitRuntime, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	errChan := make(chan error, 3)

	// 6. Start the Engine
	orchestratorDone := make(chan struct{})
	go func() {
		defer close(orchestratorDone)
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 7. HTTP API and WebSocket
	wsHandler := ws.NewHandler(logger, tokens, registry, ws.NewOriginChecker(config.Origins()), config.ConnectionBufferSize)
	router := api.NewRouter(logger, api.NewHandler(logger, commsService, authService, tokens),
		map[string]http.Handler{ws.Path: wsHandler})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. gRPC health
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	grpcServer, health := server.NewGRPCServer(logger)
	go func() {
		logger.Info("Starting gRPC server", "address", grpcAddress)
		for serviceName := range grpcServer.GetServiceInfo() {
			logger.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	health.SetServing(true)

	var debugServer *internal.DebugServer
	if config.DebugPort > 0 {
		debugServer = internal.NewDebugServer(logger, db, config.DebugPort, func() map[string]any {
			s := orchestrator.Snapshot()
			return map[string]any{
				"users":       s.Users,
				"connections": s.Connections,
				"pending":     s.Pending,
				"dropped":     s.Dropped,
				"delivered":   s.Delivered,
				"failed":      s.Failed,
			}
		})
		debugServer.Start()
	}

	// 9. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 10. Graceful shutdown: stop accepting, then drain the workers
	logger.Info("Shutting down gracefully...")
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if debugServer != nil {
		_ = debugServer.Shutdown(shutdownCtx)
	}
	grpcServer.GracefulStop()
	orchestrator.Stop()
	select {
	case <-orchestratorDone:
	case <-shutdownCtx.Done():
		logger.Warn("Workers did not stop in time")
	}
	logger.Info("Program stopped cleanly")

	return code, runErr
}

// buildCensor returns nil when no dictionary directory is configured.
func buildCensor(config internal.Config, charReplacement rune, logger *slog.Logger) (contract.Censor, error) {
	if config.CensoredDir == "" {
		logger.Info("Content moderation disabled")
		return nil, nil
	}
	data, err := moderation.LoadCensored(os.DirFS(config.CensoredDir), ".")
	if err != nil {
		return nil, fmt.Errorf("censored words: %w", err)
	}
	logger.Info(fmt.Sprintf("%d censored files loaded [%s]", len(data.Languages), strings.Join(data.Languages, ",")))
	logger.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	moderator, err := moderation.NewModerator(data.Words, charReplacement, logger)
	if err != nil {
		return nil, err
	}
	return moderator, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}
