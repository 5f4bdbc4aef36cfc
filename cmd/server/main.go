package main

import (
	"chat-relay/contract"
	"chat-relay/infrastructure/tcp/server"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/session"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until a termination signal arrives and
// returns the exit code. Deferred cleanups run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	settings, err := internal.LoadSettings(config.SettingsPath)
	if err != nil {
		return exitConfig, err
	}

	charReplacement, err := internal.CharacterRune(config.CharacterReplacement)
	if err != nil {
		return exitConfig, err
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	var censor contract.Censor
	if config.ModerationWordsPath != "" {
		moderator, err := runtime.LoadCensor(log, os.DirFS(config.ModerationWordsPath), charReplacement)
		if err != nil {
			return exitConfig, fmt.Errorf("moderation words: %w", err)
		}
		censor = moderator
	}

	// 2. Journal (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Supervision & Orchestration
	sup := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry()
	counters := observability.NewRelayCounters()
	journal := repositories.NewJournalRepository(db, log)

	orchestrator := runtime.NewOrchestrator(log, sup, registry, journal, counters,
		config.JournalBufferSize, config.StatsInterval)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workers outlive the signal: they stop only after the last session has reported.
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if err := orchestrator.Start(context.Background()); err != nil {
			log.Error("Orchestrator failed", "error", err)
		}
	}()

	// 5. Listener
	address := settings.Address()
	listener, err := net.Listen("tcp", address)
	if err != nil {
		orchestrator.Stop()
		<-workersDone
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	ping := settings.Ping()
	chatServer := server.NewChatServer(log, orchestrator.Registry(), orchestrator.Sink(), censor, counters,
		session.Settings{
			PingTime:      ping,
			ProbeTimeout:  internal.EffectiveProbeTimeout(config.ProbeTimeout, ping),
			WriteTimeout:  config.WriteTimeout,
			ClientNameLen: *settings.ClientNameLen,
			MaxLineLength: config.MaxLineLength,
		})

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay", "address", address, "at", time.Now().UTC())
		errChan <- chatServer.Serve(ctx, listener)
	}()

	// 6. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		err = <-errChan
	case err = <-errChan:
	}
	if err != nil {
		code = exitRuntime
		err = fmt.Errorf("relay server error: %w", err)
	}

	// 7. Final Cleanup: sessions are gone, let the journal drain before badger closes.
	orchestrator.Stop()
	<-workersDone
	log.Info("Program stopped cleanly")

	return code, err
}
