package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nerdsphere/domain/ratelimit"
	"nerdsphere/infrastructure/http/server"
	"nerdsphere/internal"
	"nerdsphere/observability"
	"nerdsphere/runtime/workers"
	"nerdsphere/services"

	"github.com/gin-gonic/gin"
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
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the chat API and keeps every defer (store close, lock client close)
// inside one function so they all run before the process exits.
func run() (int, error) {
	dotenv := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	// 1. Configuration & Logger
	config, err := internal.LoadConfig(*dotenv)
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	if config.CooldownWindow != ratelimit.DefaultWindow {
		log.Warn("Cooldown differs from the one browser clients assume", "window", config.CooldownWindow)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Store
	store, err := openStore(ctx, log, config)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing store...", "store", config.Store)
		if err := store.close(); err != nil {
			log.Warn("Failed to close store", "error", err)
		}
	}()

	// 3. Per fingerprint serialization
	locker, closeLocker, err := openLocker(ctx, log, config)
	if err != nil {
		return exitRuntime, err
	}
	defer closeLocker()

	// 4. Services
	clock := func() time.Time { return time.Now().UTC() }
	messageService := services.NewMessageService(log, store.repository, locker,
		config.CooldownWindow, config.StoreTimeout, clock)
	retentionService := services.NewRetentionService(log, store.repository, config.StoreTimeout)

	monitor, err := observability.NewProcessMonitor()
	if err != nil {
		return exitRuntime, err
	}

	// 5. Background workers
	supervisor := workers.NewSupervisor(log)
	supervisor.Add(workers.NewTelemetryWorker(log, monitor, config.MetricInterval))
	if config.EnableSweeper {
		supervisor.Add(workers.NewRetentionWorker(log, retentionService, config.SweepInterval, clock))
	}
	if config.DebugPort > 0 && store.badger != nil {
		supervisor.Add(internal.NewDebugServer(log, store.badger, config.DebugPort, nil, func() map[string]any {
			return map[string]any{"store": config.Store, "restarts": supervisor.Restarts()}
		}))
	}
	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 6. HTTP API
	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(log,
		server.NewMessageServer(log, messageService, retentionService, clock),
		server.NewHealthServer(log, store.repository, config.Store, monitor, config.StoreTimeout),
		config.Origins(),
	)
	httpServer := server.NewHTTPServer(config.Address(), router)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", config.Address(), "store", config.Store, "lock", config.Lock)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	stop()
	<-supervisorDone
	log.Info("Program stopped cleanly", "restarts", supervisor.Restarts())

	return code, runErr
}
