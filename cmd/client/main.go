package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"nerdsphere/client"
	"nerdsphere/domain"
	"nerdsphere/domain/fingerprint"
	"nerdsphere/domain/ratelimit"
	"nerdsphere/errors"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL    string        `env:"CHAT_SERVER_URL,default=http://localhost:8080"`
	StatePath    string        `env:"CHAT_STATE_PATH,default=./data/client"`
	PollInterval time.Duration `env:"POLL_INTERVAL,default=3s"`
	Timeout      time.Duration `env:"CHAT_TIMEOUT,default=10s"`
	Resolution   string        `env:"CHAT_RESOLUTION,default=80x24"`
	LogLevel     string        `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run reads lines from stdin and posts them, while a poller prints the room.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := client.OpenBadgerKV(config.StatePath)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = closeKV() }()

	// The token only groups similar clients, the session id scopes the local cooldown
	token := fingerprint.ClientClass(userAgent(), config.Resolution)
	session := uuid.NewString()
	api := client.NewAPI(config.ServerURL, config.Timeout)
	cooldown := client.NewCooldown(kv, session, ratelimit.DefaultWindow, time.Now)

	seen := make(map[string]struct{})
	poller := client.NewPoller(log, api, config.PollInterval,
		func(messages []domain.Message) {
			for _, message := range messages {
				if _, ok := seen[message.ID]; ok {
					continue
				}
				seen[message.ID] = struct{}{}
				printMessage(message, token)
			}
		},
		func(status client.Status) {
			if status == client.StatusConnected {
				color.Green.Println("● connected")
			} else {
				color.Red.Println("● disconnected")
			}
		},
	)
	go func() { _ = poller.Run(ctx) }()

	color.Cyan.Printf(">>> %s as %s (Ctrl+C to quit)\n", config.ServerURL, token)

	// 3. Input loop. Scanning happens in its own goroutine so Ctrl+C is honored.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if line == "" {
				continue
			}
			send(ctx, api, cooldown, token, line)
		}
	}
}

func send(ctx context.Context, api *client.API, cooldown *client.Cooldown, token fingerprint.Token, line string) {
	decision, err := cooldown.CanSend(ctx)
	if err != nil {
		color.Red.Printf("cooldown unavailable: %v\n", err)
	} else if !decision.Allowed {
		color.Yellow.Printf("Please wait %d seconds before sending another message\n", decision.RemainingSeconds)
		return
	}

	if _, err := api.Post(ctx, line, token.String()); err != nil {
		var apiErr *client.APIError
		switch {
		case stderrors.Is(err, errors.ErrRateLimited) && stderrors.As(err, &apiErr):
			color.Yellow.Printf("Please wait %d seconds before sending another message\n", apiErr.RemainingSeconds)
		case stderrors.As(err, &apiErr):
			color.Red.Println(apiErr.Message)
		default:
			color.Red.Printf("send failed: %v\n", err)
		}
		return
	}
	if err := cooldown.RecordSent(ctx); err != nil {
		color.Red.Printf("cooldown not saved: %v\n", err)
	}
}

func printMessage(message domain.Message, own fingerprint.Token) {
	at := message.CreatedAt.Local().Format(time.TimeOnly)
	if message.Fingerprint == own.String() {
		color.Gray.Printf("[%s] ", at)
		color.Cyan.Println(message.Content)
		return
	}
	color.Gray.Printf("[%s] ", at)
	fmt.Println(message.Content)
}

func userAgent() string {
	return fmt.Sprintf("nerdsphere-cli (%s; %s) %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}
