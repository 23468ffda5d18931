package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
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
	ServerAddress string `env:"COMMS_SERVER_ADDR,default=localhost:8080"`
	Username      string `env:"COMMS_USERNAME,required=true"`
	Password      string `env:"COMMS_PASSWORD,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run logs in over HTTP then tails the push channel until Ctrl+C.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := login(ctx, config)
	if err != nil {
		return exitRuntime, err
	}

	wsURL := url.URL{Scheme: "ws", Host: config.ServerAddress, Path: "/ws/comms/"}
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", wsURL.String(), err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	// Unblocks ReadMessage on Ctrl+C
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	log.Info(fmt.Sprintf(">>> Connected to %s as %s (Ctrl+C to quit)...", config.ServerAddress, config.Username))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection error: %w", err)
		}
		line, err := describe(payload)
		if err != nil {
			log.Warn("Unreadable event", "error", err)
			continue
		}
		fmt.Println(line)
	}
}

func login(ctx context.Context, config Config) (string, error) {
	body, err := json.Marshal(map[string]string{"username": config.Username, "password": config.Password})
	if err != nil {
		return "", err
	}
	loginURL := url.URL{Scheme: "http", Host: config.ServerAddress, Path: "/api/auth/login"}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	var res struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected (%d): %s", resp.StatusCode, res.Error)
	}
	return res.Token, nil
}

type incoming struct {
	Type     string `json:"type"`
	ThreadID uint64 `json:"threadId"`
	Unread   int    `json:"unreadCount"`
	Action   string `json:"action"`
	Message  struct {
		ThreadID uint64 `json:"threadId"`
		Sender   struct {
			DisplayName string `json:"displayName"`
		} `json:"sender"`
		Content   string `json:"content"`
		CreatedAt string `json:"createdAt"`
	} `json:"message"`
}

// describe renders one pushed event as a terminal line.
func describe(payload []byte) (string, error) {
	var evt incoming
	if err := json.Unmarshal(payload, &evt); err != nil {
		return "", err
	}
	switch evt.Type {
	case "new_message":
		at := evt.Message.CreatedAt
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			at = t.Local().Format(time.TimeOnly)
		}
		return fmt.Sprintf("[%s] #%d %s: %s", at, evt.Message.ThreadID,
			color.Cyan.Render(evt.Message.Sender.DisplayName), evt.Message.Content), nil
	case "unread_update":
		return color.Yellow.Render(fmt.Sprintf("#%d unread: %d", evt.ThreadID, evt.Unread)), nil
	case "membership_change":
		return color.Green.Render(fmt.Sprintf("#%d membership %s", evt.ThreadID, evt.Action)), nil
	default:
		return "", fmt.Errorf("unknown event type %q", evt.Type)
	}
}
