// ABOUTME: Terminal client for the shop assistant chat engine
// ABOUTME: Wires config, store, session, streaming, auth flow and cart together

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/ograin/shopassist/internal/authflow"
	"github.com/ograin/shopassist/internal/cart"
	"github.com/ograin/shopassist/internal/config"
	"github.com/ograin/shopassist/internal/session"
	"github.com/ograin/shopassist/internal/store"
	"github.com/ograin/shopassist/internal/stream"
	"github.com/ograin/shopassist/internal/transcript"
)

// getConfigPath returns the path to the client config file.
// Priority: SHOPASSIST_CONFIG env var > XDG_CONFIG_HOME/shopassist/config.yaml > ~/.config/shopassist/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SHOPASSIST_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "shopassist", "config.yaml")
}

func main() {
	configPath := flag.String("config", getConfigPath(), "Path to config file")
	sessionID := flag.String("session", "", "Session ID to resume (default: new session)")
	flag.Parse()

	// No .env file is the normal case outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *sessionID, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}

	// Logs go to stderr so they never interleave with the conversation.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func run(ctx context.Context, cfg *config.Config, sessionID string, logger *slog.Logger) error {
	st := store.Open(cfg.Storage.Path, logger)
	defer st.Close()

	if sessionID == "" {
		sessionID = session.NewID()
	}
	sess, err := session.New(ctx, sessionID, st, logger)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	client, err := stream.NewClient(stream.Options{
		StreamURL:      cfg.Agent.StreamURL,
		HistoryURL:     cfg.Agent.HistoryURL,
		UserID:         cfg.Agent.UserID,
		WelcomeMessage: cfg.Chat.WelcomeMessage,
		Logger:         logger,
	}, st)
	if err != nil {
		return fmt.Errorf("creating stream client: %w", err)
	}

	sink := &terminalSink{}

	var authCtrl *authflow.Controller
	if cfg.Agent.AuthStatusURL != "" {
		authCtrl, err = authflow.NewController(authflow.Options{
			Client:       client,
			Surface:      sink,
			StatusURL:    cfg.Agent.AuthStatusURL,
			InitialDelay: cfg.Auth.PollInitialDelay,
			Interval:     cfg.Auth.PollInterval,
			MaxAttempts:  cfg.Auth.MaxPollAttempts,
			PopupWidth:   cfg.Auth.PopupWidth,
			PopupHeight:  cfg.Auth.PopupHeight,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("creating auth controller: %w", err)
		}
	}

	var cartClient *cart.Client
	if cfg.Shop.CartAddURL != "" {
		cartClient, err = cart.NewClient(cfg.Shop.CartAddURL, nil, func(u cart.Update) {
			fmt.Println(color.GreenString("Added to cart."))
		}, logger)
		if err != nil {
			return fmt.Errorf("creating cart client: %w", err)
		}
	}

	fmt.Printf("shopassist-tui connected to %s (session %s)\n", cfg.Agent.StreamURL, sessionID)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	if err := client.Bootstrap(ctx, sess, sink); err != nil {
		logger.Warn("bootstrap failed", "error", err)
	}
	sink.endTurn()
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if input == "/help" {
			printHelp()
			fmt.Println()
			continue
		}

		if input == "/history" {
			if err := printHistory(ctx, st, sessionID); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		if input == "/clear" {
			if err := clearConversation(ctx, st, sess, sessionID); err != nil {
				fmt.Printf("[error] %v\n", err)
			} else {
				fmt.Println("Conversation cleared.")
			}
			fmt.Println()
			continue
		}

		if strings.HasPrefix(input, "/export") {
			path := strings.TrimSpace(strings.TrimPrefix(input, "/export"))
			if path == "" {
				fmt.Println("Usage: /export <file>")
			} else if err := exportConversation(ctx, st, sessionID, path); err != nil {
				fmt.Printf("[error] %v\n", err)
			} else {
				fmt.Printf("Transcript written to %s\n", path)
			}
			fmt.Println()
			continue
		}

		if strings.HasPrefix(input, "/add") {
			handleAdd(ctx, cartClient, sink, strings.TrimSpace(strings.TrimPrefix(input, "/add")))
			fmt.Println()
			continue
		}

		if input == "/auth" {
			handleAuth(ctx, authCtrl, sess, sink)
			fmt.Println()
			continue
		}

		if err := client.Send(ctx, sess, sink, input); err != nil {
			if errors.Is(err, session.ErrTurnActive) {
				fmt.Println("[error] a response is still streaming, please wait")
			} else {
				logger.Debug("send failed", "error", err)
			}
		}
		sink.endTurn()
		fmt.Println()
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /history        Replay the stored conversation")
	fmt.Println("  /clear          Clear the stored conversation and start over")
	fmt.Println("  /export <file>  Write an HTML transcript")
	fmt.Println("  /add <n>        Add product n from the last list to the cart")
	fmt.Println("  /auth           Authorize using the most recent sign-in link")
	fmt.Println("  /help           Show this help")
	fmt.Println("  /quit           Exit")
}

func printHistory(ctx context.Context, st store.Store, sessionID string) error {
	messages, err := st.Messages(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Println("No conversation history")
		return nil
	}
	for _, msg := range messages {
		label := color.GreenString("assistant:")
		if msg.Role == store.RoleUser {
			label = color.BlueString("you:")
		}
		fmt.Printf("%s %s\n", label, msg.Content)
	}
	return nil
}

func clearConversation(ctx context.Context, st store.Store, sess *session.Session, sessionID string) error {
	if err := st.ClearMessages(ctx, sessionID); err != nil {
		return err
	}
	sess.ClearResponseID(ctx)
	sess.TakePendingMessage(ctx)
	return nil
}

func exportConversation(ctx context.Context, st store.Store, sessionID, path string) error {
	messages, err := st.Messages(ctx, sessionID)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()
	return transcript.Export(f, sessionID, messages)
}

func handleAdd(ctx context.Context, cartClient *cart.Client, sink *terminalSink, arg string) {
	if cartClient == nil {
		fmt.Println("Cart is not configured (set shop.cart_add_url)")
		return
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Println("Usage: /add <n>")
		return
	}
	product, ok := sink.productAt(n)
	if !ok {
		fmt.Println("No such product in the last list")
		return
	}
	fmt.Printf("Adding %s...\n", product.Title)
	if err := cartClient.Add(ctx, product.VariantID); err != nil {
		fmt.Printf("[error] %v (try again)\n", err)
	}
}

func handleAuth(ctx context.Context, authCtrl *authflow.Controller, sess *session.Session, sink *terminalSink) {
	if authCtrl == nil {
		fmt.Println("Authorization is not configured (set agent.auth_status_url)")
		return
	}
	authURL := sink.pendingAuthURL()
	if authURL == "" {
		fmt.Println("No sign-in link in the conversation yet")
		return
	}
	authCtrl.Trigger(ctx, sess, sink, authURL)
}
