// Command realtor is a terminal front-end for the real estate assistant.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/realestate-assistant/internal/chat"
	"github.com/ashureev/realestate-assistant/internal/completion"
	"github.com/ashureev/realestate-assistant/internal/config"
	"github.com/ashureev/realestate-assistant/internal/session"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitRunError    = 2
)

// Deps holds injectable dependencies for the app.
type Deps struct {
	Completer chat.Completer
	Stdin     io.Reader
	Stdout    io.Writer
	Logger    *slog.Logger
	IsTTY     func() bool
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func runWithDeps(ctx context.Context, deps *Deps) error {
	svc := chat.NewService(deps.Completer, nil, deps.Logger)
	sess := session.New("local", "terminal")
	return svc.Run(ctx, sess, newTerminalPresenter(deps.Stdin, deps.Stdout, deps.IsTTY()))
}

func main() {
	verbose := flag.Bool("verbose", false, "Log turn details to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfigError)
	}

	completer, err := completion.New(completion.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.RequestTimeout,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfigError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runWithDeps(ctx, &Deps{
		Completer: completer,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Logger:    logger,
		IsTTY:     isTTY,
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitRunError)
	}
	os.Exit(ExitSuccess)
}
