package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vk/shotmatrix/internal/app"
	"github.com/vk/shotmatrix/internal/cli"
)

// main is the entrypoint for the shotmatrix application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and
// error handling. The registry drain is deferred here so it covers all
// three exit points: normal return, signal cancellation, and panic.
func run(outW io.Writer, args []string) (err error) {
	// Seed environment defaults from a .env file when present.
	_ = godotenv.Load()

	appConfig, shouldExit, parseErr := cli.Parse(args, outW)
	if parseErr != nil {
		return parseErr
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical config errors, so we recover here to
	// provide a clean exit message to the user.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	application := app.NewApp(outW, appConfig)
	defer application.Drain(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runErr := application.Run(ctx); runErr != nil {
		if errors.Is(runErr, app.ErrRunFailed) {
			return runErr
		}
		return fmt.Errorf("run aborted: %w", runErr)
	}
	return nil
}
