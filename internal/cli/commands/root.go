// Package commands implements the chatplugins command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/InfiniteCod3/chatplugins/internal/app"
	"github.com/InfiniteCod3/chatplugins/internal/config"
	"github.com/InfiniteCod3/chatplugins/internal/kv"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

const version = "0.3.0"

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:     "chatplugins",
	Short:   "Chat client plugins: AI assistant, exports and notification rules",
	Version: version,
	Long: `Hosts the chat client plugins as a local daemon and command line.

The daemon exposes an HTTP API for the client; the other commands run a single
plugin operation and exit. Configuration is read from the environment.`,
	Example: `  # Run the daemon
  $ chatplugins serve

  # Ask the assistant about a channel
  $ chatplugins ask 81384788765712384 "summarize the last hour"

  # Export the last 500 messages of a channel
  $ chatplugins export 81384788765712384 --count 500 -o general.txt`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() error {
	rootCmd.SetVersionTemplate(fmt.Sprintf("chatplugins version %s\n", version))
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig reads and validates the environment.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)
	return cfg, log, nil
}

// openApp builds the components and loads stored history. Callers must
// Close the app. Commands that read conversation history open the store
// themselves, so with the bolt backend they cannot run beside `serve`; use
// the daemon's /api/v1 endpoints instead.
func openApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, log, opts...)
	if errors.Is(err, kv.ErrLocked) {
		return nil, fmt.Errorf("%w; is `chatplugins serve` running? Stop it or use its HTTP API", err)
	}
	if err != nil {
		return nil, err
	}
	if err := a.Load(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// openOutput returns stdout for "" or "-", otherwise creates path.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
