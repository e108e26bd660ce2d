package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/app"
	"github.com/InfiniteCod3/chatplugins/internal/handler"
	"github.com/InfiniteCod3/chatplugins/internal/middleware"
	natsclient "github.com/InfiniteCod3/chatplugins/internal/nats"
	"github.com/InfiniteCod3/chatplugins/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the plugin daemon and HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting plugin daemon", zap.String("version", version))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatplugins", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}

	// History loads in the background; exchanges that happen first are
	// merged in behind the persisted entries.
	go func() {
		if err := a.Load(ctx); err != nil {
			log.Error("failed to load conversation history", zap.Error(err))
		}
	}()

	var bridge *natsclient.Bridge
	if a.NATS != nil {
		bridge = natsclient.NewBridge(a.NATS, a.Suppressor, a.Cache, log)
		if err := bridge.Start(); err != nil {
			log.Warn("notification bridge disabled", zap.Error(err))
			bridge = nil
		}
	}

	checks := []handler.Check{{Name: "store", Check: func(context.Context) error {
		if !a.Store.Loaded() {
			return errors.New("conversation history not loaded")
		}
		return nil
	}}}
	if a.NATS != nil {
		checks = append(checks, handler.Check{Name: "nats", Check: a.NATS.Check})
	}

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, handler.Handlers{
		Health:        handler.NewHealthHandler(checks...),
		Conversations: handler.NewConversationHandler(a.Assistant, log),
		Messages:      handler.NewMessageHandler(a.Fetcher, a.Discord.HasToken, log),
		Exports:       handler.NewExportHandler(a.Exporter, log),
		Notifications: handler.NewNotificationHandler(a.Suppressor, a.Cache, log),
	}, log)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.ListenAddr, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if bridge != nil {
		if err := bridge.Stop(); err != nil {
			log.Warn("failed to drain notification bridge", zap.Error(err))
		}
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Error("failed to flush state", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "issue an API token signed with JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

var (
	tokenSubject string
	tokenTTL     time.Duration
	tokenWrite   bool
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "local-client", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	tokenCmd.Flags().BoolVar(&tokenWrite, "write", true, "grant the write scope")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	scopes := []string{middleware.ScopeRead}
	if tokenWrite {
		scopes = append(scopes, middleware.ScopeWrite)
	}
	token, err := middleware.IssueToken(cfg.JWTSecret, tokenSubject, scopes, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
