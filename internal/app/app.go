// Package app wires the plugin components from configuration. The HTTP
// server and the CLI commands share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/assistant"
	"github.com/InfiniteCod3/chatplugins/internal/clock"
	"github.com/InfiniteCod3/chatplugins/internal/config"
	"github.com/InfiniteCod3/chatplugins/internal/discord"
	"github.com/InfiniteCod3/chatplugins/internal/export"
	"github.com/InfiniteCod3/chatplugins/internal/fetcher"
	"github.com/InfiniteCod3/chatplugins/internal/format"
	"github.com/InfiniteCod3/chatplugins/internal/kv"
	"github.com/InfiniteCod3/chatplugins/internal/llm"
	"github.com/InfiniteCod3/chatplugins/internal/msgcache"
	natsclient "github.com/InfiniteCod3/chatplugins/internal/nats"
	"github.com/InfiniteCod3/chatplugins/internal/notify"
	"github.com/InfiniteCod3/chatplugins/internal/store"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

// App holds the wired components.
type App struct {
	Config     *config.Config
	Logger     *logger.Logger
	Clock      clock.Clock
	Discord    *discord.Client
	Cache      *msgcache.Cache
	Fetcher    *fetcher.Fetcher
	Formatter  *format.Formatter
	Store      *store.Store
	Assistant  *assistant.Assistant
	Exporter   *export.Exporter
	Suppressor *notify.Suppressor
	Notifier   notify.Notifier
	// NATS is nil when NATS_URL is empty.
	NATS *natsclient.Client

	closers []func() error
}

type options struct {
	history bool
}

// Option adjusts what New builds.
type Option func(*options)

// WithoutHistory skips the conversation store and the assistant that depends
// on it. The persistence backend is never opened, so commands built this way
// can run while the daemon holds the store.
func WithoutHistory() Option {
	return func(o *options) { o.history = false }
}

// New builds every component. History is not loaded; call Load.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	o := options{history: true}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, Logger: log, Clock: clock.Real{}}

	if cfg.NATSURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		nc, err := natsclient.Connect(connectCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		cancel()
		switch {
		case err == nil:
			a.NATS = nc
		case o.history && cfg.StoreBackend == "nats":
			return nil, err
		default:
			log.Warn("NATS unavailable, continuing without it", zap.Error(err))
		}
	}

	var publisher notify.Publisher
	if a.NATS != nil {
		publisher = natsclient.NewNoticePublisher(a.NATS)
	}
	a.Notifier = notify.NewService(log.Named("notice"), publisher)

	if o.history {
		backend, err := a.openBackend(ctx)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Store = store.New(store.NewRecordPersistence(backend), a.Clock, store.Policy{
			MaxCount:   cfg.MaxConversationHistory,
			MaxAgeDays: cfg.ConversationHistoryDays,
		}, a.Notifier, log)
	}

	a.Discord = discord.NewClient(cfg.DiscordAPIBase, cfg.DiscordToken, cfg.DiscordRequestTimeout)
	a.Cache = msgcache.New(cfg.MessageCacheSize)
	a.Fetcher = fetcher.New(a.Discord, a.Cache, a.Clock, fetcher.Options{
		Delay:               fetcher.PolicyFor(cfg.FetchPageDelayMode, cfg.FetchPageDelay),
		RateLimitMargin:     cfg.FetchRateLimitMargin,
		MaxRateLimitRetries: cfg.FetchMaxRateLimitRetry,
	}, log)
	a.Formatter = format.New(a.Cache)

	if o.history {
		var client llm.Client
		if cfg.AIAPIKey != "" {
			var err error
			client, err = llm.NewClient(llm.Config{
				Provider: llm.Provider(cfg.AIProvider),
				APIKey:   cfg.AIAPIKey,
				BaseURL:  cfg.AIBaseURL,
				Model:    cfg.AIModel,
			})
			if err != nil {
				a.Close(ctx)
				return nil, fmt.Errorf("failed to create AI client: %w", err)
			}
		}
		a.Assistant = assistant.New(client, a.Fetcher, a.Store, a.Formatter, assistant.Options{
			SystemPrompt:    cfg.AISystemPrompt,
			ContextMessages: cfg.AIContextLength,
			MaxTokens:       cfg.AIMaxTokens,
			Model:           cfg.AIModel,
		}, a.Notifier, log)
	}

	a.Exporter = export.New(a.Fetcher, a.Discord, a.Formatter, a.Clock, log)

	suppressor, err := notify.NewSuppressor(notify.Rules{
		Channels:   cfg.SuppressChannels,
		Users:      cfg.SuppressUsers,
		Keywords:   cfg.SuppressKeywords,
		QuietHours: cfg.QuietHours,
	}, time.Local)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("invalid notification rules: %w", err)
	}
	a.Suppressor = suppressor

	return a, nil
}

func (a *App) openBackend(ctx context.Context) (kv.KV, error) {
	cfg := a.Config
	switch cfg.StoreBackend {
	case "memory":
		return kv.NewMemory(), nil
	case "sqlite":
		db, err := kv.OpenSQLite(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	case "nats":
		if a.NATS == nil {
			return nil, natsclient.ErrNotConnected
		}
		return natsclient.EnsureKV(ctx, a.NATS)
	default:
		db, err := kv.OpenBolt(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	}
}

// Load merges persisted conversation history into the store. It is a no-op
// for apps built WithoutHistory.
func (a *App) Load(ctx context.Context) error {
	if a.Store == nil {
		return nil
	}
	return a.Store.LoadAll(ctx)
}

// Close flushes the store and releases backends and connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.NATS != nil {
		a.NATS.Close()
	}
	return errors.Join(errs...)
}
