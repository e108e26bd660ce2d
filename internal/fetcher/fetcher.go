// Package fetcher retrieves channel history page by page while respecting the
// remote API's rate limits.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/clock"
	"github.com/InfiniteCod3/chatplugins/internal/discord"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
	"github.com/InfiniteCod3/chatplugins/pkg/metrics"
	"github.com/InfiniteCod3/chatplugins/pkg/tracing"
)

const (
	// DefaultPageSize is the largest page requested per call.
	DefaultPageSize = discord.MaxPageSize
	// DefaultRetryAfter is used when a 429 carries no retry hint.
	DefaultRetryAfter = 5 * time.Second
)

// Pager returns up to limit messages older than before, newest first.
type Pager interface {
	GetMessages(ctx context.Context, channelID string, limit int, before string) ([]model.Message, error)
}

// Cache is the local read-through message cache.
type Cache interface {
	Put(channelID string, msgs ...model.Message)
	Messages(channelID string) []model.Message
}

// Options tunes pagination.
type Options struct {
	PageSize int
	// Delay is waited between successful pages.
	Delay DelayPolicy
	// RateLimitMargin is added to every server supplied retry interval.
	RateLimitMargin   time.Duration
	DefaultRetryAfter time.Duration
	// MaxRateLimitRetries bounds consecutive 429 retries of a single page.
	MaxRateLimitRetries int
}

// Fetcher collects the most recent messages of a channel.
type Fetcher struct {
	pager  Pager
	cache  Cache
	clock  clock.Clock
	opts   Options
	logger *logger.Logger
	tracer trace.Tracer
}

// New creates a fetcher. Zero PageSize, Delay and DefaultRetryAfter take the
// package defaults.
func New(pager Pager, cache Cache, clk clock.Clock, opts Options, log *logger.Logger) *Fetcher {
	if opts.PageSize <= 0 || opts.PageSize > DefaultPageSize {
		opts.PageSize = DefaultPageSize
	}
	if opts.Delay == nil {
		opts.Delay = FixedDelay(DefaultDelay)
	}
	if opts.DefaultRetryAfter <= 0 {
		opts.DefaultRetryAfter = DefaultRetryAfter
	}
	if opts.MaxRateLimitRetries < 0 {
		opts.MaxRateLimitRetries = 0
	}
	return &Fetcher{
		pager:  pager,
		cache:  cache,
		clock:  clk,
		opts:   opts,
		logger: log.Named("fetcher"),
		tracer: tracing.Tracer("fetcher"),
	}
}

// Fetch returns up to n of the channel's most recent messages, oldest first,
// with unique IDs. It never fails: errors end pagination early and the
// messages gathered so far are returned. If nothing could be fetched, the
// local cache answers instead.
func (f *Fetcher) Fetch(ctx context.Context, channelID string, n int) (result []model.Message) {
	if n <= 0 {
		return []model.Message{}
	}

	ctx, span := f.tracer.Start(ctx, "fetcher.Fetch", trace.WithAttributes(
		attribute.String("channel_id", channelID),
		attribute.Int("requested", n),
	))
	log := f.logger.WithChannel(channelID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("pagination panicked, answering from cache", zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			result = f.fromCache(channelID, n)
		}
		metrics.FetchMessages.Observe(float64(len(result)))
		span.SetAttributes(attribute.Int("returned", len(result)))
		span.End()
		log.Debug("fetch finished",
			zap.Int("requested", n),
			zap.Int("returned", len(result)),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	collected, err := f.paginate(ctx, channelID, n, log)
	if err != nil {
		span.RecordError(err)
		if len(collected) == 0 {
			log.Warn("pagination failed before any page, answering from cache", zap.Error(err))
			return f.fromCache(channelID, n)
		}
		log.Warn("pagination stopped early", zap.Error(err), zap.Int("collected", len(collected)))
	}

	if len(collected) > 0 && f.cache != nil {
		f.cache.Put(channelID, collected...)
	}
	return Finalize(collected, n)
}

// paginate walks the channel backwards until n messages are collected, history
// runs out, or a request fails. The returned slice is valid even with an error.
func (f *Fetcher) paginate(ctx context.Context, channelID string, n int, log *logger.Logger) ([]model.Message, error) {
	var collected []model.Message
	before := ""
	retries := 0

	for len(collected) < n {
		batch := n - len(collected)
		if batch > f.opts.PageSize {
			batch = f.opts.PageSize
		}

		page, err := f.pager.GetMessages(ctx, channelID, batch, before)
		if err != nil {
			var rl *discord.RateLimitError
			if !errors.As(err, &rl) {
				metrics.FetchPagesTotal.WithLabelValues("error").Inc()
				return collected, fmt.Errorf("failed to fetch page before %q: %w", before, err)
			}
			metrics.FetchPagesTotal.WithLabelValues("rate_limited").Inc()
			if retries >= f.opts.MaxRateLimitRetries {
				return collected, fmt.Errorf("gave up after %d rate limit retries: %w", retries, err)
			}
			retries++

			wait := rl.RetryAfter
			if wait <= 0 {
				wait = f.opts.DefaultRetryAfter
			}
			wait += f.opts.RateLimitMargin
			log.Warn("rate limited, retrying page",
				zap.Duration("wait", wait),
				zap.String("before", before),
				zap.Int("attempt", retries),
			)
			metrics.FetchRateLimitWaitSeconds.Observe(wait.Seconds())
			if err := f.clock.Sleep(ctx, wait); err != nil {
				return collected, err
			}
			continue
		}

		retries = 0
		metrics.FetchPagesTotal.WithLabelValues("ok").Inc()
		if len(page) == 0 {
			break
		}
		collected = append(collected, page...)
		before = oldestID(page)

		if len(collected) >= n {
			break
		}
		if err := f.clock.Sleep(ctx, f.opts.Delay(len(collected))); err != nil {
			return collected, err
		}
	}
	return collected, nil
}

func (f *Fetcher) fromCache(channelID string, n int) []model.Message {
	if f.cache == nil {
		return []model.Message{}
	}
	metrics.FetchFallbacksTotal.Inc()
	return Finalize(f.cache.Messages(channelID), n)
}

// Finalize sorts msgs oldest first, drops repeated IDs keeping the first
// occurrence, and returns the most recent n. msgs is not modified.
func Finalize(msgs []model.Message, n int) []model.Message {
	sorted := make([]model.Message, len(msgs))
	copy(sorted, msgs)
	model.SortChronological(sorted)

	seen := make(map[string]struct{}, len(sorted))
	out := make([]model.Message, 0, len(sorted))
	for _, m := range sorted {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	if n >= 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func oldestID(page []model.Message) string {
	oldest := page[0].ID
	for _, m := range page[1:] {
		if model.CompareIDs(m.ID, oldest) < 0 {
			oldest = m.ID
		}
	}
	return oldest
}
