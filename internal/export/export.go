// Package export renders channel history and friend notes as downloadable
// plain-text files.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/InfiniteCod3/chatplugins/internal/clock"
	"github.com/InfiniteCod3/chatplugins/internal/discord"
	"github.com/InfiniteCod3/chatplugins/internal/format"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
	"github.com/InfiniteCod3/chatplugins/pkg/metrics"
	"github.com/InfiniteCod3/chatplugins/pkg/tracing"
)

const (
	DefaultCount = 100
	MaxCount     = 10000
)

// ErrInvalidRange is returned when After is not before Before.
var ErrInvalidRange = errors.New("invalid time range")

// Fetcher supplies channel history.
type Fetcher interface {
	Fetch(ctx context.Context, channelID string, n int) []model.Message
}

// Remote is the account-level part of the message API.
type Remote interface {
	HasToken() bool
	GetRelationships(ctx context.Context) ([]model.Relationship, error)
	GetNotes(ctx context.Context) (map[string]string, error)
}

// Request selects what to export.
type Request struct {
	ChannelID string
	Count     int
	// After and Before filter by message timestamp when non-zero.
	After  time.Time
	Before time.Time
}

// Result is a rendered export.
type Result struct {
	Filename string
	Text     string
	Count    int
}

// Exporter builds export files.
type Exporter struct {
	fetcher   Fetcher
	remote    Remote
	formatter *format.Formatter
	clock     clock.Clock
	logger    *logger.Logger
	tracer    trace.Tracer
}

// New creates an exporter.
func New(f Fetcher, remote Remote, fm *format.Formatter, clk clock.Clock, log *logger.Logger) *Exporter {
	return &Exporter{
		fetcher:   f,
		remote:    remote,
		formatter: fm,
		clock:     clk,
		logger:    log.Named("export"),
		tracer:    tracing.Tracer("export"),
	}
}

// Export fetches up to Count recent messages and renders those inside the
// requested time range.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	if !e.remote.HasToken() {
		return nil, discord.ErrMissingToken
	}
	if req.Count <= 0 {
		req.Count = DefaultCount
	}
	if req.Count > MaxCount {
		req.Count = MaxCount
	}
	if !req.After.IsZero() && !req.Before.IsZero() && !req.After.Before(req.Before) {
		return nil, ErrInvalidRange
	}

	ctx, span := e.tracer.Start(ctx, "export.Messages", trace.WithAttributes(
		attribute.String("channel.id", req.ChannelID),
		attribute.Int("export.count", req.Count),
	))
	defer span.End()

	msgs := filterRange(e.fetcher.Fetch(ctx, req.ChannelID, req.Count), req.After, req.Before)
	now := e.clock.Now()
	text := format.Document(format.Header{
		Total:      len(msgs),
		ExportedAt: now,
		ChannelID:  req.ChannelID,
		After:      req.After,
		Before:     req.Before,
	}, e.formatter.Blocks(msgs))

	metrics.ExportsTotal.WithLabelValues("messages").Inc()
	e.logger.Info("messages exported", zap.String("channel_id", req.ChannelID), zap.Int("count", len(msgs)))

	return &Result{
		Filename: fmt.Sprintf("messages-%s-%s.txt", req.ChannelID, now.UTC().Format("20060102-150405")),
		Text:     text,
		Count:    len(msgs),
	}, nil
}

// filterRange keeps messages with After <= timestamp < Before.
func filterRange(msgs []model.Message, after, before time.Time) []model.Message {
	if after.IsZero() && before.IsZero() {
		return msgs
	}
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if !after.IsZero() && m.Timestamp.Before(after) {
			continue
		}
		if !before.IsZero() && !m.Timestamp.Before(before) {
			continue
		}
		out = append(out, m)
	}
	return out
}
