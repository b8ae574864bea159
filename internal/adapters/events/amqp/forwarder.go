package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/core/domain"
)

// Publisher sends an encoded message. *Client implements it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// SnapshotSource is the part of the read model the forwarder consumes.
type SnapshotSource interface {
	Subscribe(ctx context.Context) <-chan domain.Snapshot
}

var _ Publisher = (*Client)(nil)

// Forwarder publishes every snapshot the read model emits.
type Forwarder struct {
	source     SnapshotSource
	publisher  Publisher
	routingKey string
	logger     *slog.Logger
	now        func() time.Time
	seq        uint64
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger.
func WithForwarderLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithForwarderClock sets the time source used for PublishedAt.
func WithForwarderClock(now func() time.Time) ForwarderOption {
	return func(f *Forwarder) {
		if now != nil {
			f.now = now
		}
	}
}

// NewForwarder creates a Forwarder.
func NewForwarder(source SnapshotSource, publisher Publisher, routingKey string, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		source:     source,
		publisher:  publisher,
		routingKey: routingKey,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(slog.String("component", "amqp"))
	return f
}

// Run forwards snapshots until ctx is done or the source closes. A snapshot that
// cannot be published is logged and dropped; the next one supersedes it.
func (f *Forwarder) Run(ctx context.Context) error {
	snapshots := f.source.Subscribe(ctx)
	f.logger.InfoContext(ctx, "Forwarding budget snapshots", slog.String("routing_key", f.routingKey))

	for snapshot := range snapshots {
		f.seq++
		body, err := NewSnapshotMessage(f.seq, snapshot, f.now()).ToJSON()
		if err != nil {
			f.logger.ErrorContext(ctx, "Failed to encode snapshot", slog.String("error", err.Error()))
			continue
		}
		if err := f.publisher.Publish(ctx, f.routingKey, body); err != nil {
			if ctx.Err() != nil {
				break
			}
			f.logger.ErrorContext(ctx, "Failed to publish snapshot",
				slog.Uint64("sequence", f.seq), slog.String("error", err.Error()))
			continue
		}
		f.logger.DebugContext(ctx, "Published snapshot",
			slog.Uint64("sequence", f.seq), slog.Int("expense_count", snapshot.Aggregate.ExpenseCount))
	}
	return nil
}
