package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"rollcall/pkg/platform/audit/store/postgres"
)

// Outbox is the part of the Postgres audit store the relay drives.
type Outbox interface {
	Drain(ctx context.Context, limit int, publish func(context.Context, []postgres.Entry) error) (int, error)
}

// Relay polls the outbox and produces pending entries to Kafka.
type Relay struct {
	outbox    Outbox
	client    *kgo.Client
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.interval = d }
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batchSize = n }
}

func NewRelay(outbox Outbox, client *kgo.Client, logger *slog.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		outbox:    outbox,
		client:    client,
		logger:    logger,
		interval:  time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox until ctx is cancelled. A full batch is followed
// immediately by another drain.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.outbox.Drain(ctx, r.batchSize, r.publish)
		if err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "audit outbox relay failed", "error", err)
		}
		if n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Relay) publish(ctx context.Context, entries []postgres.Entry) error {
	records := make([]*kgo.Record, len(entries))
	for i, e := range entries {
		records[i] = &kgo.Record{Key: []byte(e.Subject), Value: e.Payload}
	}
	if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce outbox batch: %w", err)
	}
	return nil
}
