package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"rollcall/internal/ledger/models"
	"rollcall/internal/platform/config"
	"rollcall/pkg/domain"
)

const subjectPrefix = "rollcall.attendance."

// Connect dials NATS with an optional token. The client reconnects forever.
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// NATSBroker shares entries between instances. Every instance publishes
// to the list subject and each websocket holds its own subscription.
type NATSBroker struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewNATSBroker(conn *nats.Conn, logger *slog.Logger) *NATSBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSBroker{conn: conn, logger: logger}
}

func Subject(listID domain.ListID) string {
	return subjectPrefix + listID.String()
}

func (b *NATSBroker) Publish(_ context.Context, entry *models.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := b.conn.Publish(Subject(entry.ListID), payload); err != nil {
		return fmt.Errorf("publish entry: %w", err)
	}
	return nil
}

func (b *NATSBroker) Subscribe(listID domain.ListID) (<-chan *models.Entry, func(), error) {
	ch := make(chan *models.Entry, subscriberBuffer)
	sub, err := b.conn.Subscribe(Subject(listID), func(msg *nats.Msg) {
		var entry models.Entry
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			b.logger.Error("discarding malformed roster message",
				"subject", msg.Subject,
				"error", err,
			)
			return
		}
		if !deliver(ch, &entry) {
			b.logger.Warn("roster subscriber lagging, entry dropped",
				"list_id", listID.String(),
				"row_number", entry.RowNumber,
			)
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", Subject(listID), err)
	}
	cancel := func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
			b.logger.Warn("failed to unsubscribe roster feed", "list_id", listID.String(), "error", err)
		}
	}
	return ch, cancel, nil
}

// Ping reports whether the connection is usable.
func (b *NATSBroker) Ping(_ context.Context) error {
	if b.conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats status %s", b.conn.Status())
	}
	return nil
}
