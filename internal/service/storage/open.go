package storage

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/artifact-chatbot/backend/internal/config"
)

// Backend is the publisher selected by configuration. NATS is set only for
// the NATS driver, whose objects the API serves itself.
type Backend struct {
	Publisher Publisher
	NATS      *NATSPublisher

	conn *nats.Conn
}

// Open builds the publisher for cfg.Driver.
func Open(cfg config.StorageConfig, log zerolog.Logger) (*Backend, error) {
	switch cfg.Driver {
	case config.StorageNATS:
		opts := []nats.Option{nats.Name("artifact-chatbot")}
		if cfg.Timeout > 0 {
			opts = append(opts, nats.Timeout(cfg.Timeout))
		}
		conn, err := nats.Connect(cfg.NATSURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
		}
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to open JetStream context: %w", err)
		}
		pub, err := NewNATSPublisher(js, cfg.Bucket, cfg.PublicBaseURL, log)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return &Backend{Publisher: pub, NATS: pub, conn: conn}, nil

	case config.StorageSupabase, "":
		pub := NewSupabasePublisher(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket, cfg.Timeout, log)
		return &Backend{Publisher: pub}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// Close drains the NATS connection, if any.
func (b *Backend) Close() {
	if b.conn != nil {
		_ = b.conn.Drain()
	}
}
