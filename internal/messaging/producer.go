package messaging

import (
	"context"
	"log/slog"
	"time"

	"course-mark-service/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

const transport = "nats"

// Producer publishes mark events on a NATS subject. The event key becomes the
// Nats-Msg-Id header so JetStream consumers can deduplicate.
type Producer struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewProducer(url string, subject string, logger *slog.Logger, m *metrics.Metrics) (*Producer, error) {
	nc, err := nats.Connect(url,
		nats.Name("course-mark-service"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "subject", subject)

	return newProducer(nc, subject, logger, m), nil
}

func newProducer(nc *nats.Conn, subject string, logger *slog.Logger, m *metrics.Metrics) *Producer {
	return &Producer{
		conn:    nc,
		subject: subject,
		logger:  logger,
		metrics: m,
	}
}

func (p *Producer) SendMessage(ctx context.Context, key string, value interface{}) (err error) {
	start := time.Now()
	defer func() {
		p.metrics.Messaging.RecordPublish(ctx, transport, p.subject, time.Since(start), err)
	}()

	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal message", "error", err)
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(nats.MsgIdHdr, key)
	msg.Data = valueBytes

	if err = p.conn.PublishMsg(msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to NATS", "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "message sent to NATS", "subject", p.subject, "key", key)
	return nil
}

func (p *Producer) Close() error {
	return p.conn.Drain()
}
