package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-api/pkg/middleware/requestid"
)

// Domain event names published after a ledger mutation commits.
const (
	EnrollmentCreated   = "enrollment.created"
	EnrollmentDropped   = "enrollment.dropped"
	EnrollmentCompleted = "enrollment.completed"
	PaymentRecorded     = "payment.recorded"
	StudentDeleted      = "student.deleted"
)

// Event is the JSON payload written to the broker.
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	RequestID  string      `json:"request_id,omitempty"`
	Data       interface{} `json:"data"`
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	Close() error
}

// NATSPublisher publishes events on "<prefix>.<event type>" subjects.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher connects to the broker at url.
func NewNATSPublisher(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("campus-admin-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS publisher initialized", zap.String("url", url), zap.String("prefix", prefix))
	return &NATSPublisher{conn: nc, prefix: strings.Trim(prefix, "."), logger: logger}, nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return Subject(p.prefix, eventType)
}

// Publish marshals and sends one event.
func (p *NATSPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	payload, err := Encode(ctx, eventType, data)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.String("type", eventType), zap.Error(err))
		return err
	}

	subject := p.Subject(eventType)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Error("failed to publish event", zap.String("subject", subject), zap.Error(err))
		return err
	}

	p.logger.Debug("event published", zap.String("subject", subject))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Encode renders the wire payload for an event.
func Encode(ctx context.Context, eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(Event{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		RequestID:  requestid.FromContext(ctx),
		Data:       data,
	})
}

// Subject joins prefix and event type.
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// NopPublisher discards every event. Used when NATS_URL is empty.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
