package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-api/pkg/jobs"
	"github.com/noah-isme/campus-admin-api/pkg/middleware/requestid"
)

// AsyncPublisher hands events to a background queue so a slow or unreachable broker never
// delays a committed ledger operation. Failed publishes are retried by the queue.
type AsyncPublisher struct {
	inner  Publisher
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAsyncPublisher starts a queue that forwards events to inner.
func NewAsyncPublisher(ctx context.Context, inner Publisher, workers int, logger *zap.Logger) *AsyncPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &AsyncPublisher{inner: inner, logger: logger}
	p.queue = jobs.NewQueue("domain-events", p.deliver, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logger,
	})
	p.queue.Start(ctx)
	return p
}

// Publish enqueues the event. The request ID on ctx travels with it.
func (p *AsyncPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	err := p.queue.Enqueue(jobs.Job{
		Type:      eventType,
		Payload:   data,
		RequestID: requestid.FromContext(ctx),
	})
	if err != nil {
		p.logger.Warn("event dropped", zap.String("type", eventType), zap.Error(err))
	}
	return err
}

// Stats exposes the dispatch counters.
func (p *AsyncPublisher) Stats() jobs.Stats {
	return p.queue.Stats()
}

// Close flushes queued events and closes the underlying publisher.
func (p *AsyncPublisher) Close() error {
	p.queue.Stop()
	return p.inner.Close()
}

func (p *AsyncPublisher) deliver(ctx context.Context, job jobs.Job) error {
	if job.RequestID != "" {
		ctx = requestid.WithValue(ctx, job.RequestID)
	}
	return p.inner.Publish(ctx, job.Type, job.Payload)
}
