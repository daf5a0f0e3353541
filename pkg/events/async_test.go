package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-api/pkg/middleware/requestid"
)

type capturePublisher struct {
	mu       sync.Mutex
	failures int
	types    []string
	requests []string
	closed   bool
}

func (p *capturePublisher) Publish(ctx context.Context, eventType string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.types = append(p.types, eventType)
	p.requests = append(p.requests, requestid.FromContext(ctx))
	return nil
}

func (p *capturePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestAsyncPublisherFlushesOnClose(t *testing.T) {
	inner := &capturePublisher{}
	pub := NewAsyncPublisher(context.Background(), inner, 1, nil)

	ctx := requestid.WithValue(context.Background(), "req-42")
	require.NoError(t, pub.Publish(ctx, EnrollmentCreated, map[string]string{"student_id": "S1"}))
	require.NoError(t, pub.Publish(ctx, PaymentRecorded, nil))
	require.NoError(t, pub.Close())

	inner.mu.Lock()
	defer inner.mu.Unlock()
	assert.Equal(t, []string{EnrollmentCreated, PaymentRecorded}, inner.types)
	assert.Equal(t, []string{"req-42", "req-42"}, inner.requests)
	assert.True(t, inner.closed)
	assert.Equal(t, uint64(2), pub.Stats().Processed)
}

func TestAsyncPublisherRejectsAfterClose(t *testing.T) {
	pub := NewAsyncPublisher(context.Background(), &capturePublisher{}, 1, nil)
	require.NoError(t, pub.Close())

	err := pub.Publish(context.Background(), StudentDeleted, nil)
	assert.Error(t, err)
	assert.Equal(t, uint64(1), pub.Stats().Rejected)
}
