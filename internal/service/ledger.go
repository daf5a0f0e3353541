package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-api/internal/repository"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
)

const tracerName = "github.com/noah-isme/campus-admin-api/internal/service"

// unitOfWork runs ledger operations atomically. *repository.Store satisfies it.
type unitOfWork interface {
	InTx(ctx context.Context, fn func(repository.LedgerTx) error) error
	ReadOnly(ctx context.Context, fn func(repository.LedgerTx) error) error
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// ClientInfo identifies the caller of a mutation for the activity log.
type ClientInfo struct {
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// LedgerDeps bundles the collaborators shared by the ledger services. Nil members are
// replaced with no-op implementations.
type LedgerDeps struct {
	Metrics   *MetricsService
	Cache     cacheInvalidator
	Publisher eventPublisher
	Logger    *zap.Logger
}

// ledgerHooks runs the post-commit side effects of a ledger mutation. None of them can
// fail the operation.
type ledgerHooks struct {
	metrics   *MetricsService
	cache     cacheInvalidator
	publisher eventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer
}

func newLedgerHooks(deps LedgerDeps) ledgerHooks {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return ledgerHooks{
		metrics:   deps.Metrics,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// start opens a span for a ledger operation. The returned func records the outcome.
func (h ledgerHooks) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := h.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))
	began := time.Now()
	return ctx, func(err error) {
		h.metrics.ObserveLedger(op, err, time.Since(began))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, appErrors.FromError(err).Code)
		}
		span.End()
	}
}

// committed runs after a successful commit.
func (h ledgerHooks) committed(ctx context.Context, eventType string, payload interface{}) {
	if h.cache != nil {
		_ = h.cache.Invalidate(ctx, analyticsCachePattern)
	}
	if h.publisher == nil || eventType == "" {
		return
	}
	if err := h.publisher.Publish(ctx, eventType, payload); err != nil {
		h.logger.Warn("publish event failed", zap.String("event", eventType), zap.Error(err))
	}
}

// lookupError maps a repository lookup failure onto a NotFound or Storage error.
func lookupError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Storage(err, "failed to load "+entity)
}

// finalError normalises whatever escaped a unit of work. Typed errors pass through;
// anything else is a storage failure.
func finalError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Storage(err, message)
}
