package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdziat/simple-analytics/pkg/core"
	"github.com/jdziat/simple-analytics/pkg/security"
)

// InvocationLog persists records of dispatched handler calls.
type InvocationLog struct {
	db    *gorm.DB
	retry RetryConfig
}

// InvocationLogOption configures an InvocationLog.
type InvocationLogOption func(*InvocationLog)

// WithRetry sets how failed writes are retried.
func WithRetry(cfg RetryConfig) InvocationLogOption {
	return func(l *InvocationLog) {
		l.retry = cfg
	}
}

// NewInvocationLog creates an invocation log on db.
func NewInvocationLog(db *gorm.DB, opts ...InvocationLogOption) *InvocationLog {
	l := &InvocationLog{db: db, retry: DefaultRetryConfig()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Migrate creates the invocations table.
func (l *InvocationLog) Migrate(ctx context.Context) error {
	return l.db.WithContext(ctx).AutoMigrate(&core.Invocation{})
}

// Record stores an invocation. Missing IDs and start times are filled in
// and the error message is sanitized before storage. Transient write
// failures are retried.
func (l *InvocationLog) Record(ctx context.Context, inv *core.Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.StartedAt.IsZero() {
		inv.StartedAt = time.Now()
	}
	inv.Error = security.SanitizeErrorMessage(inv.Error)
	return retryWithBackoff(ctx, l.retry, func() error {
		return l.db.WithContext(ctx).Create(inv).Error
	})
}

// Get returns the invocation with the given ID.
func (l *InvocationLog) Get(ctx context.Context, id string) (*core.Invocation, error) {
	var inv core.Invocation
	if err := l.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// Recent returns the most recent invocations, newest first.
func (l *InvocationLog) Recent(ctx context.Context, limit int) ([]*core.Invocation, error) {
	var out []*core.Invocation
	err := l.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ByHandler returns the most recent invocations of one handler, newest first.
func (l *InvocationLog) ByHandler(ctx context.Context, handler string, limit int) ([]*core.Invocation, error) {
	var out []*core.Invocation
	err := l.db.WithContext(ctx).
		Where("handler = ?", handler).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteBefore removes invocations started before t and reports how many
// were removed.
func (l *InvocationLog) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	result := l.db.WithContext(ctx).
		Where("started_at < ?", t).
		Delete(&core.Invocation{})
	return result.RowsAffected, result.Error
}
