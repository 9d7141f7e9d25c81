package auth

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-auth-service/app/observability/metrics"
	"github.com/FACorreiaa/go-auth-service/internal/types"
)

var _ CredentialStore = (*instrumentedStore)(nil)

// instrumentedStore bounds every store call with a timeout and records its latency.
type instrumentedStore struct {
	next    CredentialStore
	timeout time.Duration
	metrics *metrics.AppMetrics
}

// WithTimeout wraps a CredentialStore so that each call runs under its own deadline.
func WithTimeout(store CredentialStore, timeout time.Duration) CredentialStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &instrumentedStore{next: store, timeout: timeout, metrics: metrics.Get()}
}

func call[T any](ctx context.Context, s *instrumentedStore, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := fn(ctx)
	attrs := metric.WithAttributes(attribute.String("operation", op))
	s.metrics.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil && !errors.Is(err, types.ErrNotFound) && !errors.Is(err, types.ErrDuplicateIdentity) {
		s.metrics.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
	return out, err
}

func (s *instrumentedStore) FindByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	return call(ctx, s, "find_by_email", func(ctx context.Context) (*types.UserAuth, error) {
		return s.next.FindByEmail(ctx, email)
	})
}

func (s *instrumentedStore) FindByUsername(ctx context.Context, username string) (*types.UserAuth, error) {
	return call(ctx, s, "find_by_username", func(ctx context.Context) (*types.UserAuth, error) {
		return s.next.FindByUsername(ctx, username)
	})
}

func (s *instrumentedStore) FindByID(ctx context.Context, id string) (*types.UserAuth, error) {
	return call(ctx, s, "find_by_id", func(ctx context.Context) (*types.UserAuth, error) {
		return s.next.FindByID(ctx, id)
	})
}

func (s *instrumentedStore) FindByResetToken(ctx context.Context, tokenHash string) (*types.UserAuth, error) {
	return call(ctx, s, "find_by_reset_token", func(ctx context.Context) (*types.UserAuth, error) {
		return s.next.FindByResetToken(ctx, tokenHash)
	})
}

func (s *instrumentedStore) Insert(ctx context.Context, user types.NewUser) (string, error) {
	return call(ctx, s, "insert", func(ctx context.Context) (string, error) {
		return s.next.Insert(ctx, user)
	})
}

func (s *instrumentedStore) Update(ctx context.Context, id string, upd types.UserUpdate) (*types.UserAuth, error) {
	return call(ctx, s, "update", func(ctx context.Context) (*types.UserAuth, error) {
		return s.next.Update(ctx, id, upd)
	})
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) (bool, error) {
	return call(ctx, s, "delete", func(ctx context.Context) (bool, error) {
		return s.next.Delete(ctx, id)
	})
}

func (s *instrumentedStore) ConsumeVerificationCode(ctx context.Context, id, code string, now time.Time) (*types.UserAuth, error) {
	return call(ctx, s, "consume_verification_code", func(ctx context.Context) (*types.UserAuth, error) {
		return s.next.ConsumeVerificationCode(ctx, id, code, now)
	})
}

func (s *instrumentedStore) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (*types.UserAuth, error) {
	return call(ctx, s, "consume_reset_token", func(ctx context.Context) (*types.UserAuth, error) {
		return s.next.ConsumeResetToken(ctx, tokenHash, newPasswordHash, now)
	})
}

func (s *instrumentedStore) RecordLogin(ctx context.Context, id, passwordHash string, at time.Time) (*types.UserAuth, error) {
	return call(ctx, s, "record_login", func(ctx context.Context) (*types.UserAuth, error) {
		return s.next.RecordLogin(ctx, id, passwordHash, at)
	})
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	_, err := call(ctx, s, "ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.Ping(ctx)
	})
	return err
}
