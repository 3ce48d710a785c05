package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerStore wraps a HistoryStore with a circuit breaker. Chat requests
// touch history on the hot path (loading recent turns, recording finished
// exchanges); when the database dies each touch would otherwise wait out its
// own timeout. The breaker trips after repeated failures so those features
// degrade to no-history behavior immediately instead.
type BreakerStore struct {
	inner HistoryStore
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps inner with a circuit breaker. The breaker trips when
// at least 3 calls ran in the current 10s window and 60% or more of them
// failed; after 60s open it re-admits up to 5 trial calls.
func NewBreakerStore(inner HistoryStore, log *slog.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "history",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("store: breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &BreakerStore{inner: inner, cb: cb}
}

// State reports the breaker's current state, for readiness probes.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

// execute funnels a store call through the breaker, preserving its typed
// result. When the breaker is open the call is rejected up front with
// gobreaker.ErrOpenState.
func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	v, err := cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (b *BreakerStore) CreateSession(ctx context.Context, userID, title string) (Session, error) {
	return execute(b.cb, func() (Session, error) { return b.inner.CreateSession(ctx, userID, title) })
}

func (b *BreakerStore) Sessions(ctx context.Context, userID string) ([]Session, error) {
	return execute(b.cb, func() ([]Session, error) { return b.inner.Sessions(ctx, userID) })
}

func (b *BreakerStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	return execute(b.cb, func() ([]Message, error) { return b.inner.Messages(ctx, sessionID) })
}

func (b *BreakerStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := execute(b.cb, func() (struct{}, error) {
		return struct{}{}, b.inner.DeleteSession(ctx, sessionID)
	})
	return err
}

// RenameSession passes ErrSessionNotFound through without counting it as a
// breaker failure; a bad session id says nothing about database health.
func (b *BreakerStore) RenameSession(ctx context.Context, sessionID, title string) error {
	var notFound bool
	_, err := execute(b.cb, func() (struct{}, error) {
		err := b.inner.RenameSession(ctx, sessionID, title)
		if errors.Is(err, ErrSessionNotFound) {
			notFound = true
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	if notFound {
		return ErrSessionNotFound
	}
	return err
}

func (b *BreakerStore) Append(ctx context.Context, sessionID string, role Role, content string) error {
	_, err := execute(b.cb, func() (struct{}, error) {
		return struct{}{}, b.inner.Append(ctx, sessionID, role, content)
	})
	return err
}

func (b *BreakerStore) Recent(ctx context.Context, sessionID string, n int) ([]Message, error) {
	return execute(b.cb, func() ([]Message, error) { return b.inner.Recent(ctx, sessionID, n) })
}

// Close bypasses the breaker; shutdown must always reach the database.
func (b *BreakerStore) Close() error {
	return b.inner.Close()
}
