// Package model composes an attribute store, an event bus and a remote
// sync adapter into one entity.
//
// Every state change goes through Set (or a save/fetch continuation, which
// calls the same merge) and emits exactly one "change" event. Callers only
// see Model methods; the store and bus are never handed out.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/web2/internal/attrs"
	"github.com/roach88/web2/internal/events"
	"github.com/roach88/web2/internal/loop"
	"github.com/roach88/web2/internal/metrics"
	"github.com/roach88/web2/internal/remote"
)

// Event names emitted by models and collections.
const (
	EventChange = "change"
	EventSave   = "save"
	EventFetch  = "fetch"
	EventError  = "error"
)

var (
	// ErrNoIdentifier is returned by Fetch on a record that was never saved.
	ErrNoIdentifier = errors.New("model: record has no identifier")

	// ErrNoSync is returned by Save and Fetch on a model built without a Syncer.
	ErrNoSync = errors.New("model: no sync adapter")

	// ErrExecutorClosed is returned when the continuation could not be posted.
	ErrExecutorClosed = errors.New("model: executor closed")
)

// Syncer is the persistence capability a model needs. *remote.Sync[T]
// implements it.
type Syncer[T any] interface {
	Fetch(ctx context.Context, id int64) (remote.Payload, error)
	Save(ctx context.Context, rec T) (remote.Payload, error)
}

type config struct {
	exec   loop.Executor
	logger *slog.Logger
}

// Option configures a Model or Collection.
type Option func(*config)

// WithExecutor sets where continuations run. Default: loop.Inline.
func WithExecutor(e loop.Executor) Option {
	return func(c *config) {
		c.exec = e
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) config {
	c := config{exec: loop.Inline{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Model is one persisted record with change notification.
type Model[T remote.HasIdentifier] struct {
	attrs  *attrs.Store[T]
	bus    *events.Bus
	sync   Syncer[T]
	exec   loop.Executor
	logger *slog.Logger

	// contMu keeps continuations of this model from interleaving.
	contMu sync.Mutex

	errMu   sync.Mutex
	lastErr error
}

// New builds a fully wired model around rec. sync may be nil for models
// that are never persisted.
func New[T remote.HasIdentifier](rec T, sync Syncer[T], opts ...Option) *Model[T] {
	cfg := newConfig(opts)
	return &Model[T]{
		attrs:  attrs.New(rec),
		bus:    events.New(),
		sync:   sync,
		exec:   cfg.exec,
		logger: cfg.logger,
	}
}

// Get returns the current value of field, typed as declared on T.
func (m *Model[T]) Get(field string) any {
	return m.attrs.Get(field)
}

// Attrs returns a snapshot of the whole record. Treat it as read-only.
func (m *Model[T]) Attrs() T {
	return m.attrs.All()
}

// Fields returns the set fields keyed by attribute name.
func (m *Model[T]) Fields() map[string]any {
	return m.attrs.Fields()
}

// IsNew reports whether the record has never been persisted.
func (m *Model[T]) IsNew() bool {
	id, ok := m.attrs.All().Identifier()
	return !ok || id == 0
}

// Set merges patch and triggers "change".
func (m *Model[T]) Set(patch T) {
	m.attrs.Set(patch)
	m.bus.Trigger(EventChange)
}

// SetFields merges name-keyed values and triggers "change". On a
// conversion error nothing is merged and no event fires.
func (m *Model[T]) SetFields(fields map[string]any) error {
	if err := m.attrs.SetFields(fields); err != nil {
		return err
	}
	m.bus.Trigger(EventChange)
	return nil
}

// On registers cb for the named event.
func (m *Model[T]) On(name string, cb func()) *events.Subscription {
	return m.bus.On(name, cb)
}

// Trigger fires the named event.
func (m *Model[T]) Trigger(name string) {
	m.bus.Trigger(name)
}

// Listeners returns the number of live listeners for name.
func (m *Model[T]) Listeners(name string) int {
	return m.bus.Count(name)
}

// Err returns the error of the most recent failed save or fetch.
func (m *Model[T]) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

// Save persists a snapshot of the current record: create when the record
// is new, update otherwise. On success the response is merged (one
// "change") and "save" fires; on failure "error" fires and the record is
// left as it was.
func (m *Model[T]) Save(ctx context.Context) *loop.Pending {
	if m.sync == nil {
		return m.fail("save", ErrNoSync)
	}
	snapshot := m.attrs.All()
	p, resolve := loop.NewPending()
	go func() {
		payload, err := m.sync.Save(ctx, snapshot)
		m.complete(resolve, "save", EventSave, payload, err)
	}()
	return p
}

// Fetch reloads the record by its identifier. Success merges the response
// (one "change") and fires "fetch"; failure fires "error".
func (m *Model[T]) Fetch(ctx context.Context) *loop.Pending {
	if m.sync == nil {
		return m.fail("fetch", ErrNoSync)
	}
	id, ok := m.attrs.All().Identifier()
	if !ok || id == 0 {
		return m.fail("fetch", ErrNoIdentifier)
	}
	p, resolve := loop.NewPending()
	go func() {
		payload, err := m.sync.Fetch(ctx, id)
		m.complete(resolve, "fetch", EventFetch, payload, err)
	}()
	return p
}

func (m *Model[T]) fail(op string, err error) *loop.Pending {
	p, resolve := loop.NewPending()
	m.complete(resolve, op, "", nil, err)
	return p
}

// complete posts the continuation for a finished request.
func (m *Model[T]) complete(resolve loop.ResolveFunc, op, event string, payload remote.Payload, err error) {
	posted := m.exec.Post(func() {
		m.contMu.Lock()
		defer m.contMu.Unlock()

		if err == nil {
			if mergeErr := m.attrs.SetFields(payload); mergeErr != nil {
				err = fmt.Errorf("%s: merge response: %w", op, mergeErr)
			}
		}
		if err != nil {
			m.errMu.Lock()
			m.lastErr = err
			m.errMu.Unlock()
			metrics.ModelOperations.WithLabelValues(op, metrics.ResultError).Inc()
			m.logger.Warn("model operation failed", "op", op, "error", err)
			m.bus.Trigger(EventError)
			resolve(err)
			return
		}

		metrics.ModelOperations.WithLabelValues(op, metrics.ResultOK).Inc()
		m.logger.Debug("model operation done", "op", op)
		m.bus.Trigger(EventChange)
		m.bus.Trigger(event)
		resolve(nil)
	})
	if !posted {
		// No executor to run on: report the failure from this goroutine.
		err := fmt.Errorf("%s: %w", op, ErrExecutorClosed)
		m.errMu.Lock()
		m.lastErr = err
		m.errMu.Unlock()
		metrics.ModelOperations.WithLabelValues(op, metrics.ResultError).Inc()
		m.logger.Warn("model operation failed", "op", op, "error", err)
		m.bus.Trigger(EventError)
		resolve(err)
	}
}

// Value returns field as V, dereferencing pointer fields. See attrs.Value.
func Value[V any, T remote.HasIdentifier](m *Model[T], field string) (V, bool) {
	return attrs.Value[V](m.attrs, field)
}
