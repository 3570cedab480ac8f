// Package collection loads a list resource into an ordered set of models.
package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/web2/internal/events"
	"github.com/roach88/web2/internal/loop"
	"github.com/roach88/web2/internal/metrics"
	"github.com/roach88/web2/internal/model"
	"github.com/roach88/web2/internal/remote"
)

// Deserializer turns one raw list element into a collection item,
// typically a *model.Model built by a domain factory.
type Deserializer[K, T any] func(K) T

// Option configures a Collection.
type Option func(*config)

type config struct {
	exec   loop.Executor
	logger *slog.Logger
}

// WithExecutor sets where the fetch continuation runs. Default: loop.Inline.
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

// Collection is an ordered sequence of T loaded from rootURL. Elements
// arrive as K and are converted by the deserializer.
type Collection[T, K any] struct {
	rootURL     string
	client      *remote.Client
	deserialize Deserializer[K, T]
	bus         *events.Bus
	exec        loop.Executor
	logger      *slog.Logger

	contMu sync.Mutex

	mu    sync.RWMutex
	items []T
}

// New creates an empty collection. A nil client gets remote.NewClient().
func New[T, K any](rootURL string, client *remote.Client, des Deserializer[K, T], opts ...Option) *Collection[T, K] {
	cfg := config{exec: loop.Inline{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if client == nil {
		client = remote.NewClient()
	}
	return &Collection[T, K]{
		rootURL:     rootURL,
		client:      client,
		deserialize: des,
		bus:         events.New(),
		exec:        cfg.exec,
		logger:      cfg.logger,
	}
}

// On registers cb for the named event.
func (c *Collection[T, K]) On(name string, cb func()) *events.Subscription {
	return c.bus.On(name, cb)
}

// Trigger fires the named event.
func (c *Collection[T, K]) Trigger(name string) {
	c.bus.Trigger(name)
}

// Fetch reads the list resource and appends one item per element, in
// server order. The items become visible together and "change" fires once
// after the whole batch. On failure "error" fires and the sequence is
// unchanged.
func (c *Collection[T, K]) Fetch(ctx context.Context) *loop.Pending {
	p, resolve := loop.NewPending()
	go func() {
		raw, err := remote.List[json.RawMessage](ctx, c.client, c.rootURL)
		var batch []T
		if err == nil {
			batch, err = c.decode(raw)
		}
		c.complete(resolve, batch, err)
	}()
	return p
}

// decode converts every element before anything is appended, so a bad
// element fails the whole fetch.
func (c *Collection[T, K]) decode(raw []json.RawMessage) ([]T, error) {
	batch := make([]T, 0, len(raw))
	for i, elem := range raw {
		var k K
		if err := json.Unmarshal(elem, &k); err != nil {
			return nil, fmt.Errorf("collection element %d: %w", i, err)
		}
		batch = append(batch, c.deserialize(k))
	}
	return batch, nil
}

func (c *Collection[T, K]) complete(resolve loop.ResolveFunc, batch []T, err error) {
	posted := c.exec.Post(func() {
		c.contMu.Lock()
		defer c.contMu.Unlock()

		if err != nil {
			metrics.ModelOperations.WithLabelValues("collection_fetch", metrics.ResultError).Inc()
			c.logger.Warn("collection fetch failed", "url", c.rootURL, "error", err)
			c.bus.Trigger(model.EventError)
			resolve(err)
			return
		}

		c.mu.Lock()
		c.items = append(c.items, batch...)
		c.mu.Unlock()

		metrics.ModelOperations.WithLabelValues("collection_fetch", metrics.ResultOK).Inc()
		c.logger.Debug("collection fetched", "url", c.rootURL, "count", len(batch))
		c.bus.Trigger(model.EventChange)
		resolve(nil)
	})
	if !posted {
		// No executor to run on: report the failure from this goroutine.
		err := fmt.Errorf("collection fetch: %w", model.ErrExecutorClosed)
		metrics.ModelOperations.WithLabelValues("collection_fetch", metrics.ResultError).Inc()
		c.logger.Warn("collection fetch failed", "url", c.rootURL, "error", err)
		c.bus.Trigger(model.EventError)
		resolve(err)
	}
}

// Models returns a copy of the held sequence.
func (c *Collection[T, K]) Models() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of held items.
func (c *Collection[T, K]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// At returns the item at index i. It panics if i is out of range.
func (c *Collection[T, K]) At(i int) T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[i]
}

// Reset empties the collection and fires "change".
func (c *Collection[T, K]) Reset() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
	c.bus.Trigger(model.EventChange)
}
