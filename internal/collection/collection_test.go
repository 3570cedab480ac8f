package collection

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/web2/internal/loop"
	"github.com/roach88/web2/internal/model"
	"github.com/roach88/web2/internal/remote"
	"github.com/roach88/web2/internal/testutil"
)

type item struct {
	ID   *int64  `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

func (i item) Identifier() (int64, bool) {
	if i.ID == nil {
		return 0, false
	}
	return *i.ID, true
}

func newItems(t *testing.T, b *testutil.Backend, opts ...Option) *Collection[*model.Model[item], item] {
	t.Helper()
	client := remote.NewClient()
	sync := remote.NewSync[item](b.URL("items"), client)
	return New(b.URL("items"), client, func(raw item) *model.Model[item] {
		return model.New(raw, sync)
	}, opts...)
}

func seedThree(b *testutil.Backend) {
	b.Seed("items",
		map[string]any{"id": 1, "name": "one"},
		map[string]any{"id": 2, "name": "two"},
		map[string]any{"id": 3, "name": "three"},
	)
}

func wait(t *testing.T, p *loop.Pending) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func TestCollection_FetchThreeInServerOrder(t *testing.T) {
	b := testutil.NewBackend(t)
	seedThree(b)
	c := newItems(t, b)

	completions := 0
	var lenAtCompletion int
	c.On(model.EventChange, func() {
		completions++
		lenAtCompletion = c.Len()
	})

	require.NoError(t, wait(t, c.Fetch(context.Background())))

	assert.Equal(t, 1, completions, "completion fires once per fetch, not per item")
	assert.Equal(t, 3, lenAtCompletion, "all items are present when the event fires")
	models := c.Models()
	require.Len(t, models, 3)
	for i, want := range []string{"one", "two", "three"} {
		name, ok := model.Value[string](models[i], "name")
		require.True(t, ok)
		assert.Equal(t, want, name)
	}
	assert.Same(t, models[1], c.At(1))

	reqs := b.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/items", reqs[0].Path)
}

func TestCollection_FetchAppends(t *testing.T) {
	b := testutil.NewBackend(t)
	seedThree(b)
	c := newItems(t, b)

	require.NoError(t, wait(t, c.Fetch(context.Background())))
	require.NoError(t, wait(t, c.Fetch(context.Background())))

	assert.Equal(t, 6, c.Len())
}

func TestCollection_FetchFailureLeavesSequenceUnchanged(t *testing.T) {
	b := testutil.NewBackend(t)
	seedThree(b)
	c := newItems(t, b)
	require.NoError(t, wait(t, c.Fetch(context.Background())))

	changes, errs := 0, 0
	c.On(model.EventChange, func() { changes++ })
	c.On(model.EventError, func() { errs++ })
	b.FailNext(http.StatusBadGateway)

	err := wait(t, c.Fetch(context.Background()))

	require.Error(t, err)
	assert.True(t, remote.IsStatus(err, http.StatusBadGateway))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 0, changes)
	assert.Equal(t, 1, errs)
}

func TestCollection_BadElementFailsWholeBatch(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed("items",
		map[string]any{"id": 1, "name": "one"},
		map[string]any{"id": 2, "name": 42},
	)
	c := newItems(t, b)

	err := wait(t, c.Fetch(context.Background()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection element 1")
	assert.Equal(t, 0, c.Len(), "no partial population")
}

func TestCollection_ContinuationOnLoop(t *testing.T) {
	b := testutil.NewBackend(t)
	seedThree(b)
	l := loop.New()
	c := newItems(t, b, WithExecutor(l))

	p := c.Fetch(context.Background())
	require.Eventually(t, func() bool { return l.Len() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.Len())

	l.RunPending()

	require.NoError(t, wait(t, p))
	assert.Equal(t, 3, c.Len())
}

func TestCollection_Reset(t *testing.T) {
	b := testutil.NewBackend(t)
	seedThree(b)
	c := newItems(t, b)
	require.NoError(t, wait(t, c.Fetch(context.Background())))
	changes := 0
	c.On(model.EventChange, func() { changes++ })

	c.Reset()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, changes)
}

func TestCollection_ClosedExecutorReportsError(t *testing.T) {
	b := testutil.NewBackend(t)
	seedThree(b)
	l := loop.New()
	l.Close()
	c := newItems(t, b, WithExecutor(l))

	failures, changes := 0, 0
	c.On(model.EventError, func() { failures++ })
	c.On(model.EventChange, func() { changes++ })

	err := wait(t, c.Fetch(context.Background()))

	assert.ErrorIs(t, err, model.ErrExecutorClosed)
	assert.Equal(t, 1, failures)
	assert.Equal(t, 0, changes)
	assert.Equal(t, 0, c.Len())
}
