package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/web2/internal/testutil"
)

type person struct {
	ID   *int64  `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

func (p person) Identifier() (int64, bool) {
	if p.ID == nil {
		return 0, false
	}
	return *p.ID, true
}

func ptr[V any](v V) *V { return &v }

func newTestSync(t *testing.T, b *testutil.Backend) *Sync[person] {
	t.Helper()
	client := NewClient(WithRequestIDs(NewFixedGenerator("req-1", "req-2")))
	return NewSync[person](b.URL("people")+"/", client)
}

func TestSync_SaveWithoutIDCreates(t *testing.T) {
	b := testutil.NewBackend(t)
	s := newTestSync(t, b)

	got, err := s.Save(context.Background(), person{Name: ptr("new record")})
	require.NoError(t, err)

	reqs := b.Requests()
	require.Len(t, reqs, 1, "exactly one request")
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/people", reqs[0].Path, "no id in the URL")
	assert.NotContains(t, reqs[0].Body, "id")
	assert.Equal(t, "req-1", reqs[0].RequestID)
	assert.Equal(t, json.Number("1"), got["id"])
}

func TestSync_SaveWithIDUpdates(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed("people", map[string]any{"id": 7, "name": "old"})
	s := newTestSync(t, b)

	got, err := s.Save(context.Background(), person{ID: ptr(int64(7)), Name: ptr("X")})
	require.NoError(t, err)

	reqs := b.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/people/7", reqs[0].Path)
	assert.Equal(t, "X", got["name"])
}

func TestSync_SaveWithZeroIDCreates(t *testing.T) {
	b := testutil.NewBackend(t)
	s := newTestSync(t, b)

	_, err := s.Save(context.Background(), person{ID: ptr(int64(0))})
	require.NoError(t, err)

	reqs := b.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method, "a zero id is not a persisted identity")
	assert.NotContains(t, reqs[0].Body, "id", "the backend assigns the id")
}

func TestSync_UpdateBodyKeepsID(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed("people", map[string]any{"id": 3, "name": "old"})
	s := newTestSync(t, b)

	_, err := s.Save(context.Background(), person{ID: ptr(int64(3)), Name: ptr("new")})
	require.NoError(t, err)

	reqs := b.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]any{"id": float64(3), "name": "new"}, reqs[0].Body)
}

func TestSync_Fetch(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed("people", map[string]any{"id": 3, "name": "three"})
	s := newTestSync(t, b)

	got, err := s.Fetch(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "three", got["name"])
	assert.Equal(t, "/people/3", b.Requests()[0].Path)

	rec, err := Decode[person](got)
	require.NoError(t, err)
	assert.Equal(t, int64(3), *rec.ID)
}

func TestSync_FetchMissingIsNotFound(t *testing.T) {
	b := testutil.NewBackend(t)
	s := newTestSync(t, b)

	_, err := s.Fetch(context.Background(), 99)

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransport(err))
}

func TestSync_StatusError(t *testing.T) {
	b := testutil.NewBackend(t)
	b.FailNext(http.StatusInternalServerError)
	s := newTestSync(t, b)

	_, err := s.Save(context.Background(), person{Name: ptr("x")})

	require.Error(t, err)
	assert.True(t, IsStatus(err, 0))
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.Equal(t, http.MethodPost, re.Method)
	assert.Contains(t, re.Error(), "500")
}

func TestSync_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewSync[person](url+"/people", NewClient(WithHTTPClient(&http.Client{Timeout: time.Second})))
	_, err := s.Fetch(context.Background(), 1)

	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestSync_ContextCancelled(t *testing.T) {
	b := testutil.NewBackend(t)
	release := b.Hold()
	defer release()
	s := newTestSync(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Fetch(ctx, 1)

	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestList_PreservesServerOrder(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed("people",
		map[string]any{"id": 1, "name": "a"},
		map[string]any{"id": 2, "name": "b"},
		map[string]any{"id": 3, "name": "c"},
	)

	got, err := List[person](context.Background(), nil, b.URL("people"))
	require.NoError(t, err)

	require.Len(t, got, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, *got[i].Name)
	}
}

func TestList_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	_, err := List[person](context.Background(), nil, srv.URL)

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeDecode, re.Code)
}

func TestFixedGenerator_RepeatsLast(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "req-fixed", NewFixedGenerator().Generate())
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
