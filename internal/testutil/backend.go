package testutil

import (
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Request is one request observed by the Backend.
type Request struct {
	Method    string
	Path      string
	Body      map[string]any
	RequestID string
}

// Backend is an httptest server speaking the json-server resource protocol
// over in-memory data. It records requests for assertions.
//
// Thread-safety: all methods are safe for concurrent use.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []Request
	records  map[string]map[int64]map[string]any
	failures []int
	gate     chan struct{}
}

// NewBackend starts a Backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{records: make(map[string]map[int64]map[string]any)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the absolute URL of a resource root, e.g. URL("users").
func (b *Backend) URL(resource string) string {
	return b.Server.URL + "/" + resource
}

// Seed stores records under resource. Every record must carry a numeric "id".
func (b *Backend) Seed(resource string, recs ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range recs {
		b.put(resource, toInt64(r["id"]), r)
	}
}

// Record returns a stored record, or nil.
func (b *Backend) Record(resource string, id int64) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.records[resource][id]
}

// Requests returns a copy of every request seen so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// FailNext makes the next request answer with status instead of being served.
func (b *Backend) FailNext(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, status)
}

// Hold makes requests block until the returned release function is called.
func (b *Backend) Hold() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gate == gate {
				b.gate = nil
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body == nil {
		body = make(map[string]any)
	}

	b.mu.Lock()
	b.requests = append(b.requests, Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		Body:      maps.Clone(body),
		RequestID: r.Header.Get("X-Request-Id"),
	})
	gate := b.gate
	var status int
	if len(b.failures) > 0 {
		status, b.failures = b.failures[0], b.failures[1:]
	}
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	resource, idPart, hasID := strings.Cut(strings.Trim(r.URL.Path, "/"), "/")
	b.mu.Lock()
	defer b.mu.Unlock()

	if !hasID {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, b.list(resource))
		case http.MethodPost:
			id := b.nextID(resource)
			body["id"] = id
			b.put(resource, id, body)
			writeJSON(w, http.StatusCreated, body)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rec, ok := b.records[resource][id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPut:
		body["id"] = id
		b.put(resource, id, body)
		writeJSON(w, http.StatusOK, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (b *Backend) put(resource string, id int64, rec map[string]any) {
	if b.records[resource] == nil {
		b.records[resource] = make(map[int64]map[string]any)
	}
	b.records[resource][id] = rec
}

func (b *Backend) list(resource string) []map[string]any {
	ids := make([]int64, 0, len(b.records[resource]))
	for id := range b.records[resource] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.records[resource][id])
	}
	return out
}

func (b *Backend) nextID(resource string) int64 {
	var max int64
	for id := range b.records[resource] {
		if id > max {
			max = id
		}
	}
	return max + 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}
