// Package server serves store records over the json-server resource
// protocol:
//
//	GET    /{resource}        list, ordered by id
//	POST   /{resource}        create, id assigned when absent
//	GET    /{resource}/{id}   read
//	PUT    /{resource}/{id}   replace
//	PATCH  /{resource}/{id}   merge
//	DELETE /{resource}/{id}   delete
//
// plus GET /healthz and GET /metrics. Responses carry an ETag computed
// from the canonical body; GET honours If-None-Match.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/web2/internal/metrics"
	"github.com/roach88/web2/internal/remote"
	"github.com/roach88/web2/internal/store"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Backend is the record storage the handler serves. *store.Store
// implements it.
type Backend interface {
	List(ctx context.Context, resource string) ([]store.Record, error)
	Get(ctx context.Context, resource string, id int64) (store.Record, error)
	Create(ctx context.Context, resource string, rec store.Record) (store.Record, error)
	Replace(ctx context.Context, resource string, id int64, rec store.Record) (store.Record, error)
	Patch(ctx context.Context, resource string, id int64, patch store.Record) (store.Record, error)
	Delete(ctx context.Context, resource string, id int64) error
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithGatherer sets what /metrics exposes. Default: a private registry
// holding the metrics package collectors.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// Handler serves the resource protocol.
type Handler struct {
	backend  Backend
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	metrics  http.Handler
}

// NewHandler constructs a resource handler over b.
func NewHandler(b Backend, opts ...Option) *Handler {
	h := &Handler{backend: b, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	if h.gatherer == nil {
		reg := prometheus.NewRegistry()
		_ = metrics.Register(reg)
		h.gatherer = reg
	}
	h.metrics = promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	reqID := r.Header.Get(remote.RequestIDHeader)
	if reqID != "" {
		sw.Header().Set(remote.RequestIDHeader, reqID)
	}
	sw.Header().Set("Access-Control-Allow-Origin", "*")

	path := strings.Trim(r.URL.Path, "/")
	resource, idPart, hasID := strings.Cut(path, "/")

	switch {
	case r.Method == http.MethodOptions:
		sw.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		sw.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+remote.RequestIDHeader+", If-None-Match")
		sw.WriteHeader(http.StatusNoContent)
	case path == "healthz":
		writeJSON(sw, r, http.StatusOK, map[string]any{"status": "ok"})
	case path == "metrics":
		h.metrics.ServeHTTP(sw, r)
	case resource == "":
		writeError(sw, http.StatusNotFound, "no resource in path")
	case !hasID:
		h.handleCollection(sw, r, resource)
	case strings.Contains(idPart, "/"):
		writeError(sw, http.StatusNotFound, "nested routes are not supported")
	default:
		h.handleItem(sw, r, resource, idPart)
	}

	label := resource
	if path == "healthz" || path == "metrics" {
		label = path
	}
	metrics.ServerRequests.WithLabelValues(r.Method, label, strconv.Itoa(sw.status)).Inc()
	h.logger.Debug("request", "method", r.Method, "url", r.URL.Path, "status", sw.status, "request_id", reqID)
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request, resource string) {
	switch r.Method {
	case http.MethodGet:
		recs, err := h.backend.List(r.Context(), resource)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, r, http.StatusOK, recs)
	case http.MethodPost:
		rec, ok := h.decode(w, r)
		if !ok {
			return
		}
		created, err := h.backend.Create(r.Context(), resource, rec)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request, resource, idPart string) {
	id, err := store.ParseID(idPart)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var rec store.Record
	switch r.Method {
	case http.MethodGet:
		rec, err = h.backend.Get(r.Context(), resource, id)
	case http.MethodPut, http.MethodPatch:
		body, ok := h.decode(w, r)
		if !ok {
			return
		}
		if r.Method == http.MethodPut {
			rec, err = h.backend.Replace(r.Context(), resource, id, body)
		} else {
			rec, err = h.backend.Patch(r.Context(), resource, id, body)
		}
	case http.MethodDelete:
		err = h.backend.Delete(r.Context(), resource, id)
		rec = store.Record{}
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (store.Record, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return nil, false
	}
	rec, err := store.DecodeRecord(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return rec, true
}

// fail maps store errors to statuses. Missing records answer with an empty
// object, as json-server does.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, nil, http.StatusNotFound, map[string]any{})
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("backend failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON encodes v with an ETag. When r is a GET whose If-None-Match
// matches, it answers 304 without a body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode response: "+err.Error())
		return
	}
	etag := ETag(data)
	w.Header().Set("ETag", etag)
	if r != nil && r.Method == http.MethodGet && status == http.StatusOK && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ETag returns the strong entity tag for a response body.
func ETag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
