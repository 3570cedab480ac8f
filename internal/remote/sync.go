package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// HasIdentifier is the capability a record needs to be persisted: an
// optional numeric id. ok is false for records that were never saved.
type HasIdentifier interface {
	Identifier() (id int64, ok bool)
}

// Sync persists records of type T under one root resource URL.
type Sync[T HasIdentifier] struct {
	rootURL string
	client  *Client
}

// NewSync creates a Sync for rootURL (for example
// "http://localhost:3000/users"). A nil client gets NewClient().
func NewSync[T HasIdentifier](rootURL string, client *Client) *Sync[T] {
	if client == nil {
		client = NewClient()
	}
	return &Sync[T]{
		rootURL: strings.TrimRight(rootURL, "/"),
		client:  client,
	}
}

// RootURL returns the resource root without a trailing slash.
func (s *Sync[T]) RootURL() string {
	return s.rootURL
}

// ItemURL returns the URL of the record with the given id.
func (s *Sync[T]) ItemURL(id int64) string {
	return s.rootURL + "/" + strconv.FormatInt(id, 10)
}

// Fetch reads one record.
func (s *Sync[T]) Fetch(ctx context.Context, id int64) (Payload, error) {
	var out Payload
	if err := s.client.Do(ctx, http.MethodGet, s.ItemURL(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Save creates rec when it has no (or a zero) identifier and updates the
// existing resource otherwise. A create body never carries an "id"; the
// backend assigns it. The backend's representation is returned.
func (s *Sync[T]) Save(ctx context.Context, rec T) (Payload, error) {
	var body any = rec
	method, url := http.MethodPost, s.rootURL
	if id, ok := rec.Identifier(); ok && id != 0 {
		method, url = http.MethodPut, s.ItemURL(id)
	} else {
		p, err := withoutIdentifier(rec)
		if err != nil {
			return nil, &Error{Code: ErrCodeEncode, Method: method, URL: url, Err: err}
		}
		body = p
	}

	var out Payload
	if err := s.client.Do(ctx, method, url, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// withoutIdentifier encodes rec as a payload with its "id" field removed.
func withoutIdentifier(rec any) (Payload, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if p == nil {
		p = Payload{}
	}
	delete(p, "id")
	return p, nil
}

// List reads every element of the list resource at url, decoded as K.
func List[K any](ctx context.Context, client *Client, url string) ([]K, error) {
	if client == nil {
		client = NewClient()
	}
	var out []K
	if err := client.Do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode converts a payload into a typed record.
func Decode[T any](p Payload) (T, error) {
	var out T
	raw, err := json.Marshal(p)
	if err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
