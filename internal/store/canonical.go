package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Record is one JSON object stored under a resource. Numbers decode as
// json.Number so ids and large integers survive a round trip.
type Record map[string]any

// marshalCanonical produces the stored form of rec: map keys sorted,
// strings NFC normalized, HTML characters left unescaped, no trailing
// newline.
func marshalCanonical(rec Record) ([]byte, error) {
	normalized, ok := normalize(map[string]any(rec)).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("marshal record: not an object")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// normalize walks v and NFC normalizes every string, keys included.
func normalize(v any) any {
	switch val := v.(type) {
	case string:
		return norm.NFC.String(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[norm.NFC.String(k)] = normalize(elem)
		}
		return out
	case Record:
		return normalize(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalize(elem)
		}
		return out
	default:
		return v
	}
}

// unmarshalRecord parses stored JSON.
func unmarshalRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}

// DecodeRecord parses a request body into a Record.
func DecodeRecord(data []byte) (Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Record{}, nil
	}
	return unmarshalRecord(data)
}

// Canonical returns the canonical JSON form of rec.
func Canonical(rec Record) ([]byte, error) {
	return marshalCanonical(rec)
}
