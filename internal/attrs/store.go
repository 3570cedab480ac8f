// Package attrs holds the attribute store that is the single source of
// truth for a model's record.
//
// A record is a Go struct. Optional fields are pointers (or maps/slices):
// a nil field in a patch means "not part of this update". Fields are
// addressed by their json tag name, falling back to the Go field name.
package attrs

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Store owns one record of type T.
type Store[T any] struct {
	mu     sync.RWMutex
	data   T
	extras map[string]any
	index  map[string]int
}

// New creates a store holding initial. T must be a struct type; anything
// else is a programming error and panics.
func New[T any](initial T) *Store[T] {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("attrs: record type %s is not a struct", t))
	}
	return &Store[T]{
		data:  initial,
		index: fieldIndex(t),
	}
}

// fieldIndex maps attribute names to struct field indexes.
func fieldIndex(t reflect.Type) map[string]int {
	idx := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		idx[name] = i
	}
	return idx
}

// Get returns the current value of field, typed exactly as the struct field
// is declared. Names outside the record type return whatever SetFields
// stored for them, or nil.
func (s *Store[T]) Get(field string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i, ok := s.index[field]; ok {
		return reflect.ValueOf(&s.data).Elem().Field(i).Interface()
	}
	return s.extras[field]
}

// Has reports whether field is declared on the record type.
func (s *Store[T]) Has(field string) bool {
	_, ok := s.index[field]
	return ok
}

// Set merges every non-zero field of patch into the held record. Fields
// left zero in patch keep their current value.
func (s *Store[T]) Set(patch T) {
	pv := reflect.ValueOf(patch)

	s.mu.Lock()
	defer s.mu.Unlock()

	dv := reflect.ValueOf(&s.data).Elem()
	for _, i := range s.index {
		if f := pv.Field(i); !f.IsZero() {
			dv.Field(i).Set(f)
		}
	}
}

// SetFields merges name-keyed values. Values for declared fields are
// converted to the field's type through JSON, so decoded payloads
// (float64 numbers, nested maps) land correctly. Unknown names are kept
// as extras. If any conversion fails nothing is applied.
func (s *Store[T]) SetFields(fields map[string]any) error {
	type assignment struct {
		index int
		value reflect.Value
	}
	var assigns []assignment
	extras := make(map[string]any)

	t := reflect.TypeFor[T]()
	for name, v := range fields {
		i, ok := s.index[name]
		if !ok {
			extras[name] = v
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("set field %q: %w", name, err)
		}
		dst := reflect.New(t.Field(i).Type)
		if err := json.Unmarshal(raw, dst.Interface()); err != nil {
			return fmt.Errorf("set field %q: %w", name, err)
		}
		assigns = append(assigns, assignment{index: i, value: dst.Elem()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dv := reflect.ValueOf(&s.data).Elem()
	for _, a := range assigns {
		dv.Field(a.index).Set(a.value)
	}
	if len(extras) > 0 {
		if s.extras == nil {
			s.extras = make(map[string]any, len(extras))
		}
		for k, v := range extras {
			s.extras[k] = v
		}
	}
	return nil
}

// All returns a copy of the record. The copy is shallow: pointer, map and
// slice fields still share their targets with the store and must be
// treated as read-only.
func (s *Store[T]) All() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Fields returns the non-zero record fields and any extras keyed by name.
func (s *Store[T]) Fields() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.index)+len(s.extras))
	dv := reflect.ValueOf(&s.data).Elem()
	for name, i := range s.index {
		if f := dv.Field(i); !f.IsZero() {
			out[name] = f.Interface()
		}
	}
	for k, v := range s.extras {
		out[k] = v
	}
	return out
}

// Value returns field as V. Pointer fields are dereferenced when V is the
// pointed-to type, so Value[string](s, "name") works for a *string field.
// The boolean is false when the field is unset or of another type.
func Value[V any, T any](s *Store[T], field string) (V, bool) {
	var zero V
	raw := s.Get(field)
	if raw == nil {
		return zero, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return zero, false
	}
	if v, ok := raw.(V); ok {
		return v, true
	}
	if rv.Kind() == reflect.Pointer {
		if v, ok := rv.Elem().Interface().(V); ok {
			return v, true
		}
	}
	return zero, false
}
