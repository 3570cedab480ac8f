package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID     *int64  `json:"id,omitempty"`
	Name   *string `json:"name,omitempty"`
	Age    *int    `json:"age,omitempty"`
	Hidden string  `json:"-"`
	Plain  string
	secret string
}

func ptr[V any](v V) *V { return &v }

func TestStore_GetReturnsDeclaredType(t *testing.T) {
	s := New(record{Name: ptr("DaftPunk"), Age: ptr(40)})

	name, ok := s.Get("name").(*string)
	require.True(t, ok, "name should be *string")
	assert.Equal(t, "DaftPunk", *name)

	age, ok := s.Get("age").(*int)
	require.True(t, ok, "age should be *int")
	assert.Equal(t, 40, *age)
}

func TestStore_FieldNames(t *testing.T) {
	s := New(record{Plain: "p", Hidden: "h"})

	assert.True(t, s.Has("Plain"), "untagged fields use the Go name")
	assert.False(t, s.Has("Hidden"), `json:"-" fields are not attributes`)
	assert.False(t, s.Has("secret"), "unexported fields are not attributes")
	assert.Equal(t, "p", s.Get("Plain"))
	assert.Nil(t, s.Get("missing"))
}

func TestStore_SetIsShallowMerge(t *testing.T) {
	s := New(record{ID: ptr(int64(11)), Name: ptr("DaftPunk"), Age: ptr(40)})

	s.Set(record{Age: ptr(41)})

	got := s.All()
	assert.Equal(t, int64(11), *got.ID)
	assert.Equal(t, "DaftPunk", *got.Name)
	assert.Equal(t, 41, *got.Age)
}

func TestStore_GetReflectsMostRecentSet(t *testing.T) {
	s := New(record{Name: ptr("original"), Age: ptr(1)})

	sets := []record{
		{Name: ptr("a")},
		{Age: ptr(2)},
		{Name: ptr("b")},
		{Age: ptr(3), Name: ptr("c")},
		{},
	}
	wantName := []string{"a", "a", "b", "c", "c"}
	wantAge := []int{1, 2, 2, 3, 3}

	for i, patch := range sets {
		s.Set(patch)
		name, _ := Value[string](s, "name")
		age, _ := Value[int](s, "age")
		assert.Equal(t, wantName[i], name, "name after set %d", i+1)
		assert.Equal(t, wantAge[i], age, "age after set %d", i+1)
	}
}

func TestStore_SetFieldsConvertsPayloadValues(t *testing.T) {
	s := New(record{Name: ptr("X")})

	err := s.SetFields(map[string]any{
		"id":    float64(7),
		"age":   float64(33),
		"extra": "kept",
	})
	require.NoError(t, err)

	id, ok := Value[int64](s, "id")
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	age, _ := Value[int](s, "age")
	assert.Equal(t, 33, age)
	assert.Equal(t, "kept", s.Get("extra"), "out-of-schema fields are merged in")
	name, _ := Value[string](s, "name")
	assert.Equal(t, "X", name)
}

func TestStore_SetFieldsFailureLeavesRecordUnchanged(t *testing.T) {
	s := New(record{Name: ptr("X"), Age: ptr(5)})

	err := s.SetFields(map[string]any{
		"name": "Y",
		"age":  "not a number",
	})
	require.Error(t, err)

	name, _ := Value[string](s, "name")
	age, _ := Value[int](s, "age")
	assert.Equal(t, "X", name)
	assert.Equal(t, 5, age)
}

func TestStore_Fields(t *testing.T) {
	s := New(record{Name: ptr("X")})
	require.NoError(t, s.SetFields(map[string]any{"role": "admin"}))

	fields := s.Fields()

	assert.Len(t, fields, 2)
	assert.Equal(t, "X", *fields["name"].(*string))
	assert.Equal(t, "admin", fields["role"])
}

func TestValue_UnsetAndMismatched(t *testing.T) {
	s := New(record{Name: ptr("X")})

	_, ok := Value[int](s, "age")
	assert.False(t, ok, "nil pointer field is unset")

	_, ok = Value[*int](s, "age")
	assert.False(t, ok, "nil pointer field is unset even when asking for the pointer type")

	_, ok = Value[int](s, "name")
	assert.False(t, ok, "type mismatch")

	_, ok = Value[string](s, "nope")
	assert.False(t, ok)
}

func TestNew_PanicsOnNonStruct(t *testing.T) {
	assert.Panics(t, func() { New(map[string]any{}) })
}
