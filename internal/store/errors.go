package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when creating a record whose id is taken.
	ErrConflict = errors.New("record already exists")

	// ErrInvalidID is returned when a record carries an id that is not a
	// positive integer.
	ErrInvalidID = errors.New("invalid record id")
)

// ParseID converts an id as it appears in JSON, YAML or a URL path.
func ParseID(v any) (int64, error) {
	var id int64
	switch n := v.(type) {
	case int:
		id = int64(n)
	case int64:
		id = n
	case uint64:
		id = int64(n)
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidID, n)
		}
		id = int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidID, n)
		}
		id = i
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidID, n)
		}
		id = i
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidID, v)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return id, nil
}
