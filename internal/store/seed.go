package store

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Seed is initial data keyed by resource name, the shape of a json-server
// db file:
//
//	users:
//	  - id: 1
//	    name: alice
//	    age: 30
type Seed map[string][]Record

// ParseSeed decodes YAML (or JSON, which is valid YAML) seed data.
func ParseSeed(r io.Reader) (Seed, error) {
	var raw map[string][]map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return Seed{}, nil
		}
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	seed := make(Seed, len(raw))
	for resource, recs := range raw {
		for i, rec := range recs {
			if _, err := ParseID(rec["id"]); err != nil {
				return nil, fmt.Errorf("parse seed: %s[%d]: %w", resource, i, err)
			}
			seed[resource] = append(seed[resource], Record(rec))
		}
	}
	return seed, nil
}

// LoadSeedFile reads seed data from path.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// Apply writes every seeded record, overwriting records with the same id.
// Returns the number of records written.
func (s *Store) Apply(ctx context.Context, seed Seed) (int, error) {
	n := 0
	for _, resource := range slices.Sorted(maps.Keys(seed)) {
		for _, rec := range seed[resource] {
			if _, err := s.Put(ctx, resource, rec); err != nil {
				return n, fmt.Errorf("apply seed: %w", err)
			}
			n++
		}
	}
	return n, nil
}
