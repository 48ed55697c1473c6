package queries

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Package queries loads the named parking-layer queries the collector polls.

const (
	defaultLimit          = 10
	defaultFilter         = "1=1"
	defaultRequestDelayMs = 500
	maxLimit              = 2000
)

// Query is one filter run against the parking layer on every poll.
type Query struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Filter         string `json:"filter" yaml:"filter"`
	Limit          int    `json:"limit" yaml:"limit"`
	RequestDelayMs int    `json:"request_delay_ms" yaml:"request_delay_ms"`
}

type fileRegistry struct {
	Queries []Query `json:"queries" yaml:"queries"`
}

// Registry holds the queries loaded from a config file.
type Registry struct {
	mu      sync.RWMutex
	queries []Query
	idx     map[string]Query
}

// LoadRegistry loads the query registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("queries file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(parsed.Queries)
}

// NewRegistry sanitizes and validates qs. Duplicate ids are rejected.
func NewRegistry(qs []Query) (*Registry, error) {
	if len(qs) == 0 {
		return nil, errors.New("queries file contains no queries entries")
	}

	reg := &Registry{
		queries: make([]Query, 0, len(qs)),
		idx:     make(map[string]Query, len(qs)),
	}
	for i := range qs {
		q := sanitizeQuery(qs[i])
		if err := validateQuery(q); err != nil {
			return nil, fmt.Errorf("queries[%d]: %w", i, err)
		}
		if _, exists := reg.idx[q.ID]; exists {
			return nil, fmt.Errorf("duplicate query id %q", q.ID)
		}
		reg.queries = append(reg.queries, q)
		reg.idx[q.ID] = q
	}
	return reg, nil
}

// All returns a copy of the loaded queries in file order.
func (r *Registry) All() []Query {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Query, len(r.queries))
	copy(out, r.queries)
	return out
}

// ByID returns the query for the given id, if loaded.
func (r *Registry) ByID(id string) (Query, bool) {
	if r == nil {
		return Query{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Query{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.idx[id]
	return q, ok
}

func parseRegistry(data []byte, ext string) (fileRegistry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return fileRegistry{}, errors.New("queries file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (fileRegistry, error) {
	var reg fileRegistry
	if err := fn(data, &reg); err != nil {
		return fileRegistry{}, fmt.Errorf("decode %s queries: %w", name, err)
	}
	return reg, nil
}

func sanitizeQuery(q Query) Query {
	q.ID = strings.TrimSpace(q.ID)
	q.Name = strings.TrimSpace(q.Name)
	q.Filter = strings.TrimSpace(q.Filter)

	if q.Name == "" {
		q.Name = q.ID
	}
	if q.Filter == "" {
		q.Filter = defaultFilter
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.RequestDelayMs <= 0 {
		q.RequestDelayMs = defaultRequestDelayMs
	}
	return q
}

func validateQuery(q Query) error {
	if q.ID == "" {
		return errors.New("id is required")
	}
	if strings.Contains(q.ID, ":") {
		return fmt.Errorf("id %q must not contain ':'", q.ID)
	}
	if q.Limit > maxLimit {
		return fmt.Errorf("limit %d for query %q exceeds the service maximum of %d", q.Limit, q.ID, maxLimit)
	}
	return nil
}

// RequestDelay returns the pause taken after running the query.
func (q Query) RequestDelay() time.Duration {
	if q.RequestDelayMs <= 0 {
		return time.Duration(defaultRequestDelayMs) * time.Millisecond
	}
	return time.Duration(q.RequestDelayMs) * time.Millisecond
}
