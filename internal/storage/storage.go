package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage remembers which parking spots were already published.

// Store tracks published spot keys.
type Store interface {
	Close() error
	SeenSpots(keys []string) (map[string]bool, error)
	MarkSpots(keys []string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	SpotTTL         time.Duration
	CleanupInterval time.Duration
}

const (
	defaultSpotTTL         = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// SpotKey scopes a spot id to the query that produced it.
func SpotKey(queryID string, spotID int) string {
	return fmt.Sprintf("%s:%d", strings.TrimSpace(queryID), spotID)
}

func normalizeOptions(opts Options) Options {
	if opts.SpotTTL <= 0 {
		opts.SpotTTL = defaultSpotTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error             { return nil }
func (noopStore) MarkSpots([]string) error { return nil }

func (noopStore) SeenSpots(keys []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = false
	}
	return seen, nil
}
