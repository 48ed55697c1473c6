package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/arnhem-parking/internal/logger"
	"github.com/samvad-hq/arnhem-parking/internal/storage"
	"github.com/samvad-hq/arnhem-parking/pkg/arnhem"
	"github.com/samvad-hq/arnhem-parking/pkg/publishers"
	"github.com/samvad-hq/arnhem-parking/pkg/queries"
)

// Stats summarizes one collection pass.
type Stats struct {
	Queries   int
	Spots     int
	Fresh     int
	Published int
}

// Service runs the configured queries and publishes parking spots it has not seen before.
type Service struct {
	client    LocationsClient
	publisher EventPublisher
	store     SpotStore
	log       logger.Logger
}

// NewService wires a collector. A nil store publishes every spot on every pass.
func NewService(client LocationsClient, pub EventPublisher, log logger.Logger, store SpotStore) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	if store == nil {
		store = noopStore{}
	}
	return &Service{
		client:    client,
		publisher: pub,
		store:     store,
		log:       log,
	}
}

// Run executes one pass over qs. Per-query failures are joined; a cancelled
// context stops the pass without error.
func (s *Service) Run(ctx context.Context, qs []queries.Query) (Stats, error) {
	if s == nil || s.client == nil {
		return Stats{}, fmt.Errorf("collector service is not initialized")
	}
	if len(qs) == 0 {
		return Stats{}, fmt.Errorf("no queries configured for collection")
	}

	var (
		stats Stats
		errs  []error
	)
	for i, q := range qs {
		if ctx.Err() != nil {
			break
		}
		res, err := s.runQuery(ctx, q)
		stats.Queries++
		stats.Spots += res.Spots
		stats.Fresh += res.Fresh
		stats.Published += res.Published
		if err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("query collection failed", "query_error", map[string]any{
				"query_id": q.ID,
				"error":    err.Error(),
			})
		}
		if i < len(qs)-1 && !sleep(ctx, q.RequestDelay()) {
			break
		}
	}
	return stats, errors.Join(errs...)
}

func (s *Service) runQuery(ctx context.Context, q queries.Query) (Stats, error) {
	spots, err := s.client.Locations(ctx, q.Limit, q.Filter)
	if errors.Is(err, arnhem.ErrNoResults) {
		s.log.WarnObj("query returned no results", "query_result", map[string]any{
			"query_id": q.ID,
			"filter":   q.Filter,
			"reason":   err.Error(),
		})
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("query %s: %w", q.ID, err)
	}

	res := Stats{Spots: len(spots)}
	fresh := s.filterNewSpots(q, spots)
	res.Fresh = len(fresh)

	var (
		errs   []error
		marked []string
	)
	for _, spot := range fresh {
		if ctx.Err() != nil {
			break
		}
		if s.publisher == nil {
			break
		}
		n, err := s.publisher.Publish(ctx, publishers.NewEvent(q.ID, q.Name, spot))
		if err != nil {
			errs = append(errs, fmt.Errorf("publish spot %d for query %s: %w", spot.ID, q.ID, err))
		}
		if n > 0 {
			res.Published++
			marked = append(marked, storage.SpotKey(q.ID, spot.ID))
		}
	}

	if len(marked) > 0 {
		if err := s.store.MarkSpots(marked); err != nil {
			errs = append(errs, fmt.Errorf("mark spots for query %s: %w", q.ID, err))
		}
	}

	s.log.InfoObj("query collection completed", "query_result", map[string]any{
		"query_id":  q.ID,
		"spots":     res.Spots,
		"fresh":     res.Fresh,
		"published": res.Published,
	})
	return res, errors.Join(errs...)
}

// filterNewSpots drops duplicates within the response and spots already
// published for the query. Lookup failures keep every spot.
func (s *Service) filterNewSpots(q queries.Query, spots []arnhem.ParkingSpot) []arnhem.ParkingSpot {
	unique := make([]arnhem.ParkingSpot, 0, len(spots))
	keys := make([]string, 0, len(spots))
	dup := make(map[int]struct{}, len(spots))
	for _, spot := range spots {
		if _, ok := dup[spot.ID]; ok {
			continue
		}
		dup[spot.ID] = struct{}{}
		unique = append(unique, spot)
		keys = append(keys, storage.SpotKey(q.ID, spot.ID))
	}

	seen, err := s.store.SeenSpots(keys)
	if err != nil {
		s.log.WarnObj("seen-spot lookup failed; publishing all", "storage_error", map[string]any{
			"query_id": q.ID,
			"error":    err.Error(),
		})
		return unique
	}

	out := unique[:0]
	for i, spot := range unique {
		if seen[keys[i]] {
			continue
		}
		out = append(out, spot)
	}
	return out
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type noopStore struct{}

func (noopStore) SeenSpots([]string) (map[string]bool, error) { return map[string]bool{}, nil }
func (noopStore) MarkSpots([]string) error                    { return nil }
