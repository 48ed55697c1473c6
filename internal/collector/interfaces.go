package collector

import (
	"context"

	"github.com/samvad-hq/arnhem-parking/pkg/arnhem"
	"github.com/samvad-hq/arnhem-parking/pkg/publishers"
)

// LocationsClient queries the parking layer.
type LocationsClient interface {
	Locations(ctx context.Context, limit int, filter string) ([]arnhem.ParkingSpot, error)
}

// EventPublisher publishes spot events downstream and reports how many sinks accepted them.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// SpotStore remembers spots that were already published.
type SpotStore interface {
	SeenSpots(keys []string) (map[string]bool, error)
	MarkSpots(keys []string) error
}
