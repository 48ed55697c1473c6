package publishers

import (
	"strconv"
	"time"

	"github.com/samvad-hq/arnhem-parking/pkg/arnhem"
)

// Event represents the payload published downstream.
type Event struct {
	QueryID     string             `json:"query_id"`
	QueryName   string             `json:"query_name"`
	Spot        arnhem.ParkingSpot `json:"spot"`
	CollectedAt time.Time          `json:"collected_at"`
}

// NewEvent constructs an Event for the given query + parking spot.
func NewEvent(queryID, queryName string, spot arnhem.ParkingSpot) Event {
	return Event{
		QueryID:     queryID,
		QueryName:   queryName,
		Spot:        spot,
		CollectedAt: time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"query_id":     e.QueryID,
		"spot_id":      strconv.Itoa(e.Spot.ID),
		"traffic_sign": e.Spot.TrafficSign,
	}
}
