package arnhem

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

var (
	errMissingKey      = errors.New("key is missing")
	errMissingFeatures = errors.New("envelope has no features key")
)

// ParkingSpot is a single parking spot from the Parkeervakken layer.
type ParkingSpot struct {
	ID          int    `json:"spot_id"`
	ParkingType string `json:"parking_type"`
	Street      string `json:"street"`
	TrafficSign string `json:"traffic_sign"`

	Neighborhood     string `json:"neighborhood"`
	NeighborhoodCode string `json:"neighborhood_code"`
	District         string `json:"district"`
	DistrictCode     string `json:"district_code"`
	Area             string `json:"area"`

	// Coordinates is the outer polygon ring as [x, y] pairs in WGS84.
	Coordinates [][]float64 `json:"coordinates"`
}

type spotAttributes struct {
	ObjectID         int    `mapstructure:"OBJECTID"`
	ParkingType      string `mapstructure:"SOORT"`
	Street           string `mapstructure:"STRAAT"`
	TrafficSign      string `mapstructure:"RVV_SOORT"`
	Neighborhood     string `mapstructure:"BUURTNAAM"`
	NeighborhoodCode string `mapstructure:"BUURTCODE"`
	District         string `mapstructure:"WIJKNAAM"`
	DistrictCode     string `mapstructure:"WIJKCODE"`
	Area             string `mapstructure:"GEBIED"`
}

// MapFeature converts one raw feature record into a ParkingSpot.
func MapFeature(raw any) (ParkingSpot, error) {
	feature, ok := raw.(map[string]any)
	if !ok {
		return ParkingSpot{}, &MappingError{Key: "feature", Err: fmt.Errorf("expected object, got %T", raw)}
	}

	attrRaw, err := objectField(feature, "attributes")
	if err != nil {
		return ParkingSpot{}, err
	}
	attrs, err := decodeAttributes(attrRaw)
	if err != nil {
		return ParkingSpot{}, err
	}

	geometry, err := objectField(feature, "geometry")
	if err != nil {
		return ParkingSpot{}, err
	}
	ring, err := decodeOuterRing(geometry)
	if err != nil {
		return ParkingSpot{}, err
	}

	return ParkingSpot{
		ID:               attrs.ObjectID,
		ParkingType:      attrs.ParkingType,
		Street:           attrs.Street,
		TrafficSign:      attrs.TrafficSign,
		Neighborhood:     attrs.Neighborhood,
		NeighborhoodCode: attrs.NeighborhoodCode,
		District:         attrs.District,
		DistrictCode:     attrs.DistrictCode,
		Area:             attrs.Area,
		Coordinates:      ring,
	}, nil
}

// MapLocations converts a query envelope into parking spots, keeping the order
// of the features array.
func MapLocations(envelope any) ([]ParkingSpot, error) {
	root, ok := envelope.(map[string]any)
	if !ok {
		return nil, &NoResultsError{Err: fmt.Errorf("unexpected envelope type %T", envelope)}
	}

	// a filter with bad syntax yields an error envelope without features
	raw, ok := root["features"]
	if !ok {
		return nil, &NoResultsError{Detail: serviceErrorMessage(root), Err: errMissingFeatures}
	}
	features, ok := raw.([]any)
	if !ok {
		return nil, &NoResultsError{Err: fmt.Errorf("features has type %T", raw)}
	}

	// a valid filter that matches nothing yields an empty list
	if len(features) == 0 {
		return nil, &NoResultsError{}
	}

	spots := make([]ParkingSpot, 0, len(features))
	for _, f := range features {
		spot, err := MapFeature(f)
		if err != nil {
			return nil, err
		}
		spots = append(spots, spot)
	}
	return spots, nil
}

func objectField(obj map[string]any, key string) (map[string]any, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, &MappingError{Key: key, Err: errMissingKey}
	}
	val, ok := raw.(map[string]any)
	if !ok {
		return nil, &MappingError{Key: key, Err: fmt.Errorf("expected object, got %T", raw)}
	}
	return val, nil
}

func decodeAttributes(raw map[string]any) (spotAttributes, error) {
	var (
		attrs spotAttributes
		md    mapstructure.Metadata
	)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           &attrs,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return spotAttributes{}, &MappingError{Key: "attributes", Err: err}
	}
	if err := dec.Decode(raw); err != nil {
		return spotAttributes{}, &MappingError{Key: "attributes", Err: err}
	}
	if len(md.Unset) > 0 {
		sort.Strings(md.Unset)
		return spotAttributes{}, &MappingError{
			Key: "attributes." + strings.Join(md.Unset, ","),
			Err: errMissingKey,
		}
	}
	if attrs.ObjectID < 0 {
		return spotAttributes{}, &MappingError{
			Key: "attributes.OBJECTID",
			Err: fmt.Errorf("negative identifier %d", attrs.ObjectID),
		}
	}
	return attrs, nil
}

func decodeOuterRing(geometry map[string]any) ([][]float64, error) {
	raw, ok := geometry["rings"]
	if !ok {
		return nil, &MappingError{Key: "geometry.rings", Err: errMissingKey}
	}
	rings, ok := raw.([]any)
	if !ok || len(rings) == 0 {
		return nil, &MappingError{Key: "geometry.rings", Err: fmt.Errorf("expected non-empty array, got %T", raw)}
	}

	var ring [][]float64
	if err := mapstructure.Decode(rings[0], &ring); err != nil {
		return nil, &MappingError{Key: "geometry.rings[0]", Err: err}
	}
	if len(ring) == 0 {
		return nil, &MappingError{Key: "geometry.rings[0]", Err: errors.New("ring is empty")}
	}
	return ring, nil
}

// serviceErrorMessage extracts the ArcGIS {"error": {"message", "details"}} text.
func serviceErrorMessage(root map[string]any) string {
	e, ok := root["error"].(map[string]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, 2)
	if msg, ok := e["message"].(string); ok && strings.TrimSpace(msg) != "" {
		parts = append(parts, strings.TrimSpace(msg))
	}
	if details, ok := e["details"].([]any); ok {
		for _, d := range details {
			if s, ok := d.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
	}
	return strings.Join(parts, "; ")
}
