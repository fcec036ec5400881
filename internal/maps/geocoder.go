// README: Google Maps geocoding for park addresses, falling back to a Places text search.
package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"pickleheart/internal/types"
)

var ErrNoResult = errors.New("no geocoding result")

// api is the subset of *maps.Client the geocoder calls.
type api interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error)
}

// Geocoder resolves park addresses to coordinates.
type Geocoder struct {
	client api
	region string
}

// NewGeocoder creates a Geocoder with the given API Key.
func NewGeocoder(apiKey string) (*Geocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client, region: "us"}, nil
}

// Geocode returns the first match for address. Street addresses go through
// the Geocoding API; venue names that it cannot place are retried as a
// Places text search.
func (g *Geocoder) Geocode(ctx context.Context, address string) (types.Point, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address, Region: g.region})
	if err != nil {
		return types.Point{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(results) > 0 {
		loc := results[0].Geometry.Location
		return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
	}

	resp, err := g.client.TextSearch(ctx, &maps.TextSearchRequest{Query: address, Region: g.region})
	if err != nil {
		return types.Point{}, fmt.Errorf("places api error: %w", err)
	}
	if len(resp.Results) == 0 {
		return types.Point{}, fmt.Errorf("%w for %q", ErrNoResult, address)
	}
	loc := resp.Results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
