package maps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"pickleheart/internal/types"
)

type fakeAPI struct {
	geocode    []maps.GeocodingResult
	geocodeErr error
	places     []maps.PlacesSearchResult
	placesErr  error
	textCalls  int
}

func (f *fakeAPI) Geocode(context.Context, *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	return f.geocode, f.geocodeErr
}

func (f *fakeAPI) TextSearch(context.Context, *maps.TextSearchRequest) (maps.PlacesSearchResponse, error) {
	f.textCalls++
	return maps.PlacesSearchResponse{Results: f.places}, f.placesErr
}

func at(lat, lng float64) maps.AddressGeometry {
	return maps.AddressGeometry{Location: maps.LatLng{Lat: lat, Lng: lng}}
}

func TestGeocode_UsesGeocodingResult(t *testing.T) {
	api := &fakeAPI{geocode: []maps.GeocodingResult{{Geometry: at(39.74, -104.99)}}}
	g := &Geocoder{client: api}

	pt, err := g.Geocode(context.Background(), "1 Main St")
	require.NoError(t, err)
	assert.Equal(t, types.Point{Lat: 39.74, Lng: -104.99}, pt)
	assert.Equal(t, 0, api.textCalls)
}

func TestGeocode_FallsBackToTextSearch(t *testing.T) {
	api := &fakeAPI{places: []maps.PlacesSearchResult{{Geometry: at(40.01, -105.27)}}}
	g := &Geocoder{client: api}

	pt, err := g.Geocode(context.Background(), "North Boulder Park")
	require.NoError(t, err)
	assert.Equal(t, types.Point{Lat: 40.01, Lng: -105.27}, pt)
	assert.Equal(t, 1, api.textCalls)
}

func TestGeocode_NoResult(t *testing.T) {
	g := &Geocoder{client: &fakeAPI{}}
	_, err := g.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestGeocode_APIError(t *testing.T) {
	g := &Geocoder{client: &fakeAPI{geocodeErr: errors.New("REQUEST_DENIED")}}
	_, err := g.Geocode(context.Background(), "1 Main St")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResult)
}
