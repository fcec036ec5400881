// README: Park reference data; coordinates stay nil until the geocoding backfill fills them.
package park

import (
	"errors"

	"pickleheart/internal/types"
)

var (
	ErrNotFound   = errors.New("park not found")
	ErrNoGeocoder = errors.New("geocoder not configured")
)

type Park struct {
	ID      types.ID `json:"id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Point returns the park's coordinates and whether it has any.
func (p Park) Point() (types.Point, bool) {
	if p.Lat == nil || p.Lng == nil {
		return types.Point{}, false
	}
	return types.Point{Lat: *p.Lat, Lng: *p.Lng}, true
}
