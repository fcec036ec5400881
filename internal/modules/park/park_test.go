package park

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickleheart/internal/testutil"
	"pickleheart/internal/types"
)

type memBackfillStore struct {
	mu      sync.Mutex
	parks   []Park
	updates map[types.ID]types.Point
	failSet bool
}

func (m *memBackfillStore) ListMissingCoordinates(context.Context) ([]Park, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Park(nil), m.parks...), nil
}

func (m *memBackfillStore) SetCoordinates(_ context.Context, id types.ID, pt types.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("db down")
	}
	if m.updates == nil {
		m.updates = map[types.ID]types.Point{}
	}
	m.updates[id] = pt
	return nil
}

type fakeGeocoder struct {
	points  map[string]types.Point
	queries []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, q string) (types.Point, error) {
	g.queries = append(g.queries, q)
	pt, ok := g.points[q]
	if !ok {
		return types.Point{}, errors.New("ZERO_RESULTS")
	}
	return pt, nil
}

func TestBackfillCoordinates(t *testing.T) {
	store := &memBackfillStore{parks: []Park{
		{ID: "p1", Name: "Riverside Courts", Address: "100 River Rd, Boulder, CO"},
		{ID: "p2", Name: "Nowhere Park", Address: ""},
	}}
	geo := &fakeGeocoder{points: map[string]types.Point{
		"Riverside Courts, 100 River Rd, Boulder, CO": {Lat: 40.01, Lng: -105.27},
	}}
	svc := NewService(store, geo, nil)

	res, err := svc.BackfillCoordinates(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, []string{"p2"}, res.Failed)
	assert.Equal(t, types.Point{Lat: 40.01, Lng: -105.27}, store.updates["p1"])
	assert.Equal(t, "Nowhere Park", geo.queries[1])
}

func TestBackfillCoordinates_DryRunWritesNothing(t *testing.T) {
	store := &memBackfillStore{parks: []Park{{ID: "p1", Name: "Riverside Courts", Address: "Riverside Courts, Boulder"}}}
	geo := &fakeGeocoder{points: map[string]types.Point{"Riverside Courts, Boulder": {Lat: 40, Lng: -105}}}
	svc := NewService(store, geo, nil)

	res, err := svc.BackfillCoordinates(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Empty(t, store.updates)
}

func TestBackfillCoordinates_WriteFailureIsRecorded(t *testing.T) {
	store := &memBackfillStore{failSet: true, parks: []Park{{ID: "p1", Name: "A"}}}
	geo := &fakeGeocoder{points: map[string]types.Point{"A": {Lat: 1, Lng: 1}}}

	res, err := NewService(store, geo, nil).BackfillCoordinates(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, res.Updated)
	assert.Equal(t, []string{"p1"}, res.Failed)
}

func TestBackfillCoordinates_NoGeocoder(t *testing.T) {
	_, err := NewService(&memBackfillStore{}, nil, nil).BackfillCoordinates(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoGeocoder)
}

func TestPark_Point(t *testing.T) {
	lat, lng := 1.5, 2.5
	pt, ok := Park{Lat: &lat, Lng: &lng}.Point()
	assert.True(t, ok)
	assert.Equal(t, types.Point{Lat: 1.5, Lng: 2.5}, pt)

	_, ok = Park{Lat: &lat}.Point()
	assert.False(t, ok)
}

func TestStore_ListWithCoordinatesOrderedByID(t *testing.T) {
	db := testutil.Postgres(t)
	testutil.SeedPark(t, db, "park-b", "B", testutil.Float(40.0), testutil.Float(-105.0))
	testutil.SeedPark(t, db, "park-a", "A", testutil.Float(41.0), testutil.Float(-104.0))
	testutil.SeedPark(t, db, "park-c", "C", nil, nil)

	store := NewStore(db)
	ctx := context.Background()

	parks, err := store.ListWithCoordinates(ctx)
	require.NoError(t, err)
	require.Len(t, parks, 2)
	assert.Equal(t, types.ID("park-a"), parks[0].ID)
	assert.Equal(t, types.ID("park-b"), parks[1].ID)

	missing, err := store.ListMissingCoordinates(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	require.NoError(t, store.SetCoordinates(ctx, "park-c", types.Point{Lat: 39.9, Lng: -105.1}))
	p, err := store.Get(ctx, "park-c")
	require.NoError(t, err)
	pt, ok := p.Point()
	require.True(t, ok)
	assert.Equal(t, 39.9, pt.Lat)

	assert.ErrorIs(t, store.SetCoordinates(ctx, "nope", types.Point{}), ErrNotFound)
	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
