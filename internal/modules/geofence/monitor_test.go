package geofence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickleheart/internal/modules/location"
	"pickleheart/internal/modules/notify"
	"pickleheart/internal/modules/park"
	"pickleheart/internal/modules/presence"
	"pickleheart/internal/modules/profile"
	"pickleheart/internal/types"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeParks struct {
	parks []park.Park
	err   error
}

func (f *fakeParks) ListWithCoordinates(context.Context) ([]park.Park, error) {
	return f.parks, f.err
}

type fakePresence struct {
	mu       sync.Mutex
	rows     []presence.Record
	opens    int
	closes   int
	getErr   error
	openErr  error
	closeErr error
}

func (f *fakePresence) GetOpen(_ context.Context, userID types.ID) (*presence.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.rows {
		if r.UserID == userID && r.Open() {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePresence) Open(_ context.Context, r presence.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	for _, existing := range f.rows {
		if existing.UserID == r.UserID && existing.Open() {
			return presence.ErrAlreadyOpen
		}
	}
	f.opens++
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakePresence) Close(_ context.Context, id types.ID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return f.closeErr
	}
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].Open() {
			t := at
			f.rows[i].DepartedAt = &t
			f.closes++
			return nil
		}
	}
	return presence.ErrNotFound
}

func (f *fakePresence) open(userID types.ID) []presence.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []presence.Record
	for _, r := range f.rows {
		if r.UserID == userID && r.Open() {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakePresence) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens + f.closes
}

type fakeSharing map[types.ID]bool

func (f fakeSharing) LocationSharing(_ context.Context, id types.ID) (bool, error) {
	v, ok := f[id]
	if !ok {
		return false, profile.ErrNotFound
	}
	return v, nil
}

type fakeDevices map[types.ID]location.Permission

func (f fakeDevices) State(_ context.Context, id types.ID) (location.DeviceState, error) {
	perm, ok := f[id]
	if !ok {
		perm = location.PermissionUnknown
	}
	return location.DeviceState{UserID: id, Permission: perm, Capable: true}, nil
}

type recorder struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notes...)
}

func (r *recorder) last() notify.Notification {
	all := r.all()
	if len(all) == 0 {
		return notify.Notification{}
	}
	return all[len(all)-1]
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

func coords(lat, lng float64) (*float64, *float64) { return &lat, &lng }

func newPark(id, name string, lat, lng float64) park.Park {
	la, ln := coords(lat, lng)
	return park.Park{ID: types.ID(id), Name: name, Lat: la, Lng: ln}
}

// ~111 m per 0.001 degree of latitude
var (
	parkA = newPark("park-a", "Riverside Courts", 40.0000, -105.0000)
	parkB = newPark("park-b", "Hilltop Park", 40.0100, -105.0000)
	nearA = types.Point{Lat: 40.0005, Lng: -105.0000}
	nearB = types.Point{Lat: 40.0101, Lng: -105.0000}
	away  = types.Point{Lat: 40.0500, Lng: -105.0000}
)

type fixture struct {
	m        *Monitor
	clock    *clock
	parks    *fakeParks
	presence *fakePresence
	notes    *recorder
	feed     *location.Feed
}

func newFixture(parks ...park.Park) *fixture {
	clk := &clock{t: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	guard := NewMemoryGuard(30 * time.Second)
	guard.now = clk.Now
	fx := &fixture{
		clock:    clk,
		parks:    &fakeParks{parks: parks},
		presence: &fakePresence{},
		notes:    &recorder{},
		feed:     location.NewFeed(8, nil),
	}
	fx.m = NewMonitor(Deps{
		Parks:    fx.parks,
		Presence: fx.presence,
		Sharing:  fakeSharing{"u1": true, "quiet": false},
		Devices:  fakeDevices{"u1": location.PermissionGranted, "quiet": location.PermissionGranted},
		Feed:     fx.feed,
		Guard:    guard,
		Notifier: fx.notes,
	}, 150)
	fx.m.now = clk.Now
	return fx
}

func (fx *fixture) seedOpen(userID types.ID, parkID types.ID) presence.Record {
	r := presence.Record{ID: types.NewID(), UserID: userID, ParkID: parkID, ArrivedAt: fx.clock.Now().Add(-time.Hour)}
	fx.presence.rows = append(fx.presence.rows, r)
	return r
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

func TestEvaluate_SingleParkCheckIn(t *testing.T) {
	fx := newFixture(parkA)
	ctx := context.Background()

	action := fx.m.Evaluate(ctx, "u1", nearA)
	assert.Equal(t, ActionCheckIn, action)

	open := fx.presence.open("u1")
	require.Len(t, open, 1)
	assert.Equal(t, parkA.ID, open[0].ParkID)
	assert.True(t, open[0].AutoCheckedIn)
	assert.Equal(t, fx.clock.Now(), open[0].ArrivedAt)

	n := fx.notes.last()
	assert.Equal(t, notify.LevelSuccess, n.Level)
	assert.Contains(t, n.Body, "Riverside Courts")
}

func TestEvaluate_ParkSwitchClosesAThenOpensB(t *testing.T) {
	// B is ordered first and both are in radius of the sample
	b := newPark("park-b", "Hilltop Park", 40.0000, -105.0010)
	a := newPark("park-z", "Riverside Courts", 40.0000, -105.0000)
	fx := newFixture(b, a)
	old := fx.seedOpen("u1", a.ID)

	pos := types.Point{Lat: 40.0000, Lng: -105.0005}
	action := fx.m.Evaluate(context.Background(), "u1", pos)
	assert.Equal(t, ActionCheckIn, action)

	open := fx.presence.open("u1")
	require.Len(t, open, 1)
	assert.Equal(t, b.ID, open[0].ParkID)
	for _, r := range fx.presence.rows {
		if r.ID == old.ID {
			require.NotNil(t, r.DepartedAt)
		}
	}
	assert.Equal(t, 1, fx.presence.closes)
	assert.Equal(t, 1, fx.presence.opens)
}

func TestEvaluate_FirstMatchNotNearest(t *testing.T) {
	// both within 150m; the sample is nearer to the second park
	first := newPark("p1", "First", 40.0000, -105.0000)
	second := newPark("p2", "Second", 40.0012, -105.0000)
	fx := newFixture(first, second)

	fx.m.Evaluate(context.Background(), "u1", types.Point{Lat: 40.0010, Lng: -105.0000})
	open := fx.presence.open("u1")
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ParkID)
}

func TestEvaluate_ExitClosesWithoutInsert(t *testing.T) {
	fx := newFixture(parkA, parkB)
	fx.seedOpen("u1", parkA.ID)

	action := fx.m.Evaluate(context.Background(), "u1", away)
	assert.Equal(t, ActionCheckOut, action)
	assert.Empty(t, fx.presence.open("u1"))
	assert.Equal(t, 0, fx.presence.opens)
	assert.Equal(t, 1, fx.presence.closes)

	n := fx.notes.last()
	assert.Equal(t, notify.LevelInfo, n.Level)
	assert.Contains(t, n.Body, "Riverside Courts")
}

func TestEvaluate_NoParkNoRecordIsNoop(t *testing.T) {
	fx := newFixture(parkA)
	assert.Equal(t, ActionNone, fx.m.Evaluate(context.Background(), "u1", away))
	assert.Zero(t, fx.presence.mutations())
	assert.Empty(t, fx.notes.all())
}

func TestEvaluate_AlreadyCheckedInAtSamePark(t *testing.T) {
	fx := newFixture(parkA)
	fx.seedOpen("u1", parkA.ID)

	assert.Equal(t, ActionNone, fx.m.Evaluate(context.Background(), "u1", nearA))
	assert.Zero(t, fx.presence.mutations())
}

func TestEvaluate_CooldownAllowsAtMostOneMutation(t *testing.T) {
	fx := newFixture(parkA)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		fx.m.Evaluate(ctx, "u1", nearA)
		fx.clock.Advance(5 * time.Second)
	}
	assert.Equal(t, 1, fx.presence.mutations())

	// after the window a new sample is evaluated again
	fx.clock.Advance(10 * time.Second)
	assert.Equal(t, ActionNone, fx.m.Evaluate(ctx, "u1", nearA))
}

func TestEvaluate_ConcurrentSamplesSingleMutation(t *testing.T) {
	fx := newFixture(parkA)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fx.m.Evaluate(ctx, "u1", nearA)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fx.presence.mutations())
}

func TestEvaluate_CooldownSkipsExitToo(t *testing.T) {
	fx := newFixture(parkA)
	ctx := context.Background()

	require.Equal(t, ActionCheckIn, fx.m.Evaluate(ctx, "u1", nearA))
	fx.clock.Advance(10 * time.Second)
	assert.Equal(t, ActionCooldown, fx.m.Evaluate(ctx, "u1", away))
	assert.Len(t, fx.presence.open("u1"), 1)
}

func TestEvaluate_LastAttemptMarkerBlocksReentry(t *testing.T) {
	fx := newFixture(parkA)
	ctx := context.Background()

	require.Equal(t, ActionCheckIn, fx.m.Evaluate(ctx, "u1", nearA))

	// the row is closed outside the monitor (manual check-out)
	open := fx.presence.open("u1")
	require.Len(t, open, 1)
	require.NoError(t, fx.presence.Close(ctx, open[0].ID, fx.clock.Now()))

	fx.clock.Advance(31 * time.Second)
	assert.Equal(t, ActionNone, fx.m.Evaluate(ctx, "u1", nearA))
	assert.Empty(t, fx.presence.open("u1"))

	// leaving the radius clears the marker
	fx.clock.Advance(31 * time.Second)
	fx.m.Evaluate(ctx, "u1", away)
	fx.clock.Advance(31 * time.Second)
	assert.Equal(t, ActionCheckIn, fx.m.Evaluate(ctx, "u1", nearA))
}

func TestEvaluate_OpenFailureNotifiesAndLeavesStateAlone(t *testing.T) {
	fx := newFixture(parkA)
	fx.presence.openErr = errors.New("connection reset")
	ctx := context.Background()

	assert.Equal(t, ActionFailed, fx.m.Evaluate(ctx, "u1", nearA))
	assert.Empty(t, fx.presence.open("u1"))
	n := fx.notes.last()
	assert.Equal(t, notify.LevelError, n.Level)
	assert.Contains(t, n.Body, "Riverside Courts")

	// no retry inside the cooldown; the marker was not set so the next window retries
	assert.Equal(t, ActionCooldown, fx.m.Evaluate(ctx, "u1", nearA))
	fx.presence.openErr = nil
	fx.clock.Advance(30 * time.Second)
	assert.Equal(t, ActionCheckIn, fx.m.Evaluate(ctx, "u1", nearA))
}

func TestEvaluate_SwitchCloseFailureKeepsOldRecord(t *testing.T) {
	fx := newFixture(parkA, parkB)
	fx.seedOpen("u1", parkA.ID)
	fx.presence.closeErr = errors.New("timeout")

	assert.Equal(t, ActionFailed, fx.m.Evaluate(context.Background(), "u1", nearB))
	open := fx.presence.open("u1")
	require.Len(t, open, 1)
	assert.Equal(t, parkA.ID, open[0].ParkID)
	assert.Equal(t, 0, fx.presence.opens)
}

func TestEvaluate_ReadFailureReleasesCooldown(t *testing.T) {
	fx := newFixture(parkA)
	fx.presence.getErr = errors.New("db down")
	ctx := context.Background()

	assert.Equal(t, ActionFailed, fx.m.Evaluate(ctx, "u1", nearA))
	assert.Equal(t, notify.LevelError, fx.notes.last().Level)

	fx.presence.getErr = nil
	assert.Equal(t, ActionCheckIn, fx.m.Evaluate(ctx, "u1", nearA))
}

func TestEvaluate_ParkListFailure(t *testing.T) {
	fx := newFixture()
	fx.parks.err = errors.New("db down")
	fx.seedOpen("u1", parkA.ID)

	assert.Equal(t, ActionFailed, fx.m.Evaluate(context.Background(), "u1", away))
	assert.Len(t, fx.presence.open("u1"), 1)
}

// ---------------------------------------------------------------------------
// Watch lifecycle
// ---------------------------------------------------------------------------

func TestStart_NoopWhenSharingOffOrPermissionMissing(t *testing.T) {
	fx := newFixture(parkA)
	ctx := context.Background()

	_, err := fx.m.Start(ctx, "quiet")
	assert.ErrorIs(t, err, ErrSharingDisabled)

	_, err = fx.m.Start(ctx, "no-profile")
	assert.ErrorIs(t, err, ErrSharingDisabled)

	fx.m.sharing = fakeSharing{"u2": true}
	_, err = fx.m.Start(ctx, "u2")
	assert.ErrorIs(t, err, ErrPermissionNotGranted)

	assert.Zero(t, fx.feed.Subscribers("u2"))
	assert.False(t, fx.m.Running("u2"))
}

func TestWatch_ConsumesFeedAndStopsIdempotently(t *testing.T) {
	fx := newFixture(parkA)
	reqCtx, cancelReq := context.WithCancel(context.Background())

	w, err := fx.m.Start(reqCtx, "u1")
	require.NoError(t, err)
	// the watch outlives the request that started it
	cancelReq()

	again, err := fx.m.Start(context.Background(), "u1")
	require.NoError(t, err)
	assert.Same(t, w, again)
	assert.True(t, fx.m.Running("u1"))

	sample := location.Sample{UserID: "u1", Position: nearA, RecordedAt: fx.clock.Now()}
	require.Equal(t, 1, fx.feed.Publish("u1", location.Event{Sample: &sample}))
	require.Eventually(t, func() bool { return len(fx.presence.open("u1")) == 1 }, time.Second, 5*time.Millisecond)

	fx.feed.Publish("u1", location.Event{Code: location.ErrorTimeout})
	require.Eventually(t, func() bool {
		n := fx.notes.last()
		return n.Level == notify.LevelError && n.Data["code"] == "3"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, fx.m.Running("u1"), "device errors do not end the watch")

	w.Stop()
	w.Stop()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watch goroutine did not exit")
	}
	assert.False(t, fx.m.Running("u1"))
	assert.Zero(t, fx.feed.Subscribers("u1"))
	assert.ErrorIs(t, fx.m.Stop("u1"), ErrNotRunning)
}

func TestStopAll(t *testing.T) {
	fx := newFixture(parkA)
	w, err := fx.m.Start(context.Background(), "u1")
	require.NoError(t, err)

	fx.m.StopAll()
	<-w.Done()
	assert.False(t, fx.m.Running("u1"))
}

func TestNewWatchOptions(t *testing.T) {
	o := NewWatchOptions(true, 5*time.Second, 10*time.Second)
	assert.True(t, o.HighAccuracy)
	assert.EqualValues(t, 5000, o.TimeoutMs)
	assert.EqualValues(t, 10000, o.MaximumAgeMs)
}
