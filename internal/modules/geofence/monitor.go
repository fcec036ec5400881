// README: Geofence monitor: owns one watch per user and turns location samples into presence check-ins/outs.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"pickleheart/internal/modules/location"
	"pickleheart/internal/modules/notify"
	"pickleheart/internal/modules/park"
	"pickleheart/internal/modules/presence"
	"pickleheart/internal/modules/profile"
	"pickleheart/internal/types"
)

type Deps struct {
	Parks    ParkLister
	Presence PresenceStore
	Sharing  SharingReader
	Devices  DeviceReader
	Feed     Subscriber
	Guard    Guard
	Notifier notify.Notifier
	Log      *zap.Logger
}

type Monitor struct {
	parks    ParkLister
	presence PresenceStore
	sharing  SharingReader
	devices  DeviceReader
	feed     Subscriber
	guard    Guard
	notifier notify.Notifier
	log      *zap.Logger
	radiusM  float64
	now      func() time.Time

	mu      sync.Mutex
	watches map[types.ID]*Watch
}

func NewMonitor(deps Deps, radiusM float64) *Monitor {
	if radiusM <= 0 {
		radiusM = DefaultRadiusM
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		parks:    deps.Parks,
		presence: deps.Presence,
		sharing:  deps.Sharing,
		devices:  deps.Devices,
		feed:     deps.Feed,
		guard:    deps.Guard,
		notifier: deps.Notifier,
		log:      log,
		radiusM:  radiusM,
		now:      time.Now,
		watches:  make(map[types.ID]*Watch),
	}
}

// Watch is a running location subscription for one user. It outlives the
// request that started it and ends on Stop.
type Watch struct {
	UserID    types.ID
	StartedAt time.Time

	m           *Monitor
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	stopOnce    sync.Once
	done        chan struct{}
}

// Stop cancels the subscription. Safe to call more than once; an evaluation
// already in progress finishes its writes.
func (w *Watch) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		w.unsubscribe()
		w.m.forget(w)
	})
}

// Done is closed once the watch goroutine has returned.
func (w *Watch) Done() <-chan struct{} { return w.done }

func (w *Watch) run(events <-chan location.Event) {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.m.handle(context.WithoutCancel(w.ctx), w.UserID, ev)
		}
	}
}

// Start begins watching the user's location. A user that already has a
// watch gets the same watch back. Sharing disabled, a missing profile or a
// permission other than granted leave nothing running and return a sentinel.
func (m *Monitor) Start(ctx context.Context, userID types.ID) (*Watch, error) {
	sharing, err := m.sharing.LocationSharing(ctx, userID)
	if errors.Is(err, profile.ErrNotFound) {
		return nil, ErrSharingDisabled
	}
	if err != nil {
		return nil, fmt.Errorf("read location sharing: %w", err)
	}
	if !sharing {
		return nil, ErrSharingDisabled
	}
	st, err := m.devices.State(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read device state: %w", err)
	}
	if st.Permission != location.PermissionGranted {
		return nil, ErrPermissionNotGranted
	}

	m.mu.Lock()
	if w, ok := m.watches[userID]; ok {
		m.mu.Unlock()
		return w, nil
	}
	events, unsubscribe := m.feed.Subscribe(userID)
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &Watch{
		UserID:      userID,
		StartedAt:   m.now().UTC(),
		m:           m,
		ctx:         wctx,
		cancel:      cancel,
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
	m.watches[userID] = w
	m.mu.Unlock()

	// a new session may retry the park it last attempted
	if err := m.guard.ClearLastAttempt(wctx, userID); err != nil {
		m.log.Warn("clear last attempted park", zap.String("user_id", string(userID)), zap.Error(err))
	}
	go w.run(events)
	m.log.Info("geofence started", zap.String("user_id", string(userID)))
	return w, nil
}

// Stop ends the user's watch if one is running.
func (m *Monitor) Stop(userID types.ID) error {
	m.mu.Lock()
	w, ok := m.watches[userID]
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	w.Stop()
	m.log.Info("geofence stopped", zap.String("user_id", string(userID)))
	return nil
}

// Running reports whether the user has a live watch.
func (m *Monitor) Running(userID types.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watches[userID]
	return ok
}

// StopAll ends every watch; used on shutdown.
func (m *Monitor) StopAll() {
	m.mu.Lock()
	all := make([]*Watch, 0, len(m.watches))
	for _, w := range m.watches {
		all = append(all, w)
	}
	m.mu.Unlock()
	for _, w := range all {
		w.Stop()
	}
}

func (m *Monitor) forget(w *Watch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.watches[w.UserID]; ok && cur == w {
		delete(m.watches, w.UserID)
	}
}

func (m *Monitor) handle(ctx context.Context, userID types.ID, ev location.Event) {
	if ev.Sample == nil {
		m.reportDeviceError(ctx, userID, ev.Code)
		return
	}
	action := m.Evaluate(ctx, userID, ev.Sample.Position)
	m.log.Debug("geofence sample",
		zap.String("user_id", string(userID)),
		zap.String("action", string(action)),
	)
}

func (m *Monitor) reportDeviceError(ctx context.Context, userID types.ID, code location.ErrorCode) {
	m.log.Warn("device geolocation error", zap.String("user_id", string(userID)), zap.Int("code", int(code)))
	m.send(ctx, notify.Notification{
		UserID: userID,
		Level:  notify.LevelError,
		Title:  "Location error",
		Body:   code.Message(),
		Data:   map[string]string{"event": "location_error", "code": strconv.Itoa(int(code))},
	})
}

// Evaluate runs one geofence cycle for a position. Parks are scanned in store
// order and the first one within the radius wins.
func (m *Monitor) Evaluate(ctx context.Context, userID types.ID, pos types.Point) Action {
	ok, err := m.guard.Acquire(ctx, userID)
	if err != nil {
		m.log.Error("geofence guard acquire", zap.String("user_id", string(userID)), zap.Error(err))
		return ActionFailed
	}
	if !ok {
		return ActionCooldown
	}

	open, err := m.presence.GetOpen(ctx, userID)
	if err != nil {
		m.abortRead(ctx, userID, "read open presence", err)
		return ActionFailed
	}
	parks, err := m.parks.ListWithCoordinates(ctx)
	if err != nil {
		m.abortRead(ctx, userID, "list parks", err)
		return ActionFailed
	}

	for _, p := range parks {
		pt, ok := p.Point()
		if !ok {
			continue
		}
		if location.DistanceMeters(pos, pt) <= m.radiusM {
			return m.checkIn(ctx, userID, open, p)
		}
	}
	return m.checkOut(ctx, userID, open, parks)
}

func (m *Monitor) checkIn(ctx context.Context, userID types.ID, open *presence.Record, p park.Park) Action {
	if open != nil && open.ParkID == p.ID {
		return ActionNone
	}
	last, err := m.guard.LastAttempt(ctx, userID)
	if err != nil {
		m.log.Warn("read last attempted park", zap.String("user_id", string(userID)), zap.Error(err))
	}
	if last == p.ID {
		return ActionNone
	}

	now := m.now().UTC()
	if open != nil {
		if err := m.presence.Close(ctx, open.ID, now); err != nil && !errors.Is(err, presence.ErrNotFound) {
			m.log.Error("close presence before switch",
				zap.String("user_id", string(userID)),
				zap.String("presence_id", string(open.ID)),
				zap.Error(err),
			)
			m.failure(ctx, userID, "Check-in failed", fmt.Sprintf("Couldn't check you in at %s.", p.Name), p.ID)
			return ActionFailed
		}
	}

	rec := presence.Record{
		ID:            types.NewID(),
		UserID:        userID,
		ParkID:        p.ID,
		ArrivedAt:     now,
		AutoCheckedIn: true,
	}
	if err := m.presence.Open(ctx, rec); err != nil {
		if errors.Is(err, presence.ErrAlreadyOpen) {
			m.log.Info("presence already open", zap.String("user_id", string(userID)), zap.String("park_id", string(p.ID)))
			return ActionNone
		}
		m.log.Error("open presence",
			zap.String("user_id", string(userID)),
			zap.String("park_id", string(p.ID)),
			zap.Error(err),
		)
		m.failure(ctx, userID, "Check-in failed", fmt.Sprintf("Couldn't check you in at %s.", p.Name), p.ID)
		return ActionFailed
	}
	if err := m.guard.SetLastAttempt(ctx, userID, p.ID); err != nil {
		m.log.Warn("set last attempted park", zap.String("user_id", string(userID)), zap.Error(err))
	}

	m.send(ctx, notify.Notification{
		UserID: userID,
		Level:  notify.LevelSuccess,
		Title:  "Checked in",
		Body:   fmt.Sprintf("You're checked in at %s.", p.Name),
		Data:   map[string]string{"event": "check_in", "park_id": string(p.ID)},
	})
	return ActionCheckIn
}

func (m *Monitor) checkOut(ctx context.Context, userID types.ID, open *presence.Record, parks []park.Park) Action {
	if err := m.guard.ClearLastAttempt(ctx, userID); err != nil {
		m.log.Warn("clear last attempted park", zap.String("user_id", string(userID)), zap.Error(err))
	}
	if open == nil {
		return ActionNone
	}

	name := parkName(parks, open.ParkID)
	err := m.presence.Close(ctx, open.ID, m.now().UTC())
	if err != nil && !errors.Is(err, presence.ErrNotFound) {
		m.log.Error("close presence",
			zap.String("user_id", string(userID)),
			zap.String("presence_id", string(open.ID)),
			zap.Error(err),
		)
		m.failure(ctx, userID, "Check-out failed", fmt.Sprintf("Couldn't check you out of %s.", name), open.ParkID)
		return ActionFailed
	}

	m.send(ctx, notify.Notification{
		UserID: userID,
		Level:  notify.LevelInfo,
		Title:  "Checked out",
		Body:   fmt.Sprintf("You left %s.", name),
		Data:   map[string]string{"event": "check_out", "park_id": string(open.ParkID)},
	})
	return ActionCheckOut
}

// abortRead gives the cooldown slot back so the next sample retries.
func (m *Monitor) abortRead(ctx context.Context, userID types.ID, what string, err error) {
	m.log.Error("geofence "+what, zap.String("user_id", string(userID)), zap.Error(err))
	if rerr := m.guard.Release(ctx, userID); rerr != nil {
		m.log.Warn("release geofence guard", zap.String("user_id", string(userID)), zap.Error(rerr))
	}
	m.failure(ctx, userID, "Location check failed", "Couldn't update your park status right now.", "")
}

func (m *Monitor) failure(ctx context.Context, userID types.ID, title, body string, parkID types.ID) {
	data := map[string]string{"event": "geofence_error"}
	if parkID != "" {
		data["park_id"] = string(parkID)
	}
	m.send(ctx, notify.Notification{UserID: userID, Level: notify.LevelError, Title: title, Body: body, Data: data})
}

func (m *Monitor) send(ctx context.Context, n notify.Notification) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, n); err != nil {
		m.log.Warn("notify user", zap.String("user_id", string(n.UserID)), zap.Error(err))
	}
}

func parkName(parks []park.Park, id types.ID) string {
	for _, p := range parks {
		if p.ID == id {
			return p.Name
		}
	}
	return "the park"
}
