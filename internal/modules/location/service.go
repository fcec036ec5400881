// README: Location service records device permission/fixes and forwards them to the user's geofence watch.
package location

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pickleheart/internal/types"
)

type Service struct {
	store DeviceStore
	feed  *Feed
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store DeviceStore, feed *Feed, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, feed: feed, log: log, now: time.Now}
}

// Update is one fix as posted by the device. A zero Timestamp means "now".
type Update struct {
	Position  types.Point
	AccuracyM float64
	Timestamp time.Time
}

// ReportPermission stores the device's geolocation capability and permission state.
func (s *Service) ReportPermission(ctx context.Context, userID types.ID, perm Permission, capable bool) (DeviceState, error) {
	if userID == "" || !perm.Valid() {
		return DeviceState{}, ErrBadRequest
	}
	if err := s.store.SetPermission(ctx, userID, perm, capable, s.now().UTC()); err != nil {
		return DeviceState{}, err
	}
	return s.store.Get(ctx, userID)
}

// PushSample records the fix as the user's last sample and hands it to any
// running watch. It reports whether a watch received it.
func (s *Service) PushSample(ctx context.Context, userID types.ID, u Update) (bool, error) {
	if userID == "" || !u.Position.Valid() || u.AccuracyM < 0 {
		return false, ErrBadRequest
	}
	ts := u.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	sample := Sample{UserID: userID, Position: u.Position, AccuracyM: u.AccuracyM, RecordedAt: ts.UTC()}

	// diagnostics only; a failed write must not block the geofence
	if err := s.store.SetLastSample(ctx, sample); err != nil {
		s.log.Warn("store last sample", zap.String("user_id", string(userID)), zap.Error(err))
	}
	return s.feed.Publish(userID, Event{Sample: &sample}) > 0, nil
}

// PushError forwards a device geolocation error. Permission-denied also
// downgrades the stored permission state.
func (s *Service) PushError(ctx context.Context, userID types.ID, code ErrorCode) (bool, error) {
	if userID == "" || code < ErrorPermissionDenied || code > ErrorTimeout {
		return false, ErrBadRequest
	}
	if code == ErrorPermissionDenied {
		st, err := s.store.Get(ctx, userID)
		if err == nil {
			err = s.store.SetPermission(ctx, userID, PermissionDenied, st.Capable, s.now().UTC())
		}
		if err != nil {
			s.log.Warn("record permission denied", zap.String("user_id", string(userID)), zap.Error(err))
		}
	}
	return s.feed.Publish(userID, Event{Code: code}) > 0, nil
}

// State returns the stored device state for the user.
func (s *Service) State(ctx context.Context, userID types.ID) (DeviceState, error) {
	return s.store.Get(ctx, userID)
}

// Subscribe attaches to the user's event stream.
func (s *Service) Subscribe(userID types.ID) (<-chan Event, func()) {
	return s.feed.Subscribe(userID)
}
