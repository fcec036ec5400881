// README: Presence service: active parks, friends' check-ins and the stale check-in sweeper.
package presence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pickleheart/internal/modules/location"
	"pickleheart/internal/types"
)

type store interface {
	CloseStale(ctx context.Context, cutoff, at time.Time) (int64, error)
	ActiveParks(ctx context.Context) ([]ParkActivity, error)
	ListOpenForUsers(ctx context.Context, userIDs []types.ID) ([]FriendPresence, error)
}

// FriendLister resolves a user's accepted friends.
type FriendLister interface {
	AcceptedFriendIDs(ctx context.Context, userID types.ID) ([]types.ID, error)
}

type Service struct {
	store   store
	friends FriendLister
	log     *zap.Logger
	now     func() time.Time
}

func NewService(store store, friends FriendLister, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, friends: friends, log: log, now: time.Now}
}

// ActiveParks lists parks with players checked in. When near is set the list
// is ordered by distance from it instead of by player count.
func (s *Service) ActiveParks(ctx context.Context, near *types.Point) ([]ParkActivity, error) {
	parks, err := s.store.ActiveParks(ctx)
	if err != nil {
		return nil, fmt.Errorf("active parks: %w", err)
	}
	if near == nil {
		return parks, nil
	}
	const unknown = 1e12
	for i := range parks {
		if parks[i].Lat != nil && parks[i].Lng != nil {
			d := location.DistanceMeters(*near, types.Point{Lat: *parks[i].Lat, Lng: *parks[i].Lng})
			parks[i].DistanceM = &d
		}
	}
	location.SortByDistance(parks, func(p ParkActivity) float64 {
		if p.DistanceM == nil {
			return unknown
		}
		return *p.DistanceM
	})
	return parks, nil
}

// FriendsPresence returns where the user's accepted friends are checked in.
func (s *Service) FriendsPresence(ctx context.Context, userID types.ID) ([]FriendPresence, error) {
	ids, err := s.friends.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("friends of %s: %w", userID, err)
	}
	out, err := s.store.ListOpenForUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("friends presence: %w", err)
	}
	return out, nil
}

// SweepStale closes automatic check-ins older than staleAfter.
func (s *Service) SweepStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	now := s.now().UTC()
	n, err := s.store.CloseStale(ctx, now.Add(-staleAfter), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("closed stale check-ins", zap.Int64("count", n), zap.Duration("stale_after", staleAfter))
	}
	return n, nil
}

// RunStaleSweeper calls SweepStale every interval until ctx is done.
func (s *Service) RunStaleSweeper(ctx context.Context, interval, staleAfter time.Duration) {
	if interval <= 0 || staleAfter <= 0 {
		s.log.Info("stale presence sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepStale(ctx, staleAfter); err != nil {
				s.log.Error("sweep stale presence", zap.Error(err))
			}
		}
	}
}
