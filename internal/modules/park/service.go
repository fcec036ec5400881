// README: Park service: coordinate backfill through a geocoder.
package park

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pickleheart/internal/types"
)

// Geocoder resolves a street address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

type backfillStore interface {
	ListMissingCoordinates(ctx context.Context) ([]Park, error)
	SetCoordinates(ctx context.Context, id types.ID, pt types.Point) error
}

type Service struct {
	store    backfillStore
	geocoder Geocoder
	log      *zap.Logger
}

func NewService(store backfillStore, geocoder Geocoder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, geocoder: geocoder, log: log}
}

// BackfillResult summarises one backfill run.
type BackfillResult struct {
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// BackfillCoordinates geocodes every park without coordinates. A failure on
// one park is recorded and the run continues; dryRun skips the writes.
func (s *Service) BackfillCoordinates(ctx context.Context, dryRun bool) (BackfillResult, error) {
	var res BackfillResult
	if s.geocoder == nil {
		return res, ErrNoGeocoder
	}
	parks, err := s.store.ListMissingCoordinates(ctx)
	if err != nil {
		return res, fmt.Errorf("list parks: %w", err)
	}
	for _, p := range parks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		query := geocodeQuery(p)
		pt, err := s.geocoder.Geocode(ctx, query)
		if err == nil && !pt.Valid() {
			err = fmt.Errorf("geocoder returned out-of-range point %v", pt)
		}
		if err != nil {
			s.log.Warn("geocode park", zap.String("park_id", string(p.ID)), zap.String("query", query), zap.Error(err))
			res.Failed = append(res.Failed, string(p.ID))
			continue
		}
		if !dryRun {
			if err := s.store.SetCoordinates(ctx, p.ID, pt); err != nil {
				s.log.Error("set park coordinates", zap.String("park_id", string(p.ID)), zap.Error(err))
				res.Failed = append(res.Failed, string(p.ID))
				continue
			}
		}
		s.log.Info("park geocoded",
			zap.String("park_id", string(p.ID)),
			zap.Float64("lat", pt.Lat),
			zap.Float64("lng", pt.Lng),
			zap.Bool("dry_run", dryRun),
		)
		res.Updated++
	}
	return res, nil
}

// geocodeQuery prefers the street address and falls back to the park name.
func geocodeQuery(p Park) string {
	addr := strings.TrimSpace(p.Address)
	if addr == "" {
		return p.Name
	}
	if strings.Contains(strings.ToLower(addr), strings.ToLower(p.Name)) {
		return addr
	}
	return p.Name + ", " + addr
}
