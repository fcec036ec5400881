// README: Profile store backed by PostgreSQL.
package profile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pickleheart/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, display_name, birthday, gender, dupr_rating, location_sharing
		FROM profiles
		WHERE id = $1`, string(id))

	var p Profile
	err := row.Scan(&p.ID, &p.DisplayName, &p.Birthday, &p.Gender, &p.DUPR, &p.LocationSharing)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LocationSharing reads only the sharing flag. Missing rows yield ErrNotFound.
func (s *Store) LocationSharing(ctx context.Context, id types.ID) (bool, error) {
	var sharing bool
	err := s.db.QueryRow(ctx, `SELECT location_sharing FROM profiles WHERE id = $1`, string(id)).Scan(&sharing)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	return sharing, err
}
