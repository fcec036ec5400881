// README: Park store backed by PostgreSQL.
package park

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

const parkColumns = `id, name, address, latitude, longitude`

// ListWithCoordinates returns geocoded parks ordered by id. The order is the
// geofence scan order, so it must stay stable.
func (s *Store) ListWithCoordinates(ctx context.Context) ([]Park, error) {
	return s.list(ctx, `
		SELECT `+parkColumns+`
		FROM parks
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY id`)
}

// ListMissingCoordinates returns parks the backfill still has to geocode.
func (s *Store) ListMissingCoordinates(ctx context.Context) ([]Park, error) {
	return s.list(ctx, `
		SELECT `+parkColumns+`
		FROM parks
		WHERE latitude IS NULL OR longitude IS NULL
		ORDER BY id`)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Park, error) {
	row := s.db.QueryRow(ctx, `SELECT `+parkColumns+` FROM parks WHERE id = $1`, string(id))
	var p Park
	err := row.Scan(&p.ID, &p.Name, &p.Address, &p.Lat, &p.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetCoordinates(ctx context.Context, id types.ID, pt types.Point) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE parks SET latitude = $2, longitude = $3
		WHERE id = $1`, string(id), pt.Lat, pt.Lng)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) list(ctx context.Context, query string) ([]Park, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Park
	for rows.Next() {
		var p Park
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.Lat, &p.Lng); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
