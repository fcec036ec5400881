// README: Presence store backed by PostgreSQL; the partial unique index keeps one open row per user.
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pickleheart/internal/types"
)

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetOpen returns the user's open row, or nil when the user is checked in nowhere.
func (s *Store) GetOpen(ctx context.Context, userID types.ID) (*Record, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, park_id, arrived_at, departed_at, auto_checked_in
		FROM presence
		WHERE user_id = $1 AND departed_at IS NULL`, string(userID))

	var r Record
	err := row.Scan(&r.ID, &r.UserID, &r.ParkID, &r.ArrivedAt, &r.DepartedAt, &r.AutoCheckedIn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Open(ctx context.Context, r Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO presence (id, user_id, park_id, arrived_at, departed_at, auto_checked_in)
		VALUES ($1, $2, $3, $4, NULL, $5)`,
		string(r.ID), string(r.UserID), string(r.ParkID), r.ArrivedAt, r.AutoCheckedIn,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyOpen
	}
	return err
}

// Close sets the departure time of an open row.
func (s *Store) Close(ctx context.Context, id types.ID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE presence SET departed_at = $2
		WHERE id = $1 AND departed_at IS NULL`, string(id), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseStale closes automatic check-ins that arrived before cutoff.
func (s *Store) CloseStale(ctx context.Context, cutoff, at time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE presence SET departed_at = $2
		WHERE departed_at IS NULL AND auto_checked_in AND arrived_at < $1`, cutoff, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ActiveParks lists parks with at least one open row, busiest first.
func (s *Store) ActiveParks(ctx context.Context) ([]ParkActivity, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.name, p.latitude, p.longitude, COUNT(pr.id)
		FROM parks p
		JOIN presence pr ON pr.park_id = p.id AND pr.departed_at IS NULL
		GROUP BY p.id, p.name, p.latitude, p.longitude
		ORDER BY COUNT(pr.id) DESC, p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ParkActivity
	for rows.Next() {
		var a ParkActivity
		if err := rows.Scan(&a.ParkID, &a.Name, &a.Lat, &a.Lng, &a.Players); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListOpenForUsers returns open rows of the given users who share their location.
func (s *Store) ListOpenForUsers(ctx context.Context, userIDs []types.ID) ([]FriendPresence, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT pr.user_id, pf.display_name, pr.park_id, p.name, pr.arrived_at
		FROM presence pr
		JOIN profiles pf ON pf.id = pr.user_id AND pf.location_sharing
		JOIN parks p ON p.id = pr.park_id
		WHERE pr.departed_at IS NULL AND pr.user_id = ANY($1)
		ORDER BY pr.arrived_at DESC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FriendPresence
	for rows.Next() {
		var f FriendPresence
		if err := rows.Scan(&f.UserID, &f.DisplayName, &f.ParkID, &f.ParkName, &f.ArrivedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
