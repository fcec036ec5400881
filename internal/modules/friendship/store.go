// README: Friendship store backed by PostgreSQL.
package friendship

import (
	"context"

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

// ListForUser returns every edge where the user is either endpoint, any status.
func (s *Store) ListForUser(ctx context.Context, userID types.ID) ([]Edge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, requester_id, addressee_id, status, created_at
		FROM friendships
		WHERE requester_id = $1 OR addressee_id = $1`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.RequesterID, &e.AddresseeID, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertBatch writes all edges in one round trip inside a transaction. Pairs
// that already have an edge are skipped; the returned slice holds only the
// rows that were actually written.
func (s *Store) InsertBatch(ctx context.Context, edges []Edge) ([]Edge, error) {
	if len(edges) == 0 {
		return nil, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range edges {
		batch.Queue(`
			INSERT INTO friendships (id, requester_id, addressee_id, status, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING`,
			string(e.ID), string(e.RequesterID), string(e.AddresseeID), string(e.Status), e.CreatedAt,
		)
	}
	br := tx.SendBatch(ctx, batch)
	inserted := make([]Edge, 0, len(edges))
	for _, e := range edges {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return nil, err
		}
		if tag.RowsAffected() == 1 {
			inserted = append(inserted, e)
		}
	}
	if err := br.Close(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inserted, nil
}

// AcceptedFriendIDs returns the other endpoint of every accepted edge.
func (s *Store) AcceptedFriendIDs(ctx context.Context, userID types.ID) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT CASE WHEN requester_id = $1 THEN addressee_id ELSE requester_id END
		FROM friendships
		WHERE status = 'accepted' AND (requester_id = $1 OR addressee_id = $1)`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
