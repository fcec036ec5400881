// README: Matching store: preference rows and the candidate pool, backed by PostgreSQL.
package matching

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pickleheart/internal/modules/profile"
	"pickleheart/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Candidate is another user's preferences joined with their profile.
type Candidate struct {
	Prefs   Preferences
	Profile profile.Profile
}

func (s *Store) GetPreferences(ctx context.Context, userID types.ID) (*Preferences, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, mode, age_min, age_max, genders, rating_min, rating_max, updated_at
		FROM matching_preferences
		WHERE user_id = $1`, string(userID))

	var p Preferences
	err := row.Scan(&p.UserID, &p.Mode, &p.AgeMin, &p.AgeMax, &p.Genders, &p.RatingMin, &p.RatingMax, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoPreferences
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpsertPreferences(ctx context.Context, p Preferences) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO matching_preferences (user_id, mode, age_min, age_max, genders, rating_min, rating_max, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			age_min = EXCLUDED.age_min,
			age_max = EXCLUDED.age_max,
			genders = EXCLUDED.genders,
			rating_min = EXCLUDED.rating_min,
			rating_max = EXCLUDED.rating_max,
			updated_at = EXCLUDED.updated_at`,
		string(p.UserID), string(p.Mode), p.AgeMin, p.AgeMax, p.Genders, p.RatingMin, p.RatingMax, p.UpdatedAt,
	)
	return err
}

// ListCandidates returns every other user with a preference row. Users
// without a profile row come back with an empty profile.
func (s *Store) ListCandidates(ctx context.Context, userID types.ID) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT mp.user_id, mp.mode, mp.age_min, mp.age_max, mp.genders, mp.rating_min, mp.rating_max, mp.updated_at,
		       COALESCE(pf.display_name, ''), pf.birthday, pf.gender, pf.dupr_rating, COALESCE(pf.location_sharing, FALSE)
		FROM matching_preferences mp
		LEFT JOIN profiles pf ON pf.id = mp.user_id
		WHERE mp.user_id <> $1
		ORDER BY mp.user_id`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var birthday *time.Time
		if err := rows.Scan(
			&c.Prefs.UserID, &c.Prefs.Mode, &c.Prefs.AgeMin, &c.Prefs.AgeMax, &c.Prefs.Genders,
			&c.Prefs.RatingMin, &c.Prefs.RatingMax, &c.Prefs.UpdatedAt,
			&c.Profile.DisplayName, &birthday, &c.Profile.Gender, &c.Profile.DUPR, &c.Profile.LocationSharing,
		); err != nil {
			return nil, err
		}
		c.Profile.ID = c.Prefs.UserID
		c.Profile.Birthday = birthday
		out = append(out, c)
	}
	return out, rows.Err()
}
