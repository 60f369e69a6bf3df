package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clubkit/tournament-engine/models"
)

var ErrTournamentNotFound = errors.New("tournament not found")

type TournamentRepository interface {
	GetByID(ctx context.Context, clubID, id int) (*models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) (bool, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, clubID, id int) (*models.Tournament, error) {
	query := `
		SELECT id, club_id, name, format, start_date, end_date,
		       match_duration_minutes, matches_per_day, status, created_at
		FROM tournaments
		WHERE id = $1 AND club_id = $2`

	t := &models.Tournament{}
	err := r.db.QueryRowContext(ctx, query, id, clubID).Scan(
		&t.ID,
		&t.ClubID,
		&t.Name,
		&t.Format,
		&t.StartDate,
		&t.EndDate,
		&t.MatchDurationMinutes,
		&t.MatchesPerDay,
		&t.Status,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

// UpdateStatus is a compare-and-swap: it only moves the tournament from the
// expected status and reports whether this caller performed the transition.
func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) (bool, error) {
	result, err := exec.ExecContext(ctx,
		`UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	return affectedOne(result)
}
