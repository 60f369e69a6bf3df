package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/clubkit/tournament-engine/models"
)

var ErrDivisionNotFound = errors.New("division not found")

type DivisionRepository interface {
	GetByID(ctx context.Context, clubID, id int) (*models.Division, error)
	ListByTournament(ctx context.Context, clubID, tournamentID int, categories []string) ([]*models.Division, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.DivisionStatus) (bool, error)
	SetWinner(ctx context.Context, exec SQLExecutor, id, winnerTeamID int) error
	// Lock takes the division row lock for the rest of the transaction.
	// Writers coordinating across rounds serialize on it, so the second
	// committer reads the first one's committed round state.
	Lock(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresDivisionRepository struct {
	db *sql.DB
}

func NewPostgresDivisionRepository(db *sql.DB) DivisionRepository {
	return &postgresDivisionRepository{db: db}
}

const divisionColumns = `id, tournament_id, club_id, modality, category, qualifier_count, status, winner_team_id, created_at`

func (r *postgresDivisionRepository) scan(row interface{ Scan(...interface{}) error }) (*models.Division, error) {
	d := &models.Division{}
	err := row.Scan(
		&d.ID,
		&d.TournamentID,
		&d.ClubID,
		&d.Modality,
		&d.Category,
		&d.QualifierCount,
		&d.Status,
		&d.WinnerTeamID,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *postgresDivisionRepository) GetByID(ctx context.Context, clubID, id int) (*models.Division, error) {
	query := `SELECT ` + divisionColumns + ` FROM divisions WHERE id = $1 AND club_id = $2`
	d, err := r.scan(r.db.QueryRowContext(ctx, query, id, clubID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDivisionNotFound
		}
		return nil, fmt.Errorf("failed to scan division %d: %w", id, err)
	}
	return d, nil
}

// ListByTournament returns the tournament's divisions, optionally filtered to
// the given category names, ordered by modality then category.
func (r *postgresDivisionRepository) ListByTournament(ctx context.Context, clubID, tournamentID int, categories []string) ([]*models.Division, error) {
	query := `SELECT ` + divisionColumns + `
		FROM divisions
		WHERE tournament_id = $1 AND club_id = $2`
	args := []interface{}{tournamentID, clubID}
	if len(categories) > 0 {
		query += ` AND category = ANY($3)`
		args = append(args, pq.Array(categories))
	}
	query += ` ORDER BY modality ASC, category ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query divisions for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	divisions := make([]*models.Division, 0)
	for rows.Next() {
		d, scanErr := r.scan(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan division row: %w", scanErr)
		}
		divisions = append(divisions, d)
	}
	return divisions, rows.Err()
}

// UpdateStatus is a compare-and-swap on the division state machine.
func (r *postgresDivisionRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.DivisionStatus) (bool, error) {
	result, err := exec.ExecContext(ctx,
		`UPDATE divisions SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update division %d status: %w", id, err)
	}
	return affectedOne(result)
}

func (r *postgresDivisionRepository) Lock(ctx context.Context, exec SQLExecutor, id int) error {
	var locked int
	err := exec.QueryRowContext(ctx, `SELECT id FROM divisions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDivisionNotFound
		}
		return fmt.Errorf("failed to lock division %d: %w", id, err)
	}
	return nil
}

func (r *postgresDivisionRepository) SetWinner(ctx context.Context, exec SQLExecutor, id, winnerTeamID int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE divisions SET winner_team_id = $1 WHERE id = $2`,
		winnerTeamID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set division %d winner: %w", id, err)
	}
	return checkAffectedRows(result, ErrDivisionNotFound)
}
