package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clubkit/tournament-engine/models"
)

var (
	ErrRoundNotFound = errors.New("round not found")
	// ErrRoundCounterExceeded means an increment would push the completed
	// counter past the expected match count. That cannot happen through the
	// engine's own flows and is treated as an integrity violation.
	ErrRoundCounterExceeded = errors.New("round completed counter would exceed expected matches")
)

type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.Round) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error)
	GetBySide(ctx context.Context, exec SQLExecutor, divisionID int, side models.BracketSide, sideOrdinal int) (*models.Round, error)
	ListByDivision(ctx context.Context, divisionID int) ([]*models.Round, error)
	Activate(ctx context.Context, exec SQLExecutor, id int) error
	IncrementCompleted(ctx context.Context, exec SQLExecutor, id int) error
	CompleteCAS(ctx context.Context, exec SQLExecutor, id int) (bool, error)
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

const roundColumns = `id, division_id, club_id, stage, ordinal, side, side_ordinal,
	expected_matches, completed_matches, status, created_at`

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.Round) error {
	query := `
		INSERT INTO rounds
			(division_id, club_id, stage, ordinal, side, side_ordinal,
			 expected_matches, completed_matches, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		round.DivisionID,
		round.ClubID,
		round.Stage,
		round.Ordinal,
		round.Side,
		round.SideOrdinal,
		round.ExpectedMatches,
		round.CompletedMatches,
		round.Status,
	).Scan(&round.ID, &round.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create round %q for division %d: %w", round.Stage, round.DivisionID, err)
	}
	return nil
}

func (r *postgresRoundRepository) scanRow(row *sql.Row) (*models.Round, error) {
	round := &models.Round{}
	err := row.Scan(
		&round.ID,
		&round.DivisionID,
		&round.ClubID,
		&round.Stage,
		&round.Ordinal,
		&round.Side,
		&round.SideOrdinal,
		&round.ExpectedMatches,
		&round.CompletedMatches,
		&round.Status,
		&round.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to scan round: %w", err)
	}
	return round, nil
}

func (r *postgresRoundRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	return r.scanRow(exec.QueryRowContext(ctx, query, id))
}

func (r *postgresRoundRepository) GetBySide(ctx context.Context, exec SQLExecutor, divisionID int, side models.BracketSide, sideOrdinal int) (*models.Round, error) {
	query := `SELECT ` + roundColumns + `
		FROM rounds
		WHERE division_id = $1 AND side = $2 AND side_ordinal = $3`
	return r.scanRow(exec.QueryRowContext(ctx, query, divisionID, side, sideOrdinal))
}

func (r *postgresRoundRepository) ListByDivision(ctx context.Context, divisionID int) ([]*models.Round, error) {
	query := `SELECT ` + roundColumns + `
		FROM rounds
		WHERE division_id = $1
		ORDER BY ordinal ASC`

	rows, err := r.db.QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	rounds := make([]*models.Round, 0)
	for rows.Next() {
		round := &models.Round{}
		if scanErr := rows.Scan(
			&round.ID,
			&round.DivisionID,
			&round.ClubID,
			&round.Stage,
			&round.Ordinal,
			&round.Side,
			&round.SideOrdinal,
			&round.ExpectedMatches,
			&round.CompletedMatches,
			&round.Status,
			&round.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", scanErr)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

// Activate moves a pending round to in_progress. Already active or completed
// rounds are left untouched; activation is idempotent.
func (r *postgresRoundRepository) Activate(ctx context.Context, exec SQLExecutor, id int) error {
	_, err := exec.ExecContext(ctx,
		`UPDATE rounds SET status = $1 WHERE id = $2 AND status = $3`,
		models.RoundStatusInProgress, id, models.RoundStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to activate round %d: %w", id, err)
	}
	return nil
}

// IncrementCompleted bumps the completed counter, refusing to pass the
// expected match count.
func (r *postgresRoundRepository) IncrementCompleted(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := exec.ExecContext(ctx, `
		UPDATE rounds
		SET completed_matches = completed_matches + 1
		WHERE id = $1 AND completed_matches < expected_matches`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment round %d counter: %w", id, err)
	}
	return checkAffectedRows(result, ErrRoundCounterExceeded)
}

// CompleteCAS atomically transitions the round to completed once every match
// is finalized. Exactly one concurrent caller observes true; that caller owns
// round advancement, everyone else must no-op.
func (r *postgresRoundRepository) CompleteCAS(ctx context.Context, exec SQLExecutor, id int) (bool, error) {
	result, err := exec.ExecContext(ctx, `
		UPDATE rounds
		SET status = $1
		WHERE id = $2 AND status = $3 AND completed_matches = expected_matches`,
		models.RoundStatusCompleted, id, models.RoundStatusInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete round %d: %w", id, err)
	}
	return affectedOne(result)
}
