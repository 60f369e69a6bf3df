package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clubkit/tournament-engine/models"
)

type TeamRepository interface {
	ListByDivision(ctx context.Context, clubID, divisionID int) ([]*models.Team, error)
	ListConfirmedByDivision(ctx context.Context, clubID, divisionID int) ([]*models.Team, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `id, division_id, club_id, name, player1, player2, seed, confirmed, checked_in, created_at`

func (r *postgresTeamRepository) list(ctx context.Context, clubID, divisionID int, confirmedOnly bool) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + `
		FROM teams
		WHERE division_id = $1 AND club_id = $2`
	if confirmedOnly {
		query += ` AND confirmed`
	}
	// Registration order doubles as the pairing order for unseeded teams.
	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, divisionID, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		t := &models.Team{}
		if scanErr := rows.Scan(
			&t.ID,
			&t.DivisionID,
			&t.ClubID,
			&t.Name,
			&t.Player1,
			&t.Player2,
			&t.Seed,
			&t.Confirmed,
			&t.CheckedIn,
			&t.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", scanErr)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) ListByDivision(ctx context.Context, clubID, divisionID int) ([]*models.Team, error) {
	return r.list(ctx, clubID, divisionID, false)
}

func (r *postgresTeamRepository) ListConfirmedByDivision(ctx context.Context, clubID, divisionID int) ([]*models.Team, error) {
	return r.list(ctx, clubID, divisionID, true)
}
