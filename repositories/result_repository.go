package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clubkit/tournament-engine/models"
)

type ResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, candidate *models.ResultCandidate) error
	// ListByMatch returns every candidate for a match, oldest first. Pass a
	// transaction to read consistently with pending writes.
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.ResultCandidate, error)
	MarkConfirmed(ctx context.Context, exec SQLExecutor, candidateID int) error
	// SupersedeOpen marks every open candidate of a match as superseded;
	// used when an organizer override settles a conflict.
	SupersedeOpen(ctx context.Context, exec SQLExecutor, matchID int) error
	// SupersedeBySubmitter supersedes only the given submitter's open
	// candidates, leaving everyone else's reports on record.
	SupersedeBySubmitter(ctx context.Context, exec SQLExecutor, matchID, submittedBy int) error
	// ListPendingMatchIDs returns non-final matches of a tournament that have
	// at least one open candidate, for the lazy grace-window sweep.
	ListPendingMatchIDs(ctx context.Context, clubID, tournamentID int) ([]int, error)
}

type postgresResultRepository struct {
	db *sql.DB
}

func NewPostgresResultRepository(db *sql.DB) ResultRepository {
	return &postgresResultRepository{db: db}
}

func (r *postgresResultRepository) Create(ctx context.Context, exec SQLExecutor, candidate *models.ResultCandidate) error {
	query := `
		INSERT INTO result_candidates
			(match_id, club_id, submitted_by, role, winner_team_id, score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		candidate.MatchID,
		candidate.ClubID,
		candidate.SubmittedBy,
		candidate.Role,
		candidate.WinnerTeamID,
		models.FormatScore(candidate.Sets),
		candidate.Status,
	).Scan(&candidate.ID, &candidate.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create result candidate for match %d: %w", candidate.MatchID, err)
	}
	return nil
}

func (r *postgresResultRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.ResultCandidate, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT id, match_id, club_id, submitted_by, role, winner_team_id, score, status, created_at
		FROM result_candidates
		WHERE match_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := exec.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query result candidates for match %d: %w", matchID, err)
	}
	defer rows.Close()

	candidates := make([]*models.ResultCandidate, 0)
	for rows.Next() {
		c := &models.ResultCandidate{}
		var score string
		if scanErr := rows.Scan(
			&c.ID,
			&c.MatchID,
			&c.ClubID,
			&c.SubmittedBy,
			&c.Role,
			&c.WinnerTeamID,
			&score,
			&c.Status,
			&c.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan result candidate row: %w", scanErr)
		}
		sets, parseErr := models.ParseScore(score)
		if parseErr != nil {
			return nil, fmt.Errorf("candidate %d has malformed score: %w", c.ID, parseErr)
		}
		c.Sets = sets
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *postgresResultRepository) MarkConfirmed(ctx context.Context, exec SQLExecutor, candidateID int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE result_candidates SET status = $1 WHERE id = $2`,
		models.CandidateStatusConfirmed, candidateID,
	)
	if err != nil {
		return fmt.Errorf("failed to confirm candidate %d: %w", candidateID, err)
	}
	return checkAffectedRows(result, fmt.Errorf("result candidate %d not found", candidateID))
}

func (r *postgresResultRepository) SupersedeOpen(ctx context.Context, exec SQLExecutor, matchID int) error {
	_, err := exec.ExecContext(ctx,
		`UPDATE result_candidates SET status = $1 WHERE match_id = $2 AND status = $3`,
		models.CandidateStatusSuperseded, matchID, models.CandidateStatusCandidate,
	)
	if err != nil {
		return fmt.Errorf("failed to supersede candidates for match %d: %w", matchID, err)
	}
	return nil
}

func (r *postgresResultRepository) SupersedeBySubmitter(ctx context.Context, exec SQLExecutor, matchID, submittedBy int) error {
	_, err := exec.ExecContext(ctx,
		`UPDATE result_candidates SET status = $1 WHERE match_id = $2 AND submitted_by = $3 AND status = $4`,
		models.CandidateStatusSuperseded, matchID, submittedBy, models.CandidateStatusCandidate,
	)
	if err != nil {
		return fmt.Errorf("failed to supersede candidates of submitter %d for match %d: %w", submittedBy, matchID, err)
	}
	return nil
}

func (r *postgresResultRepository) ListPendingMatchIDs(ctx context.Context, clubID, tournamentID int) ([]int, error) {
	query := `
		SELECT DISTINCT m.id
		FROM result_candidates rc
		JOIN matches m ON m.id = rc.match_id
		JOIN divisions d ON d.id = m.division_id
		WHERE d.tournament_id = $1 AND rc.club_id = $2
		  AND rc.status = $3
		  AND m.status IN ($4, $5)
		ORDER BY m.id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, clubID,
		models.CandidateStatusCandidate, models.MatchStatusScheduled, models.MatchStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending result matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan pending match id: %w", scanErr)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
