package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clubkit/tournament-engine/models"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, clubID, id int) (*models.Match, error)
	ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Match, error)
	ListByDivision(ctx context.Context, divisionID int) ([]*models.Match, error)
	// ListSchedulable returns the tournament's matches that are ready for a
	// court: both slots resolved, no court assigned, not in a terminal state,
	// ordered by round ordinal then match number.
	ListSchedulable(ctx context.Context, clubID, tournamentID int) ([]*models.Match, error)
	// ListAssigned returns the tournament's matches that already hold a court
	// and time, so a scheduling run can respect the occupancy they create.
	ListAssigned(ctx context.Context, clubID, tournamentID int) ([]*models.Match, error)
	CountScheduled(ctx context.Context, clubID, tournamentID int) (int, error)
	// Assign writes the court and time onto an unassigned match. False means
	// another caller assigned it first.
	Assign(ctx context.Context, exec SQLExecutor, id, courtID int, date time.Time, startMinute, endMinute int) (bool, error)
	// Finalize records the outcome on a non-final match. False means the
	// match was already finalized.
	Finalize(ctx context.Context, exec SQLExecutor, id int, winnerTeamID *int, score *string, status models.MatchStatus) (bool, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, round_id, division_id, club_id, uid, number,
	slot1_team_id, slot1_source_uid, slot1_outcome, slot1_bye,
	slot2_team_id, slot2_source_uid, slot2_outcome, slot2_bye,
	court_id, date, start_minute, end_minute, status, winner_team_id, score, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	s1Team, s1UID, s1Out, s1Bye := slotColumns(match.Slot1)
	s2Team, s2UID, s2Out, s2Bye := slotColumns(match.Slot2)

	query := `
		INSERT INTO matches
			(round_id, division_id, club_id, uid, number,
			 slot1_team_id, slot1_source_uid, slot1_outcome, slot1_bye,
			 slot2_team_id, slot2_source_uid, slot2_outcome, slot2_bye,
			 status, winner_team_id, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		match.RoundID,
		match.DivisionID,
		match.ClubID,
		match.UID,
		match.Number,
		s1Team, s1UID, s1Out, s1Bye,
		s2Team, s2UID, s2Out, s2Bye,
		match.Status,
		match.WinnerTeamID,
		match.Score,
	).Scan(&match.ID, &match.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match %s in round %d: %w", match.UID, match.RoundID, err)
	}
	return nil
}

func scanMatch(scan func(...interface{}) error) (*models.Match, error) {
	m := &models.Match{}
	var (
		s1Team, s2Team sql.NullInt64
		s1UID, s2UID   sql.NullString
		s1Out, s2Out   sql.NullString
		s1Bye, s2Bye   bool
	)
	err := scan(
		&m.ID,
		&m.RoundID,
		&m.DivisionID,
		&m.ClubID,
		&m.UID,
		&m.Number,
		&s1Team, &s1UID, &s1Out, &s1Bye,
		&s2Team, &s2UID, &s2Out, &s2Bye,
		&m.CourtID,
		&m.Date,
		&m.StartMinute,
		&m.EndMinute,
		&m.Status,
		&m.WinnerTeamID,
		&m.Score,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Slot1 = scanSlot(s1Team, s1UID, s1Out, s1Bye)
	m.Slot2 = scanSlot(s2Team, s2UID, s2Out, s2Bye)
	return m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, clubID, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 AND club_id = $2`
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id, clubID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.Match, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT ` + matchColumns + ` FROM matches WHERE round_id = $1 ORDER BY number ASC`
	return r.queryMatches(ctx, exec, query, roundID)
}

func (r *postgresMatchRepository) ListByDivision(ctx context.Context, divisionID int) ([]*models.Match, error) {
	query := `
		SELECT ` + qualifiedMatchColumns + `
		FROM matches m
		JOIN rounds r ON r.id = m.round_id
		WHERE m.division_id = $1
		ORDER BY r.ordinal ASC, m.number ASC`
	return r.queryMatches(ctx, r.db, query, divisionID)
}

const qualifiedMatchColumns = `m.id, m.round_id, m.division_id, m.club_id, m.uid, m.number,
	m.slot1_team_id, m.slot1_source_uid, m.slot1_outcome, m.slot1_bye,
	m.slot2_team_id, m.slot2_source_uid, m.slot2_outcome, m.slot2_bye,
	m.court_id, m.date, m.start_minute, m.end_minute, m.status, m.winner_team_id, m.score, m.created_at`

func (r *postgresMatchRepository) ListSchedulable(ctx context.Context, clubID, tournamentID int) ([]*models.Match, error) {
	query := `
		SELECT ` + qualifiedMatchColumns + `
		FROM matches m
		JOIN rounds r ON r.id = m.round_id
		JOIN divisions d ON d.id = m.division_id
		WHERE d.tournament_id = $1 AND m.club_id = $2
		  AND m.court_id IS NULL
		  AND m.status IN ($3, $4)
		  AND m.slot1_team_id IS NOT NULL
		  AND m.slot2_team_id IS NOT NULL
		ORDER BY r.ordinal ASC, m.division_id ASC, m.number ASC`
	return r.queryMatches(ctx, r.db, query, tournamentID, clubID,
		models.MatchStatusScheduled, models.MatchStatusInProgress)
}

func (r *postgresMatchRepository) ListAssigned(ctx context.Context, clubID, tournamentID int) ([]*models.Match, error) {
	query := `
		SELECT ` + qualifiedMatchColumns + `
		FROM matches m
		JOIN divisions d ON d.id = m.division_id
		WHERE d.tournament_id = $1 AND m.club_id = $2 AND m.court_id IS NOT NULL
		ORDER BY m.date ASC, m.start_minute ASC, m.id ASC`
	return r.queryMatches(ctx, r.db, query, tournamentID, clubID)
}

func (r *postgresMatchRepository) CountScheduled(ctx context.Context, clubID, tournamentID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM matches m
		JOIN divisions d ON d.id = m.division_id
		WHERE d.tournament_id = $1 AND m.club_id = $2 AND m.court_id IS NOT NULL`
	var count int
	if err := r.db.QueryRowContext(ctx, query, tournamentID, clubID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scheduled matches for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) Assign(ctx context.Context, exec SQLExecutor, id, courtID int, date time.Time, startMinute, endMinute int) (bool, error) {
	result, err := exec.ExecContext(ctx, `
		UPDATE matches
		SET court_id = $1, date = $2, start_minute = $3, end_minute = $4
		WHERE id = $5 AND court_id IS NULL`,
		courtID, date, startMinute, endMinute, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to assign match %d: %w", id, err)
	}
	return affectedOne(result)
}

func (r *postgresMatchRepository) Finalize(ctx context.Context, exec SQLExecutor, id int, winnerTeamID *int, score *string, status models.MatchStatus) (bool, error) {
	result, err := exec.ExecContext(ctx, `
		UPDATE matches
		SET winner_team_id = $1, score = $2, status = $3
		WHERE id = $4 AND status IN ($5, $6)`,
		winnerTeamID, score, status, id,
		models.MatchStatusScheduled, models.MatchStatusInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finalize match %d: %w", id, err)
	}
	return affectedOne(result)
}
