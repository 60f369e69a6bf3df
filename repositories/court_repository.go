package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/clubkit/tournament-engine/models"
)

var (
	ErrCourtNotFound = errors.New("court not found")
	// ErrSlotTaken means the requested court-time interval overlaps an
	// existing block. Losing this race is an expected outcome, not a fault.
	ErrSlotTaken = errors.New("court slot already claimed")
)

// Postgres error codes raised by the court_blocks EXCLUDE/UNIQUE constraints.
const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

type CourtRepository interface {
	ListByClub(ctx context.Context, clubID int) ([]*models.Court, error)
	// Reserve inserts a block. The database rejects overlapping intervals on
	// the same court and date, so the insert itself is the atomic
	// reservation; overlap surfaces as ErrSlotTaken.
	Reserve(ctx context.Context, exec SQLExecutor, block *models.CourtBlock) error
	IsFree(ctx context.Context, clubID, courtID int, date time.Time, startMinute, endMinute int) (bool, error)
	ListBlocks(ctx context.Context, clubID, courtID int, date time.Time) ([]*models.CourtBlock, error)
}

type postgresCourtRepository struct {
	db *sql.DB
}

func NewPostgresCourtRepository(db *sql.DB) CourtRepository {
	return &postgresCourtRepository{db: db}
}

// ListByClub returns the club's courts in their configured ranking order,
// which the scheduler cycles through.
func (r *postgresCourtRepository) ListByClub(ctx context.Context, clubID int) ([]*models.Court, error) {
	query := `SELECT id, club_id, name, position FROM courts WHERE club_id = $1 ORDER BY position ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to query courts for club %d: %w", clubID, err)
	}
	defer rows.Close()

	courts := make([]*models.Court, 0)
	for rows.Next() {
		c := &models.Court{}
		if scanErr := rows.Scan(&c.ID, &c.ClubID, &c.Name, &c.Position); scanErr != nil {
			return nil, fmt.Errorf("failed to scan court row: %w", scanErr)
		}
		courts = append(courts, c)
	}
	return courts, rows.Err()
}

func (r *postgresCourtRepository) Reserve(ctx context.Context, exec SQLExecutor, block *models.CourtBlock) error {
	query := `
		INSERT INTO court_blocks
			(club_id, court_id, date, start_minute, end_minute, owner, owner_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		block.ClubID,
		block.CourtID,
		block.Date,
		block.StartMinute,
		block.EndMinute,
		block.Owner,
		block.OwnerRef,
	).Scan(&block.ID, &block.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch string(pqErr.Code) {
			case pqUniqueViolation, pqExclusionViolation:
				return ErrSlotTaken
			}
		}
		return fmt.Errorf("failed to reserve court %d on %s [%d,%d): %w",
			block.CourtID, block.Date.Format("2006-01-02"), block.StartMinute, block.EndMinute, err)
	}
	return nil
}

func (r *postgresCourtRepository) IsFree(ctx context.Context, clubID, courtID int, date time.Time, startMinute, endMinute int) (bool, error) {
	query := `
		SELECT NOT EXISTS (
			SELECT 1 FROM court_blocks
			WHERE club_id = $1 AND court_id = $2 AND date = $3
			  AND start_minute < $5 AND $4 < end_minute
		)`
	var free bool
	err := r.db.QueryRowContext(ctx, query, clubID, courtID, date, startMinute, endMinute).Scan(&free)
	if err != nil {
		return false, fmt.Errorf("failed to check court %d availability: %w", courtID, err)
	}
	return free, nil
}

func (r *postgresCourtRepository) ListBlocks(ctx context.Context, clubID, courtID int, date time.Time) ([]*models.CourtBlock, error) {
	query := `
		SELECT id, club_id, court_id, date, start_minute, end_minute, owner, owner_ref, created_at
		FROM court_blocks
		WHERE club_id = $1 AND court_id = $2 AND date = $3
		ORDER BY start_minute ASC`

	rows, err := r.db.QueryContext(ctx, query, clubID, courtID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks for court %d: %w", courtID, err)
	}
	defer rows.Close()

	blocks := make([]*models.CourtBlock, 0)
	for rows.Next() {
		b := &models.CourtBlock{}
		if scanErr := rows.Scan(
			&b.ID,
			&b.ClubID,
			&b.CourtID,
			&b.Date,
			&b.StartMinute,
			&b.EndMinute,
			&b.Owner,
			&b.OwnerRef,
			&b.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan court block row: %w", scanErr)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
