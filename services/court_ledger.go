package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/repositories"
)

// CourtDay is the ledger view of one court on one date: the court plus every
// block claimed on it, bookings and tournament matches alike.
type CourtDay struct {
	Court  *models.Court        `json:"court"`
	Blocks []*models.CourtBlock `json:"blocks"`
}

// CourtLedgerService exposes the shared court ledger. The scheduler consumes
// the same ledger through its repositories; this service serves the read
// side and manual blocks placed by organizers.
type CourtLedgerService interface {
	ListCourts(ctx context.Context, clubID int) ([]*models.Court, error)
	DayView(ctx context.Context, clubID int, date time.Time) ([]CourtDay, error)
	// Block claims an interval on a court for a non-tournament owner, for
	// example maintenance or an external booking. Overlap with any existing
	// block fails with repositories.ErrSlotTaken.
	Block(ctx context.Context, block *models.CourtBlock) error
}

type courtLedgerService struct {
	db        *sql.DB
	courtRepo repositories.CourtRepository
}

func NewCourtLedgerService(db *sql.DB, courtRepo repositories.CourtRepository) CourtLedgerService {
	return &courtLedgerService{db: db, courtRepo: courtRepo}
}

func (s *courtLedgerService) ListCourts(ctx context.Context, clubID int) ([]*models.Court, error) {
	return s.courtRepo.ListByClub(ctx, clubID)
}

func (s *courtLedgerService) DayView(ctx context.Context, clubID int, date time.Time) ([]CourtDay, error) {
	courts, err := s.courtRepo.ListByClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	view := make([]CourtDay, 0, len(courts))
	for _, c := range courts {
		blocks, err := s.courtRepo.ListBlocks(ctx, clubID, c.ID, date)
		if err != nil {
			return nil, err
		}
		view = append(view, CourtDay{Court: c, Blocks: blocks})
	}
	return view, nil
}

func (s *courtLedgerService) Block(ctx context.Context, block *models.CourtBlock) error {
	if block.EndMinute <= block.StartMinute || block.StartMinute < 0 || block.EndMinute > 24*60 {
		return ErrValidationFailed
	}
	if block.Owner == "" {
		block.Owner = models.BlockOwnerBooking
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.courtRepo.Reserve(ctx, tx, block)
	})
}
