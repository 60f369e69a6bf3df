package services

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/clubkit/tournament-engine/cache"
	"github.com/clubkit/tournament-engine/events"
	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/repositories"
)

// ResultStatus is the resolver's verdict on a submission.
type ResultStatus string

const (
	// ResultPending means the submission awaits either a matching
	// counterpart or the grace window.
	ResultPending ResultStatus = "pending"
	// ResultAutoConfirmed means the match result is now final and the
	// bracket has advanced.
	ResultAutoConfirmed ResultStatus = "auto_confirmed"
	// ResultPendingConflict means submissions disagree and an organizer
	// must resolve them.
	ResultPendingConflict ResultStatus = "pending_conflict"
)

// ResultOutcome is what a submission caused.
type ResultOutcome struct {
	Status  ResultStatus    `json:"status"`
	MatchID int             `json:"match_id"`
	Advance *AdvanceOutcome `json:"advance,omitempty"`
}

// ResultService implements the result lifecycle: players self-report
// candidates, agreeing candidates finalize immediately, disagreeing ones
// raise a conflict for the organizer, and a sole unchallenged report is
// confirmed lazily once the grace window passes.
type ResultService interface {
	SubmitResult(ctx context.Context, clubID, userID int, role models.UserRole, tournamentID, matchID, winnerTeamID int, sets []models.SetScore) (*ResultOutcome, error)
	// ResolveConflict is the organizer override: it supersedes every open
	// candidate and finalizes the match with the given outcome.
	ResolveConflict(ctx context.Context, clubID, organizerID, tournamentID, matchID, winnerTeamID int, sets []models.SetScore) (*ResultOutcome, error)
	// SweepExpired confirms sole unchallenged self-reports whose grace
	// window has passed. Invoked lazily from read paths; there is no
	// background loop.
	SweepExpired(ctx context.Context, clubID, tournamentID int, now time.Time) (int, error)
}

type resultService struct {
	db           *sql.DB
	matchRepo    repositories.MatchRepository
	divisionRepo repositories.DivisionRepository
	resultRepo   repositories.ResultRepository
	advancer     AdvancementService
	publisher    events.Publisher
	roundsCache  *cache.RoundsCache
	gracePeriod  time.Duration
	logger       *slog.Logger
}

func NewResultService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	divisionRepo repositories.DivisionRepository,
	resultRepo repositories.ResultRepository,
	advancer AdvancementService,
	publisher events.Publisher,
	roundsCache *cache.RoundsCache,
	gracePeriod time.Duration,
	logger *slog.Logger,
) ResultService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &resultService{
		db:           db,
		matchRepo:    matchRepo,
		divisionRepo: divisionRepo,
		resultRepo:   resultRepo,
		advancer:     advancer,
		publisher:    publisher,
		roundsCache:  roundsCache,
		gracePeriod:  gracePeriod,
		logger:       logger,
	}
}

func (s *resultService) SubmitResult(ctx context.Context, clubID, userID int, role models.UserRole, tournamentID, matchID, winnerTeamID int, sets []models.SetScore) (*ResultOutcome, error) {
	match, err := s.loadPlayableMatch(ctx, clubID, tournamentID, matchID, winnerTeamID, sets)
	if err != nil {
		return nil, err
	}

	if role.CanOrganize() {
		return s.finalizeWithCandidate(ctx, match, userID, models.RoleOrganizer, winnerTeamID, sets)
	}

	candidate := &models.ResultCandidate{
		MatchID:      matchID,
		ClubID:       clubID,
		SubmittedBy:  userID,
		Role:         models.RolePlayer,
		WinnerTeamID: winnerTeamID,
		Sets:         sets,
		Status:       models.CandidateStatusCandidate,
	}

	outcome := &ResultOutcome{MatchID: matchID}
	var advance *AdvanceOutcome
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		existing, err := s.resultRepo.ListByMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		open := openCandidates(existing)

		// A resubmission replaces the participant's own earlier report.
		// Everyone else's reports stay open, so a standing disagreement
		// cannot be erased by resubmitting.
		others := make([]*models.ResultCandidate, 0, len(open))
		resubmission := false
		for _, c := range open {
			if c.SubmittedBy == userID {
				resubmission = true
				continue
			}
			others = append(others, c)
		}
		if resubmission {
			if err := s.resultRepo.SupersedeBySubmitter(ctx, tx, matchID, userID); err != nil {
				return err
			}
		}
		open = others

		if err := s.resultRepo.Create(ctx, tx, candidate); err != nil {
			return err
		}

		if len(open) == 0 {
			outcome.Status = ResultPending
			return nil
		}

		for _, c := range open {
			if !c.Agrees(candidate) {
				outcome.Status = ResultPendingConflict
				return nil
			}
		}

		// Both sides reported the same outcome: confirm and finalize.
		if err := s.resultRepo.MarkConfirmed(ctx, tx, candidate.ID); err != nil {
			return err
		}
		for _, c := range open {
			if err := s.resultRepo.MarkConfirmed(ctx, tx, c.ID); err != nil {
				return err
			}
		}
		advance, err = s.advancer.FinalizeInTx(ctx, tx, match, winnerTeamID, sets)
		if err != nil {
			return err
		}
		outcome.Status = ResultAutoConfirmed
		outcome.Advance = advance
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch outcome.Status {
	case ResultAutoConfirmed:
		s.advancer.Announce(ctx, advance)
	case ResultPendingConflict:
		s.announceConflict(ctx, match)
	}
	return outcome, nil
}

func (s *resultService) ResolveConflict(ctx context.Context, clubID, organizerID, tournamentID, matchID, winnerTeamID int, sets []models.SetScore) (*ResultOutcome, error) {
	match, err := s.loadPlayableMatch(ctx, clubID, tournamentID, matchID, winnerTeamID, sets)
	if err != nil {
		return nil, err
	}
	return s.finalizeWithCandidate(ctx, match, organizerID, models.RoleOrganizer, winnerTeamID, sets)
}

// finalizeWithCandidate records an authoritative organizer candidate,
// supersedes everything still open and finalizes the match, all in one
// transaction.
func (s *resultService) finalizeWithCandidate(ctx context.Context, match *models.Match, userID int, role models.SubmitterRole, winnerTeamID int, sets []models.SetScore) (*ResultOutcome, error) {
	outcome := &ResultOutcome{MatchID: match.ID, Status: ResultAutoConfirmed}
	var advance *AdvanceOutcome
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.resultRepo.SupersedeOpen(ctx, tx, match.ID); err != nil {
			return err
		}
		candidate := &models.ResultCandidate{
			MatchID:      match.ID,
			ClubID:       match.ClubID,
			SubmittedBy:  userID,
			Role:         role,
			WinnerTeamID: winnerTeamID,
			Sets:         sets,
			Status:       models.CandidateStatusCandidate,
		}
		if err := s.resultRepo.Create(ctx, tx, candidate); err != nil {
			return err
		}
		if err := s.resultRepo.MarkConfirmed(ctx, tx, candidate.ID); err != nil {
			return err
		}
		var err error
		advance, err = s.advancer.FinalizeInTx(ctx, tx, match, winnerTeamID, sets)
		if err != nil {
			return err
		}
		outcome.Advance = advance
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.advancer.Announce(ctx, advance)
	return outcome, nil
}

func (s *resultService) SweepExpired(ctx context.Context, clubID, tournamentID int, now time.Time) (int, error) {
	matchIDs, err := s.resultRepo.ListPendingMatchIDs(ctx, clubID, tournamentID)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for _, matchID := range matchIDs {
		match, err := s.matchRepo.GetByID(ctx, clubID, matchID)
		if err != nil {
			return finalized, err
		}
		if match.Status.Final() {
			continue
		}

		var advance *AdvanceOutcome
		err = withTx(ctx, s.db, func(tx *sql.Tx) error {
			candidates, err := s.resultRepo.ListByMatch(ctx, tx, matchID)
			if err != nil {
				return err
			}
			open := openCandidates(candidates)
			if len(open) == 0 {
				return nil
			}
			// Conflicting candidates wait for the organizer, fresh ones
			// wait out their grace window.
			for _, c := range open {
				if !c.Agrees(open[0]) {
					return nil
				}
				if now.Sub(c.CreatedAt) < s.gracePeriod {
					return nil
				}
			}
			for _, c := range open {
				if err := s.resultRepo.MarkConfirmed(ctx, tx, c.ID); err != nil {
					return err
				}
			}
			advance, err = s.advancer.FinalizeInTx(ctx, tx, match, open[0].WinnerTeamID, open[0].Sets)
			return err
		})
		if err != nil {
			return finalized, err
		}
		if advance != nil {
			finalized++
			s.advancer.Announce(ctx, advance)
		}
	}
	return finalized, nil
}

func (s *resultService) loadPlayableMatch(ctx context.Context, clubID, tournamentID, matchID, winnerTeamID int, sets []models.SetScore) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, clubID, matchID)
	if err != nil {
		return nil, err
	}
	division, err := s.divisionRepo.GetByID(ctx, clubID, match.DivisionID)
	if err != nil {
		return nil, err
	}
	if division.TournamentID != tournamentID {
		return nil, repositories.ErrMatchNotFound
	}
	if match.Status.Final() {
		return nil, ErrMatchAlreadyFinalized
	}
	if !match.Slot1.Resolved() || !match.Slot2.Resolved() {
		return nil, ErrMatchNotPlayable
	}
	if !match.HasTeam(winnerTeamID) {
		return nil, ErrInvalidWinner
	}
	if len(sets) == 0 {
		return nil, ErrInvalidScore
	}
	return match, nil
}

func (s *resultService) announceConflict(ctx context.Context, match *models.Match) {
	_ = s.publisher.Publish(ctx, events.QueueConflictDetected, events.ConflictDetected{
		ClubID:     match.ClubID,
		DivisionID: match.DivisionID,
		MatchID:    match.ID,
		MatchUID:   match.UID,
		OccurredAt: time.Now().UTC(),
	})
	if err := s.roundsCache.Invalidate(ctx, match.ClubID, match.DivisionID); err != nil {
		s.logger.Warn("rounds cache invalidation failed", slog.Int("division_id", match.DivisionID), slog.Any("error", err))
	}
}

func openCandidates(all []*models.ResultCandidate) []*models.ResultCandidate {
	open := make([]*models.ResultCandidate, 0, len(all))
	for _, c := range all {
		if c.Status == models.CandidateStatusCandidate {
			open = append(open, c)
		}
	}
	return open
}
