package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"strconv"
	"time"

	"github.com/clubkit/tournament-engine/brackets"
	"github.com/clubkit/tournament-engine/cache"
	"github.com/clubkit/tournament-engine/events"
	"github.com/clubkit/tournament-engine/live"
	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/repositories"
	"github.com/clubkit/tournament-engine/storage"
)

// Broadcaster pushes live updates to spectators. *live.Hub implements it.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgType string, payload any)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToRoom(string, string, any) {}

// AdvanceOutcome describes everything a finalized match caused, so callers
// can announce it after their transaction commits.
type AdvanceOutcome struct {
	Match          *models.Match `json:"match"`
	AlreadyFinal   bool          `json:"already_final"`
	RoundCompleted bool          `json:"round_completed"`
	NewMatchUIDs   []string      `json:"new_match_uids,omitempty"`

	DivisionCompleted    bool `json:"division_completed"`
	DivisionWinnerTeamID int  `json:"division_winner_team_id,omitempty"`
	TournamentCompleted  bool `json:"tournament_completed"`

	division *models.Division
}

// AdvancementService turns a final match result into bracket progression:
// bump the round counter, win the round-completion compare-and-swap, create
// the now-playable matches of the next rounds, and close out the division
// when its last match falls. The whole chain runs in one transaction, so a
// lost race or a failure leaves no partial progression behind.
type AdvancementService interface {
	// FinalizeMatch records the result and advances the bracket. Submitting
	// the same winner for an already final match is a no-op that reports
	// AlreadyFinal; a different winner fails with ErrMatchAlreadyFinalized.
	FinalizeMatch(ctx context.Context, clubID, matchID, winnerTeamID int, sets []models.SetScore) (*AdvanceOutcome, error)

	// FinalizeInTx is FinalizeMatch minus transaction ownership, for callers
	// that need the finalization inside a larger transaction. The caller
	// must invoke Announce with the outcome after a successful commit.
	FinalizeInTx(ctx context.Context, tx *sql.Tx, match *models.Match, winnerTeamID int, sets []models.SetScore) (*AdvanceOutcome, error)

	// Announce performs the post-commit side effects of an outcome: cache
	// invalidation, live broadcasts, event publishing, archive upload and
	// the tournament completion check. Never fails; problems are logged.
	Announce(ctx context.Context, outcome *AdvanceOutcome)
}

type advancementService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	divisionRepo   repositories.DivisionRepository
	teamRepo       repositories.TeamRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	publisher      events.Publisher
	broadcaster    Broadcaster
	roundsCache    *cache.RoundsCache
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewAdvancementService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	divisionRepo repositories.DivisionRepository,
	teamRepo repositories.TeamRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	publisher events.Publisher,
	broadcaster Broadcaster,
	roundsCache *cache.RoundsCache,
	uploader storage.FileUploader,
	logger *slog.Logger,
) AdvancementService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	return &advancementService{
		db:             db,
		tournamentRepo: tournamentRepo,
		divisionRepo:   divisionRepo,
		teamRepo:       teamRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		publisher:      publisher,
		broadcaster:    broadcaster,
		roundsCache:    roundsCache,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *advancementService) FinalizeMatch(ctx context.Context, clubID, matchID, winnerTeamID int, sets []models.SetScore) (*AdvanceOutcome, error) {
	match, err := s.matchRepo.GetByID(ctx, clubID, matchID)
	if err != nil {
		return nil, err
	}

	var outcome *AdvanceOutcome
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		var txErr error
		outcome, txErr = s.FinalizeInTx(ctx, tx, match, winnerTeamID, sets)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	s.Announce(ctx, outcome)
	return outcome, nil
}

func (s *advancementService) FinalizeInTx(ctx context.Context, tx *sql.Tx, match *models.Match, winnerTeamID int, sets []models.SetScore) (*AdvanceOutcome, error) {
	if match.Status.Final() {
		if match.WinnerTeamID != nil && *match.WinnerTeamID == winnerTeamID {
			return &AdvanceOutcome{Match: match, AlreadyFinal: true}, nil
		}
		return nil, ErrMatchAlreadyFinalized
	}
	if !match.HasTeam(winnerTeamID) {
		return nil, ErrInvalidWinner
	}
	if len(sets) == 0 {
		return nil, ErrInvalidScore
	}

	division, err := s.divisionRepo.GetByID(ctx, match.ClubID, match.DivisionID)
	if err != nil {
		return nil, err
	}

	score := models.FormatScore(sets)
	ok, err := s.matchRepo.Finalize(ctx, tx, match.ID, &winnerTeamID, &score, models.MatchStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone beat us to it inside the race window.
		return nil, ErrMatchAlreadyFinalized
	}
	match.WinnerTeamID = &winnerTeamID
	match.Score = &score
	match.Status = models.MatchStatusCompleted

	if err := s.roundRepo.IncrementCompleted(ctx, tx, match.RoundID); err != nil {
		return nil, err
	}

	outcome := &AdvanceOutcome{Match: match, division: division}

	won, err := s.roundRepo.CompleteCAS(ctx, tx, match.RoundID)
	if err != nil {
		return nil, err
	}
	if !won {
		return outcome, nil
	}
	outcome.RoundCompleted = true

	round, err := s.roundRepo.GetByID(ctx, tx, match.RoundID)
	if err != nil {
		return nil, err
	}
	if err := s.advanceRound(ctx, tx, division, round, outcome); err != nil {
		return nil, err
	}

	if outcome.DivisionCompleted {
		if err := s.completeDivision(ctx, tx, division, outcome.DivisionWinnerTeamID); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// advanceRound creates every match that became playable when the given round
// completed. Exactly one caller reaches this per round (CompleteCAS), so
// creation cannot race itself.
func (s *advancementService) advanceRound(ctx context.Context, tx *sql.Tx, division *models.Division, round *models.Round, outcome *AdvanceOutcome) error {
	matches, err := s.matchRepo.ListByRound(ctx, tx, round.ID)
	if err != nil {
		return err
	}

	switch round.Side {
	case models.SideMain, models.SidePlayoff:
		return s.advanceElimination(ctx, tx, division, round, matches, outcome)
	case models.SideGroup:
		return s.advanceGroup(ctx, tx, division, round, matches, outcome)
	case models.SideWinners:
		return s.advanceWinners(ctx, tx, division, round, matches, outcome)
	case models.SideLosers:
		return s.advanceLosers(ctx, tx, division, round, matches, outcome)
	case models.SideFinal:
		return s.advanceFinal(ctx, tx, division, round, matches, outcome)
	}
	return fmt.Errorf("round %d has unknown side %q", round.ID, round.Side)
}

func eliminationPrefix(side models.BracketSide) string {
	switch side {
	case models.SidePlayoff:
		return "P"
	case models.SideWinners:
		return "W"
	case models.SideLosers:
		return "L"
	default:
		return "R"
	}
}

func (s *advancementService) advanceElimination(ctx context.Context, tx *sql.Tx, division *models.Division, round *models.Round, matches []*models.Match, outcome *AdvanceOutcome) error {
	next, err := s.roundRepo.GetBySide(ctx, tx, division.ID, round.Side, round.SideOrdinal+1)
	if errors.Is(err, repositories.ErrRoundNotFound) {
		// The bracket final just completed.
		return s.declareWinner(matches, outcome)
	}
	if err != nil {
		return err
	}

	bms, err := brackets.PairWinners(eliminationPrefix(round.Side), round.SideOrdinal+1, matches)
	if err != nil {
		return err
	}
	return s.fillRound(ctx, tx, division, next, bms, outcome)
}

func (s *advancementService) advanceGroup(ctx context.Context, tx *sql.Tx, division *models.Division, round *models.Round, matches []*models.Match, outcome *AdvanceOutcome) error {
	teams, err := s.teamRepo.ListConfirmedByDivision(ctx, division.ClubID, division.ID)
	if err != nil {
		return err
	}
	standings, err := brackets.ComputeStandings(teams, matches)
	if err != nil {
		return err
	}
	if len(standings) == 0 {
		return fmt.Errorf("group round %d produced no standings", round.ID)
	}

	if division.QualifierCount < 2 {
		// No playoff stage: the group table decides the division.
		outcome.DivisionCompleted = true
		outcome.DivisionWinnerTeamID = standings[0].TeamID
		return nil
	}

	qualifiers, err := brackets.QualifierTeams(standings, teams, division.QualifierCount)
	if err != nil {
		return err
	}
	blueprint, err := brackets.BuildElimination(qualifiers, brackets.EliminationOptions{
		UIDPrefix:     "P",
		Side:          models.SidePlayoff,
		StagePrefix:   "Playoff ",
		OrdinalOffset: round.Ordinal,
	})
	if err != nil {
		return err
	}
	for _, br := range blueprint.Rounds {
		if _, err := persistBlueprintRound(ctx, tx, s.roundRepo, s.matchRepo, division, br); err != nil {
			return err
		}
		for _, bm := range br.Matches {
			outcome.NewMatchUIDs = append(outcome.NewMatchUIDs, bm.UID)
		}
	}
	return nil
}

// bracketSize derives the double-elimination field size from the first
// winners round.
func (s *advancementService) bracketSize(ctx context.Context, tx *sql.Tx, divisionID int) (n, k int, err error) {
	w1, err := s.roundRepo.GetBySide(ctx, tx, divisionID, models.SideWinners, 1)
	if err != nil {
		return 0, 0, err
	}
	n = w1.ExpectedMatches * 2
	return n, bits.TrailingZeros(uint(n)), nil
}

func (s *advancementService) advanceWinners(ctx context.Context, tx *sql.Tx, division *models.Division, round *models.Round, matches []*models.Match, outcome *AdvanceOutcome) error {
	_, k, err := s.bracketSize(ctx, tx, division.ID)
	if err != nil {
		return err
	}
	j := round.SideOrdinal

	if j < k {
		next, err := s.roundRepo.GetBySide(ctx, tx, division.ID, models.SideWinners, j+1)
		if err != nil {
			return err
		}
		bms, err := brackets.PairWinners("W", j+1, matches)
		if err != nil {
			return err
		}
		if err := s.fillRound(ctx, tx, division, next, bms, outcome); err != nil {
			return err
		}
	}

	if j == 1 {
		l1, err := s.roundRepo.GetBySide(ctx, tx, division.ID, models.SideLosers, 1)
		if err != nil {
			return err
		}
		bms, err := brackets.PairInitialLosers(matches)
		if err != nil {
			return err
		}
		return s.fillRound(ctx, tx, division, l1, bms, outcome)
	}

	// Winners round j >= 2 feeds its losers into major losers round 2(j-1),
	// which also needs the survivors of the preceding minor round. Both
	// feeding transactions take the division lock before reading the other
	// side's status, so whichever commits second always sees the first one
	// completed and exactly one of them creates the major round.
	if err := s.divisionRepo.Lock(ctx, tx, division.ID); err != nil {
		return err
	}
	minor, err := s.roundRepo.GetBySide(ctx, tx, division.ID, models.SideLosers, 2*j-3)
	if err != nil {
		return err
	}
	if minor.Status == models.RoundStatusCompleted {
		minorMatches, err := s.matchRepo.ListByRound(ctx, tx, minor.ID)
		if err != nil {
			return err
		}
		if err := s.createMajorLosers(ctx, tx, division, j-1, matches, minorMatches, outcome); err != nil {
			return err
		}
	}
	return nil
}

func (s *advancementService) advanceLosers(ctx context.Context, tx *sql.Tx, division *models.Division, round *models.Round, matches []*models.Match, outcome *AdvanceOutcome) error {
	_, k, err := s.bracketSize(ctx, tx, division.ID)
	if err != nil {
		return err
	}
	q := round.SideOrdinal

	if q%2 == 1 {
		// Minor round 2i-1 done: the major round needs the losers dropping
		// from winners round i+1, which may not have finished yet. The
		// division lock pairs with the one in advanceWinners, keeping the
		// two status checks from missing each other under concurrency.
		if err := s.divisionRepo.Lock(ctx, tx, division.ID); err != nil {
			return err
		}
		i := (q + 1) / 2
		wNext, err := s.roundRepo.GetBySide(ctx, tx, division.ID, models.SideWinners, i+1)
		if err != nil {
			return err
		}
		if wNext.Status != models.RoundStatusCompleted {
			return nil
		}
		wMatches, err := s.matchRepo.ListByRound(ctx, tx, wNext.ID)
		if err != nil {
			return err
		}
		return s.createMajorLosers(ctx, tx, division, i, wMatches, matches, outcome)
	}

	if q < 2*k-2 {
		// Major round done, minor round q+1 pairs its winners.
		next, err := s.roundRepo.GetBySide(ctx, tx, division.ID, models.SideLosers, q+1)
		if err != nil {
			return err
		}
		bms, err := brackets.PairWinners("L", q+1, matches)
		if err != nil {
			return err
		}
		return s.fillRound(ctx, tx, division, next, bms, outcome)
	}

	// The last losers round decided the losers-bracket champion; the grand
	// final waits only on the winners final.
	return s.tryGrandFinal(ctx, tx, division, k, matches, outcome)
}

func (s *advancementService) createMajorLosers(ctx context.Context, tx *sql.Tx, division *models.Division, i int, winnersMatches, minorMatches []*models.Match, outcome *AdvanceOutcome) error {
	major, err := s.roundRepo.GetBySide(ctx, tx, division.ID, models.SideLosers, 2*i)
	if err != nil {
		return err
	}
	bms, err := brackets.PairMajorLosers(i, winnersMatches, minorMatches)
	if err != nil {
		return err
	}
	return s.fillRound(ctx, tx, division, major, bms, outcome)
}

func (s *advancementService) tryGrandFinal(ctx context.Context, tx *sql.Tx, division *models.Division, k int, lastLosersMatches []*models.Match, outcome *AdvanceOutcome) error {
	wFinal, err := s.roundRepo.GetBySide(ctx, tx, division.ID, models.SideWinners, k)
	if err != nil {
		return err
	}
	if wFinal.Status != models.RoundStatusCompleted {
		return nil
	}
	wMatches, err := s.matchRepo.ListByRound(ctx, tx, wFinal.ID)
	if err != nil {
		return err
	}
	if len(wMatches) != 1 || len(lastLosersMatches) != 1 {
		return fmt.Errorf("division %d: malformed bracket finals", division.ID)
	}
	if wMatches[0].WinnerTeamID == nil || lastLosersMatches[0].WinnerTeamID == nil {
		return fmt.Errorf("division %d: bracket finals lack winners", division.ID)
	}

	gfRound, err := s.roundRepo.GetBySide(ctx, tx, division.ID, models.SideFinal, 1)
	if err != nil {
		return err
	}
	bm := brackets.GrandFinal(*wMatches[0].WinnerTeamID, *lastLosersMatches[0].WinnerTeamID)
	return s.fillRound(ctx, tx, division, gfRound, []*brackets.BlueprintMatch{bm}, outcome)
}

func (s *advancementService) advanceFinal(ctx context.Context, tx *sql.Tx, division *models.Division, round *models.Round, matches []*models.Match, outcome *AdvanceOutcome) error {
	if len(matches) != 1 || matches[0].WinnerTeamID == nil {
		return fmt.Errorf("division %d: malformed grand final round %d", division.ID, round.ID)
	}
	final := matches[0]

	if round.SideOrdinal == 1 && final.Slot1.Resolved() && *final.WinnerTeamID != final.Slot1.TeamID {
		// The losers-bracket champion took the first grand final, which puts
		// both finalists at one loss: play the bracket reset.
		bm, err := brackets.BracketReset(final)
		if err != nil {
			return err
		}
		reset := &brackets.BlueprintRound{
			Stage:       "Grand Final Reset",
			Ordinal:     round.Ordinal + 1,
			Side:        models.SideFinal,
			SideOrdinal: 2,
			Expected:    1,
			Matches:     []*brackets.BlueprintMatch{bm},
		}
		if _, err := persistBlueprintRound(ctx, tx, s.roundRepo, s.matchRepo, division, reset); err != nil {
			return err
		}
		outcome.NewMatchUIDs = append(outcome.NewMatchUIDs, bm.UID)
		return nil
	}

	return s.declareWinner(matches, outcome)
}

func (s *advancementService) declareWinner(matches []*models.Match, outcome *AdvanceOutcome) error {
	if len(matches) != 1 || matches[0].WinnerTeamID == nil {
		return fmt.Errorf("final round has %d matches, want exactly one with a winner", len(matches))
	}
	outcome.DivisionCompleted = true
	outcome.DivisionWinnerTeamID = *matches[0].WinnerTeamID
	return nil
}

// fillRound materializes the blueprint matches inside an already existing
// round row and activates it.
func (s *advancementService) fillRound(ctx context.Context, tx *sql.Tx, division *models.Division, round *models.Round, bms []*brackets.BlueprintMatch, outcome *AdvanceOutcome) error {
	if len(bms) != round.ExpectedMatches {
		return fmt.Errorf("round %d expects %d matches, advancement produced %d", round.ID, round.ExpectedMatches, len(bms))
	}
	for _, bm := range bms {
		if err := s.matchRepo.Create(ctx, tx, blueprintMatch(round, division, bm)); err != nil {
			return err
		}
		outcome.NewMatchUIDs = append(outcome.NewMatchUIDs, bm.UID)
	}
	return s.roundRepo.Activate(ctx, tx, round.ID)
}

func (s *advancementService) completeDivision(ctx context.Context, tx *sql.Tx, division *models.Division, winnerTeamID int) error {
	ok, err := s.divisionRepo.UpdateStatus(ctx, tx, division.ID, models.DivisionStatusInProgress, models.DivisionStatusCompleted)
	if err != nil {
		return err
	}
	if !ok {
		// A division decided entirely by results before any scheduling ran
		// is still pending.
		if _, err := s.divisionRepo.UpdateStatus(ctx, tx, division.ID, models.DivisionStatusPending, models.DivisionStatusCompleted); err != nil {
			return err
		}
	}
	return s.divisionRepo.SetWinner(ctx, tx, division.ID, winnerTeamID)
}

// Announce performs every post-commit side effect of an outcome.
func (s *advancementService) Announce(ctx context.Context, outcome *AdvanceOutcome) {
	if outcome == nil || outcome.AlreadyFinal {
		return
	}
	match := outcome.Match
	division := outcome.division
	if division == nil {
		return
	}
	room := strconv.Itoa(division.TournamentID)

	if err := s.roundsCache.Invalidate(ctx, division.ClubID, division.ID); err != nil {
		s.logger.Warn("rounds cache invalidation failed", slog.Int("division_id", division.ID), slog.Any("error", err))
	}

	s.broadcaster.BroadcastToRoom(room, live.TypeMatchUpdated, match)

	if outcome.RoundCompleted {
		_ = s.publisher.Publish(ctx, events.QueueRoundAdvanced, events.RoundAdvanced{
			ClubID:         division.ClubID,
			DivisionID:     division.ID,
			CompletedRound: match.RoundID,
			NewMatchUIDs:   outcome.NewMatchUIDs,
			OccurredAt:     time.Now().UTC(),
		})
		s.broadcaster.BroadcastToRoom(room, live.TypeBracketUpdated, outcome)
	}

	if outcome.DivisionCompleted {
		archiveURL := s.archiveDivision(ctx, division)
		_ = s.publisher.Publish(ctx, events.QueueDivisionCompleted, events.DivisionCompleted{
			ClubID:       division.ClubID,
			TournamentID: division.TournamentID,
			DivisionID:   division.ID,
			WinnerTeamID: outcome.DivisionWinnerTeamID,
			ArchiveURL:   archiveURL,
			OccurredAt:   time.Now().UTC(),
		})
		outcome.TournamentCompleted = s.maybeCompleteTournament(ctx, division)
	}
}

// archiveDivision uploads the finished bracket as JSON to object storage and
// returns its public URL, or "" when archiving is disabled or fails.
func (s *advancementService) archiveDivision(ctx context.Context, division *models.Division) string {
	if s.uploader == nil {
		return ""
	}
	rounds, err := s.roundRepo.ListByDivision(ctx, division.ID)
	if err != nil {
		s.logger.Error("bracket archive: load rounds failed", slog.Int("division_id", division.ID), slog.Any("error", err))
		return ""
	}
	matches, err := s.matchRepo.ListByDivision(ctx, division.ID)
	if err != nil {
		s.logger.Error("bracket archive: load matches failed", slog.Int("division_id", division.ID), slog.Any("error", err))
		return ""
	}
	payload, err := json.Marshal(map[string]any{
		"division": division,
		"rounds":   rounds,
		"matches":  matches,
	})
	if err != nil {
		s.logger.Error("bracket archive: marshal failed", slog.Int("division_id", division.ID), slog.Any("error", err))
		return ""
	}

	key := fmt.Sprintf("brackets/%d/%d/division-%d.json", division.ClubID, division.TournamentID, division.ID)
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.logger.Error("bracket archive: upload failed", slog.String("key", key), slog.Any("error", err))
		return ""
	}
	return result.Location
}

// maybeCompleteTournament closes the tournament once its last division
// finishes.
func (s *advancementService) maybeCompleteTournament(ctx context.Context, division *models.Division) bool {
	divisions, err := s.divisionRepo.ListByTournament(ctx, division.ClubID, division.TournamentID, nil)
	if err != nil {
		s.logger.Error("tournament completion check failed", slog.Int("tournament_id", division.TournamentID), slog.Any("error", err))
		return false
	}
	for _, d := range divisions {
		if d.Status != models.DivisionStatusCompleted {
			return false
		}
	}
	completed := false
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		var txErr error
		completed, txErr = s.tournamentRepo.UpdateStatus(ctx, tx, division.TournamentID, models.TournamentStatusActive, models.TournamentStatusCompleted)
		return txErr
	})
	if err != nil {
		s.logger.Error("tournament completion failed", slog.Int("tournament_id", division.TournamentID), slog.Any("error", err))
		return false
	}
	return completed
}
