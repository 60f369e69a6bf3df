package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/clubkit/tournament-engine/brackets"
	"github.com/clubkit/tournament-engine/cache"
	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/repositories"
)

// GenerationSummary reports what a generation run did per division.
// Divisions that already have a bracket are skipped, which makes the
// operation safe to retry.
type GenerationSummary struct {
	TournamentID   int   `json:"tournament_id"`
	Generated      []int `json:"generated_division_ids"`
	Skipped        []int `json:"skipped_division_ids"`
	MatchesCreated int   `json:"matches_created"`
}

type BracketService interface {
	// GenerateForTournament lays out and persists the bracket of every
	// pending division of the tournament, optionally filtered by category.
	GenerateForTournament(ctx context.Context, clubID, tournamentID int, categories []string) (*GenerationSummary, error)
}

type bracketService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	divisionRepo   repositories.DivisionRepository
	teamRepo       repositories.TeamRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	roundsCache    *cache.RoundsCache
	logger         *slog.Logger
}

func NewBracketService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	divisionRepo repositories.DivisionRepository,
	teamRepo repositories.TeamRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	roundsCache *cache.RoundsCache,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		db:             db,
		tournamentRepo: tournamentRepo,
		divisionRepo:   divisionRepo,
		teamRepo:       teamRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		roundsCache:    roundsCache,
		logger:         logger,
	}
}

func (s *bracketService) GenerateForTournament(ctx context.Context, clubID, tournamentID int, categories []string) (*GenerationSummary, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, clubID, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status == models.TournamentStatusCompleted || tournament.Status == models.TournamentStatusCanceled {
		return nil, ErrTournamentNotSchedulable
	}

	generator, err := brackets.ForFormat(tournament.Format)
	if err != nil {
		return nil, err
	}

	divisions, err := s.divisionRepo.ListByTournament(ctx, clubID, tournamentID, categories)
	if err != nil {
		return nil, err
	}
	if len(divisions) == 0 {
		return nil, fmt.Errorf("%w: tournament %d has no divisions", ErrNotFound, tournamentID)
	}

	summary := &GenerationSummary{TournamentID: tournamentID}
	for _, division := range divisions {
		if division.Status != models.DivisionStatusPending {
			summary.Skipped = append(summary.Skipped, division.ID)
			continue
		}
		existing, err := s.roundRepo.ListByDivision(ctx, division.ID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			// A previous run already generated this bracket.
			summary.Skipped = append(summary.Skipped, division.ID)
			continue
		}

		created, err := s.generateDivision(ctx, generator, division)
		if err != nil {
			return nil, fmt.Errorf("division %d (%s): %w", division.ID, division.Label(), err)
		}
		summary.Generated = append(summary.Generated, division.ID)
		summary.MatchesCreated += created

		if err := s.roundsCache.Invalidate(ctx, clubID, division.ID); err != nil {
			s.logger.Warn("rounds cache invalidation failed", slog.Int("division_id", division.ID), slog.Any("error", err))
		}
	}

	// Activate the tournament once at least one bracket exists so the
	// scheduler and the live views pick it up.
	if len(summary.Generated) > 0 && tournament.Status == models.TournamentStatusDraft {
		if err := withTx(ctx, s.db, func(tx *sql.Tx) error {
			_, err := s.tournamentRepo.UpdateStatus(ctx, tx, tournamentID, models.TournamentStatusDraft, models.TournamentStatusActive)
			return err
		}); err != nil {
			return nil, err
		}
	}

	s.logger.Info("bracket generation finished",
		slog.Int("tournament_id", tournamentID),
		slog.String("generator", generator.Name()),
		slog.Int("divisions_generated", len(summary.Generated)),
		slog.Int("divisions_skipped", len(summary.Skipped)),
		slog.Int("matches_created", summary.MatchesCreated),
	)
	return summary, nil
}

func (s *bracketService) generateDivision(ctx context.Context, generator brackets.Generator, division *models.Division) (int, error) {
	teams, err := s.teamRepo.ListConfirmedByDivision(ctx, division.ClubID, division.ID)
	if err != nil {
		return 0, err
	}
	if len(teams) == 0 {
		return 0, ErrNoConfirmedTeams
	}

	blueprint, err := generator.Generate(ctx, brackets.GenerateParams{Division: division, Teams: teams})
	if err != nil {
		return 0, err
	}
	if err := validateBlueprint(blueprint); err != nil {
		return 0, err
	}

	created := 0
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, br := range blueprint.Rounds {
			n, err := persistBlueprintRound(ctx, tx, s.roundRepo, s.matchRepo, division, br)
			if err != nil {
				return err
			}
			created += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// persistBlueprintRound writes one round row and its matches. Rounds with
// matches start in_progress with the walkover rows pre-counted as completed;
// empty later rounds start pending and get their matches from the
// advancement engine. Shared with the advancement engine for lazily created
// playoff and bracket-reset rounds.
func persistBlueprintRound(
	ctx context.Context,
	tx *sql.Tx,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	division *models.Division,
	br *brackets.BlueprintRound,
) (int, error) {
	round := &models.Round{
		DivisionID:      division.ID,
		ClubID:          division.ClubID,
		Stage:           br.Stage,
		Ordinal:         br.Ordinal,
		Side:            br.Side,
		SideOrdinal:     br.SideOrdinal,
		ExpectedMatches: br.Expected,
		Status:          models.RoundStatusPending,
	}
	if len(br.Matches) > 0 {
		round.Status = models.RoundStatusInProgress
		for _, bm := range br.Matches {
			if bm.Walkover {
				round.CompletedMatches++
			}
		}
	}
	if err := roundRepo.Create(ctx, tx, round); err != nil {
		return 0, err
	}

	for _, bm := range br.Matches {
		if err := matchRepo.Create(ctx, tx, blueprintMatch(round, division, bm)); err != nil {
			return 0, err
		}
	}
	return len(br.Matches), nil
}

func blueprintMatch(round *models.Round, division *models.Division, bm *brackets.BlueprintMatch) *models.Match {
	match := &models.Match{
		RoundID:      round.ID,
		DivisionID:   division.ID,
		ClubID:       division.ClubID,
		UID:          bm.UID,
		Number:       bm.Number,
		Slot1:        bm.Slot1,
		Slot2:        bm.Slot2,
		Status:       models.MatchStatusScheduled,
		WinnerTeamID: bm.WinnerTeamID,
	}
	if bm.Walkover {
		match.Status = models.MatchStatusWalkover
	}
	return match
}

// validateBlueprint runs the progression checks over the laid-out matches
// before anything is persisted: no duplicate UIDs, no dangling slot
// references, no cycles.
func validateBlueprint(blueprint *brackets.Blueprint) error {
	transient := make([]*models.Match, 0, blueprint.MatchCount())
	for _, br := range blueprint.Rounds {
		for _, bm := range br.Matches {
			transient = append(transient, &models.Match{
				UID:    bm.UID,
				Number: bm.Number,
				Slot1:  bm.Slot1,
				Slot2:  bm.Slot2,
			})
		}
	}
	return brackets.ValidateProgression(transient)
}
