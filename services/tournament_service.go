package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clubkit/tournament-engine/brackets"
	"github.com/clubkit/tournament-engine/cache"
	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/repositories"
)

// RoundView is one round with its matches, ready for rendering.
type RoundView struct {
	Round   *models.Round   `json:"round"`
	Matches []*models.Match `json:"matches"`
}

// RoundsView is the full bracket state of one division.
type RoundsView struct {
	Division  *models.Division  `json:"division"`
	Rounds    []RoundView       `json:"rounds"`
	Teams     []*models.Team    `json:"teams"`
	Standings []models.Standing `json:"standings,omitempty"`
}

// TournamentRoundsView is the round/match state of the whole tournament,
// one entry per division.
type TournamentRoundsView struct {
	Tournament *models.Tournament `json:"tournament"`
	Divisions  []*RoundsView      `json:"divisions"`
}

// TournamentService serves the read side of the engine. The rounds reads
// first run the grace-window sweep for the tournament, so overdue
// self-reported results are confirmed by the next reader instead of a
// background loop.
type TournamentService interface {
	GetTournament(ctx context.Context, clubID, tournamentID int) (*models.Tournament, error)
	ListDivisions(ctx context.Context, clubID, tournamentID int) ([]*models.Division, error)
	GetRounds(ctx context.Context, clubID, tournamentID, divisionID int) (*RoundsView, error)
	// GetTournamentRounds assembles the rounds of every division for the
	// tournament-wide polling endpoint.
	GetTournamentRounds(ctx context.Context, clubID, tournamentID int) (*TournamentRoundsView, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	divisionRepo   repositories.DivisionRepository
	teamRepo       repositories.TeamRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	results        ResultService
	roundsCache    *cache.RoundsCache
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	divisionRepo repositories.DivisionRepository,
	teamRepo repositories.TeamRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	results ResultService,
	roundsCache *cache.RoundsCache,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		divisionRepo:   divisionRepo,
		teamRepo:       teamRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		results:        results,
		roundsCache:    roundsCache,
		logger:         logger,
	}
}

func (s *tournamentService) GetTournament(ctx context.Context, clubID, tournamentID int) (*models.Tournament, error) {
	return s.tournamentRepo.GetByID(ctx, clubID, tournamentID)
}

func (s *tournamentService) ListDivisions(ctx context.Context, clubID, tournamentID int) ([]*models.Division, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, clubID, tournamentID); err != nil {
		return nil, err
	}
	return s.divisionRepo.ListByTournament(ctx, clubID, tournamentID, nil)
}

func (s *tournamentService) GetRounds(ctx context.Context, clubID, tournamentID, divisionID int) (*RoundsView, error) {
	s.sweep(ctx, clubID, tournamentID)

	division, err := s.divisionRepo.GetByID(ctx, clubID, divisionID)
	if err != nil {
		return nil, err
	}
	if division.TournamentID != tournamentID {
		return nil, repositories.ErrDivisionNotFound
	}
	return s.divisionRounds(ctx, clubID, division)
}

func (s *tournamentService) GetTournamentRounds(ctx context.Context, clubID, tournamentID int) (*TournamentRoundsView, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, clubID, tournamentID)
	if err != nil {
		return nil, err
	}
	s.sweep(ctx, clubID, tournamentID)

	divisions, err := s.divisionRepo.ListByTournament(ctx, clubID, tournamentID, nil)
	if err != nil {
		return nil, err
	}
	view := &TournamentRoundsView{Tournament: tournament, Divisions: make([]*RoundsView, 0, len(divisions))}
	for _, division := range divisions {
		dv, err := s.divisionRounds(ctx, clubID, division)
		if err != nil {
			return nil, err
		}
		view.Divisions = append(view.Divisions, dv)
	}
	return view, nil
}

func (s *tournamentService) sweep(ctx context.Context, clubID, tournamentID int) {
	if s.results == nil {
		return
	}
	if n, err := s.results.SweepExpired(ctx, clubID, tournamentID, time.Now().UTC()); err != nil {
		s.logger.Warn("grace-window sweep failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	} else if n > 0 {
		s.logger.Info("grace-window sweep finalized results", slog.Int("tournament_id", tournamentID), slog.Int("finalized", n))
	}
}

func (s *tournamentService) divisionRounds(ctx context.Context, clubID int, division *models.Division) (*RoundsView, error) {
	var view RoundsView
	if hit, err := s.roundsCache.Get(ctx, clubID, division.ID, &view); err != nil {
		s.logger.Warn("rounds cache read failed", slog.Int("division_id", division.ID), slog.Any("error", err))
	} else if hit {
		return &view, nil
	}
	divisionID := division.ID

	var (
		rounds  []*models.Round
		matches []*models.Match
		teams   []*models.Team
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rounds, err = s.roundRepo.ListByDivision(gctx, divisionID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByDivision(gctx, divisionID)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = s.teamRepo.ListConfirmedByDivision(gctx, clubID, divisionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byRound := make(map[int][]*models.Match, len(rounds))
	for _, m := range matches {
		byRound[m.RoundID] = append(byRound[m.RoundID], m)
	}

	view = RoundsView{Division: division, Teams: teams}
	for _, r := range rounds {
		rm := byRound[r.ID]
		if rm == nil {
			rm = []*models.Match{}
		}
		view.Rounds = append(view.Rounds, RoundView{Round: r, Matches: rm})

		// A completed or running group stage carries its live table.
		if r.Side == models.SideGroup && view.Standings == nil {
			standings, err := brackets.ComputeStandings(teams, rm)
			if err != nil {
				s.logger.Warn("standings computation failed", slog.Int("round_id", r.ID), slog.Any("error", err))
			} else {
				view.Standings = standings
			}
		}
	}

	if err := s.roundsCache.Set(ctx, clubID, divisionID, &view); err != nil {
		s.logger.Warn("rounds cache write failed", slog.Int("division_id", divisionID), slog.Any("error", err))
	}
	return &view, nil
}
