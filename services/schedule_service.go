package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/clubkit/tournament-engine/cache"
	"github.com/clubkit/tournament-engine/events"
	"github.com/clubkit/tournament-engine/live"
	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/repositories"
	"github.com/clubkit/tournament-engine/scheduling"
)

// ScheduledMatch is one successful assignment of the auto scheduler.
type ScheduledMatch struct {
	MatchID     int       `json:"match_id"`
	MatchUID    string    `json:"match_uid"`
	DivisionID  int       `json:"division_id"`
	CourtID     int       `json:"court_id"`
	Date        time.Time `json:"date"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
}

// UnassignedMatch is a match the scheduler could not place, with the reason.
type UnassignedMatch struct {
	MatchID  int    `json:"match_id"`
	MatchUID string `json:"match_uid"`
	Reason   string `json:"reason"`
}

// ScheduleReport is the outcome of one auto-assignment run.
type ScheduleReport struct {
	TournamentID int               `json:"tournament_id"`
	Assigned     []ScheduledMatch  `json:"assigned"`
	Unassigned   []UnassignedMatch `json:"unassigned"`
}

// ScheduleService places playable matches onto courts against the shared
// court ledger. Runs are idempotent: already assigned matches are never
// touched, and a rerun resumes from the position after the last assignment.
type ScheduleService interface {
	AutoAssign(ctx context.Context, clubID, tournamentID int) (*ScheduleReport, error)
}

type scheduleService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	divisionRepo   repositories.DivisionRepository
	matchRepo      repositories.MatchRepository
	courtRepo      repositories.CourtRepository
	publisher      events.Publisher
	broadcaster    Broadcaster
	roundsCache    *cache.RoundsCache
	dayStartMinute int
	dayEndMinute   int
	logger         *slog.Logger
}

func NewScheduleService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	divisionRepo repositories.DivisionRepository,
	matchRepo repositories.MatchRepository,
	courtRepo repositories.CourtRepository,
	publisher events.Publisher,
	broadcaster Broadcaster,
	roundsCache *cache.RoundsCache,
	dayStartHour, dayEndHour int,
	logger *slog.Logger,
) ScheduleService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	return &scheduleService{
		db:             db,
		tournamentRepo: tournamentRepo,
		divisionRepo:   divisionRepo,
		matchRepo:      matchRepo,
		courtRepo:      courtRepo,
		publisher:      publisher,
		broadcaster:    broadcaster,
		roundsCache:    roundsCache,
		dayStartMinute: dayStartHour * 60,
		dayEndMinute:   dayEndHour * 60,
		logger:         logger,
	}
}

func (s *scheduleService) AutoAssign(ctx context.Context, clubID, tournamentID int) (*ScheduleReport, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, clubID, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.TournamentStatusActive && tournament.Status != models.TournamentStatusDraft {
		return nil, ErrTournamentNotSchedulable
	}

	courts, err := s.courtRepo.ListByClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if len(courts) == 0 {
		return nil, ErrNoCourtsConfigured
	}

	planner := scheduling.Planner{
		MatchesPerDay:        tournament.MatchesPerDay,
		CourtCount:           len(courts),
		MatchDurationMinutes: tournament.MatchDurationMinutes,
		DayStartMinute:       s.dayStartMinute,
		DayEndMinute:         s.dayEndMinute,
		Days:                 tournament.DayCount(),
	}

	// Resume behind already placed matches so reruns extend the schedule
	// instead of reshuffling it.
	position, err := s.matchRepo.CountScheduled(ctx, clubID, tournamentID)
	if err != nil {
		return nil, err
	}

	matches, err := s.matchRepo.ListSchedulable(ctx, clubID, tournamentID)
	if err != nil {
		return nil, err
	}

	// Seed the team calendar with the occupancy earlier runs created, so a
	// resumed run still keeps every team on one court at a time.
	calendar := make(teamCalendar)
	assigned, err := s.matchRepo.ListAssigned(ctx, clubID, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, m := range assigned {
		calendar.addMatch(m)
	}

	report := &ScheduleReport{TournamentID: tournamentID}
	activated := make(map[int]bool)

	for _, match := range matches {
		slot, ok := planner.ForPosition(position)
		if !ok {
			report.Unassigned = append(report.Unassigned, UnassignedMatch{
				MatchID: match.ID, MatchUID: match.UID, Reason: "tournament window exhausted",
			})
			continue
		}

		placed, err := s.place(ctx, tournament, match, courts, planner, slot, position, calendar)
		if errors.Is(err, errMatchTaken) {
			// A concurrent run assigned this match; count it as progress so
			// the wave arithmetic stays aligned.
			position++
			continue
		}
		if err != nil {
			return nil, err
		}
		if placed == nil {
			report.Unassigned = append(report.Unassigned, UnassignedMatch{
				MatchID: match.ID, MatchUID: match.UID, Reason: "no free court in the remaining day window",
			})
			continue
		}

		report.Assigned = append(report.Assigned, *placed)
		calendar.add(match.Slot1.TeamID, placed.Date, placed.StartMinute, placed.EndMinute)
		calendar.add(match.Slot2.TeamID, placed.Date, placed.StartMinute, placed.EndMinute)
		position++

		if !activated[match.DivisionID] {
			activated[match.DivisionID] = true
			if err := withTx(ctx, s.db, func(tx *sql.Tx) error {
				_, err := s.divisionRepo.UpdateStatus(ctx, tx, match.DivisionID, models.DivisionStatusPending, models.DivisionStatusInProgress)
				return err
			}); err != nil {
				return nil, err
			}
			if err := s.roundsCache.Invalidate(ctx, clubID, match.DivisionID); err != nil {
				s.logger.Warn("rounds cache invalidation failed", slog.Int("division_id", match.DivisionID), slog.Any("error", err))
			}
		}

		s.announce(ctx, tournament, match.DivisionID, placed)
	}

	s.logger.Info("auto assignment finished",
		slog.Int("tournament_id", tournamentID),
		slog.Int("assigned", len(report.Assigned)),
		slog.Int("unassigned", len(report.Unassigned)),
	)
	return report, nil
}

// teamCalendar tracks the intervals each team already occupies, per day, so
// two matches of the same team never run at the same time.
type teamCalendar map[int]map[string][][2]int

func dayKey(date time.Time) string { return date.Format("2006-01-02") }

func (c teamCalendar) busy(teamID int, date time.Time, startMinute, endMinute int) bool {
	for _, iv := range c[teamID][dayKey(date)] {
		if startMinute < iv[1] && iv[0] < endMinute {
			return true
		}
	}
	return false
}

func (c teamCalendar) add(teamID int, date time.Time, startMinute, endMinute int) {
	if c[teamID] == nil {
		c[teamID] = make(map[string][][2]int)
	}
	k := dayKey(date)
	c[teamID][k] = append(c[teamID][k], [2]int{startMinute, endMinute})
}

func (c teamCalendar) addMatch(m *models.Match) {
	if m.Date == nil || m.StartMinute == nil || m.EndMinute == nil {
		return
	}
	if m.Slot1.Resolved() {
		c.add(m.Slot1.TeamID, *m.Date, *m.StartMinute, *m.EndMinute)
	}
	if m.Slot2.Resolved() {
		c.add(m.Slot2.TeamID, *m.Date, *m.StartMinute, *m.EndMinute)
	}
}

// place claims a ledger slot and assigns the match in one transaction. It
// tries every court at the target slot and then later slots of the same day,
// skipping any slot where one of the teams is already playing; nil means the
// day has no room left for this match.
func (s *scheduleService) place(
	ctx context.Context,
	tournament *models.Tournament,
	match *models.Match,
	courts []*models.Court,
	planner scheduling.Planner,
	slot scheduling.Slot,
	position int,
	calendar teamCalendar,
) (*ScheduledMatch, error) {
	date := tournament.StartDate.AddDate(0, 0, slot.DayOffset)
	courtOffset := position % len(courts)

	for {
		if calendar.busy(match.Slot1.TeamID, date, slot.StartMinute, slot.EndMinute) ||
			calendar.busy(match.Slot2.TeamID, date, slot.StartMinute, slot.EndMinute) {
			next, ok := planner.Next(slot)
			if !ok {
				return nil, nil
			}
			slot = next
			continue
		}
		for c := 0; c < len(courts); c++ {
			court := courts[(courtOffset+c)%len(courts)]
			assigned, err := s.claim(ctx, match, court, date, slot)
			if err != nil {
				return nil, err
			}
			if assigned {
				return &ScheduledMatch{
					MatchID:     match.ID,
					MatchUID:    match.UID,
					DivisionID:  match.DivisionID,
					CourtID:     court.ID,
					Date:        date,
					StartMinute: slot.StartMinute,
					EndMinute:   slot.EndMinute,
				}, nil
			}
		}
		next, ok := planner.Next(slot)
		if !ok {
			return nil, nil
		}
		slot = next
	}
}

// errMatchTaken means a concurrent scheduler run assigned the match first.
var errMatchTaken = errors.New("match already assigned by a concurrent run")

// claim reserves the ledger block and writes the assignment atomically.
// Losing the reservation race rolls everything back; false means try
// elsewhere.
func (s *scheduleService) claim(ctx context.Context, match *models.Match, court *models.Court, date time.Time, slot scheduling.Slot) (bool, error) {
	taken := false
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		block := &models.CourtBlock{
			ClubID:      match.ClubID,
			CourtID:     court.ID,
			Date:        date,
			StartMinute: slot.StartMinute,
			EndMinute:   slot.EndMinute,
			Owner:       models.BlockOwnerTournament,
			OwnerRef:    match.UID,
		}
		if err := s.courtRepo.Reserve(ctx, tx, block); err != nil {
			if errors.Is(err, repositories.ErrSlotTaken) {
				taken = true
			}
			return err
		}
		ok, err := s.matchRepo.Assign(ctx, tx, match.ID, court.ID, date, slot.StartMinute, slot.EndMinute)
		if err != nil {
			return err
		}
		if !ok {
			return errMatchTaken
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errMatchTaken) {
			return false, errMatchTaken
		}
		if taken {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *scheduleService) announce(ctx context.Context, tournament *models.Tournament, divisionID int, placed *ScheduledMatch) {
	_ = s.publisher.Publish(ctx, events.QueueMatchScheduled, events.MatchScheduled{
		ClubID:       tournament.ClubID,
		TournamentID: tournament.ID,
		DivisionID:   divisionID,
		MatchID:      placed.MatchID,
		MatchUID:     placed.MatchUID,
		CourtID:      placed.CourtID,
		Date:         placed.Date.Format("2006-01-02"),
		StartMinute:  placed.StartMinute,
		EndMinute:    placed.EndMinute,
		OccurredAt:   time.Now().UTC(),
	})
	s.broadcaster.BroadcastToRoom(strconv.Itoa(tournament.ID), live.TypeMatchScheduled, placed)
}
