package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/repositories"
)

// stubDriver backs a *sql.DB whose transactions are no-ops. The repositories
// under test are in-memory fakes, so the only traffic reaching the driver is
// Begin/Commit/Rollback from withTx.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func init() {
	sql.Register("stub", stubDriver{})
}

func newStubDB() *sql.DB {
	db, err := sql.Open("stub", "")
	if err != nil {
		panic(err)
	}
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is shared backing state for the repository fakes.
type memStore struct {
	tournaments map[int]*models.Tournament
	divisions   map[int]*models.Division
	teams       map[int][]*models.Team
	rounds      map[int]*models.Round
	matches     map[int]*models.Match
	candidates  map[int]*models.ResultCandidate
	courts      []*models.Court
	blocks      []*models.CourtBlock

	nextRoundID     int
	nextMatchID     int
	nextCandidateID int

	divisionLocks int
}

func newMemStore() *memStore {
	return &memStore{
		tournaments:     make(map[int]*models.Tournament),
		divisions:       make(map[int]*models.Division),
		teams:           make(map[int][]*models.Team),
		rounds:          make(map[int]*models.Round),
		matches:         make(map[int]*models.Match),
		candidates:      make(map[int]*models.ResultCandidate),
		nextRoundID:     1,
		nextMatchID:     1,
		nextCandidateID: 1,
	}
}

func (s *memStore) addRound(r *models.Round) *models.Round {
	r.ID = s.nextRoundID
	s.nextRoundID++
	s.rounds[r.ID] = r
	return r
}

func (s *memStore) addMatch(m *models.Match) *models.Match {
	m.ID = s.nextMatchID
	s.nextMatchID++
	s.matches[m.ID] = m
	return m
}

func (s *memStore) roundsOf(divisionID int) []*models.Round {
	out := make([]*models.Round, 0)
	for _, r := range s.rounds {
		if r.DivisionID == divisionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

func (s *memStore) matchesOf(roundID int) []*models.Match {
	out := make([]*models.Match, 0)
	for _, m := range s.matches {
		if m.RoundID == roundID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

type memTournamentRepo struct{ s *memStore }

func (r memTournamentRepo) GetByID(_ context.Context, clubID, id int) (*models.Tournament, error) {
	t, ok := r.s.tournaments[id]
	if !ok || t.ClubID != clubID {
		return nil, repositories.ErrTournamentNotFound
	}
	return t, nil
}

func (r memTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, from, to models.TournamentStatus) (bool, error) {
	t, ok := r.s.tournaments[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

type memDivisionRepo struct{ s *memStore }

func (r memDivisionRepo) GetByID(_ context.Context, clubID, id int) (*models.Division, error) {
	d, ok := r.s.divisions[id]
	if !ok || d.ClubID != clubID {
		return nil, repositories.ErrDivisionNotFound
	}
	return d, nil
}

func (r memDivisionRepo) ListByTournament(_ context.Context, clubID, tournamentID int, categories []string) ([]*models.Division, error) {
	out := make([]*models.Division, 0)
	for _, d := range r.s.divisions {
		if d.ClubID != clubID || d.TournamentID != tournamentID {
			continue
		}
		if len(categories) > 0 {
			found := false
			for _, c := range categories {
				if d.Category == c {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memDivisionRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, from, to models.DivisionStatus) (bool, error) {
	d, ok := r.s.divisions[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	return true, nil
}

func (r memDivisionRepo) Lock(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.s.divisions[id]; !ok {
		return repositories.ErrDivisionNotFound
	}
	r.s.divisionLocks++
	return nil
}

func (r memDivisionRepo) SetWinner(_ context.Context, _ repositories.SQLExecutor, id, winnerTeamID int) error {
	d, ok := r.s.divisions[id]
	if !ok {
		return repositories.ErrDivisionNotFound
	}
	d.WinnerTeamID = &winnerTeamID
	return nil
}

type memTeamRepo struct{ s *memStore }

func (r memTeamRepo) ListByDivision(_ context.Context, _, divisionID int) ([]*models.Team, error) {
	return r.s.teams[divisionID], nil
}

func (r memTeamRepo) ListConfirmedByDivision(_ context.Context, _, divisionID int) ([]*models.Team, error) {
	out := make([]*models.Team, 0)
	for _, t := range r.s.teams[divisionID] {
		if t.Confirmed {
			out = append(out, t)
		}
	}
	return out, nil
}

type memRoundRepo struct{ s *memStore }

func (r memRoundRepo) Create(_ context.Context, _ repositories.SQLExecutor, round *models.Round) error {
	r.s.addRound(round)
	return nil
}

func (r memRoundRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Round, error) {
	round, ok := r.s.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	return round, nil
}

func (r memRoundRepo) GetBySide(_ context.Context, _ repositories.SQLExecutor, divisionID int, side models.BracketSide, sideOrdinal int) (*models.Round, error) {
	for _, round := range r.s.rounds {
		if round.DivisionID == divisionID && round.Side == side && round.SideOrdinal == sideOrdinal {
			return round, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (r memRoundRepo) ListByDivision(_ context.Context, divisionID int) ([]*models.Round, error) {
	return r.s.roundsOf(divisionID), nil
}

func (r memRoundRepo) Activate(_ context.Context, _ repositories.SQLExecutor, id int) error {
	round, ok := r.s.rounds[id]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	if round.Status == models.RoundStatusPending {
		round.Status = models.RoundStatusInProgress
	}
	return nil
}

func (r memRoundRepo) IncrementCompleted(_ context.Context, _ repositories.SQLExecutor, id int) error {
	round, ok := r.s.rounds[id]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	if round.CompletedMatches >= round.ExpectedMatches {
		return repositories.ErrRoundCounterExceeded
	}
	round.CompletedMatches++
	return nil
}

func (r memRoundRepo) CompleteCAS(_ context.Context, _ repositories.SQLExecutor, id int) (bool, error) {
	round, ok := r.s.rounds[id]
	if !ok {
		return false, repositories.ErrRoundNotFound
	}
	if round.Status != models.RoundStatusInProgress || round.CompletedMatches != round.ExpectedMatches {
		return false, nil
	}
	round.Status = models.RoundStatusCompleted
	return true, nil
}

type memMatchRepo struct{ s *memStore }

func (r memMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	r.s.addMatch(match)
	return nil
}

func (r memMatchRepo) GetByID(_ context.Context, clubID, id int) (*models.Match, error) {
	m, ok := r.s.matches[id]
	if !ok || m.ClubID != clubID {
		return nil, repositories.ErrMatchNotFound
	}
	return m, nil
}

func (r memMatchRepo) ListByRound(_ context.Context, _ repositories.SQLExecutor, roundID int) ([]*models.Match, error) {
	return r.s.matchesOf(roundID), nil
}

func (r memMatchRepo) ListByDivision(_ context.Context, divisionID int) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		if m.DivisionID == divisionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memMatchRepo) ListSchedulable(_ context.Context, clubID, tournamentID int) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		d, ok := r.s.divisions[m.DivisionID]
		if !ok || d.TournamentID != tournamentID || m.ClubID != clubID {
			continue
		}
		if m.Schedulable() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := r.s.rounds[out[i].RoundID].Ordinal, r.s.rounds[out[j].RoundID].Ordinal
		if oi != oj {
			return oi < oj
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (r memMatchRepo) ListAssigned(_ context.Context, clubID, tournamentID int) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		d, ok := r.s.divisions[m.DivisionID]
		if ok && d.TournamentID == tournamentID && m.ClubID == clubID && m.CourtID != nil {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memMatchRepo) CountScheduled(_ context.Context, clubID, tournamentID int) (int, error) {
	count := 0
	for _, m := range r.s.matches {
		d, ok := r.s.divisions[m.DivisionID]
		if ok && d.TournamentID == tournamentID && m.ClubID == clubID && m.CourtID != nil {
			count++
		}
	}
	return count, nil
}

func (r memMatchRepo) Assign(_ context.Context, _ repositories.SQLExecutor, id, courtID int, date time.Time, startMinute, endMinute int) (bool, error) {
	m, ok := r.s.matches[id]
	if !ok {
		return false, repositories.ErrMatchNotFound
	}
	if m.CourtID != nil || m.Status.Final() {
		return false, nil
	}
	m.CourtID = &courtID
	m.Date = &date
	m.StartMinute = &startMinute
	m.EndMinute = &endMinute
	return true, nil
}

func (r memMatchRepo) Finalize(_ context.Context, _ repositories.SQLExecutor, id int, winnerTeamID *int, score *string, status models.MatchStatus) (bool, error) {
	m, ok := r.s.matches[id]
	if !ok {
		return false, repositories.ErrMatchNotFound
	}
	if m.Status.Final() {
		return false, nil
	}
	m.WinnerTeamID = winnerTeamID
	m.Score = score
	m.Status = status
	return true, nil
}

type memCourtRepo struct{ s *memStore }

func (r memCourtRepo) ListByClub(_ context.Context, clubID int) ([]*models.Court, error) {
	out := make([]*models.Court, 0)
	for _, c := range r.s.courts {
		if c.ClubID == clubID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r memCourtRepo) Reserve(_ context.Context, _ repositories.SQLExecutor, block *models.CourtBlock) error {
	for _, b := range r.s.blocks {
		if b.CourtID == block.CourtID && b.Date.Equal(block.Date) && b.Overlaps(block.StartMinute, block.EndMinute) {
			return repositories.ErrSlotTaken
		}
	}
	block.ID = len(r.s.blocks) + 1
	r.s.blocks = append(r.s.blocks, block)
	return nil
}

func (r memCourtRepo) IsFree(_ context.Context, clubID, courtID int, date time.Time, startMinute, endMinute int) (bool, error) {
	for _, b := range r.s.blocks {
		if b.ClubID == clubID && b.CourtID == courtID && b.Date.Equal(date) && b.Overlaps(startMinute, endMinute) {
			return false, nil
		}
	}
	return true, nil
}

func (r memCourtRepo) ListBlocks(_ context.Context, clubID, courtID int, date time.Time) ([]*models.CourtBlock, error) {
	out := make([]*models.CourtBlock, 0)
	for _, b := range r.s.blocks {
		if b.ClubID == clubID && b.CourtID == courtID && b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out, nil
}

type memResultRepo struct{ s *memStore }

func (r memResultRepo) Create(_ context.Context, _ repositories.SQLExecutor, candidate *models.ResultCandidate) error {
	candidate.ID = r.s.nextCandidateID
	r.s.nextCandidateID++
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = time.Now()
	}
	r.s.candidates[candidate.ID] = candidate
	return nil
}

func (r memResultRepo) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]*models.ResultCandidate, error) {
	out := make([]*models.ResultCandidate, 0)
	for _, c := range r.s.candidates {
		if c.MatchID == matchID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memResultRepo) MarkConfirmed(_ context.Context, _ repositories.SQLExecutor, candidateID int) error {
	c, ok := r.s.candidates[candidateID]
	if !ok {
		return errors.New("candidate not found")
	}
	c.Status = models.CandidateStatusConfirmed
	return nil
}

func (r memResultRepo) SupersedeOpen(_ context.Context, _ repositories.SQLExecutor, matchID int) error {
	for _, c := range r.s.candidates {
		if c.MatchID == matchID && c.Status == models.CandidateStatusCandidate {
			c.Status = models.CandidateStatusSuperseded
		}
	}
	return nil
}

func (r memResultRepo) SupersedeBySubmitter(_ context.Context, _ repositories.SQLExecutor, matchID, submittedBy int) error {
	for _, c := range r.s.candidates {
		if c.MatchID == matchID && c.SubmittedBy == submittedBy && c.Status == models.CandidateStatusCandidate {
			c.Status = models.CandidateStatusSuperseded
		}
	}
	return nil
}

func (r memResultRepo) ListPendingMatchIDs(_ context.Context, clubID, tournamentID int) ([]int, error) {
	ids := make(map[int]bool)
	for _, c := range r.s.candidates {
		if c.Status != models.CandidateStatusCandidate {
			continue
		}
		m, ok := r.s.matches[c.MatchID]
		if !ok || m.ClubID != clubID || m.Status.Final() {
			continue
		}
		d, ok := r.s.divisions[m.DivisionID]
		if !ok || d.TournamentID != tournamentID {
			continue
		}
		ids[c.MatchID] = true
	}
	out := make([]int, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}
