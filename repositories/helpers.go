package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clubkit/tournament-engine/models"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx so repository writes
// can run inside or outside a transaction as the caller decides.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func checkAffectedRows(result sql.Result, notFoundErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundErr
	}
	return nil
}

// affectedOne reports whether exactly the targeted row changed; used for
// compare-and-swap updates where zero rows means another caller won the race.
func affectedOne(result sql.Result) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

// scanSlot reassembles a TeamSlot from its four column representation.
func scanSlot(teamID sql.NullInt64, sourceUID, outcome sql.NullString, bye bool) models.TeamSlot {
	switch {
	case bye:
		return models.ByeSlot()
	case teamID.Valid:
		return models.ResolvedSlot(int(teamID.Int64))
	case sourceUID.Valid && outcome.String == "loser":
		return models.LoserOfSlot(sourceUID.String)
	case sourceUID.Valid:
		return models.WinnerOfSlot(sourceUID.String)
	default:
		return models.TeamSlot{}
	}
}

// slotColumns flattens a TeamSlot into its column representation.
func slotColumns(s models.TeamSlot) (teamID *int, sourceUID, outcome *string, bye bool) {
	switch s.Kind {
	case models.SlotTeam:
		id := s.TeamID
		return &id, nil, nil, false
	case models.SlotWinnerOf:
		uid, out := s.SourceMatchUID, "winner"
		return nil, &uid, &out, false
	case models.SlotLoserOf:
		uid, out := s.SourceMatchUID, "loser"
		return nil, &uid, &out, false
	case models.SlotBye:
		return nil, nil, nil, true
	}
	return nil, nil, nil, false
}
