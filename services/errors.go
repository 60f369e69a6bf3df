package services

import "errors"

// Shared errors used across services and the HTTP error mapping.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business-rule errors.
	ErrValidationFailed        = errors.New("validation failed")
	ErrTournamentNotSchedulable = errors.New("tournament is not in a schedulable state")
	ErrNoCourtsConfigured      = errors.New("club has no courts configured")
	ErrNoConfirmedTeams        = errors.New("division has no confirmed teams")
	ErrInvalidWinner           = errors.New("winner is not a participant of this match")
	ErrInvalidScore            = errors.New("score is missing or malformed")

	// Conflict errors.
	ErrMatchAlreadyFinalized = errors.New("match result is already final")
	ErrMatchNotPlayable      = errors.New("match cannot accept a result yet")
	ErrResultConflict        = errors.New("submitted results disagree; organizer resolution required")

	// Authorization errors.
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)
