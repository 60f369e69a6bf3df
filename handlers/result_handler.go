package handlers

import (
	"net/http"

	"github.com/clubkit/tournament-engine/middleware"
	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/services"
)

type ResultHandler struct {
	resultService services.ResultService
}

func NewResultHandler(rs services.ResultService) *ResultHandler {
	return &ResultHandler{resultService: rs}
}

type submitResultInput struct {
	WinnerTeamID int               `json:"winner_team_id"`
	Sets         []models.SetScore `json:"sets"`
}

// SubmitHandler handles POST /tournaments/{tournamentID}/matches/{matchID}/result.
// Players self-report; organizers finalize immediately.
func (h *ResultHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	clubID, err := middleware.GetClubIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}
	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input submitResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	outcome, err := h.resultService.SubmitResult(r.Context(), clubID, userID, role, tournamentID, matchID, input.WinnerTeamID, input.Sets)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome.Status != services.ResultAutoConfirmed {
		status = http.StatusAccepted
	}
	if err := writeJSON(w, status, outcome, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResolveHandler handles POST /tournaments/{tournamentID}/matches/{matchID}/resolve-conflict.
// Organizer only.
func (h *ResultHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	clubID, err := middleware.GetClubIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input submitResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	outcome, err := h.resultService.ResolveConflict(r.Context(), clubID, organizerID, tournamentID, matchID, input.WinnerTeamID, input.Sets)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, outcome, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
