package handlers

import (
	"net/http"
	"time"

	"github.com/clubkit/tournament-engine/middleware"
	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/services"
)

type ScheduleHandler struct {
	scheduleService services.ScheduleService
	ledgerService   services.CourtLedgerService
}

func NewScheduleHandler(ss services.ScheduleService, ls services.CourtLedgerService) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: ss,
		ledgerService:   ls,
	}
}

// AutoAssignHandler handles POST /tournaments/{tournamentID}/auto-assign.
// Organizer only; reruns extend the existing schedule.
func (h *ScheduleHandler) AutoAssignHandler(w http.ResponseWriter, r *http.Request) {
	clubID, err := middleware.GetClubIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.scheduleService.AutoAssign(r.Context(), clubID, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// Partial placement is a success with a non-empty unassigned list, not
	// an error.
	if err := writeJSON(w, http.StatusOK, report, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListCourtsHandler handles GET /courts.
func (h *ScheduleHandler) ListCourtsHandler(w http.ResponseWriter, r *http.Request) {
	clubID, err := middleware.GetClubIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}

	courts, err := h.ledgerService.ListCourts(r.Context(), clubID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"courts": courts}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DayViewHandler handles GET /courts/ledger?date=YYYY-MM-DD.
func (h *ScheduleHandler) DayViewHandler(w http.ResponseWriter, r *http.Request) {
	clubID, err := middleware.GetClubIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.ledgerService.DayView(r.Context(), clubID, date)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"date": dateStr, "courts": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type blockCourtInput struct {
	CourtID     int    `json:"court_id"`
	Date        string `json:"date"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Reference   string `json:"reference"`
}

// BlockCourtHandler handles POST /courts/blocks. Organizer only; claims a
// court interval for a non-tournament owner (maintenance, external booking).
func (h *ScheduleHandler) BlockCourtHandler(w http.ResponseWriter, r *http.Request) {
	clubID, err := middleware.GetClubIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, err.Error())
		return
	}

	var input blockCourtInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	block := &models.CourtBlock{
		ClubID:      clubID,
		CourtID:     input.CourtID,
		Date:        date,
		StartMinute: input.StartMinute,
		EndMinute:   input.EndMinute,
		Owner:       models.BlockOwnerBooking,
		OwnerRef:    input.Reference,
	}
	if err := h.ledgerService.Block(r.Context(), block); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"block": block}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
