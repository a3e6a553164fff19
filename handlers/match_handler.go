package handlers

import (
	"net/http"

	"github.com/knockoutlab/bracket-engine/models"
	"github.com/knockoutlab/bracket-engine/services"
)

type MatchHandler struct {
	matchService     services.MatchService
	reconcileService services.ReconcileService
}

func NewMatchHandler(matchService services.MatchService, reconcileService services.ReconcileService) *MatchHandler {
	return &MatchHandler{
		matchService:     matchService,
		reconcileService: reconcileService,
	}
}

func (h *MatchHandler) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetByID(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type submitReportInput struct {
	PlayerID string `json:"player_id"`
	Winner   string `json:"winner"`
	ScoreA   int    `json:"score_a"`
	ScoreB   int    `json:"score_b"`
}

// SubmitReportHandler records one participant's view of the outcome.
// The match completes once both participants agree, or flips to
// disputed when their reports conflict.
func (h *MatchHandler) SubmitReportHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input submitReportInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report := models.Report{
		Winner: input.Winner,
		ScoreA: input.ScoreA,
		ScoreB: input.ScoreB,
	}

	match, err := h.reconcileService.SubmitReport(r.Context(), matchID, input.PlayerID, report)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SetResultHandler lets an organizer or admin settle a match directly,
// which is the resolution path for disputed matches.
func (h *MatchHandler) SetResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SetResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.SetResult(r.Context(), matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
