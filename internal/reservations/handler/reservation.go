package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"fitbook/internal/reservations/service"
	apperrors "fitbook/pkg/errors"
	httputil "fitbook/pkg/http"
	"fitbook/pkg/logger"
	"fitbook/pkg/model"
	"fitbook/pkg/sanitizer"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("Rejected reservation body", "handler", "Reserve", "error", err)
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}
	req.MemberID = sanitizer.NormalizeID(req.MemberID)
	req.SessionID = sanitizer.NormalizeID(req.SessionID)

	reservation, err := h.service.Reserve(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, reservation)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	memberID, err := httputil.ExtractRequired(r, "member_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sessionID, err := httputil.ExtractRequired(r, "session_id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	memberID = sanitizer.NormalizeID(memberID)
	sessionID = sanitizer.NormalizeID(sessionID)

	if err := h.service.Cancel(r.Context(), memberID, sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) CancelByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := sanitizer.NormalizeID(ps.ByName("id"))
	if id == "" {
		httputil.WriteError(w, apperrors.InvalidInput("ID parameter is required"))
		return
	}

	if err := h.service.CancelByID(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := sanitizer.NormalizeID(ps.ByName("id"))
	if id == "" {
		httputil.WriteError(w, apperrors.InvalidInput("ID parameter is required"))
		return
	}

	reservation, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, reservation)
}

// Search lists reservations of one session or of one member. Exactly one of
// session_id and member_id must be given.
func (h *ReservationHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	sessionID := sanitizer.NormalizeID(query.Get("session_id"))
	memberID := sanitizer.NormalizeID(query.Get("member_id"))

	if (sessionID == "") == (memberID == "") {
		httputil.WriteError(w, apperrors.InvalidInput("exactly one of 'session_id' or 'member_id' is required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var (
		results []*model.Reservation
		total   int64
	)
	if sessionID != "" {
		results, total, err = h.service.ListBySession(r.Context(), sessionID, limit, offset)
	} else {
		results, total, err = h.service.ListByMember(r.Context(), memberID, limit, offset)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, results, total, limit, int(offset))
}

func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sessionID := sanitizer.NormalizeID(ps.ByName("session_id"))
	if sessionID == "" {
		httputil.WriteError(w, apperrors.InvalidInput("session_id parameter is required"))
		return
	}

	availability, err := h.service.Availability(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, availability)
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Reserve)
	router.DELETE("/api/v1/reservations", h.Cancel)
	router.GET("/api/v1/reservations/search", h.Search)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.DELETE("/api/v1/reservations/id/:id", h.CancelByID)
	router.GET("/api/v1/reservations/availability/:session_id", h.Availability)
}
