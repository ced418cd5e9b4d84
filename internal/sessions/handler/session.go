package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"fitbook/internal/sessions/service"
	apperrors "fitbook/pkg/errors"
	httputil "fitbook/pkg/http"
	"fitbook/pkg/logger"
	"fitbook/pkg/model"
	"fitbook/pkg/sanitizer"
)

type SessionHandler struct {
	service service.SessionService
	log     *logger.Logger
}

func NewSessionHandler(service service.SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		log:     log,
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("Rejected session body", "handler", "Create", "error", err)
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	session := req.ToSession()
	if err := h.service.Create(r.Context(), session); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, session)
}

func (h *SessionHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := sanitizer.NormalizeID(ps.ByName("id"))
	if id == "" {
		httputil.WriteError(w, apperrors.InvalidInput("ID parameter is required"))
		return
	}

	session, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, session)
}

func (h *SessionHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sessions, totalCount, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, sessions, totalCount, limit, int(offset))
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := sanitizer.NormalizeID(ps.ByName("id"))
	if id == "" {
		httputil.WriteError(w, apperrors.InvalidInput("ID parameter is required"))
		return
	}

	var updates model.SessionUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.log.Debug("Rejected session patch", "handler", "Update", "id", id, "error", err)
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	session, err := h.service.Update(r.Context(), id, &updates)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, session)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := sanitizer.NormalizeID(ps.ByName("id"))
	if id == "" {
		httputil.WriteError(w, apperrors.InvalidInput("ID parameter is required"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	instructorID := sanitizer.NormalizeID(r.URL.Query().Get("instructor_id"))
	if instructorID == "" {
		httputil.WriteError(w, apperrors.InvalidInput("'instructor_id' query parameter is required"))
		return
	}

	from, err := httputil.ExtractTime(r, "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := httputil.ExtractTime(r, "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	results, err := h.service.SearchByInstructor(r.Context(), instructorID, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, results)
}

func (h *SessionHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/sessions", h.Create)
	router.GET("/api/v1/sessions", h.GetAll)
	router.GET("/api/v1/sessions/search", h.Search)
	router.GET("/api/v1/sessions/id/:id", h.GetByID)
	router.PATCH("/api/v1/sessions/id/:id", h.Update)
	router.DELETE("/api/v1/sessions/id/:id", h.Delete)
}
