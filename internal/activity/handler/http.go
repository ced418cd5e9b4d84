package handler

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"fitbook/internal/activity/repository"
	apperrors "fitbook/pkg/errors"
	httputil "fitbook/pkg/http"
	"fitbook/pkg/logger"
)

const defaultActivityLimit = 100

type ActivityHandler struct {
	repo repository.ActivityRepository
	log  *logger.Logger
}

func NewActivityHandler(repo repository.ActivityRepository, log *logger.Logger) *ActivityHandler {
	return &ActivityHandler{
		repo: repo,
		log:  log,
	}
}

func (h *ActivityHandler) BySession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sessionID := ps.ByName("session_id")
	if sessionID == "" {
		httputil.WriteError(w, apperrors.InvalidInput("session_id parameter is required"))
		return
	}

	limit := defaultActivityLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			httputil.WriteError(w, apperrors.InvalidInput("invalid limit parameter: "+s))
			return
		}
		limit = min(n, defaultActivityLimit)
	}

	entries, err := h.repo.FindBySession(r.Context(), sessionID, limit)
	if err != nil {
		h.log.Error("Failed to read activity", "session_id", sessionID, "error", err)
		httputil.WriteError(w, apperrors.StoreUnavailable("Failed to read activity", err))
		return
	}

	httputil.WriteSuccess(w, entries)
}

func (h *ActivityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/activity/sessions/:session_id", h.BySession)
}
