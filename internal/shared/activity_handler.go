package shared

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// ActivityHandler exposes the read side of the activity log.
type ActivityHandler struct {
	logger *slog.Logger
	log    *ActivityLogger
}

// NewActivityHandler builds an ActivityHandler.
func NewActivityHandler(logger *slog.Logger, log *ActivityLogger) *ActivityHandler {
	return &ActivityHandler{logger: logger, log: log}
}

func (h *ActivityHandler) MountRoutes(r chi.Router) {
	r.Get("/activities", h.List)
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing owner identity")
		return
	}

	q := r.URL.Query()
	filter := ActivityFilter{Action: q.Get("action"), EntityType: q.Get("entity_type")}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	pagination := NewPagination(page, perPage, 0)

	activities, total, err := h.log.List(r.Context(), ownerID, filter, pagination)
	if err != nil {
		h.logger.Error("list activities", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"activities": activities,
		"pagination": NewPagination(page, perPage, total),
	})
}
