package alerts

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallerpro/tallerpro/internal/platform/httpx"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Handler exposes alert listings and acknowledgement over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers alert routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/alertas", h.list)
	r.Post("/alertas/{id}/reconocer", h.acknowledge)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := httpx.Page(r)
	filters := ListFilters{
		Tipo:       AlertKind(r.URL.Query().Get("tipo")),
		Estado:     r.URL.Query().Get("estado"),
		RepuestoID: httpx.QueryInt64(r, "repuesto_id"),
		Page:       page,
		PerPage:    perPage,
	}
	items, pagination, err := h.service.List(r.Context(), shared.ActorFromContext(r.Context()), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": pagination})
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Acknowledge(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
