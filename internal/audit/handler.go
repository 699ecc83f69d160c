package audit

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/tallerpro/tallerpro/internal/platform/httpx"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// exportLimit caps CSV exports per client; the query scans without an upper
// bound on rows.
const exportLimit = 3

// Handler exposes the audit timeline over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/auditoria", h.timeline)
	r.With(httprate.LimitByIP(exportLimit, time.Minute)).Get("/auditoria/export", h.export)
}

func (h *Handler) filters(r *http.Request) TimelineFilters {
	f := TimelineFilters{
		Module:  r.URL.Query().Get("modulo"),
		Action:  r.URL.Query().Get("accion"),
		ActorID: httpx.QueryInt64(r, "actor_id"),
	}
	if t := httpx.QueryTime(r, "desde"); t != nil {
		f.From = *t
	}
	if t := httpx.QueryTime(r, "hasta"); t != nil {
		f.To = *t
	}
	return f
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	page, perPage := httpx.Page(r)
	if perPage <= 0 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	f := h.filters(r)
	f.Limit = perPage
	f.Offset = (page - 1) * perPage
	entries, total, err := h.service.Timeline(r.Context(), shared.ActorFromContext(r.Context()), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      entries,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	f := h.filters(r)
	f.Limit = 200
	entries, _, err := h.service.Timeline(r.Context(), shared.ActorFromContext(r.Context()), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, err := WriteCSV(entries)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="auditoria.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
