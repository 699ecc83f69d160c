package cashbox

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/platform/httpx"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Handler exposes cash shifts over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers cash-shift routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/caja/turnos", h.list)
	r.Get("/caja/turnos/actual", h.current)
	r.Post("/caja/turnos/abrir", h.open)
	r.Post("/caja/turnos/cerrar", h.close)
	r.Get("/caja/turnos/{id}/movimientos", h.entries)
	r.Post("/caja/movimientos", h.addEntry)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MontoApertura decimal.Decimal `json:"monto_apertura"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	shift, err := h.service.Open(r.Context(), shared.ActorFromContext(r.Context()), payload.MontoApertura)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shift)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MontoCierre decimal.Decimal `json:"monto_cierre"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	shift, err := h.service.Close(r.Context(), shared.ActorFromContext(r.Context()), payload.MontoCierre)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shift)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	shift, err := h.service.Current(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shift)
}

func (h *Handler) addEntry(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tipo       string          `json:"tipo" validate:"required"`
		Monto      decimal.Decimal `json:"monto" validate:"required"`
		Concepto   string          `json:"concepto" validate:"required"`
		Referencia string          `json:"referencia"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	entry, err := h.service.AddEntry(r.Context(), shared.ActorFromContext(r.Context()),
		payload.Tipo, payload.Monto, payload.Concepto, payload.Referencia)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Entries(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := httpx.Page(r)
	filters := ListFilters{
		UsuarioID: httpx.QueryInt64(r, "usuario_id"),
		Estado:    r.URL.Query().Get("estado"),
		Page:      page,
		PerPage:   perPage,
	}
	items, pagination, err := h.service.List(r.Context(), shared.ActorFromContext(r.Context()), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": pagination})
}
