package inventory

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallerpro/tallerpro/internal/platform/httpx"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Handler exposes the movement engine over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers movement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movimientos", h.apply)
	r.Post("/movimientos/lote", h.applyBatch)
	r.Get("/movimientos", h.list)
}

type movementPayload struct {
	RepuestoID int64  `json:"repuesto_id" validate:"required"`
	Tipo       string `json:"tipo" validate:"required"`
	Cantidad   int64  `json:"cantidad" validate:"required"`
	Motivo     string `json:"motivo" validate:"required"`
	Referencia string `json:"referencia"`
}

func (p movementPayload) toInput() MovementInput {
	return MovementInput{
		RepuestoID: p.RepuestoID,
		Tipo:       MovementKind(p.Tipo),
		Cantidad:   p.Cantidad,
		Motivo:     p.Motivo,
		Referencia: p.Referencia,
	}
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var payload movementPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	result, err := h.service.Apply(r.Context(), shared.ActorFromContext(r.Context()), payload.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) applyBatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Movimientos []movementPayload `json:"movimientos" validate:"required,min=1,dive"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	inputs := make([]MovementInput, 0, len(payload.Movimientos))
	for _, m := range payload.Movimientos {
		inputs = append(inputs, m.toInput())
	}
	results, err := h.service.ApplyBatch(r.Context(), shared.ActorFromContext(r.Context()), inputs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"resultados": results})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := httpx.Page(r)
	filters := ListFilters{
		RepuestoID: httpx.QueryInt64(r, "repuesto_id"),
		Tipo:       MovementKind(r.URL.Query().Get("tipo")),
		Referencia: r.URL.Query().Get("referencia"),
		From:       httpx.QueryTime(r, "desde"),
		To:         httpx.QueryTime(r, "hasta"),
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
