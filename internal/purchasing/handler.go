package purchasing

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/platform/httpx"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Handler exposes the purchase-order lifecycle over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers purchase-order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ordenes-compra", h.list)
	r.Post("/ordenes-compra", h.create)
	r.Get("/ordenes-compra/{id}", h.get)
	r.Post("/ordenes-compra/{id}/autorizar", h.authorize)
	r.Post("/ordenes-compra/{id}/enviar", h.send)
	r.Post("/ordenes-compra/{id}/recibir", h.receive)
	r.Post("/ordenes-compra/{id}/cancelar", h.cancel)
}

type linePayload struct {
	RepuestoID     *int64          `json:"repuesto_id"`
	CodigoNuevo    string          `json:"codigo_nuevo"`
	Descripcion    string          `json:"descripcion"`
	Cantidad       int64           `json:"cantidad" validate:"required,gt=0"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProveedorID     int64         `json:"proveedor_id" validate:"required"`
		Notas           string        `json:"notas"`
		RefProveedor    string        `json:"referencia_proveedor"`
		EntregaEsperada *time.Time    `json:"entrega_esperada"`
		Lineas          []linePayload `json:"lineas" validate:"required,min=1,dive"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	lines := make([]LineInput, 0, len(payload.Lineas))
	for _, l := range payload.Lineas {
		lines = append(lines, LineInput{
			RepuestoID:     l.RepuestoID,
			CodigoNuevo:    l.CodigoNuevo,
			Descripcion:    l.Descripcion,
			Cantidad:       l.Cantidad,
			PrecioUnitario: l.PrecioUnitario,
		})
	}
	order, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), CreateInput{
		ProveedorID:     payload.ProveedorID,
		Notas:           payload.Notas,
		RefProveedor:    payload.RefProveedor,
		EntregaEsperada: payload.EntregaEsperada,
		Lines:           lines,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetWithLines(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := httpx.Page(r)
	filters := ListFilters{
		Estado:      Estado(r.URL.Query().Get("estado")),
		ProveedorID: httpx.QueryInt64(r, "proveedor_id"),
		Search:      r.URL.Query().Get("buscar"),
		Page:        page,
		PerPage:     perPage,
	}
	items, pagination, err := h.service.List(r.Context(), shared.ActorFromContext(r.Context()), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": pagination})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.service.Authorize)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.service.Send)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor shared.Actor, id int64) (OrdenCompra, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := op(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload struct {
		Lineas []struct {
			DetalleID  int64            `json:"detalle_id" validate:"required"`
			Cantidad   int64            `json:"cantidad" validate:"required,gt=0"`
			PrecioReal *decimal.Decimal `json:"precio_unitario_real"`
		} `json:"lineas" validate:"dive"`
		Referencia string `json:"referencia"`
		ReciboURL  string `json:"recibo_url"`
		Completa   bool   `json:"completa"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	input := ReceiveInput{
		Referencia: payload.Referencia,
		ReciboURL:  payload.ReciboURL,
		Completa:   payload.Completa,
	}
	for _, l := range payload.Lineas {
		input.Lines = append(input.Lines, ReceiveLine{DetalleID: l.DetalleID, Cantidad: l.Cantidad, PrecioReal: l.PrecioReal})
	}
	order, err := h.service.Receive(r.Context(), shared.ActorFromContext(r.Context()), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload struct {
		Motivo    string `json:"motivo" validate:"required"`
		Evidencia string `json:"evidencia"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	order, err := h.service.Cancel(r.Context(), shared.ActorFromContext(r.Context()), id, payload.Motivo, payload.Evidencia)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}
