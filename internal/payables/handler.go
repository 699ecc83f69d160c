package payables

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/platform/httpx"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Handler exposes supplier payments over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers payable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ordenes-compra/{id}/pagos", h.listPOPayments)
	r.Post("/ordenes-compra/{id}/pagos", h.payPO)
	r.Post("/ordenes-compra/{id}/pagos/correccion", h.correctPO)

	r.Get("/cuentas-pagar", h.listManual)
	r.Post("/cuentas-pagar", h.createManual)
	r.Get("/cuentas-pagar/{id}", h.getManual)
	r.Get("/cuentas-pagar/{id}/pagos", h.listManualPayments)
	r.Post("/cuentas-pagar/{id}/pagos", h.payManual)
}

type paymentPayload struct {
	Monto      decimal.Decimal `json:"monto" validate:"required"`
	Metodo     string          `json:"metodo" validate:"required"`
	Referencia string          `json:"referencia"`
}

func (h *Handler) payPO(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload paymentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	pago, err := h.service.RegisterPOPayment(r.Context(), shared.ActorFromContext(r.Context()), PaymentInput{
		TargetID: id, Monto: payload.Monto, Metodo: payload.Metodo, Referencia: payload.Referencia,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pago)
}

func (h *Handler) correctPO(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload struct {
		Monto  decimal.Decimal `json:"monto" validate:"required"`
		Metodo string          `json:"metodo" validate:"required"`
		Motivo string          `json:"motivo" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	pago, err := h.service.RegisterPOCorrection(r.Context(), shared.ActorFromContext(r.Context()), CorrectionInput{
		TargetID: id, Monto: payload.Monto, Metodo: payload.Metodo, Motivo: payload.Motivo,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pago)
}

func (h *Handler) listPOPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.POPayments(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createManual(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProveedorID int64           `json:"proveedor_id" validate:"required"`
		Descripcion string          `json:"descripcion" validate:"required"`
		Total       decimal.Decimal `json:"total" validate:"required"`
		Vencimiento *time.Time      `json:"vencimiento"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	cuenta, err := h.service.CreateManualPayable(r.Context(), shared.ActorFromContext(r.Context()), CuentaPagarManual{
		ProveedorID: payload.ProveedorID,
		Descripcion: payload.Descripcion,
		Total:       payload.Total,
		Vencimiento: payload.Vencimiento,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cuenta)
}

func (h *Handler) getManual(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetManualPayable(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listManual(w http.ResponseWriter, r *http.Request) {
	page, perPage := httpx.Page(r)
	filters := ManualListFilters{
		ProveedorID: httpx.QueryInt64(r, "proveedor_id"),
		OnlyPending: httpx.QueryBool(r, "solo_pendientes"),
		Page:        page,
		PerPage:     perPage,
	}
	items, pagination, err := h.service.ListManualPayables(r.Context(), shared.ActorFromContext(r.Context()), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": pagination})
}

func (h *Handler) payManual(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload paymentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	pago, err := h.service.RegisterManualPayment(r.Context(), shared.ActorFromContext(r.Context()), PaymentInput{
		TargetID: id, Monto: payload.Monto, Metodo: payload.Metodo, Referencia: payload.Referencia,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pago)
}

func (h *Handler) listManualPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ManualPayments(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
