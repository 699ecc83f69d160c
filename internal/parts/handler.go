package parts

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/platform/httpx"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Handler exposes the part registry over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers part registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/repuestos", h.list)
	r.Post("/repuestos", h.create)
	r.Get("/repuestos/{id}", h.get)
	r.Get("/repuestos/codigo/{codigo}", h.getByCode)
	r.Put("/repuestos/{id}", h.update)
	r.Post("/repuestos/{id}/desactivar", h.softDelete)
	r.Post("/repuestos/{id}/reactivar", h.reactivate)
	r.Delete("/repuestos/{id}", h.permanentDelete)

	r.Get("/repuestos/{id}/compatibilidades", h.listCompat)
	r.Post("/repuestos/{id}/compatibilidades", h.addCompat)
	r.Delete("/compatibilidades/{id}", h.removeCompat)

	r.Get("/categorias", h.listCategorias)
	r.Post("/categorias", h.createCategoria)
	r.Delete("/categorias/{id}", h.deleteCategoria)

	r.Get("/proveedores", h.listProveedores)
	r.Post("/proveedores", h.createProveedor)
}

type partPayload struct {
	Codigo       string          `json:"codigo" validate:"required"`
	Nombre       string          `json:"nombre" validate:"required"`
	Descripcion  string          `json:"descripcion"`
	CategoriaID  *int64          `json:"categoria_id"`
	ProveedorID  *int64          `json:"proveedor_id"`
	UbicacionID  *int64          `json:"ubicacion_id"`
	EstanteID    *int64          `json:"estante_id"`
	NivelID      *int64          `json:"nivel_id"`
	FilaID       *int64          `json:"fila_id"`
	StockActual  *int64          `json:"stock_actual"`
	StockMinimo  int64           `json:"stock_minimo"`
	StockMaximo  int64           `json:"stock_maximo" validate:"required"`
	PrecioCompra decimal.Decimal `json:"precio_compra"`
	PrecioVenta  decimal.Decimal `json:"precio_venta"`
	UnidadMedida string          `json:"unidad_medida"`
}

type partResponse struct {
	ID           int64           `json:"id"`
	Codigo       string          `json:"codigo"`
	Nombre       string          `json:"nombre"`
	Descripcion  string          `json:"descripcion"`
	CategoriaID  *int64          `json:"categoria_id"`
	ProveedorID  *int64          `json:"proveedor_id"`
	UbicacionID  *int64          `json:"ubicacion_id"`
	EstanteID    *int64          `json:"estante_id"`
	NivelID      *int64          `json:"nivel_id"`
	FilaID       *int64          `json:"fila_id"`
	StockActual  int64           `json:"stock_actual"`
	StockMinimo  int64           `json:"stock_minimo"`
	StockMaximo  int64           `json:"stock_maximo"`
	PrecioCompra decimal.Decimal `json:"precio_compra"`
	PrecioVenta  decimal.Decimal `json:"precio_venta"`
	UnidadMedida string          `json:"unidad_medida"`
	Activo       bool            `json:"activo"`
	Eliminado    bool            `json:"eliminado"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toPartResponse(p Repuesto) partResponse {
	return partResponse{
		ID: p.ID, Codigo: p.Codigo, Nombre: p.Nombre, Descripcion: p.Descripcion,
		CategoriaID: p.CategoriaID, ProveedorID: p.ProveedorID,
		UbicacionID: p.UbicacionID, EstanteID: p.EstanteID, NivelID: p.NivelID, FilaID: p.FilaID,
		StockActual: p.StockActual, StockMinimo: p.StockMinimo, StockMaximo: p.StockMaximo,
		PrecioCompra: p.PrecioCompra, PrecioVenta: p.PrecioVenta, UnidadMedida: p.UnidadMedida,
		Activo: p.Activo, Eliminado: p.Eliminado, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload partPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	part, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), CreateInput{
		Codigo: payload.Codigo, Nombre: payload.Nombre, Descripcion: payload.Descripcion,
		CategoriaID: payload.CategoriaID, ProveedorID: payload.ProveedorID,
		UbicacionID: payload.UbicacionID, EstanteID: payload.EstanteID,
		NivelID: payload.NivelID, FilaID: payload.FilaID,
		StockMinimo: payload.StockMinimo, StockMaximo: payload.StockMaximo,
		PrecioCompra: payload.PrecioCompra, PrecioVenta: payload.PrecioVenta,
		UnidadMedida: payload.UnidadMedida,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPartResponse(part))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload partPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	part, err := h.service.Update(r.Context(), shared.ActorFromContext(r.Context()), UpdateInput{
		ID: id, Codigo: payload.Codigo, Nombre: payload.Nombre, Descripcion: payload.Descripcion,
		CategoriaID: payload.CategoriaID, ProveedorID: payload.ProveedorID,
		UbicacionID: payload.UbicacionID, EstanteID: payload.EstanteID,
		NivelID: payload.NivelID, FilaID: payload.FilaID,
		StockMinimo: payload.StockMinimo, StockMaximo: payload.StockMaximo, StockActual: payload.StockActual,
		PrecioCompra: payload.PrecioCompra, PrecioVenta: payload.PrecioVenta,
		UnidadMedida: payload.UnidadMedida,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartResponse(part))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := httpx.Page(r)
	filters := ListFilters{
		CategoriaID: httpx.QueryInt64(r, "categoria_id"),
		ProveedorID: httpx.QueryInt64(r, "proveedor_id"),
		UbicacionID: httpx.QueryInt64(r, "ubicacion_id"),
		LowStock:    httpx.QueryBool(r, "stock_bajo"),
		OnlyActive:  httpx.QueryBool(r, "solo_activos"),
		Search:      r.URL.Query().Get("buscar"),
		Page:        page,
		PerPage:     perPage,
	}
	items, pagination, err := h.service.List(r.Context(), shared.ActorFromContext(r.Context()), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]partResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toPartResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	part, err := h.service.GetByID(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartResponse(part))
}

func (h *Handler) getByCode(w http.ResponseWriter, r *http.Request) {
	part, err := h.service.GetByCode(r.Context(), shared.ActorFromContext(r.Context()), chi.URLParam(r, "codigo"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartResponse(part))
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.SoftDelete(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Reactivate(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) permanentDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload struct {
		Motivo string `json:"motivo" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.service.PermanentDelete(r.Context(), shared.ActorFromContext(r.Context()), id, payload.Motivo); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type compatPayload struct {
	Marca     string `json:"marca" validate:"required"`
	Modelo    string `json:"modelo" validate:"required"`
	AnioDesde *int   `json:"anio_desde"`
	AnioHasta *int   `json:"anio_hasta"`
	Motor     string `json:"motor"`
}

func (h *Handler) addCompat(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload compatPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	compat, err := h.service.AddCompatibilidad(r.Context(), shared.ActorFromContext(r.Context()), Compatibilidad{
		RepuestoID: id, Marca: payload.Marca, Modelo: payload.Modelo,
		AnioDesde: payload.AnioDesde, AnioHasta: payload.AnioHasta, Motor: payload.Motor,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, compat)
}

func (h *Handler) removeCompat(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveCompatibilidad(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCompat(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListCompatibilidades(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) listCategorias(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCategorias(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createCategoria(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nombre string `json:"nombre" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	cat, err := h.service.CreateCategoria(r.Context(), shared.ActorFromContext(r.Context()), payload.Nombre)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cat)
}

func (h *Handler) deleteCategoria(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	force := httpx.QueryBool(r, "definitivo")
	if err := h.service.DeleteCategoria(r.Context(), shared.ActorFromContext(r.Context()), id, force); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listProveedores(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListProveedores(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createProveedor(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nombre   string `json:"nombre" validate:"required"`
		Email    string `json:"email" validate:"omitempty,email"`
		Telefono string `json:"telefono"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	prov, err := h.service.CreateProveedor(r.Context(), shared.ActorFromContext(r.Context()), Proveedor{
		Nombre: payload.Nombre, Email: payload.Email, Telefono: payload.Telefono,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, prov)
}
