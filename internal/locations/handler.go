package locations

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallerpro/tallerpro/internal/platform/httpx"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// Handler exposes the storage-location graph over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes registers location routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/bodegas", h.listBodegas)
	r.Post("/bodegas", h.createBodega)
	r.Put("/bodegas/{id}", h.updateBodega)
	r.Post("/bodegas/{id}/desactivar", h.deactivateBodega)

	r.Get("/bodegas/{id}/ubicaciones", h.listUbicaciones)
	r.Post("/ubicaciones", h.createUbicacion)
	r.Put("/ubicaciones/{id}", h.updateUbicacion)

	r.Get("/ubicaciones/{id}/estantes", h.listEstantes)
	r.Post("/estantes", h.createEstante)
	r.Put("/estantes/{id}", h.updateEstante)

	r.Get("/niveles", h.listNiveles)
	r.Post("/niveles", h.createNivel)
	r.Get("/filas", h.listFilas)
	r.Post("/filas", h.createFila)

	r.Post("/usuarios/{id}/bodegas", h.assignUserBodega)
	r.Delete("/usuarios/{id}/bodegas/{bodegaID}", h.removeUserBodega)
}

func (h *Handler) listBodegas(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListBodegas(r.Context(), shared.ActorFromContext(r.Context()), httpx.QueryBool(r, "solo_activas"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createBodega(w http.ResponseWriter, r *http.Request) {
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
	b, err := h.service.CreateBodega(r.Context(), shared.ActorFromContext(r.Context()), payload.Nombre)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) updateBodega(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload struct {
		Nombre string `json:"nombre" validate:"required"`
		Activo bool   `json:"activo"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	b := Bodega{ID: id, Nombre: payload.Nombre, Activo: payload.Activo}
	if err := h.service.UpdateBodega(r.Context(), shared.ActorFromContext(r.Context()), b); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) deactivateBodega(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeactivateBodega(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUbicaciones(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListUbicaciones(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

type ubicacionPayload struct {
	BodegaID int64  `json:"bodega_id" validate:"required"`
	Codigo   string `json:"codigo" validate:"required"`
	Nombre   string `json:"nombre"`
	Activo   bool   `json:"activo"`
}

func (h *Handler) createUbicacion(w http.ResponseWriter, r *http.Request) {
	var payload ubicacionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	u, err := h.service.CreateUbicacion(r.Context(), shared.ActorFromContext(r.Context()), Ubicacion{
		BodegaID: payload.BodegaID, Codigo: payload.Codigo, Nombre: payload.Nombre,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) updateUbicacion(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload ubicacionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	u := Ubicacion{ID: id, BodegaID: payload.BodegaID, Codigo: payload.Codigo, Nombre: payload.Nombre, Activo: payload.Activo}
	if err := h.service.UpdateUbicacion(r.Context(), shared.ActorFromContext(r.Context()), u); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) listEstantes(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListEstantes(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

type estantePayload struct {
	UbicacionID int64  `json:"ubicacion_id" validate:"required"`
	Codigo      string `json:"codigo" validate:"required"`
	Nombre      string `json:"nombre"`
	Activo      bool   `json:"activo"`
}

func (h *Handler) createEstante(w http.ResponseWriter, r *http.Request) {
	var payload estantePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	e, err := h.service.CreateEstante(r.Context(), shared.ActorFromContext(r.Context()), Estante{
		UbicacionID: payload.UbicacionID, Codigo: payload.Codigo, Nombre: payload.Nombre,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) updateEstante(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload estantePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	e := Estante{ID: id, UbicacionID: payload.UbicacionID, Codigo: payload.Codigo, Nombre: payload.Nombre, Activo: payload.Activo}
	if err := h.service.UpdateEstante(r.Context(), shared.ActorFromContext(r.Context()), e); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) listNiveles(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListNiveles(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createNivel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Codigo string `json:"codigo" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	n, err := h.service.CreateNivel(r.Context(), shared.ActorFromContext(r.Context()), payload.Codigo)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, n)
}

func (h *Handler) listFilas(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListFilas(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createFila(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Codigo string `json:"codigo" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	f, err := h.service.CreateFila(r.Context(), shared.ActorFromContext(r.Context()), payload.Codigo)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, f)
}

func (h *Handler) assignUserBodega(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload struct {
		BodegaID int64 `json:"bodega_id" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if err := h.service.AssignUserBodega(r.Context(), shared.ActorFromContext(r.Context()), userID, payload.BodegaID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeUserBodega(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bodegaID, err := httpx.IDParam(r, "bodegaID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveUserBodega(r.Context(), shared.ActorFromContext(r.Context()), userID, bodegaID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
